/*
Lumen opens a window and ray traces the scene described by a TOML
configuration file (config.toml by default, or the path in LUMEN_CONFIG).
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/lumen/engine"
	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/testbed"
)

func main() {
	path := os.Getenv("LUMEN_CONFIG")
	if path == "" {
		path = "config.toml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		core.LogFatal("loading configuration: %v", err)
	}

	tb, err := testbed.NewTestGame(cfg)
	if err != nil {
		core.LogFatal("creating testbed: %v", err)
	}

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal("creating engine: %v", err)
	}

	if err := e.Initialize(); err != nil {
		core.LogError("initializing engine: %v", err)
		_ = e.Shutdown()
		os.Exit(1)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// ask the loop to stop; shutdown runs on the main thread below
	go func() {
		<-sigCh
		core.EventFire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %v", err)
	}
	if runErr != nil {
		core.LogFatal("engine stopped: %v", runErr)
	}
}

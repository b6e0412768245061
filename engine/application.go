package engine

import (
	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
)

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32
	// Window starting position y axis, if applicable.
	StartPosY uint32
	// Window starting width, if applicable.
	StartWidth uint32
	// Window starting height, if applicable.
	StartHeight uint32
	// The application name used in windowing, if applicable.
	Name     string
	LogLevel core.LogLevel
	// Renderer and scene settings handed to the renderer.
	Config *config.Config
}

func NewApplicationConfig(cfg *config.Config) *ApplicationConfig {
	app := cfg.Application
	return &ApplicationConfig{
		StartPosX:   app.PosX,
		StartPosY:   app.PosY,
		StartWidth:  app.Width,
		StartHeight: app.Height,
		Name:        app.Name,
		LogLevel:    app.Level(),
		Config:      cfg,
	}
}

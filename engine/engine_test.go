package engine

import (
	"testing"

	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
)

func newTestEngine(t *testing.T, resized *[][2]uint32) *Engine {
	t.Helper()
	core.EventSystemInitialize()
	t.Cleanup(func() { core.EventSystemShutdown() })

	g := &Game{
		ApplicationConfig: NewApplicationConfig(config.Default()),
		FnOnResize: func(w, h uint32) error {
			*resized = append(*resized, [2]uint32{w, h})
			return nil
		},
	}
	e, err := New(g)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(&Game{}); err == nil {
		t.Fatal("engine created without configuration")
	}
}

func TestApplicationConfigFromFile(t *testing.T) {
	cfg := config.Default()
	cfg.Application.Width = 640
	cfg.Application.PosX = 12
	cfg.Application.LogLevel = "warn"
	app := NewApplicationConfig(cfg)
	if app.StartWidth != 640 || app.StartPosX != 12 || app.LogLevel != core.WarnLevel || app.Config != cfg {
		t.Fatalf("application config = %+v", app)
	}
}

func TestOnResizedSuspendsWhenMinimized(t *testing.T) {
	var resized [][2]uint32
	e := newTestEngine(t, &resized)

	e.onResized(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.SystemEvent{WindowWidth: 0, WindowHeight: 0}})
	if !e.isSuspended || len(resized) != 0 {
		t.Fatalf("suspended=%v resized=%v", e.isSuspended, resized)
	}

	e.onResized(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.SystemEvent{WindowWidth: 800, WindowHeight: 600}})
	if e.isSuspended {
		t.Fatal("engine still suspended after restore")
	}
	if len(resized) != 1 || resized[0] != [2]uint32{800, 600} {
		t.Fatalf("resized = %v", resized)
	}
	if w, h := e.GetFramebufferSize(); w != 800 || h != 600 {
		t.Fatalf("framebuffer = %dx%d", w, h)
	}

	// same size again is ignored
	e.onResized(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.SystemEvent{WindowWidth: 800, WindowHeight: 600}})
	if len(resized) != 1 {
		t.Fatalf("resized = %v", resized)
	}
}

func TestEscapeQuits(t *testing.T) {
	var resized [][2]uint32
	e := newTestEngine(t, &resized)
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)

	e.onKey(core.EventContext{Type: core.EVENT_CODE_KEY_PRESSED, Data: &core.KeyEvent{KeyCode: core.KEY_ESCAPE}})
	if core.EventDispatch() != 1 {
		t.Fatal("quit event not queued")
	}
	if e.isRunning {
		t.Fatal("engine still running after escape")
	}
}

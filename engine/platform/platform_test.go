package platform

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/lumen/engine/core"
)

func TestTranslateKey(t *testing.T) {
	tests := []struct {
		key  glfw.Key
		want core.KeyCode
	}{
		{glfw.KeyEscape, core.KEY_ESCAPE},
		{glfw.KeyTab, core.KEY_TAB},
		{glfw.KeyDelete, core.KEY_DELETE},
		{glfw.KeyB, core.KEY_B},
		{glfw.KeyW, core.KEY_W},
		{glfw.KeyKPAdd, core.KEY_ADD},
		{glfw.KeyMinus, core.KEY_SUBTRACT},
		{glfw.KeyF12, core.KEY_UNKNOWN},
	}
	for _, tt := range tests {
		if got := translateKey(tt.key); got != tt.want {
			t.Errorf("translateKey(%v) = %#x, want %#x", tt.key, got, tt.want)
		}
	}
}

func TestTranslateButton(t *testing.T) {
	if b, ok := translateButton(glfw.MouseButtonRight); !ok || b != core.BUTTON_RIGHT {
		t.Fatalf("right button = %v %v", b, ok)
	}
	if _, ok := translateButton(glfw.MouseButton5); ok {
		t.Fatal("extra button translated")
	}
}

func TestFramebufferSizeFiresResized(t *testing.T) {
	core.EventSystemInitialize()
	defer core.EventSystemShutdown()

	var got *core.SystemEvent
	core.EventRegister(core.EVENT_CODE_RESIZED, func(ctx core.EventContext) {
		got = ctx.Data.(*core.SystemEvent)
	})
	framebufferSizeCallback(nil, 800, 600)
	if core.EventDispatch() != 1 {
		t.Fatal("no event dispatched")
	}
	if got == nil || got.WindowWidth != 800 || got.WindowHeight != 600 {
		t.Fatalf("event = %+v", got)
	}
}

package core

import (
	"sync"
	"testing"
)

func TestEventsQueuedUntilDispatch(t *testing.T) {
	if !EventSystemInitialize() {
		t.Fatal("event system should initialize once")
	}
	defer EventSystemShutdown()

	var got []uint32
	id := EventRegister(EVENT_CODE_RESIZED, func(ctx EventContext) {
		se := ctx.Data.(*SystemEvent)
		got = append(got, se.WindowWidth)
	})

	EventFire(EventContext{Type: EVENT_CODE_RESIZED, Data: &SystemEvent{WindowWidth: 800, WindowHeight: 600}})
	EventFire(EventContext{Type: EVENT_CODE_RESIZED, Data: &SystemEvent{WindowWidth: 1024, WindowHeight: 768}})
	if len(got) != 0 {
		t.Fatalf("listener ran before dispatch: %v", got)
	}

	if n := EventDispatch(); n != 2 {
		t.Fatalf("dispatched %d events, want 2", n)
	}
	if len(got) != 2 || got[0] != 800 || got[1] != 1024 {
		t.Fatalf("unexpected delivery order %v", got)
	}

	if !EventUnregister(EVENT_CODE_RESIZED, id) {
		t.Fatal("unregister failed")
	}
	if EventFire(EventContext{Type: EVENT_CODE_RESIZED, Data: &SystemEvent{}}) {
		t.Fatal("fire with no listeners should report false")
	}
}

func TestEventFireConcurrentWithShutdown(t *testing.T) {
	if !EventSystemInitialize() {
		t.Fatal("event system should initialize once")
	}
	EventRegister(EVENT_CODE_SHADER_CHANGED, func(EventContext) {})

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 200; j++ {
				EventFire(EventContext{Type: EVENT_CODE_SHADER_CHANGED, Data: &FileEvent{Path: "raygen.rgen.spv"}})
			}
		}()
	}
	close(start)
	if err := EventSystemShutdown(); err != nil {
		t.Fatal(err)
	}
	wg.Wait()

	if EventFire(EventContext{Type: EVENT_CODE_SHADER_CHANGED}) {
		t.Fatal("fire after shutdown should report false")
	}
	if err := EventSystemShutdown(); err == nil {
		t.Fatal("second shutdown should fail")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug": DebugLevel,
		"INFO":  InfoLevel,
		"":      InfoLevel,
		"warn":  WarnLevel,
		"error": ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLogLevel(in)
		if err != nil {
			t.Errorf("ParseLogLevel(%q) error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLogLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

package core

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// System internal event codes. Application should use codes beyond 255.
type EventCode uint16

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT EventCode = 0x01
	// Keyboard key pressed. Data: *KeyEvent
	EVENT_CODE_KEY_PRESSED EventCode = 0x02
	// Keyboard key released. Data: *KeyEvent
	EVENT_CODE_KEY_RELEASED EventCode = 0x03
	// Mouse button pressed. Data: *MouseEvent
	EVENT_CODE_BUTTON_PRESSED EventCode = 0x04
	// Mouse button released. Data: *MouseEvent
	EVENT_CODE_BUTTON_RELEASED EventCode = 0x05
	// Mouse moved. Data: *MouseEvent
	EVENT_CODE_MOUSE_MOVED EventCode = 0x06
	// Mouse wheel. Data: *MouseEvent
	EVENT_CODE_MOUSE_WHEEL EventCode = 0x07
	// Resized/resolution changed from the OS. Data: *SystemEvent
	EVENT_CODE_RESIZED EventCode = 0x08
	// A model was edited from the application side (transform, BLAS flag, deletion). Data: *ModelEvent
	EVENT_CODE_MODEL_EDITED EventCode = 0x09
	// A compiled shader changed on disk. Data: *FileEvent
	EVENT_CODE_SHADER_CHANGED EventCode = 0x0A

	MAX_EVENT_CODE EventCode = 0xFF
)

type EventContext struct {
	Type EventCode
	Data interface{}
}

type KeyEvent struct {
	KeyCode KeyCode
}

type MouseEvent struct {
	Button Button
	PosX   uint16
	PosY   uint16
	Scroll int8
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

type ModelEvent struct {
	ModelIndex  int
	Translation [3]float32
	Rotation    [3]float32
	Scale       [3]float32
	UpdateBLAS  bool
	DeleteModel bool
}

type FileEvent struct {
	Path string
}

type FnOnEvent func(context EventContext)

type registeredEvent struct {
	id       uint64
	callback FnOnEvent
}

type eventSystemState struct {
	mu         sync.Mutex
	nextID     uint64
	registered map[EventCode][]registeredEvent
	queue      []EventContext
}

// eventState is swapped atomically; EventFire runs on watcher goroutines
// while the loop thread may shut the system down.
var eventState atomic.Pointer[eventSystemState]

func EventSystemInitialize() bool {
	return eventState.CompareAndSwap(nil, &eventSystemState{
		registered: make(map[EventCode][]registeredEvent),
	})
}

func EventSystemShutdown() error {
	if eventState.Swap(nil) == nil {
		return errors.New("event system is not initialized")
	}
	return nil
}

// EventRegister adds a listener for code and returns an id usable with EventUnregister.
func EventRegister(code EventCode, onEvent FnOnEvent) uint64 {
	state := eventState.Load()
	if state == nil {
		return 0
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	state.nextID++
	state.registered[code] = append(state.registered[code], registeredEvent{
		id:       state.nextID,
		callback: onEvent,
	})
	return state.nextID
}

func EventUnregister(code EventCode, id uint64) bool {
	state := eventState.Load()
	if state == nil {
		return false
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	events := state.registered[code]
	for i := range events {
		if events[i].id == id {
			state.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// EventFire queues an event. Listeners run on the next EventDispatch, which
// the engine calls from the thread that owns the renderer.
func EventFire(context EventContext) bool {
	state := eventState.Load()
	if state == nil {
		return false
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if len(state.registered[context.Type]) == 0 {
		return false
	}
	state.queue = append(state.queue, context)
	return true
}

// EventDispatch drains the queue and returns the number of events delivered.
func EventDispatch() int {
	state := eventState.Load()
	if state == nil {
		return 0
	}
	state.mu.Lock()
	pending := state.queue
	state.queue = nil
	state.mu.Unlock()

	for _, ctx := range pending {
		state.mu.Lock()
		listeners := append([]registeredEvent(nil), state.registered[ctx.Type]...)
		state.mu.Unlock()
		for _, l := range listeners {
			l.callback(ctx)
		}
	}
	return len(pending)
}

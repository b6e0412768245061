package testbed

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine"
	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
	lmath "github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/scene"
)

const (
	moveStep     = 0.25
	rotateStep   = 15
	scaleStep    = 1.1
	cameraSpeed  = 3
	cameraTurn   = 1.5
	stripSwingDG = 45
)

type TestGame struct {
	*engine.Game
}

type modelState struct {
	Name        string
	Kind        string
	Translation [3]float32
	Rotation    [3]float32
	Scale       [3]float32
}

type gameState struct {
	models     []modelState
	selected   int
	updateBLAS bool
	animate    bool
	elapsed    float64
	// deleted models leave the renderer's scene on the next frame
	deletePending bool

	width  uint32
	height uint32

	keyListener uint64
}

func NewTestGame(cfg *config.Config) (*TestGame, error) {
	state := &gameState{animate: true}
	for _, m := range cfg.Scene.Models {
		state.models = append(state.models, modelState{
			Name:        m.Name,
			Kind:        m.Kind,
			Translation: m.Translation,
			Rotation:    m.Rotation,
			Scale:       m.Scale,
		})
	}
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: engine.NewApplicationConfig(cfg),
			State:             state,
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize() error {
	core.LogInfo("initializing testbed with %d models", len(g.state().models))
	g.state().keyListener = core.EventRegister(core.EVENT_CODE_KEY_PRESSED, g.onKey)
	return nil
}

func (g *TestGame) onKey(context core.EventContext) {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		return
	}
	g.handleKey(ke.KeyCode)
}

// handleKey edits the selected model. Every change is published as one
// model edit event carrying the full transform.
func (g *TestGame) handleKey(key core.KeyCode) {
	s := g.state()
	switch key {
	case core.KEY_TAB:
		if len(s.models) > 0 {
			s.selected = (s.selected + 1) % len(s.models)
			core.LogInfo("selected model %d '%s'", s.selected, s.models[s.selected].Name)
		}
		return
	case core.KEY_B:
		s.updateBLAS = !s.updateBLAS
		core.LogInfo("BLAS rebuild on edit: %v", s.updateBLAS)
		return
	case core.KEY_SPACE:
		s.animate = !s.animate
		return
	case core.KEY_DELETE:
		g.deleteSelected()
		return
	}

	if s.selected >= len(s.models) {
		return
	}
	m := &s.models[s.selected]
	switch key {
	case core.KEY_W:
		m.Translation[2] -= moveStep
	case core.KEY_S:
		m.Translation[2] += moveStep
	case core.KEY_A:
		m.Translation[0] -= moveStep
	case core.KEY_D:
		m.Translation[0] += moveStep
	case core.KEY_Q:
		m.Rotation[1] -= rotateStep
	case core.KEY_E:
		m.Rotation[1] += rotateStep
	case core.KEY_ADD:
		for i := range m.Scale {
			m.Scale[i] *= scaleStep
		}
	case core.KEY_SUBTRACT:
		for i := range m.Scale {
			m.Scale[i] /= scaleStep
		}
	default:
		return
	}
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_MODEL_EDITED,
		Data: &core.ModelEvent{
			ModelIndex:  s.selected,
			Translation: m.Translation,
			Rotation:    m.Rotation,
			Scale:       m.Scale,
			UpdateBLAS:  s.updateBLAS,
		},
	})
}

func (g *TestGame) deleteSelected() {
	s := g.state()
	if s.selected >= len(s.models) {
		return
	}
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_MODEL_EDITED,
		Data: &core.ModelEvent{ModelIndex: s.selected, DeleteModel: true},
	})
	core.LogInfo("deleting model %d '%s'", s.selected, s.models[s.selected].Name)
	s.models = append(s.models[:s.selected], s.models[s.selected+1:]...)
	s.deletePending = true
	if s.selected >= len(s.models) && s.selected > 0 {
		s.selected--
	}
}

func (g *TestGame) Update(deltaTime float64) error {
	s := g.state()
	s.elapsed += deltaTime
	skipPose := s.deletePending
	s.deletePending = false
	if g.Renderer == nil {
		return nil
	}

	camera := g.Renderer.Camera()
	step := float32(deltaTime)
	if core.InputIsKeyDown(core.KEY_UP) {
		camera.MoveForward(cameraSpeed * step)
	}
	if core.InputIsKeyDown(core.KEY_DOWN) {
		camera.MoveBackward(cameraSpeed * step)
	}
	if core.InputIsKeyDown(core.KEY_LEFT) {
		camera.Yaw(cameraTurn * step)
	}
	if core.InputIsKeyDown(core.KEY_RIGHT) {
		camera.Yaw(-cameraTurn * step)
	}
	if core.InputKeyPressedThisFrame(core.KEY_R) {
		camera.Reset()
		camera.SetPosition(mgl32.Vec3{0, 1, 6})
	}

	if !s.animate || skipPose {
		return nil
	}
	angle := lmath.DegToRad(stripSwingDG * float32(math.Sin(s.elapsed)))
	swing := mgl32.QuatRotate(angle, mgl32.Vec3{0, 0, 1})
	for i, m := range s.models {
		if m.Kind != config.KindSkinnedStrip {
			continue
		}
		if err := g.Renderer.Pose(i, scene.StripTipJoint, swing); err != nil {
			return err
		}
	}
	return nil
}

func (g *TestGame) Render(deltaTime float64) error {
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	s := g.state()
	s.width = width
	s.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	core.EventUnregister(core.EVENT_CODE_KEY_PRESSED, g.state().keyListener)
	core.LogInfo("testbed shut down")
	return nil
}

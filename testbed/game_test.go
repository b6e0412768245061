package testbed

import (
	"testing"

	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
)

func newTestbed(t *testing.T) (*TestGame, *[]*core.ModelEvent) {
	t.Helper()
	core.EventSystemInitialize()
	t.Cleanup(func() { core.EventSystemShutdown() })

	var edits []*core.ModelEvent
	core.EventRegister(core.EVENT_CODE_MODEL_EDITED, func(ctx core.EventContext) {
		edits = append(edits, ctx.Data.(*core.ModelEvent))
	})
	g, err := NewTestGame(config.Default())
	if err != nil {
		t.Fatal(err)
	}
	return g, &edits
}

func TestMoveSelectedModel(t *testing.T) {
	g, edits := newTestbed(t)
	g.handleKey(core.KEY_TAB)
	g.handleKey(core.KEY_D)
	core.EventDispatch()

	if len(*edits) != 1 {
		t.Fatalf("edits = %d", len(*edits))
	}
	e := (*edits)[0]
	want := config.Default().Scene.Models[1]
	if e.ModelIndex != 1 || e.Translation[0] != want.Translation[0]+moveStep || e.Scale != want.Scale {
		t.Fatalf("edit = %+v", e)
	}
	if e.UpdateBLAS || e.DeleteModel {
		t.Fatalf("unexpected flags in %+v", e)
	}
}

func TestToggleBLASRebuild(t *testing.T) {
	g, edits := newTestbed(t)
	g.handleKey(core.KEY_B)
	g.handleKey(core.KEY_E)
	core.EventDispatch()
	if len(*edits) != 1 || !(*edits)[0].UpdateBLAS || (*edits)[0].Rotation[1] != rotateStep {
		t.Fatalf("edits = %+v", *edits)
	}
}

func TestDeleteSelected(t *testing.T) {
	g, edits := newTestbed(t)
	count := len(g.state().models)
	g.handleKey(core.KEY_TAB)
	g.handleKey(core.KEY_DELETE)
	core.EventDispatch()

	if len(*edits) != 1 || !(*edits)[0].DeleteModel || (*edits)[0].ModelIndex != 1 {
		t.Fatalf("edits = %+v", *edits)
	}
	s := g.state()
	if len(s.models) != count-1 || s.selected != count-2 {
		t.Fatalf("models = %d selected = %d", len(s.models), s.selected)
	}

	// the pose update is skipped for the frame that still has the old scene
	if err := g.Update(0.016); err != nil || s.deletePending {
		t.Fatalf("Update err=%v pending=%v", err, s.deletePending)
	}
}

func TestKeysIgnoredWithoutModels(t *testing.T) {
	g, edits := newTestbed(t)
	g.state().models = nil
	g.handleKey(core.KEY_TAB)
	g.handleKey(core.KEY_W)
	g.handleKey(core.KEY_DELETE)
	core.EventDispatch()
	if len(*edits) != 0 {
		t.Fatalf("edits = %+v", *edits)
	}
}

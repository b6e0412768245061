package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestArenaWorldMatrixComposesParents(t *testing.T) {
	var a Arena
	parent := NewNode("parent")
	parent.SetPosition(mgl32.Vec3{1, 0, 0})
	parent.SetRotation(mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0}))
	p := a.Add(NoIndex, parent)

	child := NewNode("child")
	child.SetPosition(mgl32.Vec3{0, 0, 2})
	child.SetScale(mgl32.Vec3{2, 2, 2})
	c := a.Add(p, child)

	want := a.WorldMatrix(p).Mul4(a.LocalMatrix(c))
	if got := a.WorldMatrix(c); !got.ApproxEqual(want) {
		t.Fatalf("world = %v, want %v", got, want)
	}

	// (0,0,2) rotated 90 degrees about Y lands on (2,0,0), then moves by (1,0,0).
	origin := a.WorldMatrix(c).Mul4x1(mgl32.Vec4{0, 0, 0, 1}).Vec3()
	if !origin.ApproxEqualThreshold(mgl32.Vec3{3, 0, 0}, 1e-5) {
		t.Fatalf("child origin = %v", origin)
	}
}

func TestArenaLinksChildren(t *testing.T) {
	var a Arena
	r := a.Add(NoIndex, NewNode("root"))
	c1 := a.Add(r, NewNode("a"))
	c2 := a.Add(r, NewNode("b"))
	other := a.Add(42, NewNode("orphan"))

	if a.Len() != 4 {
		t.Fatalf("Len = %d", a.Len())
	}
	if got := a.Node(r).Children; len(got) != 2 || got[0] != c1 || got[1] != c2 {
		t.Fatalf("children = %v", got)
	}
	if roots := a.Roots(); len(roots) != 2 || roots[0] != r || roots[1] != other {
		t.Fatalf("roots = %v", roots)
	}
}

func TestArenaMatrixOverridesTRS(t *testing.T) {
	var a Arena
	n := NewNode("fixed")
	n.SetPosition(mgl32.Vec3{5, 5, 5})
	m := mgl32.Translate3D(0, 3, 0)
	n.Matrix = &m
	i := a.Add(NoIndex, n)
	if got := a.LocalMatrix(i); got != m {
		t.Fatalf("local = %v", got)
	}
}

func TestWalkVisitsDepthFirst(t *testing.T) {
	var a Arena
	r := a.Add(NoIndex, NewNode("root"))
	c := a.Add(r, NewNode("child"))
	a.Add(c, NewNode("grandchild"))
	a.Add(NoIndex, NewNode("second"))

	var order []string
	a.Walk(func(i int, world mgl32.Mat4) {
		order = append(order, a.Node(i).Name)
		if !world.ApproxEqual(a.WorldMatrix(i)) {
			t.Errorf("%s: walk world differs from WorldMatrix", a.Node(i).Name)
		}
	})
	want := []string{"root", "child", "grandchild", "second"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

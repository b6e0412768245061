package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	lmath "github.com/spaghettifunk/lumen/engine/math"
)

// NoIndex marks a missing parent, mesh or skin.
const NoIndex = -1

// Node is one entry of a model's node tree. Parent and Children are arena
// indices.
type Node struct {
	Name     string
	Parent   int
	Children []int
	Mesh     int
	Skin     int

	// Writes go through the Set* methods so the cached local matrix is
	// recomputed.
	lmath.Transform
	// Matrix, when non-nil, replaces the TRS components.
	Matrix *mgl32.Mat4
}

// NewNode returns a root node with identity transform and no mesh.
func NewNode(name string) Node {
	return Node{
		Name:      name,
		Parent:    NoIndex,
		Mesh:      NoIndex,
		Skin:      NoIndex,
		Transform: lmath.TransformCreate(),
	}
}

// Arena owns every node of a model. Nodes are never removed individually.
type Arena struct {
	nodes []Node
}

// Add appends n under parent (NoIndex for a root) and returns its index.
func (a *Arena) Add(parent int, n Node) int {
	idx := len(a.nodes)
	if parent < 0 || parent >= idx {
		parent = NoIndex
	}
	n.Parent = parent
	n.Children = nil
	a.nodes = append(a.nodes, n)
	if parent != NoIndex {
		a.nodes[parent].Children = append(a.nodes[parent].Children, idx)
	}
	return idx
}

func (a *Arena) Len() int {
	return len(a.nodes)
}

// Node returns a pointer into the arena; it is invalidated by Add.
func (a *Arena) Node(i int) *Node {
	return &a.nodes[i]
}

func (a *Arena) Roots() []int {
	var roots []int
	for i, n := range a.nodes {
		if n.Parent == NoIndex {
			roots = append(roots, i)
		}
	}
	return roots
}

func (a *Arena) LocalMatrix(i int) mgl32.Mat4 {
	n := &a.nodes[i]
	if n.Matrix != nil {
		return *n.Matrix
	}
	return n.Local()
}

// WorldMatrix walks up the parent chain: world = parent world * local.
func (a *Arena) WorldMatrix(i int) mgl32.Mat4 {
	m := a.LocalMatrix(i)
	for p := a.nodes[i].Parent; p != NoIndex; p = a.nodes[p].Parent {
		m = a.LocalMatrix(p).Mul4(m)
	}
	return m
}

// Walk visits nodes depth first from every root.
func (a *Arena) Walk(fn func(index int, world mgl32.Mat4)) {
	var visit func(i int, parent mgl32.Mat4)
	visit = func(i int, parent mgl32.Mat4) {
		world := parent.Mul4(a.LocalMatrix(i))
		fn(i, world)
		for _, c := range a.nodes[i].Children {
			visit(c, world)
		}
	}
	for _, r := range a.Roots() {
		visit(r, mgl32.Ident4())
	}
}

package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	lmath "github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func defaultMaterial(name string, color mgl32.Vec4) metadata.Material {
	return metadata.Material{
		Name:             name,
		BaseColorFactor:  [4]float32(color),
		BaseColorTexture: metadata.NoTexture,
		OcclusionTexture: metadata.NoTexture,
	}
}

// quad returns the four corners of a face with normal n, counter clockwise
// seen from the front.
func quad(center, u, v, n mgl32.Vec3, color mgl32.Vec4) []Vertex {
	corners := [4]struct {
		su, sv float32
		uv     mgl32.Vec2
	}{
		{-1, -1, mgl32.Vec2{0, 1}},
		{1, -1, mgl32.Vec2{1, 1}},
		{1, 1, mgl32.Vec2{1, 0}},
		{-1, 1, mgl32.Vec2{0, 0}},
	}
	out := make([]Vertex, 4)
	for i, c := range corners {
		out[i] = Vertex{
			Position: center.Add(u.Mul(c.su)).Add(v.Mul(c.sv)),
			Normal:   n,
			UV:       c.uv,
			Color:    color,
		}
	}
	return out
}

func quadIndices(base uint32) []uint32 {
	return []uint32{base, base + 1, base + 2, base, base + 2, base + 3}
}

// NewCube is a unit half-extent cube with per-face normals.
func NewCube(name string, color mgl32.Vec4) *Model {
	faces := []struct{ n, u, v mgl32.Vec3 }{
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	}
	var vertices []Vertex
	var indices []uint32
	for _, f := range faces {
		indices = append(indices, quadIndices(uint32(len(vertices)))...)
		vertices = append(vertices, quad(f.n, f.u, f.v, f.n, color)...)
	}
	m := NewModel(name)
	mat := m.AddMaterial(defaultMaterial(name, color))
	m.AddMesh(NoIndex, NewNode(name), vertices, indices, mat)
	return m
}

// NewPlane is a unit half-extent quad in the XZ plane facing +Y.
func NewPlane(name string, color mgl32.Vec4) *Model {
	up := mgl32.Vec3{0, 1, 0}
	vertices := quad(mgl32.Vec3{}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, up, color)
	m := NewModel(name)
	mat := m.AddMaterial(defaultMaterial(name, color))
	m.AddMesh(NoIndex, NewNode(name), vertices, quadIndices(0), mat)
	return m
}

// Node indices of NewSkinnedStrip.
const (
	StripMeshNode = iota
	StripRootJoint
	StripTipJoint
)

// NewSkinnedStrip is a vertical strip of segments quads two units tall,
// bound to a root joint at y=0 and a tip joint at y=1. Rotating the tip
// joint bends the upper half.
func NewSkinnedStrip(name string, segments int, color mgl32.Vec4) *Model {
	if segments < 2 {
		segments = 2
	}
	var vertices []Vertex
	var indices []uint32
	const height, halfWidth = 2, 0.25
	for row := 0; row <= segments; row++ {
		y := float32(height) * float32(row) / float32(segments)
		w := lmath.Clamp(y-0.5, 0, 1)
		for _, x := range []float32{-halfWidth, halfWidth} {
			vertices = append(vertices, Vertex{
				Position: mgl32.Vec3{x, y, 0},
				Normal:   mgl32.Vec3{0, 0, 1},
				UV:       mgl32.Vec2{(x + halfWidth) / (2 * halfWidth), 1 - y/height},
				Color:    color,
				Joint0:   mgl32.Vec4{0, 1, 0, 0},
				Weight0:  mgl32.Vec4{1 - w, w, 0, 0},
			})
		}
		if row > 0 {
			b := uint32((row - 1) * 2)
			indices = append(indices, b, b+1, b+3, b, b+3, b+2)
		}
	}

	m := NewModel(name)
	mat := m.AddMaterial(defaultMaterial(name, color))
	meshNode := NewNode(name)
	meshNode.Skin = 0
	m.AddMesh(NoIndex, meshNode, vertices, indices, mat)

	root := m.AddNode(NoIndex, NewNode(name+".root"))
	tip := NewNode(name + ".tip")
	tip.SetPosition(mgl32.Vec3{0, 1, 0})
	tipIndex := m.AddNode(root, tip)

	m.AddSkin(Skin{
		Name:        name + ".skin",
		Joints:      []int{root, tipIndex},
		InverseBind: []mgl32.Mat4{mgl32.Ident4(), mgl32.Translate3D(0, -1, 0)},
	})
	return m
}

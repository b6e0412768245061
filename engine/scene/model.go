package scene

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/core"
	lmath "github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/raytracing"
)

// VertexSize is the std430 size of one Vertex as read by the hit shaders.
const VertexSize = 80

type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
	Color    mgl32.Vec4
	Joint0   mgl32.Vec4
	Weight0  mgl32.Vec4
}

func (v Vertex) Put(dst []byte) {
	off := 0
	put := func(fs ...float32) {
		for _, f := range fs {
			binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(f))
			off += 4
		}
	}
	put(v.Position[:]...)
	put(v.Normal[:]...)
	put(v.UV[:]...)
	put(v.Color[:]...)
	put(v.Joint0[:]...)
	put(v.Weight0[:]...)
}

type Mesh struct {
	Name       string
	Primitives []int
}

const (
	geometryUsage = metadata.BufferUsageStorageBuffer |
		metadata.BufferUsageShaderDeviceAddress |
		metadata.BufferUsageAccelerationStructureBuildInput
	hostMemory = metadata.MemoryPropertyHostVisible | metadata.MemoryPropertyHostCoherent
)

// Model is host geometry plus the device buffers created by Upload.
type Model struct {
	name       string
	vertices   []Vertex
	indices    []uint32
	primitives []metadata.Primitive
	materials  []metadata.Material
	textures   []metadata.Texture
	meshes     []Mesh
	arena      Arena
	skins      []Skin

	// TexturePath is decoded and attached by whoever uploads the model.
	TexturePath string

	alloc           *raytracing.Allocator
	vertexBuffer    *raytracing.Buffer
	indexBuffer     *raytracing.Buffer
	transformBuffer *raytracing.Buffer
	jointBuffer     *raytracing.Buffer
	poseDirty       bool
}

func NewModel(name string) *Model {
	return &Model{name: name}
}

// AddMesh appends vertices and indices as one primitive of a new mesh hung
// under parent, and returns the new node. Indices are relative to vertices.
func (m *Model) AddMesh(parent int, node Node, vertices []Vertex, indices []uint32, material int32) int {
	base := uint32(len(m.vertices))
	first := uint32(len(m.indices))
	m.vertices = append(m.vertices, vertices...)
	for _, i := range indices {
		m.indices = append(m.indices, base+i)
	}
	m.primitives = append(m.primitives, metadata.Primitive{
		FirstIndex:    first,
		IndexCount:    uint32(len(indices)),
		FirstVertex:   base,
		VertexCount:   uint32(len(vertices)),
		MaterialIndex: material,
	})
	m.meshes = append(m.meshes, Mesh{Name: node.Name, Primitives: []int{len(m.primitives) - 1}})
	node.Mesh = len(m.meshes) - 1
	return m.arena.Add(parent, node)
}

func (m *Model) AddMaterial(mat metadata.Material) int32 {
	m.materials = append(m.materials, mat)
	return int32(len(m.materials) - 1)
}

func (m *Model) AddNode(parent int, node Node) int {
	return m.arena.Add(parent, node)
}

func (m *Model) AddSkin(s Skin) int {
	m.skins = append(m.skins, s)
	return len(m.skins) - 1
}

// AttachTexture appends tex and makes it the base color of material.
func (m *Model) AttachTexture(material int32, tex metadata.Texture) {
	m.textures = append(m.textures, tex)
	if material >= 0 && int(material) < len(m.materials) {
		m.materials[material].BaseColorTexture = int32(len(m.textures) - 1)
	}
}

func (m *Model) Arena() *Arena {
	return &m.arena
}

func (m *Model) Skins() []Skin {
	return m.skins
}

// SetRotation poses node i; it takes effect on the next UpdateJoints or
// UpdateTransforms.
func (m *Model) SetRotation(i int, q mgl32.Quat) {
	m.arena.Node(i).SetRotation(q)
}

func (m *Model) Name() string                     { return m.name }
func (m *Model) VertexBuffer() *raytracing.Buffer { return m.vertexBuffer }
func (m *Model) IndexBuffer() *raytracing.Buffer  { return m.indexBuffer }
func (m *Model) VertexStride() uint64             { return VertexSize }
func (m *Model) VertexCount() uint32              { return uint32(len(m.vertices)) }
func (m *Model) Primitives() []metadata.Primitive { return m.primitives }
func (m *Model) Materials() []metadata.Material   { return m.materials }
func (m *Model) Textures() []metadata.Texture     { return m.textures }
func (m *Model) JointBuffer() *raytracing.Buffer  { return m.jointBuffer }

func (m *Model) TransformBuffer() *raytracing.Buffer {
	return m.transformBuffer
}

func (m *Model) Uploaded() bool {
	return m.vertexBuffer != nil
}

// Upload creates device addressable copies of the geometry.
func (m *Model) Upload(alloc *raytracing.Allocator) (err error) {
	if len(m.vertices) == 0 || len(m.indices) == 0 {
		return core.NewPreconditionError("model '%s' has no geometry", m.name)
	}
	if m.Uploaded() {
		return core.NewPreconditionError("model '%s' is already uploaded", m.name)
	}
	m.alloc = alloc
	defer func() {
		if err != nil {
			m.release()
		}
	}()

	if m.vertexBuffer, err = alloc.CreateBufferWithData(m.name+".vertices", m.vertexBytes(m.vertices), geometryUsage|metadata.BufferUsageVertexBuffer); err != nil {
		return err
	}
	if m.indexBuffer, err = alloc.CreateBufferWithData(m.name+".indices", m.indexBytes(), geometryUsage|metadata.BufferUsageIndexBuffer); err != nil {
		return err
	}
	if m.transformBuffer, err = alloc.CreateBuffer(m.name+".transforms", uint64(len(m.primitives)*raytracing.TransformStride),
		metadata.BufferUsageShaderDeviceAddress|metadata.BufferUsageAccelerationStructureBuildInput, hostMemory); err != nil {
		return err
	}
	if _, err = m.UpdateTransforms(); err != nil {
		return err
	}
	if joints := m.jointCount(); joints > 0 {
		if m.jointBuffer, err = alloc.CreateBuffer(m.name+".joints", uint64(joints*JointMatrixSize),
			metadata.BufferUsageStorageBuffer|metadata.BufferUsageShaderDeviceAddress, hostMemory); err != nil {
			return err
		}
		if err = m.UpdateJoints(); err != nil {
			return err
		}
	}
	m.poseDirty = false
	core.LogDebug("Model '%s' uploaded: %d vertices, %d indices, %d primitives",
		m.name, len(m.vertices), len(m.indices), len(m.primitives))
	return nil
}

func (m *Model) vertexBytes(vertices []Vertex) []byte {
	out := make([]byte, len(vertices)*VertexSize)
	for i, v := range vertices {
		v.Put(out[i*VertexSize:])
	}
	return out
}

func (m *Model) indexBytes() []byte {
	out := make([]byte, len(m.indices)*4)
	for i, idx := range m.indices {
		binary.LittleEndian.PutUint32(out[i*4:], idx)
	}
	return out
}

func (m *Model) jointCount() int {
	n := 0
	for _, s := range m.skins {
		n += len(s.Joints)
	}
	return n
}

// primitiveWorlds maps every primitive to the world matrix of the node that
// owns its mesh. Unreferenced primitives keep the identity.
func (m *Model) primitiveWorlds() []mgl32.Mat4 {
	out := make([]mgl32.Mat4, len(m.primitives))
	for i := range out {
		out[i] = mgl32.Ident4()
	}
	m.arena.Walk(func(i int, world mgl32.Mat4) {
		n := m.arena.Node(i)
		if n.Mesh < 0 || n.Mesh >= len(m.meshes) {
			return
		}
		for _, p := range m.meshes[n.Mesh].Primitives {
			out[p] = world
		}
	})
	return out
}

// UpdateTransforms rewrites the 3x4 transform of every primitive and reports
// whether the buffer or the skinned pose changed since the last call.
func (m *Model) UpdateTransforms() (bool, error) {
	if m.transformBuffer == nil {
		return false, core.NewPreconditionError("model '%s' is not uploaded", m.name)
	}
	worlds := m.primitiveWorlds()
	next := make([]byte, len(worlds)*raytracing.TransformStride)
	for i, w := range worlds {
		packed := lmath.TransformMatrix3x4(w)
		for j, f := range packed {
			binary.LittleEndian.PutUint32(next[i*raytracing.TransformStride+j*4:], math.Float32bits(f))
		}
	}
	mapped := m.transformBuffer.Mapped()
	changed := !bytes.Equal(mapped[:len(next)], next) || m.poseDirty
	copy(mapped, next)
	m.poseDirty = false
	return changed, nil
}

// UpdateJoints writes the joint matrices of every skin and re-skins the
// mapped vertex buffer from the rest pose.
func (m *Model) UpdateJoints() error {
	if m.jointBuffer == nil {
		return nil
	}
	mapped := m.jointBuffer.Mapped()
	var all []mgl32.Mat4
	offset := 0
	for si := range m.skins {
		mats := m.skins[si].JointMatrices(&m.arena, m.skinnedNode(si))
		for j, mat := range mats {
			dst := mapped[(offset+j)*JointMatrixSize:]
			for k, f := range mat {
				binary.LittleEndian.PutUint32(dst[k*4:], math.Float32bits(f))
			}
		}
		offset += len(mats)
		all = append(all, mats...)
	}

	skinned := SkinVertices(m.vertices, all)
	next := m.vertexBytes(skinned)
	current := m.vertexBuffer.Mapped()
	if !bytes.Equal(current[:len(next)], next) {
		copy(current, next)
		m.poseDirty = true
	}
	return nil
}

func (m *Model) skinnedNode(skin int) int {
	for i := 0; i < m.arena.Len(); i++ {
		if m.arena.Node(i).Skin == skin {
			return i
		}
	}
	return NoIndex
}

// SkinVertices applies linear blend skinning. Vertices with zero total
// weight are left untouched.
func SkinVertices(vertices []Vertex, joints []mgl32.Mat4) []Vertex {
	out := make([]Vertex, len(vertices))
	for i, v := range vertices {
		out[i] = v
		var total float32
		var skin mgl32.Mat4
		for k := 0; k < 4; k++ {
			w := v.Weight0[k]
			j := int(v.Joint0[k])
			if w == 0 || j < 0 || j >= len(joints) {
				continue
			}
			skin = skin.Add(joints[j].Mul(w))
			total += w
		}
		if total == 0 {
			continue
		}
		out[i].Position = skin.Mul4x1(v.Position.Vec4(1)).Vec3()
		out[i].Normal = skin.Mul4x1(v.Normal.Vec4(0)).Vec3()
		if l := out[i].Normal.Len(); l > 0 {
			out[i].Normal = out[i].Normal.Mul(1 / l)
		}
	}
	return out
}

func (m *Model) release() {
	if m.alloc == nil {
		return
	}
	for _, b := range []**raytracing.Buffer{&m.vertexBuffer, &m.indexBuffer, &m.transformBuffer, &m.jointBuffer} {
		if *b != nil {
			m.alloc.Destroy(*b)
			*b = nil
		}
	}
}

// Dispose releases the device buffers and textures of the model.
func (m *Model) Dispose(ctx raytracing.BuildContext) {
	m.release()
	for i := range m.textures {
		raytracing.DestroyTexture(ctx, &m.textures[i])
	}
	m.textures = nil
	for i := range m.materials {
		m.materials[i].BaseColorTexture = metadata.NoTexture
	}
	core.LogDebug("Model '%s' disposed", m.name)
}

var (
	_ raytracing.GeometrySource = (*Model)(nil)
	_ raytracing.Hierarchical   = (*Model)(nil)
	_ raytracing.Skinned        = (*Model)(nil)
	_ raytracing.Disposable     = (*Model)(nil)
)

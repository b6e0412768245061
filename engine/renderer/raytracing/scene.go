package raytracing

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// SceneModel is one loaded model placed in the scene by a single instance.
type SceneModel struct {
	Source    GeometrySource
	BLAS      *BLAS
	Transform mgl32.Mat4

	textureOffset int32
	nodeOffset    uint32
}

// NodeOffset is the index of the model's first geometry node and the
// custom index of its instance.
func (m *SceneModel) NodeOffset() uint32 {
	return m.nodeOffset
}

// TextureOffset is the position of the model's first texture in the
// flattened texture array.
func (m *SceneModel) TextureOffset() int32 {
	return m.textureOffset
}

// Scene is the set of models sharing one TLAS, one texture array and one
// geometry node buffer.
type Scene struct {
	ctx    BuildContext
	Models []*SceneModel

	nodes          *Buffer
	indices        *Buffer
	joints         *Buffer
	defaultTexture *metadata.Texture
	extraTexture   *metadata.Texture
}

func NewScene(ctx BuildContext) *Scene {
	return &Scene{ctx: ctx}
}

// AddModel builds the BLAS of src with its textures appended to the
// flattened array.
func (s *Scene) AddModel(src GeometrySource, transform mgl32.Mat4) (*SceneModel, error) {
	offset := int32(s.ownTextureCount())
	blas, err := BuildBLAS(s.ctx, src, offset)
	if err != nil {
		return nil, err
	}
	m := &SceneModel{Source: src, BLAS: blas, Transform: transform, textureOffset: offset}
	s.Models = append(s.Models, m)
	s.reindex()
	return m, nil
}

// RemoveModel takes the model out of the scene without releasing it; its
// BLAS stays valid until the caller destroys it.
func (s *Scene) RemoveModel(index int) (*SceneModel, bool) {
	if index < 0 || index >= len(s.Models) {
		return nil, false
	}
	m := s.Models[index]
	s.Models = append(s.Models[:index], s.Models[index+1:]...)
	s.reindex()
	return m, true
}

// InsertModel puts a removed model back at index.
func (s *Scene) InsertModel(index int, m *SceneModel) {
	index = min(max(index, 0), len(s.Models))
	s.Models = append(s.Models[:index], append([]*SceneModel{m}, s.Models[index:]...)...)
	s.reindex()
}

func (s *Scene) IndexOf(m *SceneModel) int {
	for i, candidate := range s.Models {
		if candidate == m {
			return i
		}
	}
	return -1
}

// reindex recomputes texture and node offsets after membership changes.
func (s *Scene) reindex() {
	var textures int32
	var nodes uint32
	for _, m := range s.Models {
		if m.textureOffset != textures {
			m.BLAS.SetTextureOffset(textures)
		}
		m.textureOffset = textures
		m.nodeOffset = nodes
		textures += int32(len(m.Source.Textures()))
		nodes += uint32(len(m.BLAS.Nodes))
	}
}

func (s *Scene) Model(index int) (*SceneModel, bool) {
	if index < 0 || index >= len(s.Models) {
		return nil, false
	}
	return s.Models[index], true
}

// Instances returns one instance per model in scene order.
func (s *Scene) Instances() ([]Instance, error) {
	out := make([]Instance, 0, len(s.Models))
	for _, m := range s.Models {
		inst, err := InstanceOf(m.BLAS, m.Transform, m.nodeOffset)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

func (s *Scene) ownTextureCount() int {
	n := 0
	for _, m := range s.Models {
		n += len(m.Source.Textures())
	}
	return n
}

// Textures is the flattened texture array. A scene without textures
// yields the default texture so the array is never empty.
func (s *Scene) Textures() ([]metadata.Texture, error) {
	out := make([]metadata.Texture, 0, s.ownTextureCount())
	for _, m := range s.Models {
		out = append(out, m.Source.Textures()...)
	}
	if len(out) > 0 {
		return out, nil
	}
	def, err := s.fallbackTexture()
	if err != nil {
		return nil, err
	}
	return []metadata.Texture{*def}, nil
}

func (s *Scene) fallbackTexture() (*metadata.Texture, error) {
	if s.defaultTexture == nil {
		t, err := DefaultTexture(s.ctx)
		if err != nil {
			return nil, err
		}
		s.defaultTexture = t
	}
	return s.defaultTexture, nil
}

// SetExtraTexture sets the single texture bound next to the array.
func (s *Scene) SetExtraTexture(t *metadata.Texture) {
	s.extraTexture = t
}

func (s *Scene) ExtraTexture() (*metadata.Texture, error) {
	if s.extraTexture != nil {
		return s.extraTexture, nil
	}
	return s.fallbackTexture()
}

// Nodes concatenates the geometry nodes of every model in scene order.
func (s *Scene) Nodes() []metadata.GeometryNode {
	var out []metadata.GeometryNode
	for _, m := range s.Models {
		out = append(out, m.BLAS.Nodes...)
	}
	return out
}

// UploadNodes replaces the geometry node and geometry index buffers with
// the current scene contents.
func (s *Scene) UploadNodes() error {
	nodes := s.Nodes()
	if len(nodes) == 0 {
		nodes = []metadata.GeometryNode{{TextureIndexBaseColor: metadata.NoTexture, TextureIndexOcclusion: metadata.NoTexture}}
	}
	nodeBuf, err := s.ctx.Allocator.CreateBufferWithData("scene.geometry-nodes", metadata.PackGeometryNodes(nodes),
		metadata.BufferUsageStorageBuffer|metadata.BufferUsageShaderDeviceAddress)
	if err != nil {
		return err
	}

	offsets := make([]byte, 4*max(len(s.Models), 1))
	for i, m := range s.Models {
		binary.LittleEndian.PutUint32(offsets[i*4:], m.nodeOffset)
	}
	indexBuf, err := s.ctx.Allocator.CreateBufferWithData("scene.geometry-indices", offsets, metadata.BufferUsageStorageBuffer)
	if err != nil {
		s.ctx.Allocator.Destroy(nodeBuf)
		return err
	}

	s.ctx.Allocator.Destroy(s.nodes)
	s.ctx.Allocator.Destroy(s.indices)
	s.nodes, s.indices = nodeBuf, indexBuf
	core.LogDebug("Uploaded %d geometry nodes for %d models", len(nodes), len(s.Models))
	return nil
}

func (s *Scene) NodeBuffer() *Buffer {
	return s.nodes
}

func (s *Scene) IndexBuffer() *Buffer {
	return s.indices
}

// JointBuffer is the joint matrix buffer of the first skinned model. Scenes
// without one get a single identity matrix.
func (s *Scene) JointBuffer() (*Buffer, error) {
	for _, m := range s.Models {
		if sk, ok := m.Source.(Skinned); ok && sk.JointBuffer() != nil {
			return sk.JointBuffer(), nil
		}
	}
	if s.joints == nil {
		identity := mgl32.Ident4()
		data := make([]byte, 64)
		for i, f := range identity {
			binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(f))
		}
		buf, err := s.ctx.Allocator.CreateBufferWithData("scene.joints", data, metadata.BufferUsageStorageBuffer)
		if err != nil {
			return nil, err
		}
		s.joints = buf
	}
	return s.joints, nil
}

// DisposeModel releases a removed model's BLAS and its own resources.
func (s *Scene) DisposeModel(m *SceneModel) {
	m.BLAS.Destroy(s.ctx)
	if d, ok := m.Source.(Disposable); ok {
		d.Dispose(s.ctx)
	}
}

// Destroy releases every model and the scene buffers.
func (s *Scene) Destroy() {
	for _, m := range s.Models {
		s.DisposeModel(m)
	}
	s.Models = nil
	s.ctx.Allocator.Destroy(s.nodes)
	s.ctx.Allocator.Destroy(s.indices)
	s.ctx.Allocator.Destroy(s.joints)
	s.nodes, s.indices, s.joints = nil, nil, nil
	DestroyTexture(s.ctx, s.defaultTexture)
	s.defaultTexture = nil
}

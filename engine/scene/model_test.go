package scene

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/raytracing"
)

// hostDevice backs every allocation with host memory.
type hostDevice struct {
	next    uint64
	buffers map[metadata.BufferHandle]uint64
	memory  map[metadata.MemoryHandle][]byte
	bound   map[metadata.BufferHandle]metadata.MemoryHandle
}

func newHostDevice() *hostDevice {
	return &hostDevice{
		buffers: make(map[metadata.BufferHandle]uint64),
		memory:  make(map[metadata.MemoryHandle][]byte),
		bound:   make(map[metadata.BufferHandle]metadata.MemoryHandle),
	}
}

func (d *hostDevice) id() uint64 { d.next++; return d.next }

func (d *hostDevice) CreateBuffer(size uint64, usage metadata.BufferUsage) (metadata.BufferHandle, error) {
	h := metadata.BufferHandle(d.id())
	d.buffers[h] = size
	return h, nil
}

func (d *hostDevice) BufferMemoryRequirements(b metadata.BufferHandle) raytracing.MemoryRequirements {
	return raytracing.MemoryRequirements{Size: d.buffers[b], Alignment: 16, MemoryTypeBits: 1}
}

func (d *hostDevice) FindMemoryType(bits uint32, props metadata.MemoryProperty) (uint32, bool) {
	return 0, true
}

func (d *hostDevice) AllocateMemory(size uint64, typeIndex uint32, deviceAddress bool) (metadata.MemoryHandle, error) {
	h := metadata.MemoryHandle(d.id())
	d.memory[h] = make([]byte, size)
	return h, nil
}

func (d *hostDevice) BindBufferMemory(b metadata.BufferHandle, m metadata.MemoryHandle) error {
	d.bound[b] = m
	return nil
}

func (d *hostDevice) GetBufferDeviceAddress(b metadata.BufferHandle) uint64 {
	return uint64(b) << 20
}

func (d *hostDevice) MapMemory(m metadata.MemoryHandle, size uint64) ([]byte, error) {
	return d.memory[m][:size], nil
}

func (d *hostDevice) UnmapMemory(metadata.MemoryHandle) {}

func (d *hostDevice) DestroyBuffer(b metadata.BufferHandle) {
	delete(d.buffers, b)
	delete(d.bound, b)
}

func (d *hostDevice) FreeMemory(m metadata.MemoryHandle) { delete(d.memory, m) }

func (d *hostDevice) CreateImage(metadata.ImageCreateInfo) (metadata.ImageHandle, error) {
	return metadata.ImageHandle(d.id()), nil
}

func (d *hostDevice) ImageMemoryRequirements(metadata.ImageHandle) raytracing.MemoryRequirements {
	return raytracing.MemoryRequirements{Size: 16, Alignment: 16, MemoryTypeBits: 1}
}

func (d *hostDevice) BindImageMemory(metadata.ImageHandle, metadata.MemoryHandle) error { return nil }

func (d *hostDevice) CreateImageView(metadata.ImageHandle, metadata.Format) (metadata.ImageViewHandle, error) {
	return metadata.ImageViewHandle(d.id()), nil
}

func (d *hostDevice) CreateSampler() (metadata.SamplerHandle, error) {
	return metadata.SamplerHandle(d.id()), nil
}

func (d *hostDevice) DestroyImageView(metadata.ImageViewHandle) {}
func (d *hostDevice) DestroyImage(metadata.ImageHandle)         {}
func (d *hostDevice) DestroySampler(metadata.SamplerHandle)     {}

func readTransform(buf []byte, i int) [12]float32 {
	var out [12]float32
	for j := range out {
		out[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*raytracing.TransformStride+j*4:]))
	}
	return out
}

func TestCubeGeometry(t *testing.T) {
	m := NewCube("cube", mgl32.Vec4{1, 0, 0, 1})
	if m.VertexCount() != 24 {
		t.Fatalf("vertices = %d", m.VertexCount())
	}
	prims := m.Primitives()
	if len(prims) != 1 || prims[0].IndexCount != 36 || prims[0].MaterialIndex != 0 {
		t.Fatalf("primitives = %+v", prims)
	}
	if m.Materials()[0].BaseColorTexture != metadata.NoTexture {
		t.Fatal("untextured cube references a texture")
	}
	for _, idx := range m.indices {
		if idx >= m.VertexCount() {
			t.Fatalf("index %d out of range", idx)
		}
	}
}

func TestAddMeshRebasesIndices(t *testing.T) {
	m := NewModel("pair")
	mat := m.AddMaterial(defaultMaterial("m", mgl32.Vec4{1, 1, 1, 1}))
	tri := []Vertex{{}, {}, {}}
	m.AddMesh(NoIndex, NewNode("a"), tri, []uint32{0, 1, 2}, mat)
	m.AddMesh(NoIndex, NewNode("b"), tri, []uint32{0, 1, 2}, mat)

	p := m.Primitives()[1]
	if p.FirstIndex != 3 || p.FirstVertex != 3 {
		t.Fatalf("second primitive = %+v", p)
	}
	if got := m.indices[3:]; got[0] != 3 || got[2] != 5 {
		t.Fatalf("indices = %v", m.indices)
	}
}

func TestUploadAndDispose(t *testing.T) {
	dev := newHostDevice()
	alloc := raytracing.NewAllocator(dev)
	m := NewCube("cube", mgl32.Vec4{1, 1, 1, 1})
	if err := m.Upload(alloc); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if m.VertexBuffer().DeviceAddress() == 0 || m.IndexBuffer().DeviceAddress() == 0 || m.TransformBuffer().DeviceAddress() == 0 {
		t.Fatal("geometry buffers lack device addresses")
	}
	if m.JointBuffer() != nil {
		t.Fatal("static model has a joint buffer")
	}
	if got := readTransform(m.TransformBuffer().Mapped(), 0); got != [12]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0} {
		t.Fatalf("transform = %v", got)
	}
	if err := m.Upload(alloc); err == nil {
		t.Fatal("second upload succeeded")
	}

	m.Dispose(raytracing.BuildContext{Allocator: alloc})
	if b, _ := alloc.Live(); b != 0 {
		t.Fatalf("%d buffers alive after dispose", b)
	}
}

func TestUpdateTransformsReportsChanges(t *testing.T) {
	alloc := raytracing.NewAllocator(newHostDevice())
	m := NewModel("tree")
	mat := m.AddMaterial(defaultMaterial("m", mgl32.Vec4{1, 1, 1, 1}))
	root := m.AddNode(NoIndex, NewNode("root"))
	m.AddMesh(root, NewNode("leaf"), []Vertex{{}, {}, {}}, []uint32{0, 1, 2}, mat)
	if _, err := m.UpdateTransforms(); err == nil {
		t.Fatal("UpdateTransforms before upload succeeded")
	}
	if err := m.Upload(alloc); err != nil {
		t.Fatal(err)
	}

	changed, err := m.UpdateTransforms()
	if err != nil || changed {
		t.Fatalf("unchanged tree reported changed=%v err=%v", changed, err)
	}

	m.Arena().Node(root).SetPosition(mgl32.Vec3{0, 4, 0})
	changed, err = m.UpdateTransforms()
	if err != nil || !changed {
		t.Fatalf("moved root reported changed=%v err=%v", changed, err)
	}
	if got := readTransform(m.TransformBuffer().Mapped(), 0); got[7] != 4 {
		t.Fatalf("transform = %v, want y translation 4", got)
	}
}

func TestSkinnedStripPose(t *testing.T) {
	alloc := raytracing.NewAllocator(newHostDevice())
	m := NewSkinnedStrip("strip", 4, mgl32.Vec4{1, 1, 1, 1})
	if err := m.Upload(alloc); err != nil {
		t.Fatal(err)
	}
	if m.JointBuffer() == nil || m.JointBuffer().Size != 2*JointMatrixSize {
		t.Fatalf("joint buffer = %+v", m.JointBuffer())
	}

	// Rest pose: every joint matrix is the identity.
	mats := m.Skins()[0].JointMatrices(m.Arena(), StripMeshNode)
	for i, mat := range mats {
		if !mat.ApproxEqual(mgl32.Ident4()) {
			t.Fatalf("rest joint %d = %v", i, mat)
		}
	}

	m.SetRotation(StripTipJoint, mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}))
	if err := m.UpdateJoints(); err != nil {
		t.Fatal(err)
	}
	changed, err := m.UpdateTransforms()
	if err != nil || !changed {
		t.Fatalf("posed strip reported changed=%v err=%v", changed, err)
	}

	// The top vertex is fully bound to the tip: (x,2,0) bends to (-1,1+x,0).
	top := SkinVertices(m.vertices, m.Skins()[0].JointMatrices(m.Arena(), StripMeshNode))
	last := top[len(top)-1]
	x := m.vertices[len(m.vertices)-1].Position.X()
	if !last.Position.ApproxEqualThreshold(mgl32.Vec3{-1, 1 + x, 0}, 1e-5) {
		t.Fatalf("tip vertex = %v", last.Position)
	}
	// The bottom row belongs to the root and does not move.
	if !top[0].Position.ApproxEqual(m.vertices[0].Position) {
		t.Fatalf("root vertex moved to %v", top[0].Position)
	}
}

func TestVertexPutLayout(t *testing.T) {
	v := Vertex{Position: mgl32.Vec3{1, 2, 3}, Weight0: mgl32.Vec4{0, 0, 0, 9}}
	buf := make([]byte, VertexSize)
	v.Put(buf)
	if f := math.Float32frombits(binary.LittleEndian.Uint32(buf[4:])); f != 2 {
		t.Fatalf("position.y = %v", f)
	}
	if f := math.Float32frombits(binary.LittleEndian.Uint32(buf[VertexSize-4:])); f != 9 {
		t.Fatalf("last weight = %v", f)
	}
}

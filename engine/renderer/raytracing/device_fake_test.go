package raytracing

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type sizeQuery struct {
	info   metadata.BuildGeometryInfo
	counts []uint32
}

type buildCall struct {
	cmd    metadata.CommandBufferHandle
	info   metadata.BuildGeometryInfo
	ranges []metadata.BuildRangeInfo
}

// fakeDevice hands out sequential handles and addresses and records calls.
// Acceleration structures report address 0 until a flush after their build.
type fakeDevice struct {
	next    uint64
	fail    map[string]bool
	failOne map[string]bool // fails only the next call by that name
	calls   []string
	props   metadata.RayTracingProperties
	memory  map[metadata.MemoryHandle][]byte
	sizes   map[metadata.BufferHandle]uint64
	buffers map[metadata.BufferHandle]bool

	structures map[metadata.AccelerationStructureHandle]bool
	pending    []metadata.AccelerationStructureHandle
	built      map[metadata.AccelerationStructureHandle]uint64

	sizeQueries []sizeQuery
	builds      []buildCall
	writes      [][]metadata.DescriptorWrite
	allocations []uint32
	commands    map[metadata.CommandBufferHandle][]string
	layouts     int
	// added to every buffer device address
	addressSkew uint64
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		next:    0x1000,
		fail:    map[string]bool{},
		failOne: map[string]bool{},
		props: metadata.RayTracingProperties{
			ShaderGroupHandleSize:      32,
			ShaderGroupHandleAlignment: 64,
			ShaderGroupBaseAlignment:   64,
			MaxRayRecursionDepth:       31,
		},
		memory:     map[metadata.MemoryHandle][]byte{},
		sizes:      map[metadata.BufferHandle]uint64{},
		buffers:    map[metadata.BufferHandle]bool{},
		structures: map[metadata.AccelerationStructureHandle]bool{},
		built:      map[metadata.AccelerationStructureHandle]uint64{},
		commands:   map[metadata.CommandBufferHandle][]string{},
	}
}

func (f *fakeDevice) handle() uint64 {
	f.next += 0x100
	return f.next
}

func (f *fakeDevice) record(call string) error {
	f.calls = append(f.calls, call)
	if f.fail[call] || f.failOne[call] {
		delete(f.failOne, call)
		return errors.Newf("%s: VK_ERROR_OUT_OF_DEVICE_MEMORY", call)
	}
	return nil
}

func (f *fakeDevice) countCalls(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeDevice) CreateBuffer(size uint64, usage metadata.BufferUsage) (metadata.BufferHandle, error) {
	if err := f.record("CreateBuffer"); err != nil {
		return 0, err
	}
	h := metadata.BufferHandle(f.handle())
	f.sizes[h] = size
	f.buffers[h] = true
	return h, nil
}

func (f *fakeDevice) BufferMemoryRequirements(buffer metadata.BufferHandle) MemoryRequirements {
	return MemoryRequirements{Size: f.sizes[buffer], Alignment: 256, MemoryTypeBits: 0b11}
}

func (f *fakeDevice) FindMemoryType(typeBits uint32, props metadata.MemoryProperty) (uint32, bool) {
	return 0, typeBits != 0
}

func (f *fakeDevice) AllocateMemory(size uint64, typeIndex uint32, deviceAddress bool) (metadata.MemoryHandle, error) {
	if err := f.record("AllocateMemory"); err != nil {
		return 0, err
	}
	h := metadata.MemoryHandle(f.handle())
	f.memory[h] = make([]byte, size)
	return h, nil
}

func (f *fakeDevice) BindBufferMemory(buffer metadata.BufferHandle, memory metadata.MemoryHandle) error {
	return f.record("BindBufferMemory")
}

func (f *fakeDevice) GetBufferDeviceAddress(buffer metadata.BufferHandle) uint64 {
	return uint64(buffer)<<16 + f.addressSkew
}

func (f *fakeDevice) MapMemory(memory metadata.MemoryHandle, size uint64) ([]byte, error) {
	if err := f.record("MapMemory"); err != nil {
		return nil, err
	}
	return f.memory[memory][:size], nil
}

func (f *fakeDevice) UnmapMemory(memory metadata.MemoryHandle) {}

func (f *fakeDevice) DestroyBuffer(buffer metadata.BufferHandle) {
	delete(f.buffers, buffer)
}

func (f *fakeDevice) FreeMemory(memory metadata.MemoryHandle) {
	delete(f.memory, memory)
}

func (f *fakeDevice) CreateImage(info metadata.ImageCreateInfo) (metadata.ImageHandle, error) {
	if err := f.record("CreateImage"); err != nil {
		return 0, err
	}
	return metadata.ImageHandle(f.handle()), nil
}

func (f *fakeDevice) ImageMemoryRequirements(image metadata.ImageHandle) MemoryRequirements {
	return MemoryRequirements{Size: 4096, Alignment: 256, MemoryTypeBits: 0b1}
}

func (f *fakeDevice) BindImageMemory(image metadata.ImageHandle, memory metadata.MemoryHandle) error {
	return f.record("BindImageMemory")
}

func (f *fakeDevice) CreateImageView(image metadata.ImageHandle, format metadata.Format) (metadata.ImageViewHandle, error) {
	if err := f.record("CreateImageView"); err != nil {
		return 0, err
	}
	return metadata.ImageViewHandle(f.handle()), nil
}

func (f *fakeDevice) CreateSampler() (metadata.SamplerHandle, error) {
	if err := f.record("CreateSampler"); err != nil {
		return 0, err
	}
	return metadata.SamplerHandle(f.handle()), nil
}

func (f *fakeDevice) DestroyImageView(view metadata.ImageViewHandle)    {}
func (f *fakeDevice) DestroyImage(image metadata.ImageHandle)           {}
func (f *fakeDevice) DestroySampler(sampler metadata.SamplerHandle)     {}
func (f *fakeDevice) DestroyShaderModule(m metadata.ShaderModuleHandle) {}

func (f *fakeDevice) GetAccelerationStructureBuildSizes(info metadata.BuildGeometryInfo, counts []uint32) metadata.BuildSizes {
	f.sizeQueries = append(f.sizeQueries, sizeQuery{info: info, counts: append([]uint32(nil), counts...)})
	var total uint64
	for _, c := range counts {
		total += uint64(c)
	}
	return metadata.BuildSizes{
		AccelerationStructureSize: 1024 + total*64,
		BuildScratchSize:          512 + total*32,
		UpdateScratchSize:         256,
	}
}

func (f *fakeDevice) CreateAccelerationStructure(buffer metadata.BufferHandle, size uint64, kind metadata.AccelerationStructureType) (metadata.AccelerationStructureHandle, error) {
	if err := f.record("CreateAccelerationStructure"); err != nil {
		return 0, err
	}
	if kind == metadata.AccelerationStructureTypeTopLevel && f.fail["CreateTopLevelAccelerationStructure"] {
		return 0, errors.New("CreateTopLevelAccelerationStructure: VK_ERROR_OUT_OF_DEVICE_MEMORY")
	}
	h := metadata.AccelerationStructureHandle(f.handle())
	f.structures[h] = true
	return h, nil
}

func (f *fakeDevice) GetAccelerationStructureDeviceAddress(as metadata.AccelerationStructureHandle) uint64 {
	f.calls = append(f.calls, "GetAccelerationStructureDeviceAddress")
	return f.built[as]
}

func (f *fakeDevice) DestroyAccelerationStructure(as metadata.AccelerationStructureHandle) {
	delete(f.structures, as)
	delete(f.built, as)
	f.calls = append(f.calls, fmt.Sprintf("DestroyAccelerationStructure:%d", as))
}

func (f *fakeDevice) RayTracingProperties() metadata.RayTracingProperties {
	return f.props
}

func (f *fakeDevice) CreateShaderModule(code []uint32) (metadata.ShaderModuleHandle, error) {
	if err := f.record("CreateShaderModule"); err != nil {
		return 0, err
	}
	return metadata.ShaderModuleHandle(f.handle()), nil
}

func (f *fakeDevice) CreateDescriptorSetLayout(bindings []metadata.DescriptorBinding) (metadata.DescriptorSetLayoutHandle, error) {
	if err := f.record("CreateDescriptorSetLayout"); err != nil {
		return 0, err
	}
	f.layouts++
	return metadata.DescriptorSetLayoutHandle(f.handle()), nil
}

func (f *fakeDevice) DestroyDescriptorSetLayout(layout metadata.DescriptorSetLayoutHandle) {
	f.layouts--
}

func (f *fakeDevice) CreatePipelineLayout(setLayout metadata.DescriptorSetLayoutHandle) (metadata.PipelineLayoutHandle, error) {
	if err := f.record("CreatePipelineLayout"); err != nil {
		return 0, err
	}
	return metadata.PipelineLayoutHandle(f.handle()), nil
}

func (f *fakeDevice) DestroyPipelineLayout(layout metadata.PipelineLayoutHandle) {}

func (f *fakeDevice) CreateRayTracingPipeline(info metadata.RayTracingPipelineInfo) (metadata.PipelineHandle, error) {
	if err := f.record("CreateRayTracingPipeline"); err != nil {
		return 0, err
	}
	return metadata.PipelineHandle(f.handle()), nil
}

// GetShaderGroupHandles fills handle i with bytes of value i+1.
func (f *fakeDevice) GetShaderGroupHandles(pipeline metadata.PipelineHandle, first, count uint32, dataSize int) ([]byte, error) {
	if err := f.record("GetShaderGroupHandles"); err != nil {
		return nil, err
	}
	size := int(f.props.ShaderGroupHandleSize)
	out := make([]byte, dataSize)
	for i := 0; i < int(count); i++ {
		for j := 0; j < size; j++ {
			out[i*size+j] = byte(int(first) + i + 1)
		}
	}
	return out, nil
}

func (f *fakeDevice) DestroyPipeline(pipeline metadata.PipelineHandle) {}

func (f *fakeDevice) CreateDescriptorPool(sizes []metadata.DescriptorPoolSize, maxSets uint32) (metadata.DescriptorPoolHandle, error) {
	if err := f.record("CreateDescriptorPool"); err != nil {
		return 0, err
	}
	return metadata.DescriptorPoolHandle(f.handle()), nil
}

func (f *fakeDevice) AllocateDescriptorSet(pool metadata.DescriptorPoolHandle, layout metadata.DescriptorSetLayoutHandle, variableCount uint32) (metadata.DescriptorSetHandle, error) {
	if err := f.record("AllocateDescriptorSet"); err != nil {
		return 0, err
	}
	f.allocations = append(f.allocations, variableCount)
	return metadata.DescriptorSetHandle(f.handle()), nil
}

func (f *fakeDevice) UpdateDescriptorSets(writes []metadata.DescriptorWrite) {
	f.calls = append(f.calls, "UpdateDescriptorSets")
	f.writes = append(f.writes, writes)
}

func (f *fakeDevice) DestroyDescriptorPool(pool metadata.DescriptorPoolHandle) {}

func (f *fakeDevice) BeginOneTimeCommands() (metadata.CommandBufferHandle, error) {
	if err := f.record("BeginOneTimeCommands"); err != nil {
		return 0, err
	}
	return metadata.CommandBufferHandle(f.handle()), nil
}

func (f *fakeDevice) FlushOneTimeCommands(cmd metadata.CommandBufferHandle) error {
	if err := f.record("FlushOneTimeCommands"); err != nil {
		return err
	}
	for _, as := range f.pending {
		f.built[as] = uint64(as) << 20
	}
	f.pending = nil
	return nil
}

func (f *fakeDevice) WaitIdle() error {
	return f.record("WaitIdle")
}

func (f *fakeDevice) AllocateCommandBuffers(count uint32) ([]metadata.CommandBufferHandle, error) {
	if err := f.record("AllocateCommandBuffers"); err != nil {
		return nil, err
	}
	out := make([]metadata.CommandBufferHandle, count)
	for i := range out {
		out[i] = metadata.CommandBufferHandle(f.handle())
	}
	return out, nil
}

func (f *fakeDevice) FreeCommandBuffers(cmds []metadata.CommandBufferHandle) {}

func (f *fakeDevice) cmd(cmd metadata.CommandBufferHandle, op string) {
	f.commands[cmd] = append(f.commands[cmd], op)
}

func (f *fakeDevice) BeginCommandBuffer(cmd metadata.CommandBufferHandle) error {
	if err := f.record("BeginCommandBuffer"); err != nil {
		return err
	}
	f.cmd(cmd, "begin")
	return nil
}

func (f *fakeDevice) EndCommandBuffer(cmd metadata.CommandBufferHandle) error {
	if err := f.record("EndCommandBuffer"); err != nil {
		return err
	}
	f.cmd(cmd, "end")
	return nil
}

func (f *fakeDevice) ResetCommandBuffer(cmd metadata.CommandBufferHandle) error {
	f.commands[cmd] = nil
	return f.record("ResetCommandBuffer")
}

func (f *fakeDevice) CmdBuildAccelerationStructure(cmd metadata.CommandBufferHandle, info metadata.BuildGeometryInfo, ranges []metadata.BuildRangeInfo) {
	f.calls = append(f.calls, "CmdBuildAccelerationStructure")
	f.builds = append(f.builds, buildCall{cmd: cmd, info: info, ranges: append([]metadata.BuildRangeInfo(nil), ranges...)})
	f.pending = append(f.pending, info.Dst)
}

func (f *fakeDevice) CmdBindRayTracingPipeline(cmd metadata.CommandBufferHandle, pipeline metadata.PipelineHandle) {
	f.cmd(cmd, "bind-pipeline")
}

func (f *fakeDevice) CmdBindDescriptorSet(cmd metadata.CommandBufferHandle, layout metadata.PipelineLayoutHandle, set metadata.DescriptorSetHandle) {
	f.cmd(cmd, "bind-set")
}

func (f *fakeDevice) CmdTraceRays(cmd metadata.CommandBufferHandle, raygen, miss, hit, callable metadata.StridedRegion, width, height, depth uint32) {
	f.cmd(cmd, fmt.Sprintf("trace %dx%dx%d", width, height, depth))
}

func (f *fakeDevice) CmdImageLayoutBarrier(cmd metadata.CommandBufferHandle, image metadata.ImageHandle, oldLayout, newLayout metadata.ImageLayout) {
	f.cmd(cmd, fmt.Sprintf("barrier %s->%s", oldLayout, newLayout))
}

func (f *fakeDevice) CmdCopyImage(cmd metadata.CommandBufferHandle, src metadata.ImageHandle, srcLayout metadata.ImageLayout, dst metadata.ImageHandle, dstLayout metadata.ImageLayout, extent metadata.Extent2D) {
	f.cmd(cmd, "copy")
}

func (f *fakeDevice) CmdCopyBufferToImage(cmd metadata.CommandBufferHandle, src metadata.BufferHandle, dst metadata.ImageHandle, extent metadata.Extent2D) {
	f.cmd(cmd, "upload")
}

// fakeSource is a GeometrySource over buffers created with the allocator.
type fakeSource struct {
	name       string
	vertices   *Buffer
	indices    *Buffer
	transforms *Buffer
	primitives []metadata.Primitive
	materials  []metadata.Material
	textures   []metadata.Texture
	disposed   bool
	disposals  int
	updated    int
}

func newFakeSource(alloc *Allocator, name string, indexCounts ...uint32) *fakeSource {
	usage := metadata.BufferUsageShaderDeviceAddress | metadata.BufferUsageAccelerationStructureBuildInput | metadata.BufferUsageStorageBuffer
	var total uint32
	src := &fakeSource{name: name}
	for i, n := range indexCounts {
		src.primitives = append(src.primitives, metadata.Primitive{FirstIndex: total, IndexCount: n, MaterialIndex: int32(i)})
		total += n
	}
	var err error
	if src.vertices, err = alloc.CreateBuffer(name+".vertices", 3*32, usage, metadata.MemoryPropertyHostVisible); err != nil {
		panic(err)
	}
	if src.indices, err = alloc.CreateBuffer(name+".indices", uint64(max(total, 1))*4, usage, metadata.MemoryPropertyHostVisible); err != nil {
		panic(err)
	}
	return src
}

func (s *fakeSource) Name() string                     { return s.name }
func (s *fakeSource) VertexBuffer() *Buffer            { return s.vertices }
func (s *fakeSource) IndexBuffer() *Buffer             { return s.indices }
func (s *fakeSource) TransformBuffer() *Buffer         { return s.transforms }
func (s *fakeSource) VertexStride() uint64             { return 32 }
func (s *fakeSource) VertexCount() uint32              { return 3 }
func (s *fakeSource) Primitives() []metadata.Primitive { return s.primitives }
func (s *fakeSource) Materials() []metadata.Material   { return s.materials }
func (s *fakeSource) Textures() []metadata.Texture     { return s.textures }

func (s *fakeSource) UpdateTransforms() (bool, error) {
	s.updated++
	return true, nil
}

func (s *fakeSource) Dispose(ctx BuildContext) {
	s.disposed = true
	s.disposals++
	ctx.Allocator.Destroy(s.vertices)
	ctx.Allocator.Destroy(s.indices)
}

func newTestContext() (*fakeDevice, BuildContext) {
	dev := newFakeDevice()
	return dev, BuildContext{Device: dev, Allocator: NewAllocator(dev)}
}

func fakeShaders(v *Variant) map[string][]uint32 {
	out := map[string][]uint32{}
	for _, s := range v.Shaders {
		out[s.Name] = []uint32{0x07230203, 0x00010500}
	}
	return out
}

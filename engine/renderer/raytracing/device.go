package raytracing

import (
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type MemoryRequirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}

// MemoryDevice covers buffer, image and memory objects.
type MemoryDevice interface {
	CreateBuffer(size uint64, usage metadata.BufferUsage) (metadata.BufferHandle, error)
	BufferMemoryRequirements(buffer metadata.BufferHandle) MemoryRequirements
	// FindMemoryType returns the first memory type allowed by typeBits that has all props.
	FindMemoryType(typeBits uint32, props metadata.MemoryProperty) (uint32, bool)
	// AllocateMemory allocates device memory. deviceAddress adds the
	// MEMORY_ALLOCATE_DEVICE_ADDRESS flag required by address-capable buffers.
	AllocateMemory(size uint64, typeIndex uint32, deviceAddress bool) (metadata.MemoryHandle, error)
	BindBufferMemory(buffer metadata.BufferHandle, memory metadata.MemoryHandle) error
	GetBufferDeviceAddress(buffer metadata.BufferHandle) uint64
	// MapMemory returns a persistent host view of size bytes.
	MapMemory(memory metadata.MemoryHandle, size uint64) ([]byte, error)
	UnmapMemory(memory metadata.MemoryHandle)
	DestroyBuffer(buffer metadata.BufferHandle)
	FreeMemory(memory metadata.MemoryHandle)

	CreateImage(info metadata.ImageCreateInfo) (metadata.ImageHandle, error)
	ImageMemoryRequirements(image metadata.ImageHandle) MemoryRequirements
	BindImageMemory(image metadata.ImageHandle, memory metadata.MemoryHandle) error
	CreateImageView(image metadata.ImageHandle, format metadata.Format) (metadata.ImageViewHandle, error)
	CreateSampler() (metadata.SamplerHandle, error)
	DestroyImageView(view metadata.ImageViewHandle)
	DestroyImage(image metadata.ImageHandle)
	DestroySampler(sampler metadata.SamplerHandle)
}

// AccelerationDevice wraps VK_KHR_acceleration_structure.
type AccelerationDevice interface {
	GetAccelerationStructureBuildSizes(info metadata.BuildGeometryInfo, maxPrimitiveCounts []uint32) metadata.BuildSizes
	CreateAccelerationStructure(buffer metadata.BufferHandle, size uint64, kind metadata.AccelerationStructureType) (metadata.AccelerationStructureHandle, error)
	GetAccelerationStructureDeviceAddress(as metadata.AccelerationStructureHandle) uint64
	DestroyAccelerationStructure(as metadata.AccelerationStructureHandle)
}

// PipelineDevice wraps shader modules, layouts and VK_KHR_ray_tracing_pipeline.
type PipelineDevice interface {
	RayTracingProperties() metadata.RayTracingProperties
	CreateShaderModule(code []uint32) (metadata.ShaderModuleHandle, error)
	DestroyShaderModule(module metadata.ShaderModuleHandle)
	CreateDescriptorSetLayout(bindings []metadata.DescriptorBinding) (metadata.DescriptorSetLayoutHandle, error)
	DestroyDescriptorSetLayout(layout metadata.DescriptorSetLayoutHandle)
	CreatePipelineLayout(setLayout metadata.DescriptorSetLayoutHandle) (metadata.PipelineLayoutHandle, error)
	DestroyPipelineLayout(layout metadata.PipelineLayoutHandle)
	CreateRayTracingPipeline(info metadata.RayTracingPipelineInfo) (metadata.PipelineHandle, error)
	// GetShaderGroupHandles returns groupCount tightly packed handles.
	GetShaderGroupHandles(pipeline metadata.PipelineHandle, firstGroup, groupCount uint32, dataSize int) ([]byte, error)
	DestroyPipeline(pipeline metadata.PipelineHandle)
}

type DescriptorDevice interface {
	CreateDescriptorPool(sizes []metadata.DescriptorPoolSize, maxSets uint32) (metadata.DescriptorPoolHandle, error)
	// AllocateDescriptorSet allocates one set; variableCount sizes the layout's
	// variable-count binding and is ignored when the layout has none.
	AllocateDescriptorSet(pool metadata.DescriptorPoolHandle, layout metadata.DescriptorSetLayoutHandle, variableCount uint32) (metadata.DescriptorSetHandle, error)
	UpdateDescriptorSets(writes []metadata.DescriptorWrite)
	DestroyDescriptorPool(pool metadata.DescriptorPoolHandle)
}

// CommandDevice records into command buffers owned by the backend.
type CommandDevice interface {
	// BeginOneTimeCommands allocates a primary command buffer and begins it
	// with ONE_TIME_SUBMIT.
	BeginOneTimeCommands() (metadata.CommandBufferHandle, error)
	// FlushOneTimeCommands ends, submits and blocks on a fence without
	// timeout, then frees the buffer.
	FlushOneTimeCommands(cmd metadata.CommandBufferHandle) error
	// WaitIdle blocks until the device finished all submitted work.
	WaitIdle() error

	AllocateCommandBuffers(count uint32) ([]metadata.CommandBufferHandle, error)
	FreeCommandBuffers(cmds []metadata.CommandBufferHandle)
	BeginCommandBuffer(cmd metadata.CommandBufferHandle) error
	EndCommandBuffer(cmd metadata.CommandBufferHandle) error
	ResetCommandBuffer(cmd metadata.CommandBufferHandle) error

	CmdBuildAccelerationStructure(cmd metadata.CommandBufferHandle, info metadata.BuildGeometryInfo, ranges []metadata.BuildRangeInfo)
	CmdBindRayTracingPipeline(cmd metadata.CommandBufferHandle, pipeline metadata.PipelineHandle)
	CmdBindDescriptorSet(cmd metadata.CommandBufferHandle, layout metadata.PipelineLayoutHandle, set metadata.DescriptorSetHandle)
	CmdTraceRays(cmd metadata.CommandBufferHandle, raygen, miss, hit, callable metadata.StridedRegion, width, height, depth uint32)
	CmdImageLayoutBarrier(cmd metadata.CommandBufferHandle, image metadata.ImageHandle, oldLayout, newLayout metadata.ImageLayout)
	CmdCopyImage(cmd metadata.CommandBufferHandle, src metadata.ImageHandle, srcLayout metadata.ImageLayout, dst metadata.ImageHandle, dstLayout metadata.ImageLayout, extent metadata.Extent2D)
	CmdCopyBufferToImage(cmd metadata.CommandBufferHandle, src metadata.BufferHandle, dst metadata.ImageHandle, extent metadata.Extent2D)
}

// Device is everything the ray tracing core needs from a backend. All calls
// must come from one goroutine.
type Device interface {
	MemoryDevice
	AccelerationDevice
	PipelineDevice
	DescriptorDevice
	CommandDevice
}

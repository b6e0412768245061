package metadata

// Opaque handles issued by a renderer backend. Zero is never a valid handle.
type (
	BufferHandle                uint64
	MemoryHandle                uint64
	ImageHandle                 uint64
	ImageViewHandle             uint64
	SamplerHandle               uint64
	AccelerationStructureHandle uint64
	ShaderModuleHandle          uint64
	PipelineHandle              uint64
	PipelineLayoutHandle        uint64
	DescriptorSetLayoutHandle   uint64
	DescriptorPoolHandle        uint64
	DescriptorSetHandle         uint64
	CommandBufferHandle         uint64
)

const NullHandle = 0

/** @brief A two-dimensional size in pixels. */
type Extent2D struct {
	Width  uint32
	Height uint32
}

func (e Extent2D) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

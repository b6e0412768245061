package metadata

/**
 * @brief One entry of a descriptor set layout. VariableCount marks the
 * trailing binding whose real size is supplied at allocation time.
 */
type DescriptorBinding struct {
	Binding       uint32
	Type          DescriptorType
	Count         uint32
	Stages        ShaderStage
	VariableCount bool
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

type DescriptorImageInfo struct {
	Sampler SamplerHandle
	View    ImageViewHandle
	Layout  ImageLayout
}

type DescriptorBufferInfo struct {
	Buffer BufferHandle
	Offset uint64
	Range  uint64
}

// WholeSize mirrors VK_WHOLE_SIZE.
const WholeSize = ^uint64(0)

/**
 * @brief A write targeting one binding. Exactly one of the payload slices is used,
 * chosen by Type.
 */
type DescriptorWrite struct {
	Set                    DescriptorSetHandle
	Binding                uint32
	ArrayElement           uint32
	Type                   DescriptorType
	AccelerationStructures []AccelerationStructureHandle
	Images                 []DescriptorImageInfo
	Buffers                []DescriptorBufferInfo
}

func (w DescriptorWrite) Count() int {
	switch w.Type {
	case DescriptorTypeAccelerationStructure:
		return len(w.AccelerationStructures)
	case DescriptorTypeUniformBuffer, DescriptorTypeStorageBuffer:
		return len(w.Buffers)
	default:
		return len(w.Images)
	}
}

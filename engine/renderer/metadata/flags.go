package metadata

// The numeric values below match the corresponding Vulkan enums so a backend
// can pass them straight through.

type BufferUsage uint32

const (
	BufferUsageTransferSrc                     BufferUsage = 0x00000001
	BufferUsageTransferDst                     BufferUsage = 0x00000002
	BufferUsageUniformBuffer                   BufferUsage = 0x00000010
	BufferUsageStorageBuffer                   BufferUsage = 0x00000020
	BufferUsageIndexBuffer                     BufferUsage = 0x00000040
	BufferUsageVertexBuffer                    BufferUsage = 0x00000080
	BufferUsageShaderBindingTable              BufferUsage = 0x00000400
	BufferUsageShaderDeviceAddress             BufferUsage = 0x00020000
	BufferUsageAccelerationStructureBuildInput BufferUsage = 0x00080000
	BufferUsageAccelerationStructureStorage    BufferUsage = 0x00100000
)

func (u BufferUsage) Has(flag BufferUsage) bool { return u&flag == flag }

type MemoryProperty uint32

const (
	MemoryPropertyDeviceLocal  MemoryProperty = 0x1
	MemoryPropertyHostVisible  MemoryProperty = 0x2
	MemoryPropertyHostCoherent MemoryProperty = 0x4
)

func (m MemoryProperty) Has(flag MemoryProperty) bool { return m&flag == flag }

type Format uint32

const (
	FormatUndefined       Format = 0
	FormatR8G8B8A8Unorm   Format = 37
	FormatB8G8R8A8Unorm   Format = 44
	FormatR32G32B32Sfloat Format = 106
)

type ImageUsage uint32

const (
	ImageUsageTransferSrc ImageUsage = 0x1
	ImageUsageTransferDst ImageUsage = 0x2
	ImageUsageSampled     ImageUsage = 0x4
	ImageUsageStorage     ImageUsage = 0x8
)

type ImageLayout uint32

const (
	ImageLayoutUndefined             ImageLayout = 0
	ImageLayoutGeneral               ImageLayout = 1
	ImageLayoutShaderReadOnlyOptimal ImageLayout = 5
	ImageLayoutTransferSrcOptimal    ImageLayout = 6
	ImageLayoutTransferDstOptimal    ImageLayout = 7
	ImageLayoutPresentSrc            ImageLayout = 1000001002
)

func (l ImageLayout) String() string {
	switch l {
	case ImageLayoutUndefined:
		return "UNDEFINED"
	case ImageLayoutGeneral:
		return "GENERAL"
	case ImageLayoutShaderReadOnlyOptimal:
		return "SHADER_READ_ONLY_OPTIMAL"
	case ImageLayoutTransferSrcOptimal:
		return "TRANSFER_SRC_OPTIMAL"
	case ImageLayoutTransferDstOptimal:
		return "TRANSFER_DST_OPTIMAL"
	case ImageLayoutPresentSrc:
		return "PRESENT_SRC"
	}
	return "UNKNOWN"
}

type ShaderStage uint32

const (
	ShaderStageRaygen       ShaderStage = 0x00000100
	ShaderStageAnyHit       ShaderStage = 0x00000200
	ShaderStageClosestHit   ShaderStage = 0x00000400
	ShaderStageMiss         ShaderStage = 0x00000800
	ShaderStageIntersection ShaderStage = 0x00001000
	ShaderStageCallable     ShaderStage = 0x00002000
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageRaygen:
		return "raygen"
	case ShaderStageAnyHit:
		return "anyhit"
	case ShaderStageClosestHit:
		return "closesthit"
	case ShaderStageMiss:
		return "miss"
	case ShaderStageIntersection:
		return "intersection"
	case ShaderStageCallable:
		return "callable"
	}
	return "mixed"
}

type DescriptorType uint32

const (
	DescriptorTypeSampler               DescriptorType = 0
	DescriptorTypeCombinedImageSampler  DescriptorType = 1
	DescriptorTypeSampledImage          DescriptorType = 2
	DescriptorTypeStorageImage          DescriptorType = 3
	DescriptorTypeUniformBuffer         DescriptorType = 6
	DescriptorTypeStorageBuffer         DescriptorType = 7
	DescriptorTypeAccelerationStructure DescriptorType = 1000150000
)

func (t DescriptorType) String() string {
	switch t {
	case DescriptorTypeSampler:
		return "SAMPLER"
	case DescriptorTypeCombinedImageSampler:
		return "COMBINED_IMAGE_SAMPLER"
	case DescriptorTypeSampledImage:
		return "SAMPLED_IMAGE"
	case DescriptorTypeStorageImage:
		return "STORAGE_IMAGE"
	case DescriptorTypeUniformBuffer:
		return "UNIFORM_BUFFER"
	case DescriptorTypeStorageBuffer:
		return "STORAGE_BUFFER"
	case DescriptorTypeAccelerationStructure:
		return "ACCELERATION_STRUCTURE"
	}
	return "UNKNOWN"
}

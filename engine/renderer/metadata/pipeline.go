package metadata

// ShaderUnused mirrors VK_SHADER_UNUSED_KHR.
const ShaderUnused = ^uint32(0)

type ShaderGroupType uint32

const (
	ShaderGroupTypeGeneral            ShaderGroupType = 0
	ShaderGroupTypeTrianglesHitGroup  ShaderGroupType = 1
	ShaderGroupTypeProceduralHitGroup ShaderGroupType = 2
)

/** @brief Device limits relevant to ray tracing pipelines. */
type RayTracingProperties struct {
	ShaderGroupHandleSize      uint32
	ShaderGroupHandleAlignment uint32
	ShaderGroupBaseAlignment   uint32
	MaxRayRecursionDepth       uint32
}

type ShaderStageInfo struct {
	Module ShaderModuleHandle
	Stage  ShaderStage
}

/** @brief Indices refer to the Stages slice of the pipeline create info. */
type ShaderGroupInfo struct {
	Type         ShaderGroupType
	General      uint32
	ClosestHit   uint32
	AnyHit       uint32
	Intersection uint32
}

type RayTracingPipelineInfo struct {
	Name              string
	Stages            []ShaderStageInfo
	Groups            []ShaderGroupInfo
	Layout            PipelineLayoutHandle
	MaxRecursionDepth uint32
}

/** @brief Mirrors VkStridedDeviceAddressRegionKHR. */
type StridedRegion struct {
	DeviceAddress uint64
	Stride        uint64
	Size          uint64
}

func (r StridedRegion) Empty() bool {
	return r.Size == 0
}

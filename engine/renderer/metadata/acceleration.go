package metadata

type AccelerationStructureType uint32

const (
	AccelerationStructureTypeTopLevel    AccelerationStructureType = 0
	AccelerationStructureTypeBottomLevel AccelerationStructureType = 1
)

func (t AccelerationStructureType) String() string {
	if t == AccelerationStructureTypeTopLevel {
		return "tlas"
	}
	return "blas"
}

type GeometryType uint32

const (
	GeometryTypeTriangles GeometryType = 0
	GeometryTypeAABBs     GeometryType = 1
	GeometryTypeInstances GeometryType = 2
)

type GeometryFlags uint32

const (
	GeometryFlagOpaque                      GeometryFlags = 0x1
	GeometryFlagNoDuplicateAnyHitInvocation GeometryFlags = 0x2
)

type BuildFlags uint32

const (
	BuildFlagAllowUpdate     BuildFlags = 0x1
	BuildFlagAllowCompaction BuildFlags = 0x2
	BuildFlagPreferFastTrace BuildFlags = 0x4
	BuildFlagPreferFastBuild BuildFlags = 0x8
)

type BuildMode uint32

const (
	BuildModeBuild  BuildMode = 0
	BuildModeUpdate BuildMode = 1
)

type GeometryInstanceFlags uint8

const (
	GeometryInstanceTriangleFacingCullDisable GeometryInstanceFlags = 0x1
	GeometryInstanceForceOpaque               GeometryInstanceFlags = 0x4
)

/**
 * @brief Triangle input of a bottom-level build. Indices are always 32-bit.
 */
type TrianglesData struct {
	VertexFormat  Format
	VertexAddress uint64
	VertexStride  uint64
	MaxVertex     uint32
	IndexAddress  uint64
	/** @brief Address of a 3x4 row-major transform, or zero for identity. */
	TransformAddress uint64
}

/** @brief Instance input of a top-level build. */
type InstancesData struct {
	Address uint64
}

type AccelerationStructureGeometry struct {
	Type      GeometryType
	Flags     GeometryFlags
	Triangles TrianglesData
	Instances InstancesData
}

/**
 * @brief Mirrors VkAccelerationStructureBuildGeometryInfoKHR.
 */
type BuildGeometryInfo struct {
	Type           AccelerationStructureType
	Flags          BuildFlags
	Mode           BuildMode
	Src            AccelerationStructureHandle
	Dst            AccelerationStructureHandle
	Geometries     []AccelerationStructureGeometry
	ScratchAddress uint64
}

type BuildRangeInfo struct {
	PrimitiveCount  uint32
	PrimitiveOffset uint32
	FirstVertex     uint32
	TransformOffset uint32
}

type BuildSizes struct {
	AccelerationStructureSize uint64
	UpdateScratchSize         uint64
	BuildScratchSize          uint64
}

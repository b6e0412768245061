package raytracing

import (
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// TransformStride is the size of one 3x4 row-major transform matrix.
const TransformStride = 48

// GeometrySource is what a loaded model hands to the BLAS builder. Buffers
// must already be uploaded with SHADER_DEVICE_ADDRESS usage.
type GeometrySource interface {
	Name() string
	VertexBuffer() *Buffer
	IndexBuffer() *Buffer
	// TransformBuffer holds one 3x4 matrix per entry of Primitives, or is nil
	// when every primitive uses the identity.
	TransformBuffer() *Buffer
	VertexStride() uint64
	VertexCount() uint32
	Primitives() []metadata.Primitive
	Materials() []metadata.Material
	Textures() []metadata.Texture
}

// Skinned is implemented by sources whose joint matrices live in a mapped
// storage buffer.
type Skinned interface {
	JointBuffer() *Buffer
	// UpdateJoints rewrites the joint matrices for the current pose.
	UpdateJoints() error
}

// Hierarchical is implemented by sources whose primitive transforms derive
// from a node tree.
type Hierarchical interface {
	// UpdateTransforms rewrites TransformBuffer from the node tree and
	// reports whether any matrix changed.
	UpdateTransforms() (bool, error)
}

// Disposable is implemented by sources that own GPU resources created through
// the allocator. Dispose runs once the source is no longer referenced.
type Disposable interface {
	Dispose(ctx BuildContext)
}

func resolveTexture(index int32, offset int32, count int) int32 {
	if index < 0 || int(index) >= count {
		return metadata.NoTexture
	}
	return offset + index
}

// geometryFor builds the triangle geometry, build range and geometry node
// of primitive i. The returned ok is false for primitives without indices.
func geometryFor(src GeometrySource, i int, textureOffset int32) (metadata.AccelerationStructureGeometry, metadata.BuildRangeInfo, metadata.GeometryNode, bool) {
	p := src.Primitives()[i]
	if p.IndexCount == 0 {
		return metadata.AccelerationStructureGeometry{}, metadata.BuildRangeInfo{}, metadata.GeometryNode{}, false
	}

	vertexAddress := src.VertexBuffer().DeviceAddress()
	indexAddress := src.IndexBuffer().DeviceAddress() + uint64(p.FirstIndex)*4

	flags := metadata.GeometryFlagOpaque
	baseColor, occlusion := metadata.NoTexture, metadata.NoTexture
	materials := src.Materials()
	if p.MaterialIndex >= 0 && int(p.MaterialIndex) < len(materials) {
		m := materials[p.MaterialIndex]
		textureCount := len(src.Textures())
		baseColor = resolveTexture(m.BaseColorTexture, textureOffset, textureCount)
		occlusion = resolveTexture(m.OcclusionTexture, textureOffset, textureCount)
		if m.AlphaMask {
			flags = metadata.GeometryFlagNoDuplicateAnyHitInvocation
		}
	}

	geometry := metadata.AccelerationStructureGeometry{
		Type:  metadata.GeometryTypeTriangles,
		Flags: flags,
		Triangles: metadata.TrianglesData{
			VertexFormat:  metadata.FormatR32G32B32Sfloat,
			VertexAddress: vertexAddress,
			VertexStride:  src.VertexStride(),
			MaxVertex:     src.VertexCount(),
			IndexAddress:  indexAddress,
		},
	}
	// Index values are model-global, so the range never rebases vertices.
	rangeInfo := metadata.BuildRangeInfo{
		PrimitiveCount: p.IndexCount / 3,
	}
	if tb := src.TransformBuffer(); tb != nil {
		geometry.Triangles.TransformAddress = tb.DeviceAddress()
		rangeInfo.TransformOffset = uint32(i * TransformStride)
	}

	node := metadata.GeometryNode{
		VertexBufferDeviceAddress: vertexAddress,
		IndexBufferDeviceAddress:  indexAddress,
		TextureIndexBaseColor:     baseColor,
		TextureIndexOcclusion:     occlusion,
	}
	return geometry, rangeInfo, node, true
}

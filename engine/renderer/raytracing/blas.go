package raytracing

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// BLAS is the bottom-level structure over all primitives of one model.
// Nodes[i] describes the geometry at Ranges[i].
type BLAS struct {
	Name       string
	Geometries []metadata.AccelerationStructureGeometry
	Ranges     []metadata.BuildRangeInfo
	Nodes      []metadata.GeometryNode

	source        GeometrySource
	textureOffset int32
	storage       structureStorage
}

func (b *BLAS) artifact() string {
	return "blas[" + b.Name + "]"
}

// Address is zero until the build has been flushed.
func (b *BLAS) Address() uint64 {
	return b.storage.address
}

func (b *BLAS) Built() bool {
	return b.storage.address != 0
}

func (b *BLAS) Handle() metadata.AccelerationStructureHandle {
	return b.storage.Handle
}

func (b *BLAS) Sizes() metadata.BuildSizes {
	return b.storage.Sizes
}

func (b *BLAS) PrimitiveCounts() []uint32 {
	return rangePrimitiveCounts(b.Ranges)
}

func (b *BLAS) buildInfo() metadata.BuildGeometryInfo {
	return metadata.BuildGeometryInfo{
		Type:       metadata.AccelerationStructureTypeBottomLevel,
		Flags:      metadata.BuildFlagPreferFastTrace,
		Mode:       metadata.BuildModeBuild,
		Geometries: b.Geometries,
	}
}

// prepareBLAS gathers geometry, queries sizes for the whole geometry list in
// one call and allocates storage. Nothing is recorded yet.
func prepareBLAS(ctx BuildContext, src GeometrySource, textureOffset int32) (*BLAS, error) {
	b := &BLAS{
		Name:          src.Name(),
		source:        src,
		textureOffset: textureOffset,
	}
	if src.VertexBuffer() == nil || src.IndexBuffer() == nil {
		return nil, core.NewResourceError(b.artifact(), "gather geometry", errors.Mark(errors.New("model has no uploaded vertex or index buffer"), core.ErrUnsupportedGeometry))
	}

	for i := range src.Primitives() {
		geometry, rangeInfo, node, ok := geometryFor(src, i, textureOffset)
		if !ok {
			continue
		}
		b.Geometries = append(b.Geometries, geometry)
		b.Ranges = append(b.Ranges, rangeInfo)
		b.Nodes = append(b.Nodes, node)
	}
	if len(b.Geometries) == 0 {
		return nil, core.NewResourceError(b.artifact(), "gather geometry", errors.Mark(errors.New("model has no indexed primitives"), core.ErrUnsupportedGeometry))
	}

	sizes := ctx.Device.GetAccelerationStructureBuildSizes(b.buildInfo(), b.PrimitiveCounts())
	if err := b.storage.allocate(ctx, b.artifact(), metadata.AccelerationStructureTypeBottomLevel, sizes); err != nil {
		return nil, err
	}
	return b, nil
}

// BuildBLAS builds one bottom-level structure covering every indexed
// primitive of src in a single device-side build. textureOffset is the
// position of the model's first texture in the flattened texture array.
func BuildBLAS(ctx BuildContext, src GeometrySource, textureOffset int32) (*BLAS, error) {
	b, err := prepareBLAS(ctx, src, textureOffset)
	if err != nil {
		return nil, err
	}
	if err := b.storage.build(ctx, b.artifact(), b.buildInfo(), b.Ranges); err != nil {
		b.Destroy(ctx)
		return nil, err
	}
	core.LogInfo("BLAS '%s' built: %d geometries, primitive counts %v", b.Name, len(b.Geometries), b.PrimitiveCounts())
	return b, nil
}

// Update rebuilds the structure in place after the source's transforms
// changed. The primitive set must be unchanged; the same destination and
// scratch buffer are reused.
func (b *BLAS) Update(ctx BuildContext) error {
	if !b.Built() {
		return errors.Wrapf(core.ErrNotBuilt, "%s: update before initial build", b.artifact())
	}
	geometries := make([]metadata.AccelerationStructureGeometry, 0, len(b.Geometries))
	ranges := make([]metadata.BuildRangeInfo, 0, len(b.Ranges))
	nodes := make([]metadata.GeometryNode, 0, len(b.Nodes))
	for i := range b.source.Primitives() {
		geometry, rangeInfo, node, ok := geometryFor(b.source, i, b.textureOffset)
		if !ok {
			continue
		}
		geometries = append(geometries, geometry)
		ranges = append(ranges, rangeInfo)
		nodes = append(nodes, node)
	}
	if len(geometries) != len(b.Geometries) {
		return core.NewPreconditionError("%s: primitive set changed from %d to %d geometries, rebuild instead", b.artifact(), len(b.Geometries), len(geometries))
	}
	b.Geometries, b.Ranges, b.Nodes = geometries, ranges, nodes

	sizes := ctx.Device.GetAccelerationStructureBuildSizes(b.buildInfo(), b.PrimitiveCounts())
	if !b.storage.fits(sizes) {
		return core.NewPreconditionError("%s: rebuilt geometry no longer fits its storage", b.artifact())
	}
	return b.storage.build(ctx, b.artifact(), b.buildInfo(), b.Ranges)
}

// SetTextureOffset changes where the model's textures start in the flattened
// array and recomputes Nodes. The structure itself is unaffected.
func (b *BLAS) SetTextureOffset(offset int32) {
	if offset == b.textureOffset {
		return
	}
	b.textureOffset = offset
	nodes := b.Nodes[:0]
	for i := range b.source.Primitives() {
		if _, _, node, ok := geometryFor(b.source, i, offset); ok {
			nodes = append(nodes, node)
		}
	}
	b.Nodes = nodes
}

func (b *BLAS) Destroy(ctx BuildContext) {
	b.storage.destroy(ctx)
}

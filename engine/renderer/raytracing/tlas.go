package raytracing

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// Instance places one BLAS in the scene. CustomIndex is the index of the
// model's first GeometryNode in the scene-wide geometry node buffer.
type Instance struct {
	BLASAddress     uint64
	Transform       mgl32.Mat4
	CustomIndex     uint32
	Mask            uint8
	SBTRecordOffset uint32
	Flags           metadata.GeometryInstanceFlags
}

// InstanceOf builds an instance of a built BLAS with a full visibility mask.
func InstanceOf(blas *BLAS, transform mgl32.Mat4, customIndex uint32) (Instance, error) {
	if !blas.Built() {
		return Instance{}, errors.Wrapf(core.ErrNotBuilt, "instance of %s", blas.artifact())
	}
	return Instance{
		BLASAddress: blas.Address(),
		Transform:   transform,
		CustomIndex: customIndex,
		Mask:        0xFF,
		Flags:       metadata.GeometryInstanceTriangleFacingCullDisable,
	}, nil
}

func (i Instance) record() metadata.InstanceRecord {
	return metadata.InstanceRecord{
		Transform:                      math.TransformMatrix3x4(i.Transform),
		CustomIndex:                    i.CustomIndex,
		Mask:                           i.Mask,
		SBTRecordOffset:                i.SBTRecordOffset,
		Flags:                          i.Flags,
		AccelerationStructureReference: i.BLASAddress,
	}
}

// TLAS is the single top-level structure of a scene. It references BLASes
// by device address and does not own them.
type TLAS struct {
	Name string

	instances      []Instance
	instanceBuffer *Buffer
	capacity       int
	primitiveCount uint32
	storage        structureStorage
}

func (t *TLAS) artifact() string {
	return "tlas[" + t.Name + "]"
}

func (t *TLAS) Address() uint64 {
	return t.storage.address
}

func (t *TLAS) Built() bool {
	return t.storage.address != 0
}

func (t *TLAS) Handle() metadata.AccelerationStructureHandle {
	return t.storage.Handle
}

// PrimitiveCount is the instance count used by the last build.
func (t *TLAS) PrimitiveCount() uint32 {
	return t.primitiveCount
}

func (t *TLAS) Instances() []Instance {
	return t.instances
}

// InstanceBytes is the host view of the instance buffer, one 64-byte record
// per instance.
func (t *TLAS) InstanceBytes() []byte {
	if t.instanceBuffer == nil {
		return nil
	}
	return t.instanceBuffer.Mapped()[:len(t.instances)*metadata.InstanceRecordSize]
}

func (t *TLAS) buildInfo() metadata.BuildGeometryInfo {
	return metadata.BuildGeometryInfo{
		Type:  metadata.AccelerationStructureTypeTopLevel,
		Flags: metadata.BuildFlagPreferFastTrace,
		Mode:  metadata.BuildModeBuild,
		Geometries: []metadata.AccelerationStructureGeometry{{
			Type:      metadata.GeometryTypeInstances,
			Flags:     metadata.GeometryFlagOpaque,
			Instances: metadata.InstancesData{Address: t.instanceBuffer.DeviceAddress()},
		}},
	}
}

func (t *TLAS) ensureInstanceBuffer(ctx BuildContext, count int) error {
	if t.instanceBuffer != nil && count <= t.capacity {
		return nil
	}
	capacity := count
	if capacity < 1 {
		capacity = 1
	}
	buf, err := ctx.Allocator.CreateBuffer(t.artifact()+".instances", uint64(capacity*metadata.InstanceRecordSize),
		metadata.BufferUsageShaderDeviceAddress|metadata.BufferUsageAccelerationStructureBuildInput,
		metadata.MemoryPropertyHostVisible|metadata.MemoryPropertyHostCoherent)
	if err != nil {
		return err
	}
	ctx.Allocator.Destroy(t.instanceBuffer)
	t.instanceBuffer = buf
	t.capacity = capacity
	return nil
}

func (t *TLAS) writeInstances(instances []Instance) {
	mapped := t.instanceBuffer.Mapped()
	for i, inst := range instances {
		inst.record().Put(mapped[i*metadata.InstanceRecordSize:])
	}
	t.instances = append(t.instances[:0], instances...)
}

// BuildTLAS uploads the instance records and builds a top-level structure
// over them in one device-side build.
func BuildTLAS(ctx BuildContext, name string, instances []Instance) (*TLAS, error) {
	t := &TLAS{Name: name}
	if err := t.ensureInstanceBuffer(ctx, len(instances)); err != nil {
		return nil, err
	}
	t.writeInstances(instances)

	count := uint32(len(instances))
	sizes := ctx.Device.GetAccelerationStructureBuildSizes(t.buildInfo(), []uint32{count})
	if err := t.storage.allocate(ctx, t.artifact(), metadata.AccelerationStructureTypeTopLevel, sizes); err != nil {
		t.Destroy(ctx)
		return nil, err
	}
	if err := t.storage.build(ctx, t.artifact(), t.buildInfo(), []metadata.BuildRangeInfo{{PrimitiveCount: count}}); err != nil {
		t.Destroy(ctx)
		return nil, err
	}
	t.primitiveCount = count
	core.LogInfo("TLAS '%s' built over %d instances", name, count)
	return t, nil
}

// Update rewrites the instance buffer and rebuilds with MODE_BUILD into the
// same destination using the existing scratch buffer. When the new
// instance set no longer fits, a new structure is allocated and built, and
// the old one is destroyed only once that build succeeded; handleChanged
// is then true and descriptors referencing the old handle must be
// rewritten. On error the previous structure is still valid, and its
// instances are restored in the instance buffer.
func (t *TLAS) Update(ctx BuildContext, instances []Instance) (handleChanged bool, err error) {
	if !t.Built() {
		return false, errors.Wrapf(core.ErrNotBuilt, "%s: update before initial build", t.artifact())
	}
	previous := append([]Instance(nil), t.instances...)
	previousBuffer := t.instanceBuffer
	if err := t.ensureInstanceBuffer(ctx, len(instances)); err != nil {
		return false, err
	}
	t.writeInstances(instances)
	defer func() {
		if err != nil {
			t.writeInstances(previous)
		}
	}()

	count := uint32(len(instances))
	ranges := []metadata.BuildRangeInfo{{PrimitiveCount: count}}
	sizes := ctx.Device.GetAccelerationStructureBuildSizes(t.buildInfo(), []uint32{count})
	if t.storage.fits(sizes) {
		if err := t.storage.build(ctx, t.artifact(), t.buildInfo(), ranges); err != nil {
			return false, err
		}
	} else {
		core.LogDebug("%s: %d instances outgrow storage, reallocating", t.artifact(), count)
		var fresh structureStorage
		if err := fresh.allocate(ctx, t.artifact(), metadata.AccelerationStructureTypeTopLevel, sizes); err != nil {
			return false, err
		}
		if err := fresh.build(ctx, t.artifact(), t.buildInfo(), ranges); err != nil {
			fresh.destroy(ctx)
			return false, err
		}
		fresh.flushes += t.storage.flushes
		t.storage.destroy(ctx)
		t.storage = fresh
		handleChanged = true
	}
	t.primitiveCount = count
	if previousBuffer != t.instanceBuffer {
		core.LogDebug("%s: instance buffer grown to %d records", t.artifact(), t.capacity)
	}
	return handleChanged, nil
}

func (t *TLAS) Destroy(ctx BuildContext) {
	t.storage.destroy(ctx)
	ctx.Allocator.Destroy(t.instanceBuffer)
	t.instanceBuffer = nil
	t.instances = nil
	t.capacity = 0
}

package raytracing

import (
	"github.com/loov/hrtime"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// BuildContext bundles what the acceleration structure builders need.
type BuildContext struct {
	Device    Device
	Allocator *Allocator
}

// structureStorage is the backing of one acceleration structure: the
// structure buffer, the object on it and the scratch buffer used to build it.
type structureStorage struct {
	Handle   metadata.AccelerationStructureHandle
	Buffer   *Buffer
	Scratch  *Buffer
	Sizes    metadata.BuildSizes
	address  uint64
	flushes  int
	building bool
}

func (s *structureStorage) allocate(ctx BuildContext, artifact string, kind metadata.AccelerationStructureType, sizes metadata.BuildSizes) error {
	buf, err := ctx.Allocator.CreateBuffer(artifact+".storage", sizes.AccelerationStructureSize,
		metadata.BufferUsageAccelerationStructureStorage|metadata.BufferUsageShaderDeviceAddress,
		metadata.MemoryPropertyDeviceLocal)
	if err != nil {
		return err
	}
	handle, err := ctx.Device.CreateAccelerationStructure(buf.Handle, sizes.AccelerationStructureSize, kind)
	if err != nil {
		ctx.Allocator.Destroy(buf)
		return core.NewResourceError(artifact, "vkCreateAccelerationStructureKHR", err)
	}
	scratchSize := sizes.BuildScratchSize
	if sizes.UpdateScratchSize > scratchSize {
		scratchSize = sizes.UpdateScratchSize
	}
	scratch, err := ctx.Allocator.CreateBuffer(artifact+".scratch", scratchSize,
		metadata.BufferUsageStorageBuffer|metadata.BufferUsageShaderDeviceAddress,
		metadata.MemoryPropertyDeviceLocal)
	if err != nil {
		ctx.Device.DestroyAccelerationStructure(handle)
		ctx.Allocator.Destroy(buf)
		return err
	}
	s.Handle = handle
	s.Buffer = buf
	s.Scratch = scratch
	s.Sizes = sizes
	s.address = 0
	return nil
}

// fits reports whether the current buffers can hold a build of the given sizes.
func (s *structureStorage) fits(sizes metadata.BuildSizes) bool {
	return s.Buffer != nil && s.Scratch != nil &&
		sizes.AccelerationStructureSize <= s.Buffer.Size &&
		sizes.BuildScratchSize <= s.Scratch.Size
}

// build records one build into a one-time command buffer and blocks until
// the device finished it. The device address is resolved only afterwards.
func (s *structureStorage) build(ctx BuildContext, artifact string, info metadata.BuildGeometryInfo, ranges []metadata.BuildRangeInfo) error {
	if s.building {
		return core.NewPreconditionError("%s: a build using this scratch buffer is already in flight", artifact)
	}
	if s.Scratch.DeviceAddress() == 0 {
		return core.NewPreconditionError("%s: scratch buffer has no device address", artifact)
	}
	info.Dst = s.Handle
	info.ScratchAddress = s.Scratch.DeviceAddress()

	s.building = true
	defer func() { s.building = false }()

	start := hrtime.Now()
	cmd, err := ctx.Device.BeginOneTimeCommands()
	if err != nil {
		return core.NewResourceError(artifact, "vkBeginCommandBuffer", err)
	}
	ctx.Device.CmdBuildAccelerationStructure(cmd, info, ranges)
	if err := ctx.Device.FlushOneTimeCommands(cmd); err != nil {
		return core.NewResourceError(artifact, "flush build commands", err)
	}
	s.flushes++

	s.address = ctx.Device.GetAccelerationStructureDeviceAddress(s.Handle)
	if s.address == 0 {
		return core.NewResourceError(artifact, "vkGetAccelerationStructureDeviceAddressKHR", core.ErrNotBuilt)
	}
	core.LogDebug("Built %s (%d geometries) in %v", artifact, len(info.Geometries), hrtime.Since(start))
	return nil
}

func (s *structureStorage) destroy(ctx BuildContext) {
	if s.Handle != metadata.NullHandle {
		ctx.Device.DestroyAccelerationStructure(s.Handle)
		s.Handle = metadata.NullHandle
	}
	ctx.Allocator.Destroy(s.Buffer)
	ctx.Allocator.Destroy(s.Scratch)
	s.Buffer = nil
	s.Scratch = nil
	s.address = 0
}

func rangePrimitiveCounts(ranges []metadata.BuildRangeInfo) []uint32 {
	counts := make([]uint32, len(ranges))
	for i, r := range ranges {
		counts[i] = r.PrimitiveCount
	}
	return counts
}

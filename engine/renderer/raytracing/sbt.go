package raytracing

import (
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// ShaderBindingTable holds one buffer per non-empty region and the strided
// regions handed to vkCmdTraceRaysKHR. Every region address is a multiple
// of the device's shader group base alignment.
type ShaderBindingTable struct {
	HandleSize        uint32
	AlignedHandleSize uint32
	BaseAlignment     uint32
	buffers           [regionCount]*Buffer
	offsets           [regionCount]uint64
	regions           [regionCount]metadata.StridedRegion
}

// BuildShaderBindingTable queries the group handles of p and copies each
// into its region's buffer, in group declaration order, at a stride of the
// aligned handle size. Buffers are padded so the region can start at a
// base-aligned address inside them.
func BuildShaderBindingTable(device PipelineDevice, alloc *Allocator, p *Pipeline) (*ShaderBindingTable, error) {
	props := device.RayTracingProperties()
	handleSize := props.ShaderGroupHandleSize
	aligned := math.Align(handleSize, props.ShaderGroupHandleAlignment)
	groupCount := uint32(len(p.Groups))

	handles, err := device.GetShaderGroupHandles(p.Handle, 0, groupCount, int(groupCount*handleSize))
	if err != nil {
		return nil, core.NewResourceError("shader binding table", "vkGetRayTracingShaderGroupHandlesKHR", err)
	}

	base := props.ShaderGroupBaseAlignment
	if base == 0 {
		base = 1
	}
	sbt := &ShaderBindingTable{HandleSize: handleSize, AlignedHandleSize: aligned, BaseAlignment: base}
	for region := RegionRaygen; region < regionCount; region++ {
		count := p.Groups.Count(region)
		if count == 0 {
			continue
		}
		first, _ := p.Groups.First(region)
		size := uint64(aligned) * uint64(count)
		buf, err := alloc.CreateBuffer("sbt."+region.String(), size+uint64(base-1),
			metadata.BufferUsageShaderBindingTable|metadata.BufferUsageShaderDeviceAddress,
			metadata.MemoryPropertyHostVisible|metadata.MemoryPropertyHostCoherent)
		if err != nil {
			sbt.Destroy(alloc)
			return nil, err
		}
		address := math.Align(buf.DeviceAddress(), uint64(base))
		offset := address - buf.DeviceAddress()
		if address == 0 || address%uint64(base) != 0 {
			sbt.buffers[region] = buf
			sbt.Destroy(alloc)
			return nil, core.NewPreconditionError("sbt.%s: address %#x is not aligned to %d", region, address, base)
		}
		dst := buf.Mapped()[offset:]
		for j := uint32(0); j < count; j++ {
			src := (first + j) * handleSize
			copy(dst[j*aligned:], handles[src:src+handleSize])
		}
		sbt.buffers[region] = buf
		sbt.offsets[region] = offset
		sbt.regions[region] = metadata.StridedRegion{
			DeviceAddress: address,
			Stride:        uint64(aligned),
			Size:          size,
		}
	}
	core.LogDebug("Shader binding table: raygen %d, miss %d, hit %d bytes (stride %d)",
		sbt.regions[RegionRaygen].Size, sbt.regions[RegionMiss].Size, sbt.regions[RegionHit].Size, aligned)
	return sbt, nil
}

func (s *ShaderBindingTable) Region(region SBTRegion) metadata.StridedRegion {
	return s.regions[region]
}

// Regions returns raygen, miss, hit and callable in vkCmdTraceRaysKHR order.
func (s *ShaderBindingTable) Regions() (raygen, miss, hit, callable metadata.StridedRegion) {
	return s.regions[RegionRaygen], s.regions[RegionMiss], s.regions[RegionHit], s.regions[RegionCallable]
}

// Buffer returns the region's backing buffer, nil for empty regions.
func (s *ShaderBindingTable) Buffer(region SBTRegion) *Buffer {
	return s.buffers[region]
}

// Offset is the byte offset of the region's first handle in its buffer.
func (s *ShaderBindingTable) Offset(region SBTRegion) uint64 {
	return s.offsets[region]
}

func (s *ShaderBindingTable) Destroy(alloc *Allocator) {
	for i, buf := range s.buffers {
		alloc.Destroy(buf)
		s.buffers[i] = nil
		s.offsets[i] = 0
		s.regions[i] = metadata.StridedRegion{}
	}
}

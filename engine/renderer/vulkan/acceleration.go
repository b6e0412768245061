package vulkan

import (
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func (vc *VulkanContext) GetAccelerationStructureBuildSizes(info metadata.BuildGeometryInfo, maxPrimitiveCounts []uint32) metadata.BuildSizes {
	b, err := newBuildInfo(info, nil, nil)
	if err != nil {
		core.LogError("build sizes: %s", err)
		return metadata.BuildSizes{}
	}
	defer b.free()
	return buildSizes(vc.logical(), b, maxPrimitiveCounts)
}

func (vc *VulkanContext) CreateAccelerationStructure(buffer metadata.BufferHandle, size uint64, kind metadata.AccelerationStructureType) (metadata.AccelerationStructureHandle, error) {
	as, res := createAccelerationStructure(vc.logical(), vc.buffers.lookup(uint64(buffer)), size, kind)
	if err := checkResult("vkCreateAccelerationStructureKHR", res); err != nil {
		return metadata.NullHandle, err
	}
	return metadata.AccelerationStructureHandle(vc.structures.add(as)), nil
}

func (vc *VulkanContext) GetAccelerationStructureDeviceAddress(as metadata.AccelerationStructureHandle) uint64 {
	h, ok := vc.structures.get(uint64(as))
	if !ok {
		return 0
	}
	return accelerationStructureAddress(vc.logical(), h)
}

func (vc *VulkanContext) DestroyAccelerationStructure(as metadata.AccelerationStructureHandle) {
	if h, ok := vc.structures.remove(uint64(as)); ok {
		destroyAccelerationStructure(vc.logical(), h)
	}
}

func (vc *VulkanContext) CmdBuildAccelerationStructure(cmd metadata.CommandBufferHandle, info metadata.BuildGeometryInfo, ranges []metadata.BuildRangeInfo) {
	b, err := newBuildInfo(info, vc.structures.lookup(uint64(info.Src)), vc.structures.lookup(uint64(info.Dst)))
	if err != nil {
		core.LogError("build %s: %s", info.Type, err)
		return
	}
	defer b.free()
	cmdBuildAccelerationStructure(vc.commandBuffers.lookup(uint64(cmd)), b, ranges)
}

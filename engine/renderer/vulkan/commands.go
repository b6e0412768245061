package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

const (
	pipelineBindPointRayTracing   = vk.PipelineBindPoint(1000165000)
	pipelineStageRayTracingShader = vk.PipelineStageFlagBits(0x00200000)
)

type layoutAccess struct {
	access vk.AccessFlagBits
	stage  vk.PipelineStageFlagBits
}

// accessForLayout gives the access mask and stage an image is used with in a
// layout. The source half of a barrier takes the old layout's entry and the
// destination half the new one's.
func accessForLayout(layout metadata.ImageLayout) layoutAccess {
	switch layout {
	case metadata.ImageLayoutGeneral:
		return layoutAccess{vk.AccessShaderReadBit | vk.AccessShaderWriteBit, pipelineStageRayTracingShader}
	case metadata.ImageLayoutShaderReadOnlyOptimal:
		return layoutAccess{vk.AccessShaderReadBit, pipelineStageRayTracingShader}
	case metadata.ImageLayoutTransferSrcOptimal:
		return layoutAccess{vk.AccessTransferReadBit, vk.PipelineStageTransferBit}
	case metadata.ImageLayoutTransferDstOptimal:
		return layoutAccess{vk.AccessTransferWriteBit, vk.PipelineStageTransferBit}
	case metadata.ImageLayoutPresentSrc:
		return layoutAccess{0, vk.PipelineStageBottomOfPipeBit}
	}
	return layoutAccess{0, vk.PipelineStageTopOfPipeBit}
}

func colorSubresourceRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

func colorSubresourceLayers() vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		MipLevel:       0,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

func (vc *VulkanContext) cmd(h metadata.CommandBufferHandle) vk.CommandBuffer {
	return vc.commandBuffers.lookup(uint64(h))
}

func (vc *VulkanContext) CmdBindRayTracingPipeline(cmd metadata.CommandBufferHandle, pipeline metadata.PipelineHandle) {
	vk.CmdBindPipeline(vc.cmd(cmd), pipelineBindPointRayTracing, vc.pipelines.lookup(uint64(pipeline)))
}

func (vc *VulkanContext) CmdBindDescriptorSet(cmd metadata.CommandBufferHandle, layout metadata.PipelineLayoutHandle, set metadata.DescriptorSetHandle) {
	vk.CmdBindDescriptorSets(vc.cmd(cmd), pipelineBindPointRayTracing, vc.pipelineLayouts.lookup(uint64(layout)),
		0, 1, []vk.DescriptorSet{vc.sets.lookup(uint64(set)).handle}, 0, nil)
}

func (vc *VulkanContext) CmdTraceRays(cmd metadata.CommandBufferHandle, raygen, miss, hit, callable metadata.StridedRegion, width, height, depth uint32) {
	cmdTraceRays(vc.cmd(cmd), [4]metadata.StridedRegion{raygen, miss, hit, callable}, width, height, depth)
}

func (vc *VulkanContext) CmdImageLayoutBarrier(cmd metadata.CommandBufferHandle, image metadata.ImageHandle, oldLayout, newLayout metadata.ImageLayout) {
	src := accessForLayout(oldLayout)
	dst := accessForLayout(newLayout)
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(src.access),
		DstAccessMask:       vk.AccessFlags(dst.access),
		OldLayout:           vk.ImageLayout(oldLayout),
		NewLayout:           vk.ImageLayout(newLayout),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               vc.images.lookup(uint64(image)),
		SubresourceRange:    colorSubresourceRange(),
	}
	vk.CmdPipelineBarrier(
		vc.cmd(cmd),
		vk.PipelineStageFlags(src.stage), vk.PipelineStageFlags(dst.stage),
		0,
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{barrier},
	)
}

func (vc *VulkanContext) CmdCopyImage(cmd metadata.CommandBufferHandle, src metadata.ImageHandle, srcLayout metadata.ImageLayout, dst metadata.ImageHandle, dstLayout metadata.ImageLayout, extent metadata.Extent2D) {
	region := vk.ImageCopy{
		SrcSubresource: colorSubresourceLayers(),
		SrcOffset:      vk.Offset3D{X: 0, Y: 0, Z: 0},
		DstSubresource: colorSubresourceLayers(),
		DstOffset:      vk.Offset3D{X: 0, Y: 0, Z: 0},
		Extent:         vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
	}
	vk.CmdCopyImage(vc.cmd(cmd),
		vc.images.lookup(uint64(src)), vk.ImageLayout(srcLayout),
		vc.images.lookup(uint64(dst)), vk.ImageLayout(dstLayout),
		1, []vk.ImageCopy{region})
}

func (vc *VulkanContext) CmdCopyBufferToImage(cmd metadata.CommandBufferHandle, src metadata.BufferHandle, dst metadata.ImageHandle, extent metadata.Extent2D) {
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource:  colorSubresourceLayers(),
		ImageOffset:       vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent:       vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(vc.cmd(cmd), vc.buffers.lookup(uint64(src)), vc.images.lookup(uint64(dst)),
		vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

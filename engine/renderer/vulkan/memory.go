package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/raytracing"
)

var _ raytracing.Device = (*VulkanContext)(nil)

func (vc *VulkanContext) logical() vk.Device { return vc.Device.LogicalDevice }

func (vc *VulkanContext) CreateBuffer(size uint64, usage metadata.BufferUsage) (metadata.BufferHandle, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if res := vk.CreateBuffer(vc.logical(), &info, vc.Allocator, &buffer); res != vk.Success {
		return metadata.NullHandle, checkResult("vkCreateBuffer", res)
	}
	return metadata.BufferHandle(vc.buffers.add(buffer)), nil
}

func (vc *VulkanContext) BufferMemoryRequirements(buffer metadata.BufferHandle) raytracing.MemoryRequirements {
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(vc.logical(), vc.buffers.lookup(uint64(buffer)), &reqs)
	reqs.Deref()
	return raytracing.MemoryRequirements{
		Size:           uint64(reqs.Size),
		Alignment:      uint64(reqs.Alignment),
		MemoryTypeBits: reqs.MemoryTypeBits,
	}
}

func (vc *VulkanContext) FindMemoryType(typeBits uint32, props metadata.MemoryProperty) (uint32, bool) {
	index := vc.FindMemoryIndex(typeBits, uint32(props))
	if index < 0 {
		return 0, false
	}
	return uint32(index), true
}

func (vc *VulkanContext) AllocateMemory(size uint64, typeIndex uint32, deviceAddress bool) (metadata.MemoryHandle, error) {
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}
	if deviceAddress {
		info.PNext = addressAllocateFlags()
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(vc.logical(), &info, vc.Allocator, &memory); res != vk.Success {
		return metadata.NullHandle, checkResult("vkAllocateMemory", res)
	}
	return metadata.MemoryHandle(vc.memories.add(memory)), nil
}

func (vc *VulkanContext) BindBufferMemory(buffer metadata.BufferHandle, memory metadata.MemoryHandle) error {
	res := vk.BindBufferMemory(vc.logical(), vc.buffers.lookup(uint64(buffer)), vc.memories.lookup(uint64(memory)), 0)
	return checkResult("vkBindBufferMemory", res)
}

func (vc *VulkanContext) GetBufferDeviceAddress(buffer metadata.BufferHandle) uint64 {
	b, ok := vc.buffers.get(uint64(buffer))
	if !ok {
		return 0
	}
	return bufferDeviceAddress(vc.logical(), b)
}

func (vc *VulkanContext) MapMemory(memory metadata.MemoryHandle, size uint64) ([]byte, error) {
	var data unsafe.Pointer
	if res := vk.MapMemory(vc.logical(), vc.memories.lookup(uint64(memory)), 0, vk.DeviceSize(size), 0, &data); res != vk.Success {
		return nil, checkResult("vkMapMemory", res)
	}
	if data == nil {
		return nil, errors.New("vkMapMemory returned a null pointer")
	}
	return unsafe.Slice((*byte)(data), size), nil
}

func (vc *VulkanContext) UnmapMemory(memory metadata.MemoryHandle) {
	vk.UnmapMemory(vc.logical(), vc.memories.lookup(uint64(memory)))
}

func (vc *VulkanContext) DestroyBuffer(buffer metadata.BufferHandle) {
	if b, ok := vc.buffers.remove(uint64(buffer)); ok {
		vk.DestroyBuffer(vc.logical(), b, vc.Allocator)
	}
}

func (vc *VulkanContext) FreeMemory(memory metadata.MemoryHandle) {
	if m, ok := vc.memories.remove(uint64(memory)); ok {
		vk.FreeMemory(vc.logical(), m, vc.Allocator)
	}
}

func (vc *VulkanContext) CreateImage(info metadata.ImageCreateInfo) (metadata.ImageHandle, error) {
	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.Format(info.Format),
		Extent: vk.Extent3D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(info.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var image vk.Image
	if res := vk.CreateImage(vc.logical(), &createInfo, vc.Allocator, &image); res != vk.Success {
		return metadata.NullHandle, checkResult("vkCreateImage", res)
	}
	return metadata.ImageHandle(vc.images.add(image)), nil
}

func (vc *VulkanContext) ImageMemoryRequirements(image metadata.ImageHandle) raytracing.MemoryRequirements {
	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(vc.logical(), vc.images.lookup(uint64(image)), &reqs)
	reqs.Deref()
	return raytracing.MemoryRequirements{
		Size:           uint64(reqs.Size),
		Alignment:      uint64(reqs.Alignment),
		MemoryTypeBits: reqs.MemoryTypeBits,
	}
}

func (vc *VulkanContext) BindImageMemory(image metadata.ImageHandle, memory metadata.MemoryHandle) error {
	res := vk.BindImageMemory(vc.logical(), vc.images.lookup(uint64(image)), vc.memories.lookup(uint64(memory)), 0)
	return checkResult("vkBindImageMemory", res)
}

func (vc *VulkanContext) CreateImageView(image metadata.ImageHandle, format metadata.Format) (metadata.ImageViewHandle, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    vc.images.lookup(uint64(image)),
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(vc.logical(), &viewInfo, vc.Allocator, &view); res != vk.Success {
		return metadata.NullHandle, checkResult("vkCreateImageView", res)
	}
	return metadata.ImageViewHandle(vc.views.add(view)), nil
}

func (vc *VulkanContext) CreateSampler() (metadata.SamplerHandle, error) {
	limits := vc.Device.Properties.Limits
	limits.Deref()
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.True,
		MaxAnisotropy:           limits.MaxSamplerAnisotropy,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(vc.logical(), &samplerInfo, vc.Allocator, &sampler); res != vk.Success {
		return metadata.NullHandle, checkResult("vkCreateSampler", res)
	}
	return metadata.SamplerHandle(vc.samplers.add(sampler)), nil
}

func (vc *VulkanContext) DestroyImageView(view metadata.ImageViewHandle) {
	if v, ok := vc.views.remove(uint64(view)); ok {
		vk.DestroyImageView(vc.logical(), v, vc.Allocator)
	}
}

func (vc *VulkanContext) DestroyImage(image metadata.ImageHandle) {
	if img, ok := vc.images.remove(uint64(image)); ok {
		vk.DestroyImage(vc.logical(), img, vc.Allocator)
	}
}

func (vc *VulkanContext) DestroySampler(sampler metadata.SamplerHandle) {
	if s, ok := vc.samplers.remove(uint64(sampler)); ok {
		vk.DestroySampler(vc.logical(), s, vc.Allocator)
	}
}

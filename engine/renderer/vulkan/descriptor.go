package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type descriptorSet struct {
	handle vk.DescriptorSet
	pool   uint64
}

// setLayout remembers whether the layout ends in a variable-count binding,
// which decides if allocations carry a variable count.
type setLayout struct {
	handle   vk.DescriptorSetLayout
	variable bool
}

// variableBindingIndex returns the position of the variable-count binding, or -1.
func variableBindingIndex(bindings []metadata.DescriptorBinding) int {
	for i, b := range bindings {
		if b.VariableCount {
			return i
		}
	}
	return -1
}

func (vc *VulkanContext) CreateDescriptorSetLayout(bindings []metadata.DescriptorBinding) (metadata.DescriptorSetLayoutHandle, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	variable := variableBindingIndex(bindings)
	if variable >= 0 {
		flags := newBindingFlags(len(bindings), variable)
		defer flags.free()
		info.PNext = flags.pointer()
	}

	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(vc.logical(), &info, vc.Allocator, &layout); res != vk.Success {
		return metadata.NullHandle, checkResult("vkCreateDescriptorSetLayout", res)
	}
	return metadata.DescriptorSetLayoutHandle(vc.setLayouts.add(setLayout{handle: layout, variable: variable >= 0})), nil
}

func (vc *VulkanContext) DestroyDescriptorSetLayout(layout metadata.DescriptorSetLayoutHandle) {
	if l, ok := vc.setLayouts.remove(uint64(layout)); ok {
		vk.DestroyDescriptorSetLayout(vc.logical(), l.handle, vc.Allocator)
	}
}

func (vc *VulkanContext) CreateDescriptorPool(sizes []metadata.DescriptorPoolSize, maxSets uint32) (metadata.DescriptorPoolHandle, error) {
	poolSizes := make([]vk.DescriptorPoolSize, len(sizes))
	for i, s := range sizes {
		poolSizes[i] = vk.DescriptorPoolSize{
			Type:            vk.DescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(vc.logical(), &info, vc.Allocator, &pool); res != vk.Success {
		return metadata.NullHandle, checkResult("vkCreateDescriptorPool", res)
	}
	return metadata.DescriptorPoolHandle(vc.pools.add(pool)), nil
}

func (vc *VulkanContext) AllocateDescriptorSet(pool metadata.DescriptorPoolHandle, layout metadata.DescriptorSetLayoutHandle, variableCount uint32) (metadata.DescriptorSetHandle, error) {
	p, ok := vc.pools.get(uint64(pool))
	if !ok {
		return metadata.NullHandle, errors.Newf("unknown descriptor pool %d", pool)
	}
	l, ok := vc.setLayouts.get(uint64(layout))
	if !ok {
		return metadata.NullHandle, errors.Newf("unknown descriptor set layout %d", layout)
	}
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{l.handle},
	}
	if l.variable {
		counts := newVariableCount(variableCount)
		defer counts.free()
		info.PNext = counts.pointer()
	}
	var set vk.DescriptorSet
	if res := vk.AllocateDescriptorSets(vc.logical(), &info, &set); res != vk.Success {
		return metadata.NullHandle, checkResult("vkAllocateDescriptorSets", res)
	}
	return metadata.DescriptorSetHandle(vc.sets.add(descriptorSet{handle: set, pool: uint64(pool)})), nil
}

func (vc *VulkanContext) UpdateDescriptorSets(writes []metadata.DescriptorWrite) {
	vkWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	var pending []accelerationWrite
	defer func() {
		for _, w := range pending {
			w.free()
		}
	}()

	for _, w := range writes {
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          vc.sets.lookup(uint64(w.Set)).handle,
			DstBinding:      w.Binding,
			DstArrayElement: w.ArrayElement,
			DescriptorCount: uint32(w.Count()),
			DescriptorType:  vk.DescriptorType(w.Type),
		}
		switch w.Type {
		case metadata.DescriptorTypeAccelerationStructure:
			handles := make([]accelerationStructure, len(w.AccelerationStructures))
			for i, as := range w.AccelerationStructures {
				handles[i] = vc.structures.lookup(uint64(as))
			}
			aw := newAccelerationWrite(handles)
			pending = append(pending, aw)
			write.PNext = aw.pointer()
		case metadata.DescriptorTypeUniformBuffer, metadata.DescriptorTypeStorageBuffer:
			infos := make([]vk.DescriptorBufferInfo, len(w.Buffers))
			for i, b := range w.Buffers {
				infos[i] = vk.DescriptorBufferInfo{
					Buffer: vc.buffers.lookup(uint64(b.Buffer)),
					Offset: vk.DeviceSize(b.Offset),
					Range:  vk.DeviceSize(b.Range),
				}
			}
			write.PBufferInfo = infos
		default:
			infos := make([]vk.DescriptorImageInfo, len(w.Images))
			for i, img := range w.Images {
				infos[i] = vk.DescriptorImageInfo{
					Sampler:     vc.samplers.lookup(uint64(img.Sampler)),
					ImageView:   vc.views.lookup(uint64(img.View)),
					ImageLayout: vk.ImageLayout(img.Layout),
				}
			}
			write.PImageInfo = infos
		}
		vkWrites = append(vkWrites, write)
	}
	if len(vkWrites) == 0 {
		return
	}
	vk.UpdateDescriptorSets(vc.logical(), uint32(len(vkWrites)), vkWrites, 0, nil)
}

// DestroyDescriptorPool frees the pool together with every set allocated from it.
func (vc *VulkanContext) DestroyDescriptorPool(pool metadata.DescriptorPoolHandle) {
	p, ok := vc.pools.remove(uint64(pool))
	if !ok {
		return
	}
	vk.DestroyDescriptorPool(vc.logical(), p, vc.Allocator)

	var freed []uint64
	vc.sets.each(func(h uint64, set descriptorSet) {
		if set.pool == uint64(pool) {
			freed = append(freed, h)
		}
	})
	for _, h := range freed {
		vc.sets.remove(h)
	}
}

package vulkan

import (
	"math"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Registry entry handed to the ray tracing core.
	ID metadata.CommandBufferHandle
}

func allocateCommandBuffers(context *VulkanContext, pool vk.CommandPool, count uint32) ([]vk.CommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: count,
		Level:              vk.CommandBufferLevelPrimary,
	}
	out := make([]vk.CommandBuffer, count)
	if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, out); res != vk.Success {
		return nil, checkResult("vkAllocateCommandBuffers", res)
	}
	return out, nil
}

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	handles, err := allocateCommandBuffers(context, pool, 1)
	if err != nil {
		return nil, err
	}
	return &VulkanCommandBuffer{
		Handle: handles[0],
		ID:     metadata.CommandBufferHandle(context.commandBuffers.add(handles[0])),
	}, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
	context.commandBuffers.remove(uint64(v.ID))
	v.Handle = nil
	v.ID = metadata.NullHandle
}

func (v *VulkanCommandBuffer) Begin(isSingleUse, isSimultaneousUse bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isSimultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}
	return checkResult("vkBeginCommandBuffer", vk.BeginCommandBuffer(v.Handle, &beginInfo))
}

func (v *VulkanCommandBuffer) End() error {
	return checkResult("vkEndCommandBuffer", vk.EndCommandBuffer(v.Handle))
}

// AllocateAndBeginSingleUse allocates and begins recording a one-time buffer.
func AllocateAndBeginSingleUse(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(context, pool)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true, false); err != nil {
		cb.Free(context, pool)
		return nil, err
	}
	return cb, nil
}

// EndSingleUse ends recording, submits, blocks on a fence without timeout and
// frees the buffer.
func (v *VulkanCommandBuffer) EndSingleUse(context *VulkanContext, pool vk.CommandPool, queue vk.Queue) error {
	defer v.Free(context, pool)

	if err := v.End(); err != nil {
		return err
	}

	fence, err := NewFence(context, false)
	if err != nil {
		return err
	}
	defer fence.FenceDestroy(context)

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}
	err = context.locks.SafeQueueCall(uint32(context.Device.GraphicsQueueIndex), func() error {
		return checkResult("vkQueueSubmit", vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, fence.Handle))
	})
	if err != nil {
		return err
	}

	return fence.FenceWait(context, math.MaxUint64)
}

func (vc *VulkanContext) BeginOneTimeCommands() (metadata.CommandBufferHandle, error) {
	cb, err := AllocateAndBeginSingleUse(vc, vc.Device.GraphicsCommandPool)
	if err != nil {
		return metadata.NullHandle, err
	}
	return cb.ID, nil
}

func (vc *VulkanContext) FlushOneTimeCommands(cmd metadata.CommandBufferHandle) error {
	handle, ok := vc.commandBuffers.get(uint64(cmd))
	if !ok {
		return errors.Newf("unknown command buffer %d", cmd)
	}
	cb := &VulkanCommandBuffer{Handle: handle, ID: cmd}
	return cb.EndSingleUse(vc, vc.Device.GraphicsCommandPool, vc.Device.GraphicsQueue)
}

func (vc *VulkanContext) WaitIdle() error {
	return checkResult("vkDeviceWaitIdle", vk.DeviceWaitIdle(vc.logical()))
}

func (vc *VulkanContext) AllocateCommandBuffers(count uint32) ([]metadata.CommandBufferHandle, error) {
	if count == 0 {
		return nil, nil
	}
	handles, err := allocateCommandBuffers(vc, vc.Device.GraphicsCommandPool, count)
	if err != nil {
		return nil, err
	}
	out := make([]metadata.CommandBufferHandle, len(handles))
	for i, h := range handles {
		out[i] = metadata.CommandBufferHandle(vc.commandBuffers.add(h))
	}
	return out, nil
}

func (vc *VulkanContext) FreeCommandBuffers(cmds []metadata.CommandBufferHandle) {
	handles := make([]vk.CommandBuffer, 0, len(cmds))
	for _, c := range cmds {
		if h, ok := vc.commandBuffers.remove(uint64(c)); ok {
			handles = append(handles, h)
		}
	}
	if len(handles) == 0 {
		return
	}
	vk.FreeCommandBuffers(vc.logical(), vc.Device.GraphicsCommandPool, uint32(len(handles)), handles)
}

func (vc *VulkanContext) BeginCommandBuffer(cmd metadata.CommandBufferHandle) error {
	cb := &VulkanCommandBuffer{Handle: vc.commandBuffers.lookup(uint64(cmd)), ID: cmd}
	return cb.Begin(false, true)
}

func (vc *VulkanContext) EndCommandBuffer(cmd metadata.CommandBufferHandle) error {
	cb := &VulkanCommandBuffer{Handle: vc.commandBuffers.lookup(uint64(cmd)), ID: cmd}
	return cb.End()
}

func (vc *VulkanContext) ResetCommandBuffer(cmd metadata.CommandBufferHandle) error {
	return checkResult("vkResetCommandBuffer", vk.ResetCommandBuffer(vc.commandBuffers.lookup(uint64(cmd)), 0))
}

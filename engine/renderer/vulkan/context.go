package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type VulkanContext struct {
	// The framebuffer's current width.
	FramebufferWidth uint32
	// The framebuffer's current height.
	FramebufferHeight uint32
	// Current generation of framebuffer size. If it does not match FramebufferSizeLastGeneration,
	// a new swapchain should be generated.
	FramebufferSizeGeneration uint64
	// The generation of the framebuffer when it was last created.
	FramebufferSizeLastGeneration uint64

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	Swapchain *VulkanSwapchain

	ImageAvailableSemaphores []vk.Semaphore
	QueueCompleteSemaphores  []vk.Semaphore

	InFlightFenceCount uint32
	InFlightFences     []*VulkanFence

	// Holds pointers to fences which exist and are owned elsewhere.
	ImagesInFlight []*VulkanFence

	ImageIndex   uint32
	CurrentFrame uint32

	RecreatingSwapchain bool

	procAddr   unsafe.Pointer
	rayTracing metadata.RayTracingProperties
	locks      *VulkanLockPool

	buffers         *registry[vk.Buffer]
	memories        *registry[vk.DeviceMemory]
	images          *registry[vk.Image]
	views           *registry[vk.ImageView]
	samplers        *registry[vk.Sampler]
	structures      *registry[accelerationStructure]
	modules         *registry[vk.ShaderModule]
	setLayouts      *registry[setLayout]
	pipelineLayouts *registry[vk.PipelineLayout]
	pipelines       *registry[vk.Pipeline]
	pools           *registry[vk.DescriptorPool]
	sets            *registry[descriptorSet]
	commandBuffers  *registry[vk.CommandBuffer]
}

func newContext() *VulkanContext {
	return &VulkanContext{
		locks:           NewVulkanLockPool(),
		buffers:         newRegistry[vk.Buffer](),
		memories:        newRegistry[vk.DeviceMemory](),
		images:          newRegistry[vk.Image](),
		views:           newRegistry[vk.ImageView](),
		samplers:        newRegistry[vk.Sampler](),
		structures:      newRegistry[accelerationStructure](),
		modules:         newRegistry[vk.ShaderModule](),
		setLayouts:      newRegistry[setLayout](),
		pipelineLayouts: newRegistry[vk.PipelineLayout](),
		pipelines:       newRegistry[vk.Pipeline](),
		pools:           newRegistry[vk.DescriptorPool](),
		sets:            newRegistry[descriptorSet](),
		commandBuffers:  newRegistry[vk.CommandBuffer](),
	}
}

// liveObjects counts registered objects that the core is responsible for
// destroying. Swapchain images are owned by the swapchain and excluded.
func (vc *VulkanContext) liveObjects() map[string]int {
	swapchainImages := 0
	if vc.Swapchain != nil {
		swapchainImages = len(vc.Swapchain.Handles)
	}
	return map[string]int{
		"buffer":                 vc.buffers.len(),
		"memory":                 vc.memories.len(),
		"image":                  vc.images.len() - swapchainImages,
		"image view":             vc.views.len(),
		"sampler":                vc.samplers.len(),
		"acceleration structure": vc.structures.len(),
		"shader module":          vc.modules.len(),
		"descriptor set layout":  vc.setLayouts.len(),
		"pipeline layout":        vc.pipelineLayouts.len(),
		"pipeline":               vc.pipelines.len(),
		"descriptor pool":        vc.pools.len(),
	}
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

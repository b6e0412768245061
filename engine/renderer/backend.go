package renderer

import (
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/raytracing"
)

// RendererBackend owns the window surface, the swapchain and frame
// synchronisation, and exposes the device the ray tracing core records on.
type RendererBackend interface {
	Initialize(appName string, appWidth, appHeight uint32) error
	Shutdown() error
	Resized(width, height uint32)
	// BeginFrame acquires the next swapchain image. It returns
	// core.ErrSwapchainBooting while the swapchain is being recreated.
	BeginFrame() (uint32, error)
	// EndFrame submits cmd for the acquired image and presents it.
	EndFrame(cmd metadata.CommandBufferHandle) error
	Device() raytracing.Device
	SwapchainImages() []metadata.ImageHandle
	Extent() metadata.Extent2D
	// SwapchainGeneration changes every time the swapchain is recreated.
	SwapchainGeneration() uint64
}

package vulkan

import (
	"math"
	"testing"

	vk "github.com/goki/vulkan"
)

func TestChooseSwapchainExtent(t *testing.T) {
	minExtent := vk.Extent2D{Width: 1, Height: 1}
	maxExtent := vk.Extent2D{Width: 4096, Height: 2048}
	tests := []struct {
		name    string
		current vk.Extent2D
		w, h    uint32
		want    vk.Extent2D
	}{
		{"surface decides", vk.Extent2D{Width: 800, Height: 600}, 1280, 720, vk.Extent2D{Width: 800, Height: 600}},
		{"window decides", vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32}, 1280, 720, vk.Extent2D{Width: 1280, Height: 720}},
		{"clamped to max", vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32}, 8000, 3000, vk.Extent2D{Width: 4096, Height: 2048}},
		{"clamped to min", vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32}, 0, 0, vk.Extent2D{Width: 1, Height: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chooseSwapchainExtent(tt.current, minExtent, maxExtent, tt.w, tt.h); got != tt.want {
				t.Fatalf("extent = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestChooseImageCount(t *testing.T) {
	if got := chooseImageCount(2, 0); got != 3 {
		t.Fatalf("unbounded: got %d, want 3", got)
	}
	if got := chooseImageCount(2, 8); got != 3 {
		t.Fatalf("bounded: got %d, want 3", got)
	}
	if got := chooseImageCount(3, 3); got != 3 {
		t.Fatalf("at max: got %d, want 3", got)
	}
}

func TestChooseSurfaceFormat(t *testing.T) {
	preferred := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	other := vk.SurfaceFormat{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	if got := chooseSurfaceFormat([]vk.SurfaceFormat{other, preferred}); got != preferred {
		t.Fatalf("got %+v, want BGRA unorm", got)
	}
	if got := chooseSurfaceFormat([]vk.SurfaceFormat{other}); got != other {
		t.Fatalf("fallback should be the first format, got %+v", got)
	}
}

func TestChoosePresentMode(t *testing.T) {
	if got := choosePresentMode([]vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}); got != vk.PresentModeMailbox {
		t.Fatalf("got %v, want mailbox", got)
	}
	if got := choosePresentMode([]vk.PresentMode{vk.PresentModeImmediate}); got != vk.PresentModeFifo {
		t.Fatalf("got %v, want fifo fallback", got)
	}
}

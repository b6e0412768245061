package vulkan

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
)

func TestCheckResult(t *testing.T) {
	if err := checkResult("vkCreateBuffer", vk.Success); err != nil {
		t.Fatalf("success returned %v", err)
	}
	err := checkResult("vkCreateBuffer", vk.ErrorOutOfDeviceMemory)
	if err == nil {
		t.Fatal("expected error")
	}
	var re *ResultError
	if !errors.As(err, &re) || re.Result != vk.ErrorOutOfDeviceMemory {
		t.Fatalf("expected ResultError in chain, got %v", err)
	}
	if !strings.Contains(err.Error(), "vkCreateBuffer") {
		t.Fatalf("call name missing from %q", err.Error())
	}
}

func TestResourceErrorCarriesResult(t *testing.T) {
	err := resourceError("swapchain", "vkCreateSwapchainKHR", vk.ErrorSurfaceLost)
	if !errors.Is(err, core.ErrResourceCreation) {
		t.Fatal("expected ErrResourceCreation mark")
	}
	var re *core.ResourceError
	if !errors.As(err, &re) {
		t.Fatal("expected core.ResourceError")
	}
	if re.Result != "VK_ERROR_SURFACE_LOST_KHR" {
		t.Fatalf("result = %q", re.Result)
	}
}

func TestCString(t *testing.T) {
	b := make([]byte, 16)
	copy(b, "VK_KHR_swapchain")
	if got := cString(b); got != "VK_KHR_swapchain" {
		t.Fatalf("full array: %q", got)
	}
	b = make([]byte, 32)
	copy(b, "layer")
	if got := cString(b); got != "layer" {
		t.Fatalf("padded array: %q", got)
	}
}

func TestVulkanSafeString(t *testing.T) {
	if got := VulkanSafeString("main"); got != "main\x00" {
		t.Fatalf("got %q", got)
	}
	if got := VulkanSafeString("main\x00"); got != "main\x00" {
		t.Fatalf("terminator doubled: %q", got)
	}
	if got := VulkanSafeString(""); got != "\x00" {
		t.Fatalf("empty: %q", got)
	}
}

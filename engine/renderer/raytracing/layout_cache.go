package raytracing

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type cachedLayout struct {
	handle metadata.DescriptorSetLayoutHandle
	refs   int
}

// LayoutCache shares descriptor set layouts between pipelines whose binding
// tables have the same shape. It lives as long as the renderer that owns it.
type LayoutCache struct {
	device  PipelineDevice
	layouts map[string]*cachedLayout
}

func NewLayoutCache(device PipelineDevice) *LayoutCache {
	return &LayoutCache{device: device, layouts: make(map[string]*cachedLayout)}
}

func layoutKey(bindings []metadata.DescriptorBinding) string {
	var sb strings.Builder
	for _, b := range bindings {
		fmt.Fprintf(&sb, "%d:%d:%d:%x:%t;", b.Binding, b.Type, b.Count, uint32(b.Stages), b.VariableCount)
	}
	return sb.String()
}

// Acquire returns the layout for bindings, creating it on first use.
func (c *LayoutCache) Acquire(bindings []metadata.DescriptorBinding) (metadata.DescriptorSetLayoutHandle, error) {
	key := layoutKey(bindings)
	if l, ok := c.layouts[key]; ok {
		l.refs++
		return l.handle, nil
	}
	handle, err := c.device.CreateDescriptorSetLayout(bindings)
	if err != nil {
		return metadata.NullHandle, core.NewResourceError("descriptor set layout", "vkCreateDescriptorSetLayout", err)
	}
	c.layouts[key] = &cachedLayout{handle: handle, refs: 1}
	return handle, nil
}

// Release drops one reference and destroys the layout with the last one.
func (c *LayoutCache) Release(handle metadata.DescriptorSetLayoutHandle) {
	for key, l := range c.layouts {
		if l.handle != handle {
			continue
		}
		l.refs--
		if l.refs <= 0 {
			c.device.DestroyDescriptorSetLayout(handle)
			delete(c.layouts, key)
		}
		return
	}
}

func (c *LayoutCache) Len() int {
	return len(c.layouts)
}

// Destroy frees every cached layout regardless of references.
func (c *LayoutCache) Destroy() {
	for key, l := range c.layouts {
		c.device.DestroyDescriptorSetLayout(l.handle)
		delete(c.layouts, key)
	}
}

package raytracing

import (
	"fmt"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/exp/maps"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// Buffer is a buffer bound to its own memory allocation.
type Buffer struct {
	Name   string
	Handle metadata.BufferHandle
	Memory metadata.MemoryHandle
	Size   uint64
	Usage  metadata.BufferUsage
	Props  metadata.MemoryProperty

	address uint64
	mapped  []byte
}

// DeviceAddress is resolved right after binding and is zero for buffers
// created without SHADER_DEVICE_ADDRESS usage.
func (b *Buffer) DeviceAddress() uint64 {
	return b.address
}

// Mapped is the persistent host view of a host-visible buffer, or nil.
func (b *Buffer) Mapped() []byte {
	return b.mapped
}

// Image is a device-local image with its view.
type Image struct {
	Name   string
	Handle metadata.ImageHandle
	Memory metadata.MemoryHandle
	View   metadata.ImageViewHandle
	Extent metadata.Extent2D
	Format metadata.Format
}

// Allocator creates GPU buffers and images and keeps a name registry of every
// live allocation for debugging.
type Allocator struct {
	device  MemoryDevice
	buffers map[string]*Buffer
	images  map[string]*Image
}

func NewAllocator(device MemoryDevice) *Allocator {
	return &Allocator{
		device:  device,
		buffers: make(map[string]*Buffer),
		images:  make(map[string]*Image),
	}
}

func (a *Allocator) uniqueName(name string, taken func(string) bool) string {
	if name == "" {
		return "buffer-" + uuid.New().String()
	}
	if !taken(name) {
		return name
	}
	return fmt.Sprintf("%s-%s", name, uuid.New().String()[:8])
}

// CreateBuffer creates a buffer, allocates memory with props, binds them and,
// for address-capable usage, resolves the device address. Host-visible
// buffers are mapped once and stay mapped until Destroy.
func (a *Allocator) CreateBuffer(name string, size uint64, usage metadata.BufferUsage, props metadata.MemoryProperty) (*Buffer, error) {
	name = a.uniqueName(name, func(n string) bool { _, ok := a.buffers[n]; return ok })
	artifact := "buffer[" + name + "]"
	if size == 0 {
		return nil, core.NewResourceError(artifact, "vkCreateBuffer", errors.New("zero-sized buffer"))
	}

	handle, err := a.device.CreateBuffer(size, usage)
	if err != nil {
		return nil, core.NewResourceError(artifact, "vkCreateBuffer", err)
	}

	reqs := a.device.BufferMemoryRequirements(handle)
	typeIndex, ok := a.device.FindMemoryType(reqs.MemoryTypeBits, props)
	if !ok {
		a.device.DestroyBuffer(handle)
		return nil, core.NewResourceError(artifact, "memory type lookup", errors.Newf("no memory type with properties %#x", uint32(props)))
	}

	deviceAddress := usage.Has(metadata.BufferUsageShaderDeviceAddress)
	memory, err := a.device.AllocateMemory(reqs.Size, typeIndex, deviceAddress)
	if err != nil {
		a.device.DestroyBuffer(handle)
		return nil, core.NewResourceError(artifact, "vkAllocateMemory", err)
	}

	if err := a.device.BindBufferMemory(handle, memory); err != nil {
		a.device.FreeMemory(memory)
		a.device.DestroyBuffer(handle)
		return nil, core.NewResourceError(artifact, "vkBindBufferMemory", err)
	}

	b := &Buffer{
		Name:   name,
		Handle: handle,
		Memory: memory,
		Size:   size,
		Usage:  usage,
		Props:  props,
	}
	if deviceAddress {
		b.address = a.device.GetBufferDeviceAddress(handle)
	}
	if props.Has(metadata.MemoryPropertyHostVisible) {
		mapped, err := a.device.MapMemory(memory, size)
		if err != nil {
			a.device.FreeMemory(memory)
			a.device.DestroyBuffer(handle)
			return nil, core.NewResourceError(artifact, "vkMapMemory", err)
		}
		b.mapped = mapped
	}

	a.buffers[name] = b
	core.LogDebug("Created %s: %d bytes, usage %#x, address %#x", artifact, size, uint32(usage), b.address)
	return b, nil
}

// CreateBufferWithData creates a host-visible, coherent buffer holding data.
func (a *Allocator) CreateBufferWithData(name string, data []byte, usage metadata.BufferUsage) (*Buffer, error) {
	b, err := a.CreateBuffer(name, uint64(len(data)), usage, metadata.MemoryPropertyHostVisible|metadata.MemoryPropertyHostCoherent)
	if err != nil {
		return nil, err
	}
	copy(b.mapped, data)
	return b, nil
}

func (a *Allocator) Destroy(b *Buffer) {
	if b == nil || b.Handle == metadata.NullHandle {
		return
	}
	if b.mapped != nil {
		a.device.UnmapMemory(b.Memory)
		b.mapped = nil
	}
	a.device.DestroyBuffer(b.Handle)
	a.device.FreeMemory(b.Memory)
	delete(a.buffers, b.Name)
	b.Handle = metadata.NullHandle
	b.Memory = metadata.NullHandle
	b.address = 0
}

// CreateImage creates a 2D device-local image with memory and a view.
func (a *Allocator) CreateImage(info metadata.ImageCreateInfo) (*Image, error) {
	info.Name = a.uniqueName(info.Name, func(n string) bool { _, ok := a.images[n]; return ok })
	artifact := "image[" + info.Name + "]"
	if info.Extent.IsZero() {
		return nil, core.NewResourceError(artifact, "vkCreateImage", errors.Newf("invalid extent %dx%d", info.Extent.Width, info.Extent.Height))
	}

	handle, err := a.device.CreateImage(info)
	if err != nil {
		return nil, core.NewResourceError(artifact, "vkCreateImage", err)
	}
	reqs := a.device.ImageMemoryRequirements(handle)
	typeIndex, ok := a.device.FindMemoryType(reqs.MemoryTypeBits, metadata.MemoryPropertyDeviceLocal)
	if !ok {
		a.device.DestroyImage(handle)
		return nil, core.NewResourceError(artifact, "memory type lookup", errors.New("no device-local memory type"))
	}
	memory, err := a.device.AllocateMemory(reqs.Size, typeIndex, false)
	if err != nil {
		a.device.DestroyImage(handle)
		return nil, core.NewResourceError(artifact, "vkAllocateMemory", err)
	}
	if err := a.device.BindImageMemory(handle, memory); err != nil {
		a.device.FreeMemory(memory)
		a.device.DestroyImage(handle)
		return nil, core.NewResourceError(artifact, "vkBindImageMemory", err)
	}
	view, err := a.device.CreateImageView(handle, info.Format)
	if err != nil {
		a.device.FreeMemory(memory)
		a.device.DestroyImage(handle)
		return nil, core.NewResourceError(artifact, "vkCreateImageView", err)
	}

	img := &Image{
		Name:   info.Name,
		Handle: handle,
		Memory: memory,
		View:   view,
		Extent: info.Extent,
		Format: info.Format,
	}
	a.images[info.Name] = img
	core.LogDebug("Created %s: %dx%d format %d", artifact, info.Extent.Width, info.Extent.Height, info.Format)
	return img, nil
}

func (a *Allocator) DestroyImage(img *Image) {
	if img == nil || img.Handle == metadata.NullHandle {
		return
	}
	a.device.DestroyImageView(img.View)
	a.device.DestroyImage(img.Handle)
	a.device.FreeMemory(img.Memory)
	delete(a.images, img.Name)
	img.Handle = metadata.NullHandle
	img.View = metadata.NullHandle
	img.Memory = metadata.NullHandle
}

func (a *Allocator) Lookup(name string) (*Buffer, bool) {
	b, ok := a.buffers[name]
	return b, ok
}

func (a *Allocator) LookupImage(name string) (*Image, bool) {
	img, ok := a.images[name]
	return img, ok
}

// Names lists live buffer names in sorted order.
func (a *Allocator) Names() []string {
	names := maps.Keys(a.buffers)
	slices.Sort(names)
	return names
}

// Live returns the number of live buffers and images.
func (a *Allocator) Live() (buffers, images int) {
	return len(a.buffers), len(a.images)
}

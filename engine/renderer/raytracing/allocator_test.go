package raytracing

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func TestAllocatorRegistry(t *testing.T) {
	_, ctx := newTestContext()
	alloc := ctx.Allocator

	named, err := alloc.CreateBuffer("vertices", 128, metadata.BufferUsageVertexBuffer, metadata.MemoryPropertyDeviceLocal)
	if err != nil {
		t.Fatal(err)
	}
	if b, ok := alloc.Lookup("vertices"); !ok || b != named {
		t.Fatal("named buffer not registered")
	}

	a, err := alloc.CreateBuffer("", 16, metadata.BufferUsageStorageBuffer, metadata.MemoryPropertyDeviceLocal)
	if err != nil {
		t.Fatal(err)
	}
	b, err := alloc.CreateBuffer("", 16, metadata.BufferUsageStorageBuffer, metadata.MemoryPropertyDeviceLocal)
	if err != nil {
		t.Fatal(err)
	}
	if a.Name == b.Name || !strings.HasPrefix(a.Name, "buffer-") {
		t.Errorf("unnamed buffers got names %q and %q", a.Name, b.Name)
	}
	dup, err := alloc.CreateBuffer("vertices", 16, metadata.BufferUsageVertexBuffer, metadata.MemoryPropertyDeviceLocal)
	if err != nil {
		t.Fatal(err)
	}
	if dup.Name == "vertices" {
		t.Error("colliding name was reused")
	}
	if got := len(alloc.Names()); got != 4 {
		t.Errorf("%d registered names, want 4", got)
	}

	alloc.Destroy(named)
	if _, ok := alloc.Lookup("vertices"); ok {
		t.Error("destroyed buffer still registered")
	}
	alloc.Destroy(named)
	if buffers, _ := alloc.Live(); buffers != 3 {
		t.Errorf("%d live buffers, want 3", buffers)
	}
}

func TestAllocatorDeviceAddress(t *testing.T) {
	_, ctx := newTestContext()
	tests := []struct {
		name        string
		usage       metadata.BufferUsage
		props       metadata.MemoryProperty
		wantAddress bool
		wantMapped  bool
	}{
		{"scratch", metadata.BufferUsageStorageBuffer | metadata.BufferUsageShaderDeviceAddress, metadata.MemoryPropertyDeviceLocal, true, false},
		{"staging", metadata.BufferUsageTransferSrc, metadata.MemoryPropertyHostVisible | metadata.MemoryPropertyHostCoherent, false, true},
		{"instances", metadata.BufferUsageShaderDeviceAddress | metadata.BufferUsageAccelerationStructureBuildInput, metadata.MemoryPropertyHostVisible, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ctx.Allocator.CreateBuffer(tt.name, 256, tt.usage, tt.props)
			if err != nil {
				t.Fatal(err)
			}
			if (b.DeviceAddress() != 0) != tt.wantAddress {
				t.Errorf("address %#x, want address %v", b.DeviceAddress(), tt.wantAddress)
			}
			if (b.Mapped() != nil) != tt.wantMapped {
				t.Errorf("mapped %v, want %v", b.Mapped() != nil, tt.wantMapped)
			}
		})
	}
}

func TestAllocatorFailures(t *testing.T) {
	for _, step := range []string{"CreateBuffer", "AllocateMemory", "BindBufferMemory", "MapMemory"} {
		t.Run(step, func(t *testing.T) {
			dev, ctx := newTestContext()
			dev.fail[step] = true
			_, err := ctx.Allocator.CreateBuffer("uniform", 64, metadata.BufferUsageUniformBuffer, metadata.MemoryPropertyHostVisible)
			if !errors.Is(err, core.ErrResourceCreation) {
				t.Fatalf("expected resource error, got %v", err)
			}
			if buffers, _ := ctx.Allocator.Live(); buffers != 0 {
				t.Errorf("failed allocation left %d buffers registered", buffers)
			}
		})
	}
	_, ctx := newTestContext()
	if _, err := ctx.Allocator.CreateBuffer("empty", 0, metadata.BufferUsageStorageBuffer, metadata.MemoryPropertyDeviceLocal); err == nil {
		t.Error("zero-sized buffer accepted")
	}
}

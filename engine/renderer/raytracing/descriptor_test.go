package raytracing

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func descriptorFixture(t *testing.T, textures uint32) (*fakeDevice, BuildContext, *DescriptorWriter, DescriptorResources) {
	t.Helper()
	dev, ctx := newTestContext()
	v := VariantMain()
	p, err := NewPipelineAssembler(dev, NewLayoutCache(dev)).Assemble(PipelineDesc{Variant: v, TextureCount: textures, Shaders: fakeShaders(v)})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	w, err := NewDescriptorWriter(dev, p)
	if err != nil {
		t.Fatalf("NewDescriptorWriter: %v", err)
	}
	ssbo := func(name string) *Buffer {
		b, err := ctx.Allocator.CreateBuffer(name, 64, metadata.BufferUsageStorageBuffer, metadata.MemoryPropertyHostVisible)
		if err != nil {
			t.Fatal(err)
		}
		return b
	}
	res := DescriptorResources{
		TLAS:          metadata.AccelerationStructureHandle(77),
		StorageImage:  metadata.ImageViewHandle(78),
		Uniform:       ssbo("uniform"),
		GeometryNodes: ssbo("nodes"),
		SkinJoints:    ssbo("joints"),
		ExtraTexture:  &metadata.Texture{Name: "glass", View: 90, Sampler: 91},
	}
	for i := uint32(0); i < textures; i++ {
		res.Textures = append(res.Textures, metadata.Texture{View: metadata.ImageViewHandle(100 + i), Sampler: 200})
	}
	return dev, ctx, w, res
}

func TestWriteAllSingleBatch(t *testing.T) {
	dev, _, w, res := descriptorFixture(t, 3)
	if got := dev.allocations[len(dev.allocations)-1]; got != 3 {
		t.Fatalf("set allocated with variable count %d, want 3", got)
	}
	if err := w.WriteAll(res); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if len(dev.writes) != 1 {
		t.Fatalf("expected one batched update, got %d", len(dev.writes))
	}
	writes := dev.writes[0]
	if len(writes) != 7 {
		t.Fatalf("%d writes, want 7", len(writes))
	}
	last := writes[6]
	if last.Binding != 6 || last.Count() != 3 || last.Count() != int(w.VariableCount()) {
		t.Errorf("texture array write binding %d with %d images", last.Binding, last.Count())
	}
	if writes[0].AccelerationStructures[0] != 77 {
		t.Errorf("TLAS write = %+v", writes[0])
	}
}

func TestWriteAllRejectsCountMismatch(t *testing.T) {
	dev, _, w, res := descriptorFixture(t, 3)
	res.Textures = res.Textures[:2]

	err := w.WriteAll(res)
	if !errors.Is(err, core.ErrDescriptorCountMismatch) || !errors.Is(err, core.ErrPrecondition) {
		t.Fatalf("expected count mismatch precondition, got %v", err)
	}
	if len(dev.writes) != 0 {
		t.Errorf("descriptor update issued despite mismatch")
	}
}

func TestWriteAllMissingResource(t *testing.T) {
	_, _, w, res := descriptorFixture(t, 1)
	res.SkinJoints = nil
	if err := w.WriteAll(res); !errors.Is(err, core.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestAllocateVariableCount(t *testing.T) {
	dev, _, w, res := descriptorFixture(t, 4)
	if err := w.Allocate(2); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	res.Textures = res.Textures[:2]
	if err := w.WriteAll(res); err != nil {
		t.Fatalf("WriteAll after shrink: %v", err)
	}
	if err := w.Allocate(5); !errors.Is(err, core.ErrPrecondition) {
		t.Errorf("allocating past the declared count should fail, got %v", err)
	}
	if got := dev.allocations; len(got) != 2 || got[1] != 2 {
		t.Errorf("allocations = %v", got)
	}
}

func TestWriteStorageImageOnly(t *testing.T) {
	dev, _, w, _ := descriptorFixture(t, 1)
	w.WriteStorageImage(metadata.ImageViewHandle(5))
	writes := dev.writes[len(dev.writes)-1]
	if len(writes) != 1 || writes[0].Binding != 1 || writes[0].Images[0].Layout != metadata.ImageLayoutGeneral {
		t.Errorf("storage image write = %+v", writes)
	}
}

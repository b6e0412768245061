package raytracing

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func buildInstances(t *testing.T, ctx BuildContext, n int) []Instance {
	t.Helper()
	instances := make([]Instance, n)
	for i := range instances {
		src := newFakeSource(ctx.Allocator, string(rune('a'+i)), 3)
		blas, err := BuildBLAS(ctx, src, 0)
		if err != nil {
			t.Fatalf("BuildBLAS: %v", err)
		}
		inst, err := InstanceOf(blas, mgl32.Translate3D(float32(i), 0, 0), uint32(i))
		if err != nil {
			t.Fatalf("InstanceOf: %v", err)
		}
		instances[i] = inst
	}
	return instances
}

func TestTLASPrimitiveCountMatchesInstances(t *testing.T) {
	dev, ctx := newTestContext()
	instances := buildInstances(t, ctx, 3)
	queries := len(dev.sizeQueries)

	tlas, err := BuildTLAS(ctx, "scene", instances)
	if err != nil {
		t.Fatalf("BuildTLAS: %v", err)
	}
	query := dev.sizeQueries[queries]
	if len(query.counts) != 1 || query.counts[0] != 3 {
		t.Errorf("size query counts = %v, want [3]", query.counts)
	}
	build := dev.builds[len(dev.builds)-1]
	if len(build.ranges) != 1 || build.ranges[0].PrimitiveCount != 3 {
		t.Errorf("build range = %+v, want primitive count 3", build.ranges)
	}
	if build.info.Geometries[0].Type != metadata.GeometryTypeInstances {
		t.Errorf("TLAS geometry type = %v", build.info.Geometries[0].Type)
	}
	if got := len(tlas.InstanceBytes()) / metadata.InstanceRecordSize; got != 3 {
		t.Errorf("%d records in instance buffer, want 3", got)
	}
	if tlas.PrimitiveCount() != 3 || !tlas.Built() {
		t.Errorf("primitive count %d, built %v", tlas.PrimitiveCount(), tlas.Built())
	}
}

func TestTLASUpdateChangesOnlyOneTransform(t *testing.T) {
	dev, ctx := newTestContext()
	instances := buildInstances(t, ctx, 3)
	tlas, err := BuildTLAS(ctx, "scene", instances)
	if err != nil {
		t.Fatalf("BuildTLAS: %v", err)
	}
	before := append([]byte(nil), tlas.InstanceBytes()...)
	handle := tlas.Handle()
	creates := dev.countCalls("CreateAccelerationStructure")

	instances[1].Transform = mgl32.Translate3D(7, 8, 9).Mul4(mgl32.HomogRotate3DY(0.5))
	changed, err := tlas.Update(ctx, instances)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if changed || tlas.Handle() != handle {
		t.Errorf("in-place update changed the handle")
	}
	if dev.countCalls("CreateAccelerationStructure") != creates {
		t.Errorf("update created a new acceleration structure")
	}
	last := dev.builds[len(dev.builds)-1]
	if last.info.Mode != metadata.BuildModeBuild || last.info.Dst != handle {
		t.Errorf("update build mode %v into %d, want full build into %d", last.info.Mode, last.info.Dst, handle)
	}

	after := tlas.InstanceBytes()
	for i := 0; i < 3; i++ {
		lo, hi := i*metadata.InstanceRecordSize, (i+1)*metadata.InstanceRecordSize
		b, a := metadata.ReadInstanceRecord(before[lo:hi]), metadata.ReadInstanceRecord(after[lo:hi])
		if b.AccelerationStructureReference != a.AccelerationStructureReference {
			t.Errorf("instance %d reference changed", i+1)
		}
		transformChanged := !bytes.Equal(before[lo:lo+48], after[lo:lo+48])
		if transformChanged != (i == 1) {
			t.Errorf("instance %d transform changed = %v", i+1, transformChanged)
		}
		if !bytes.Equal(before[lo+48:hi], after[lo+48:hi]) {
			t.Errorf("instance %d non-transform bytes changed", i+1)
		}
	}
}

func TestTLASUpdateGrowsStorage(t *testing.T) {
	_, ctx := newTestContext()
	instances := buildInstances(t, ctx, 4)
	tlas, err := BuildTLAS(ctx, "scene", instances[:1])
	if err != nil {
		t.Fatalf("BuildTLAS: %v", err)
	}
	handle := tlas.Handle()
	changed, err := tlas.Update(ctx, instances)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !changed || tlas.Handle() == handle {
		t.Errorf("growing past capacity should reallocate and report a new handle")
	}
	if tlas.PrimitiveCount() != 4 {
		t.Errorf("primitive count %d, want 4", tlas.PrimitiveCount())
	}
}

func TestTLASUpdateKeepsPreviousStructureOnFailedGrowth(t *testing.T) {
	dev, ctx := newTestContext()
	instances := buildInstances(t, ctx, 3)
	tlas, err := BuildTLAS(ctx, "scene", instances[:2])
	if err != nil {
		t.Fatalf("BuildTLAS: %v", err)
	}
	handle, address := tlas.Handle(), tlas.Address()
	records := append([]byte(nil), tlas.InstanceBytes()...)

	dev.fail["CreateTopLevelAccelerationStructure"] = true
	changed, err := tlas.Update(ctx, instances)
	if err == nil || changed {
		t.Fatalf("Update = (%v, %v), want a failure without a handle change", changed, err)
	}
	if !tlas.Built() || tlas.Handle() != handle || tlas.Address() != address || !dev.structures[handle] {
		t.Fatalf("TLAS handle %d address %#x after failed growth, want %d %#x", tlas.Handle(), tlas.Address(), handle, address)
	}
	if tlas.PrimitiveCount() != 2 || !bytes.Equal(tlas.InstanceBytes(), records) {
		t.Errorf("instance records changed: %d instances", len(tlas.Instances()))
	}

	delete(dev.fail, "CreateTopLevelAccelerationStructure")
	if changed, err = tlas.Update(ctx, instances); err != nil || !changed {
		t.Fatalf("Update = (%v, %v), want reallocation", changed, err)
	}
	if dev.structures[handle] {
		t.Error("outgrown TLAS not destroyed")
	}
}

func TestInstanceOfUnbuiltBLAS(t *testing.T) {
	if _, err := InstanceOf(&BLAS{Name: "pending"}, mgl32.Ident4(), 0); err == nil {
		t.Fatal("expected error for unbuilt BLAS")
	}
}

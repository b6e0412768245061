package raytracing

import (
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func TestBuildBLASTwoPrimitives(t *testing.T) {
	dev, ctx := newTestContext()
	src := newFakeSource(ctx.Allocator, "duck", 300, 600)
	src.materials = []metadata.Material{
		{Name: "textured", BaseColorTexture: 0, OcclusionTexture: -1},
		{Name: "plain", BaseColorTexture: -1, OcclusionTexture: -1},
	}
	src.textures = []metadata.Texture{{Name: "albedo"}}

	blas, err := BuildBLAS(ctx, src, 0)
	if err != nil {
		t.Fatalf("BuildBLAS: %v", err)
	}

	if len(dev.sizeQueries) != 1 {
		t.Fatalf("expected one size query for the whole geometry list, got %d", len(dev.sizeQueries))
	}
	if got := dev.sizeQueries[0].counts; !reflect.DeepEqual(got, []uint32{100, 200}) {
		t.Errorf("size query primitive counts = %v, want [100 200]", got)
	}
	if len(dev.builds) != 1 || len(dev.builds[0].info.Geometries) != 2 {
		t.Fatalf("expected a single build over 2 geometries, got %d builds", len(dev.builds))
	}
	if len(blas.Nodes) != 2 {
		t.Fatalf("expected 2 geometry nodes, got %d", len(blas.Nodes))
	}
	if blas.Nodes[0].TextureIndexBaseColor != 0 {
		t.Errorf("node 0 base color = %d, want 0", blas.Nodes[0].TextureIndexBaseColor)
	}
	if blas.Nodes[1].TextureIndexBaseColor != metadata.NoTexture {
		t.Errorf("node 1 base color = %d, want -1", blas.Nodes[1].TextureIndexBaseColor)
	}
}

func TestBLASNodesMatchBuildRanges(t *testing.T) {
	dev, ctx := newTestContext()
	src := newFakeSource(ctx.Allocator, "sponza", 30, 0, 90, 12)

	blas, err := BuildBLAS(ctx, src, 4)
	if err != nil {
		t.Fatalf("BuildBLAS: %v", err)
	}
	build := dev.builds[0]
	if len(build.ranges) != len(blas.Nodes) || len(build.info.Geometries) != len(blas.Nodes) {
		t.Fatalf("ranges %d, geometries %d, nodes %d", len(build.ranges), len(build.info.Geometries), len(blas.Nodes))
	}
	want := []uint32{10, 30, 4}
	for i, node := range blas.Nodes {
		if build.ranges[i].PrimitiveCount != want[i] {
			t.Errorf("range %d primitive count = %d, want %d", i, build.ranges[i].PrimitiveCount, want[i])
		}
		if node.IndexBufferDeviceAddress != build.info.Geometries[i].Triangles.IndexAddress {
			t.Errorf("node %d index address %#x does not match geometry %#x", i, node.IndexBufferDeviceAddress, build.info.Geometries[i].Triangles.IndexAddress)
		}
	}
	// Primitive 2 starts after 30 indices.
	if got := blas.Nodes[1].IndexBufferDeviceAddress - src.indices.DeviceAddress(); got != 30*4 {
		t.Errorf("second node index offset = %d, want 120", got)
	}
}

func TestBLASAddressResolvedAfterFlush(t *testing.T) {
	dev, ctx := newTestContext()
	src := newFakeSource(ctx.Allocator, "cube", 36)

	blas, err := prepareBLAS(ctx, src, 0)
	if err != nil {
		t.Fatalf("prepareBLAS: %v", err)
	}
	if blas.Address() != 0 || blas.Built() {
		t.Fatalf("address %#x before build", blas.Address())
	}
	if got := dev.GetAccelerationStructureDeviceAddress(blas.Handle()); got != 0 {
		t.Fatalf("device reports address %#x before flush", got)
	}
	if err := blas.storage.build(ctx, blas.artifact(), blas.buildInfo(), blas.Ranges); err != nil {
		t.Fatalf("build: %v", err)
	}
	if blas.Address() == 0 {
		t.Fatal("address still zero after flush")
	}

	flush, resolve := -1, -1
	for i, c := range dev.calls {
		switch c {
		case "FlushOneTimeCommands":
			flush = i
		case "GetAccelerationStructureDeviceAddress":
			resolve = i
		}
	}
	if flush < 0 || resolve < flush {
		t.Errorf("address resolved at call %d, flush at %d", resolve, flush)
	}
}

func TestBuildBLASFailures(t *testing.T) {
	tests := []struct {
		name string
		fail string
		mark error
	}{
		{name: "structure creation", fail: "CreateAccelerationStructure", mark: core.ErrResourceCreation},
		{name: "flush", fail: "FlushOneTimeCommands", mark: core.ErrResourceCreation},
		{name: "begin", fail: "BeginOneTimeCommands", mark: core.ErrResourceCreation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, ctx := newTestContext()
			src := newFakeSource(ctx.Allocator, "broken", 3)
			dev.fail[tt.fail] = true

			blas, err := BuildBLAS(ctx, src, 0)
			if err == nil || blas != nil {
				t.Fatalf("expected failure, got blas %v", blas)
			}
			if !errors.Is(err, tt.mark) {
				t.Errorf("error %v is not marked %v", err, tt.mark)
			}
			var re *core.ResourceError
			if !errors.As(err, &re) || re.Artifact != "blas[broken]" {
				t.Errorf("expected a resource error naming blas[broken], got %v", err)
			}
			if buffers, _ := ctx.Allocator.Live(); buffers != 2 {
				t.Errorf("%d live buffers after failure, want only the 2 source buffers", buffers)
			}
		})
	}
}

func TestBuildBLASWithoutIndexedPrimitives(t *testing.T) {
	_, ctx := newTestContext()
	src := newFakeSource(ctx.Allocator, "empty", 0, 0)

	_, err := BuildBLAS(ctx, src, 0)
	if !errors.Is(err, core.ErrUnsupportedGeometry) {
		t.Fatalf("expected ErrUnsupportedGeometry, got %v", err)
	}
}

func TestBLASUpdateReusesStorage(t *testing.T) {
	dev, ctx := newTestContext()
	src := newFakeSource(ctx.Allocator, "arm", 6, 6)
	blas, err := BuildBLAS(ctx, src, 0)
	if err != nil {
		t.Fatalf("BuildBLAS: %v", err)
	}
	handle := blas.Handle()
	if err := blas.Update(ctx); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if blas.Handle() != handle {
		t.Errorf("handle changed from %d to %d", handle, blas.Handle())
	}
	if len(dev.builds) != 2 || dev.builds[1].info.Dst != handle {
		t.Errorf("update did not build into the same destination")
	}
	if dev.countCalls("CreateAccelerationStructure") != 1 {
		t.Errorf("update created a new acceleration structure")
	}
}

func TestBLASSetTextureOffset(t *testing.T) {
	_, ctx := newTestContext()
	src := newFakeSource(ctx.Allocator, "crate", 3)
	src.materials = []metadata.Material{{BaseColorTexture: 0, OcclusionTexture: 1}}
	src.textures = []metadata.Texture{{Name: "a"}, {Name: "b"}}
	blas, err := BuildBLAS(ctx, src, 0)
	if err != nil {
		t.Fatalf("BuildBLAS: %v", err)
	}
	blas.SetTextureOffset(5)
	if n := blas.Nodes[0]; n.TextureIndexBaseColor != 5 || n.TextureIndexOcclusion != 6 {
		t.Errorf("texture indices after offset = %d/%d, want 5/6", n.TextureIndexBaseColor, n.TextureIndexOcclusion)
	}
}

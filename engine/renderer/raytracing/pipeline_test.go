package raytracing

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func TestBindingTableLayout(t *testing.T) {
	table := NewBindingTable(VariantMain(), 7)
	want := []struct {
		role BindingRole
		kind metadata.DescriptorType
	}{
		{RoleAccelerationStructure, metadata.DescriptorTypeAccelerationStructure},
		{RoleStorageImage, metadata.DescriptorTypeStorageImage},
		{RoleUniform, metadata.DescriptorTypeUniformBuffer},
		{RoleGeometryNodes, metadata.DescriptorTypeStorageBuffer},
		{RoleSkinJoints, metadata.DescriptorTypeStorageBuffer},
		{RoleExtraTexture, metadata.DescriptorTypeCombinedImageSampler},
		{RoleTextureArray, metadata.DescriptorTypeCombinedImageSampler},
	}
	if len(table) != len(want) {
		t.Fatalf("%d bindings, want %d", len(table), len(want))
	}
	for i, w := range want {
		b := table[i]
		if b.Binding != uint32(i) || b.Role != w.role || b.Type != w.kind {
			t.Errorf("binding %d = %s/%s, want %s/%s", i, b.Role, b.Type, w.role, w.kind)
		}
		if b.VariableCount != (w.role == RoleTextureArray) {
			t.Errorf("binding %d variable count flag = %v", i, b.VariableCount)
		}
	}
	if table.VariableCount() != 7 {
		t.Errorf("texture array count = %d, want 7", table.VariableCount())
	}
	if got := NewBindingTable(VariantMain(), 0).VariableCount(); got != 1 {
		t.Errorf("empty texture array declared with %d slots, want 1", got)
	}
	if _, ok := NewBindingTable(VariantBasic(), 3).Find(RoleTextureArray); ok {
		t.Error("basic variant should not declare a texture array")
	}
}

func TestLayoutCacheSharesIdenticalTables(t *testing.T) {
	dev := newFakeDevice()
	cache := NewLayoutCache(dev)

	a, err := cache.Acquire(NewBindingTable(VariantTextured(), 4).Descriptors())
	if err != nil {
		t.Fatal(err)
	}
	b, err := cache.Acquire(NewBindingTable(VariantTextured(), 4).Descriptors())
	if err != nil {
		t.Fatal(err)
	}
	if a != b || dev.layouts != 1 {
		t.Errorf("identical tables produced layouts %d and %d (%d created)", a, b, dev.layouts)
	}
	c, err := cache.Acquire(NewBindingTable(VariantTextured(), 5).Descriptors())
	if err != nil {
		t.Fatal(err)
	}
	if c == a || cache.Len() != 2 {
		t.Errorf("different texture count should get its own layout")
	}

	cache.Release(a)
	if dev.layouts != 2 {
		t.Errorf("layout destroyed while still referenced")
	}
	cache.Release(b)
	if dev.layouts != 1 || cache.Len() != 1 {
		t.Errorf("last release should destroy the layout, %d remain", dev.layouts)
	}
	cache.Destroy()
	if dev.layouts != 0 {
		t.Errorf("%d layouts left after Destroy", dev.layouts)
	}
}

func TestShaderGroupsValidate(t *testing.T) {
	for name, ctor := range variants {
		if err := ctor().Groups.Validate(ctor().Shaders); err != nil {
			t.Errorf("variant %s: %v", name, err)
		}
	}

	shaders := VariantShadows().Shaders
	bad := map[string]ShaderGroups{
		"no raygen":           {generalGroup(RegionMiss, 1), hitGroup(3, 4)},
		"out of order":        {generalGroup(RegionRaygen, 0), hitGroup(3, 4), generalGroup(RegionMiss, 1)},
		"wrong stage":         {generalGroup(RegionRaygen, 1), generalGroup(RegionMiss, 2)},
		"hit without closest": {generalGroup(RegionRaygen, 0), hitGroup(Unused, 4)},
		"out of range":        {generalGroup(RegionRaygen, 0), generalGroup(RegionMiss, 9)},
	}
	for name, groups := range bad {
		if err := groups.Validate(shaders); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestAssemblePipeline(t *testing.T) {
	dev := newFakeDevice()
	assembler := NewPipelineAssembler(dev, NewLayoutCache(dev))
	v := VariantReflections()

	p, err := assembler.Assemble(PipelineDesc{Variant: v, Shaders: fakeShaders(v)})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if p.MaxRecursionDepth != 4 {
		t.Errorf("reflections recursion depth = %d, want 4", p.MaxRecursionDepth)
	}
	if dev.countCalls("CreateShaderModule") != len(v.Shaders) {
		t.Errorf("created %d modules for %d shaders", dev.countCalls("CreateShaderModule"), len(v.Shaders))
	}
	assembler.Destroy(p)
	if dev.layouts != 0 {
		t.Errorf("set layout not released")
	}
}

func TestAssembleRejectsDeepRecursion(t *testing.T) {
	dev := newFakeDevice()
	dev.props.MaxRayRecursionDepth = 1
	assembler := NewPipelineAssembler(dev, NewLayoutCache(dev))
	v := VariantReflections()

	_, err := assembler.Assemble(PipelineDesc{Variant: v, Shaders: fakeShaders(v)})
	if !errors.Is(err, core.ErrMissingCapability) {
		t.Fatalf("expected ErrMissingCapability, got %v", err)
	}
	if dev.countCalls("CreateRayTracingPipeline") != 0 {
		t.Error("pipeline created despite unsupported depth")
	}
}

func TestAssembleMissingShader(t *testing.T) {
	dev := newFakeDevice()
	assembler := NewPipelineAssembler(dev, NewLayoutCache(dev))
	v := VariantShadows()
	shaders := fakeShaders(v)
	delete(shaders, "shadow.rmiss.spv")

	if _, err := assembler.Assemble(PipelineDesc{Variant: v, Shaders: shaders}); !errors.Is(err, core.ErrResourceCreation) {
		t.Fatalf("expected resource error, got %v", err)
	}
}

func TestShaderBindingTableRegions(t *testing.T) {
	for _, ctor := range []func() *Variant{VariantBasic, VariantShadows, VariantMain} {
		v := ctor()
		t.Run(v.Name, func(t *testing.T) {
			dev, ctx := newTestContext()
			p, err := NewPipelineAssembler(dev, NewLayoutCache(dev)).Assemble(PipelineDesc{Variant: v, Shaders: fakeShaders(v)})
			if err != nil {
				t.Fatalf("Assemble: %v", err)
			}
			sbt, err := BuildShaderBindingTable(dev, ctx.Allocator, p)
			if err != nil {
				t.Fatalf("BuildShaderBindingTable: %v", err)
			}
			aligned := uint64(64)
			if sbt.AlignedHandleSize != 64 {
				t.Fatalf("aligned handle size = %d", sbt.AlignedHandleSize)
			}
			raygen, miss, hit, callable := sbt.Regions()
			if raygen.Size != aligned || raygen.Stride != aligned {
				t.Errorf("raygen region %+v", raygen)
			}
			if miss.Size != aligned*uint64(v.Groups.Count(RegionMiss)) || miss.Stride != aligned {
				t.Errorf("miss region %+v for %d groups", miss, v.Groups.Count(RegionMiss))
			}
			if hit.Size != aligned*uint64(v.Groups.Count(RegionHit)) || hit.Stride != aligned {
				t.Errorf("hit region %+v", hit)
			}
			if !callable.Empty() || sbt.Buffer(RegionCallable) != nil {
				t.Errorf("callable region should be empty")
			}

			// Each handle lands in its region at aligned strides in group order.
			for region := RegionRaygen; region <= RegionHit; region++ {
				first, _ := p.Groups.First(region)
				data := sbt.Buffer(region).Mapped()[sbt.Offset(region):]
				for j := uint32(0); j < p.Groups.Count(region); j++ {
					hdl := data[uint64(j)*aligned : uint64(j)*aligned+32]
					for _, b := range hdl {
						if b != byte(first+j+1) {
							t.Fatalf("%s slot %d holds handle %d, want %d", region, j, b, first+j+1)
						}
					}
				}
			}
		})
	}
}

func TestShaderBindingTableRegionsAreBaseAligned(t *testing.T) {
	dev, ctx := newTestContext()
	dev.addressSkew = 0x20
	v := VariantShadows()
	p, err := NewPipelineAssembler(dev, NewLayoutCache(dev)).Assemble(PipelineDesc{Variant: v, Shaders: fakeShaders(v)})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	sbt, err := BuildShaderBindingTable(dev, ctx.Allocator, p)
	if err != nil {
		t.Fatalf("BuildShaderBindingTable: %v", err)
	}
	base := uint64(dev.props.ShaderGroupBaseAlignment)
	for region := RegionRaygen; region <= RegionHit; region++ {
		r := sbt.Region(region)
		if r.DeviceAddress%base != 0 {
			t.Errorf("%s address %#x not aligned to %d", region, r.DeviceAddress, base)
		}
		buf := sbt.Buffer(region)
		if got := buf.DeviceAddress() + sbt.Offset(region); got != r.DeviceAddress {
			t.Errorf("%s offset %d does not reach the region address", region, sbt.Offset(region))
		}
		if sbt.Offset(region)+r.Size > buf.Size {
			t.Errorf("%s region overruns its buffer", region)
		}
		first, _ := p.Groups.First(region)
		if got := buf.Mapped()[sbt.Offset(region)]; got != byte(first+1) {
			t.Errorf("%s first handle byte = %d, want %d", region, got, first+1)
		}
	}
}

package raytracing

import (
	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// PipelineDesc is the input of one pipeline assembly.
type PipelineDesc struct {
	Variant *Variant
	// TextureCount is the number of flattened textures across all models.
	TextureCount uint32
	// Shaders maps a compiled shader file name to its SPIR-V words.
	Shaders map[string][]uint32
	// MaxRecursionDepth overrides the variant depth when non zero.
	MaxRecursionDepth uint32
}

// Pipeline is the pipeline, pipeline layout and descriptor set layout triple.
type Pipeline struct {
	Handle            metadata.PipelineHandle
	Layout            metadata.PipelineLayoutHandle
	SetLayout         metadata.DescriptorSetLayoutHandle
	Bindings          BindingTable
	Groups            ShaderGroups
	MaxRecursionDepth uint32
	Variant           *Variant
}

// PipelineAssembler creates ray tracing pipelines for variants, sharing
// descriptor set layouts through its cache.
type PipelineAssembler struct {
	device PipelineDevice
	cache  *LayoutCache
}

func NewPipelineAssembler(device PipelineDevice, cache *LayoutCache) *PipelineAssembler {
	return &PipelineAssembler{device: device, cache: cache}
}

func (a *PipelineAssembler) Assemble(desc PipelineDesc) (*Pipeline, error) {
	v := desc.Variant
	if v == nil {
		return nil, core.NewPreconditionError("pipeline assembly without a variant")
	}
	artifact := "pipeline[" + v.Name + "]"
	if err := v.Groups.Validate(v.Shaders); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "%s: shader groups", artifact), core.ErrPrecondition)
	}

	depth := v.MaxRecursionDepth
	if desc.MaxRecursionDepth != 0 {
		depth = desc.MaxRecursionDepth
	}
	props := a.device.RayTracingProperties()
	if depth > props.MaxRayRecursionDepth {
		err := errors.Mark(
			errors.Newf("%s needs ray recursion depth %d, device supports %d", artifact, depth, props.MaxRayRecursionDepth),
			core.ErrMissingCapability)
		core.LogError(err.Error())
		return nil, err
	}

	start := hrtime.Now()
	stages := make([]metadata.ShaderStageInfo, 0, len(v.Shaders))
	defer func() {
		// modules are only needed until the pipeline exists
		for _, s := range stages {
			a.device.DestroyShaderModule(s.Module)
		}
	}()
	for _, shader := range v.Shaders {
		code, ok := desc.Shaders[shader.Name]
		if !ok || len(code) == 0 {
			return nil, core.NewResourceError(artifact, "load "+shader.Name, errors.New("shader code missing"))
		}
		module, err := a.device.CreateShaderModule(code)
		if err != nil {
			return nil, core.NewResourceError(artifact, "vkCreateShaderModule("+shader.Name+")", err)
		}
		stages = append(stages, metadata.ShaderStageInfo{Module: module, Stage: shader.Stage})
	}

	bindings := NewBindingTable(v, desc.TextureCount)
	setLayout, err := a.cache.Acquire(bindings.Descriptors())
	if err != nil {
		return nil, err
	}
	layout, err := a.device.CreatePipelineLayout(setLayout)
	if err != nil {
		a.cache.Release(setLayout)
		return nil, core.NewResourceError(artifact, "vkCreatePipelineLayout", err)
	}
	handle, err := a.device.CreateRayTracingPipeline(metadata.RayTracingPipelineInfo{
		Name:              artifact,
		Stages:            stages,
		Groups:            v.Groups.infos(),
		Layout:            layout,
		MaxRecursionDepth: depth,
	})
	if err != nil {
		a.device.DestroyPipelineLayout(layout)
		a.cache.Release(setLayout)
		return nil, core.NewResourceError(artifact, "vkCreateRayTracingPipelinesKHR", err)
	}

	core.LogInfo("Created %s: %d stages, %d groups, %d textures, depth %d in %v",
		artifact, len(stages), len(v.Groups), bindings.VariableCount(), depth, hrtime.Since(start))
	return &Pipeline{
		Handle:            handle,
		Layout:            layout,
		SetLayout:         setLayout,
		Bindings:          bindings,
		Groups:            v.Groups,
		MaxRecursionDepth: depth,
		Variant:           v,
	}, nil
}

// Destroy releases the pipeline, its layout and its cached set layout.
func (a *PipelineAssembler) Destroy(p *Pipeline) {
	if p == nil {
		return
	}
	if p.Handle != metadata.NullHandle {
		a.device.DestroyPipeline(p.Handle)
	}
	if p.Layout != metadata.NullHandle {
		a.device.DestroyPipelineLayout(p.Layout)
	}
	if p.SetLayout != metadata.NullHandle {
		a.cache.Release(p.SetLayout)
	}
	*p = Pipeline{}
}

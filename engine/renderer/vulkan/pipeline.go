package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func (vc *VulkanContext) RayTracingProperties() metadata.RayTracingProperties {
	return vc.rayTracing
}

func (vc *VulkanContext) CreateShaderModule(code []uint32) (metadata.ShaderModuleHandle, error) {
	if len(code) == 0 {
		return metadata.NullHandle, errors.New("empty SPIR-V module")
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(vc.logical(), &info, vc.Allocator, &module); res != vk.Success {
		return metadata.NullHandle, checkResult("vkCreateShaderModule", res)
	}
	return metadata.ShaderModuleHandle(vc.modules.add(module)), nil
}

func (vc *VulkanContext) DestroyShaderModule(module metadata.ShaderModuleHandle) {
	if m, ok := vc.modules.remove(uint64(module)); ok {
		vk.DestroyShaderModule(vc.logical(), m, vc.Allocator)
	}
}

func (vc *VulkanContext) CreatePipelineLayout(setLayout metadata.DescriptorSetLayoutHandle) (metadata.PipelineLayoutHandle, error) {
	sl, ok := vc.setLayouts.get(uint64(setLayout))
	if !ok {
		return metadata.NullHandle, errors.Newf("unknown descriptor set layout %d", setLayout)
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{sl.handle},
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(vc.logical(), &info, vc.Allocator, &layout); res != vk.Success {
		return metadata.NullHandle, checkResult("vkCreatePipelineLayout", res)
	}
	return metadata.PipelineLayoutHandle(vc.pipelineLayouts.add(layout)), nil
}

func (vc *VulkanContext) DestroyPipelineLayout(layout metadata.PipelineLayoutHandle) {
	if l, ok := vc.pipelineLayouts.remove(uint64(layout)); ok {
		vk.DestroyPipelineLayout(vc.logical(), l, vc.Allocator)
	}
}

func (vc *VulkanContext) CreateRayTracingPipeline(info metadata.RayTracingPipelineInfo) (metadata.PipelineHandle, error) {
	modules := make([]vk.ShaderModule, len(info.Stages))
	stages := make([]metadata.ShaderStage, len(info.Stages))
	for i, s := range info.Stages {
		m, ok := vc.modules.get(uint64(s.Module))
		if !ok {
			return metadata.NullHandle, errors.Newf("stage %d references unknown shader module %d", i, s.Module)
		}
		modules[i] = m
		stages[i] = s.Stage
	}
	layout, ok := vc.pipelineLayouts.get(uint64(info.Layout))
	if !ok {
		return metadata.NullHandle, errors.Newf("unknown pipeline layout %d", info.Layout)
	}

	pipeline, res := createRayTracingPipeline(vc.logical(), layout, modules, stages, info.Groups, info.MaxRecursionDepth)
	if err := checkResult("vkCreateRayTracingPipelinesKHR", res); err != nil {
		return metadata.NullHandle, err
	}
	core.LogDebug("Ray tracing pipeline '%s' created: %d stages, %d groups.", info.Name, len(info.Stages), len(info.Groups))
	return metadata.PipelineHandle(vc.pipelines.add(pipeline)), nil
}

func (vc *VulkanContext) GetShaderGroupHandles(pipeline metadata.PipelineHandle, firstGroup, groupCount uint32, dataSize int) ([]byte, error) {
	p, ok := vc.pipelines.get(uint64(pipeline))
	if !ok {
		return nil, errors.Newf("unknown pipeline %d", pipeline)
	}
	data := make([]byte, dataSize)
	if err := checkResult("vkGetRayTracingShaderGroupHandlesKHR", shaderGroupHandles(vc.logical(), p, firstGroup, groupCount, data)); err != nil {
		return nil, err
	}
	return data, nil
}

func (vc *VulkanContext) DestroyPipeline(pipeline metadata.PipelineHandle) {
	if p, ok := vc.pipelines.remove(uint64(pipeline)); ok {
		vk.DestroyPipeline(vc.logical(), p, vc.Allocator)
	}
}

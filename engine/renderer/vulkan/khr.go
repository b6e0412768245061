package vulkan

/*
#cgo CFLAGS: -DVK_NO_PROTOTYPES
#include <stdlib.h>
#include <string.h>
#include <vulkan/vulkan.h>

static PFN_vkGetPhysicalDeviceProperties2 pfnGetPhysicalDeviceProperties2;
static PFN_vkGetPhysicalDeviceFeatures2 pfnGetPhysicalDeviceFeatures2;
static PFN_vkGetDeviceProcAddr pfnGetDeviceProcAddr;

static PFN_vkGetBufferDeviceAddressKHR pfnGetBufferDeviceAddress;
static PFN_vkGetAccelerationStructureBuildSizesKHR pfnGetAccelerationStructureBuildSizes;
static PFN_vkCreateAccelerationStructureKHR pfnCreateAccelerationStructure;
static PFN_vkDestroyAccelerationStructureKHR pfnDestroyAccelerationStructure;
static PFN_vkGetAccelerationStructureDeviceAddressKHR pfnGetAccelerationStructureDeviceAddress;
static PFN_vkCmdBuildAccelerationStructuresKHR pfnCmdBuildAccelerationStructures;
static PFN_vkCreateRayTracingPipelinesKHR pfnCreateRayTracingPipelines;
static PFN_vkGetRayTracingShaderGroupHandlesKHR pfnGetRayTracingShaderGroupHandles;
static PFN_vkCmdTraceRaysKHR pfnCmdTraceRays;

static int lumenLoadInstance(void* gipa, VkInstance instance) {
	PFN_vkGetInstanceProcAddr get = (PFN_vkGetInstanceProcAddr)gipa;
	pfnGetPhysicalDeviceProperties2 = (PFN_vkGetPhysicalDeviceProperties2)get(instance, "vkGetPhysicalDeviceProperties2");
	pfnGetPhysicalDeviceFeatures2 = (PFN_vkGetPhysicalDeviceFeatures2)get(instance, "vkGetPhysicalDeviceFeatures2");
	pfnGetDeviceProcAddr = (PFN_vkGetDeviceProcAddr)get(instance, "vkGetDeviceProcAddr");
	return pfnGetPhysicalDeviceProperties2 && pfnGetPhysicalDeviceFeatures2 && pfnGetDeviceProcAddr;
}

// Returns the name of the first entry point that failed to load, or NULL.
static const char* lumenLoadDevice(VkDevice device) {
#define LOAD(var, name) var = (__typeof__(var))pfnGetDeviceProcAddr(device, name); if (!var) return name;
	LOAD(pfnGetBufferDeviceAddress, "vkGetBufferDeviceAddressKHR")
	LOAD(pfnGetAccelerationStructureBuildSizes, "vkGetAccelerationStructureBuildSizesKHR")
	LOAD(pfnCreateAccelerationStructure, "vkCreateAccelerationStructureKHR")
	LOAD(pfnDestroyAccelerationStructure, "vkDestroyAccelerationStructureKHR")
	LOAD(pfnGetAccelerationStructureDeviceAddress, "vkGetAccelerationStructureDeviceAddressKHR")
	LOAD(pfnCmdBuildAccelerationStructures, "vkCmdBuildAccelerationStructuresKHR")
	LOAD(pfnCreateRayTracingPipelines, "vkCreateRayTracingPipelinesKHR")
	LOAD(pfnGetRayTracingShaderGroupHandles, "vkGetRayTracingShaderGroupHandlesKHR")
	LOAD(pfnCmdTraceRays, "vkCmdTraceRaysKHR")
#undef LOAD
	return NULL;
}

typedef struct {
	uint32_t handleSize;
	uint32_t handleAlignment;
	uint32_t baseAlignment;
	uint32_t maxRecursionDepth;
	uint32_t apiVersion;
} lumenRayTracingProperties;

static void lumenQueryRayTracingProperties(VkPhysicalDevice pd, lumenRayTracingProperties* out) {
	VkPhysicalDeviceRayTracingPipelinePropertiesKHR rt;
	memset(&rt, 0, sizeof(rt));
	rt.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_RAY_TRACING_PIPELINE_PROPERTIES_KHR;
	VkPhysicalDeviceProperties2 props;
	memset(&props, 0, sizeof(props));
	props.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_PROPERTIES_2;
	props.pNext = &rt;
	pfnGetPhysicalDeviceProperties2(pd, &props);
	out->handleSize = rt.shaderGroupHandleSize;
	out->handleAlignment = rt.shaderGroupHandleAlignment;
	out->baseAlignment = rt.shaderGroupBaseAlignment;
	out->maxRecursionDepth = rt.maxRayRecursionDepth;
	out->apiVersion = props.properties.apiVersion;
}

typedef struct {
	VkPhysicalDeviceFeatures2 features2;
	VkPhysicalDeviceBufferDeviceAddressFeatures address;
	VkPhysicalDeviceDescriptorIndexingFeatures indexing;
	VkPhysicalDeviceRayTracingPipelineFeaturesKHR pipeline;
	VkPhysicalDeviceAccelerationStructureFeaturesKHR acceleration;
} lumenFeatureChain;

static void lumenLinkFeatureChain(lumenFeatureChain* c) {
	c->features2.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_FEATURES_2;
	c->address.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_BUFFER_DEVICE_ADDRESS_FEATURES;
	c->indexing.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_DESCRIPTOR_INDEXING_FEATURES;
	c->pipeline.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_RAY_TRACING_PIPELINE_FEATURES_KHR;
	c->acceleration.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_ACCELERATION_STRUCTURE_FEATURES_KHR;
	c->features2.pNext = &c->address;
	c->address.pNext = &c->indexing;
	c->indexing.pNext = &c->pipeline;
	c->pipeline.pNext = &c->acceleration;
	c->acceleration.pNext = NULL;
}

typedef struct {
	uint32_t samplerAnisotropy;
	uint32_t bufferDeviceAddress;
	uint32_t rayTracingPipeline;
	uint32_t accelerationStructure;
	uint32_t runtimeDescriptorArray;
	uint32_t variableDescriptorCount;
	uint32_t partiallyBound;
	uint32_t sampledImageNonUniformIndexing;
} lumenFeatures;

static void lumenQueryFeatures(VkPhysicalDevice pd, lumenFeatures* out) {
	lumenFeatureChain c;
	memset(&c, 0, sizeof(c));
	lumenLinkFeatureChain(&c);
	pfnGetPhysicalDeviceFeatures2(pd, &c.features2);
	out->samplerAnisotropy = c.features2.features.samplerAnisotropy;
	out->bufferDeviceAddress = c.address.bufferDeviceAddress;
	out->rayTracingPipeline = c.pipeline.rayTracingPipeline;
	out->accelerationStructure = c.acceleration.accelerationStructure;
	out->runtimeDescriptorArray = c.indexing.runtimeDescriptorArray;
	out->variableDescriptorCount = c.indexing.descriptorBindingVariableDescriptorCount;
	out->partiallyBound = c.indexing.descriptorBindingPartiallyBound;
	out->sampledImageNonUniformIndexing = c.indexing.shaderSampledImageArrayNonUniformIndexing;
}

// The chain is passed as VkDeviceCreateInfo.pNext and freed once the device exists.
static lumenFeatureChain* lumenNewFeatureChain(void) {
	lumenFeatureChain* c = calloc(1, sizeof(lumenFeatureChain));
	lumenLinkFeatureChain(c);
	c->features2.features.samplerAnisotropy = VK_TRUE;
	c->address.bufferDeviceAddress = VK_TRUE;
	c->indexing.runtimeDescriptorArray = VK_TRUE;
	c->indexing.descriptorBindingVariableDescriptorCount = VK_TRUE;
	c->indexing.descriptorBindingPartiallyBound = VK_TRUE;
	c->indexing.shaderSampledImageArrayNonUniformIndexing = VK_TRUE;
	c->pipeline.rayTracingPipeline = VK_TRUE;
	c->acceleration.accelerationStructure = VK_TRUE;
	return c;
}

static VkMemoryAllocateFlagsInfo lumenAddressFlags = {
	VK_STRUCTURE_TYPE_MEMORY_ALLOCATE_FLAGS_INFO, NULL, VK_MEMORY_ALLOCATE_DEVICE_ADDRESS_BIT, 0,
};

static void* lumenAddressAllocateFlags(void) {
	return &lumenAddressFlags;
}

static VkDescriptorSetLayoutBindingFlagsCreateInfo* lumenNewBindingFlags(uint32_t count, uint32_t variableIndex) {
	VkDescriptorSetLayoutBindingFlagsCreateInfo* info = calloc(1, sizeof(VkDescriptorSetLayoutBindingFlagsCreateInfo));
	VkDescriptorBindingFlags* flags = calloc(count, sizeof(VkDescriptorBindingFlags));
	flags[variableIndex] = VK_DESCRIPTOR_BINDING_VARIABLE_DESCRIPTOR_COUNT_BIT | VK_DESCRIPTOR_BINDING_PARTIALLY_BOUND_BIT;
	info->sType = VK_STRUCTURE_TYPE_DESCRIPTOR_SET_LAYOUT_BINDING_FLAGS_CREATE_INFO;
	info->bindingCount = count;
	info->pBindingFlags = flags;
	return info;
}

static void lumenFreeBindingFlags(VkDescriptorSetLayoutBindingFlagsCreateInfo* info) {
	free((void*)info->pBindingFlags);
	free(info);
}

static VkDescriptorSetVariableDescriptorCountAllocateInfo* lumenNewVariableCount(uint32_t count) {
	VkDescriptorSetVariableDescriptorCountAllocateInfo* info = calloc(1, sizeof(VkDescriptorSetVariableDescriptorCountAllocateInfo));
	uint32_t* counts = calloc(1, sizeof(uint32_t));
	counts[0] = count;
	info->sType = VK_STRUCTURE_TYPE_DESCRIPTOR_SET_VARIABLE_DESCRIPTOR_COUNT_ALLOCATE_INFO;
	info->descriptorSetCount = 1;
	info->pDescriptorCounts = counts;
	return info;
}

static void lumenFreeVariableCount(VkDescriptorSetVariableDescriptorCountAllocateInfo* info) {
	free((void*)info->pDescriptorCounts);
	free(info);
}

static VkWriteDescriptorSetAccelerationStructureKHR* lumenNewAccelerationWrite(uint32_t count) {
	VkWriteDescriptorSetAccelerationStructureKHR* w = calloc(1, sizeof(VkWriteDescriptorSetAccelerationStructureKHR));
	w->sType = VK_STRUCTURE_TYPE_WRITE_DESCRIPTOR_SET_ACCELERATION_STRUCTURE_KHR;
	w->accelerationStructureCount = count;
	w->pAccelerationStructures = calloc(count, sizeof(VkAccelerationStructureKHR));
	return w;
}

static void lumenSetAccelerationWrite(VkWriteDescriptorSetAccelerationStructureKHR* w, uint32_t i, VkAccelerationStructureKHR as) {
	((VkAccelerationStructureKHR*)w->pAccelerationStructures)[i] = as;
}

static void lumenFreeAccelerationWrite(VkWriteDescriptorSetAccelerationStructureKHR* w) {
	free((void*)w->pAccelerationStructures);
	free(w);
}

static VkDeviceAddress lumenBufferDeviceAddress(VkDevice device, VkBuffer buffer) {
	VkBufferDeviceAddressInfo info;
	memset(&info, 0, sizeof(info));
	info.sType = VK_STRUCTURE_TYPE_BUFFER_DEVICE_ADDRESS_INFO;
	info.buffer = buffer;
	return pfnGetBufferDeviceAddress(device, &info);
}

static VkAccelerationStructureGeometryKHR* lumenNewGeometries(uint32_t count) {
	VkAccelerationStructureGeometryKHR* g = calloc(count ? count : 1, sizeof(VkAccelerationStructureGeometryKHR));
	for (uint32_t i = 0; i < count; i++) {
		g[i].sType = VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_GEOMETRY_KHR;
	}
	return g;
}

static void lumenSetTriangles(VkAccelerationStructureGeometryKHR* g, uint32_t i, VkGeometryFlagsKHR flags,
		VkFormat format, VkDeviceAddress vertex, VkDeviceSize stride, uint32_t maxVertex,
		VkDeviceAddress index, VkDeviceAddress transform) {
	VkAccelerationStructureGeometryTrianglesDataKHR* t = &g[i].geometry.triangles;
	g[i].geometryType = VK_GEOMETRY_TYPE_TRIANGLES_KHR;
	g[i].flags = flags;
	t->sType = VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_GEOMETRY_TRIANGLES_DATA_KHR;
	t->vertexFormat = format;
	t->vertexData.deviceAddress = vertex;
	t->vertexStride = stride;
	t->maxVertex = maxVertex;
	t->indexType = VK_INDEX_TYPE_UINT32;
	t->indexData.deviceAddress = index;
	t->transformData.deviceAddress = transform;
}

static void lumenSetInstances(VkAccelerationStructureGeometryKHR* g, uint32_t i, VkGeometryFlagsKHR flags, VkDeviceAddress data) {
	VkAccelerationStructureGeometryInstancesDataKHR* in = &g[i].geometry.instances;
	g[i].geometryType = VK_GEOMETRY_TYPE_INSTANCES_KHR;
	g[i].flags = flags;
	in->sType = VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_GEOMETRY_INSTANCES_DATA_KHR;
	in->arrayOfPointers = VK_FALSE;
	in->data.deviceAddress = data;
}

static void lumenFillBuildInfo(VkAccelerationStructureBuildGeometryInfoKHR* info,
		VkAccelerationStructureTypeKHR type, VkBuildAccelerationStructureFlagsKHR flags,
		VkBuildAccelerationStructureModeKHR mode, VkAccelerationStructureKHR src, VkAccelerationStructureKHR dst,
		uint32_t count, const VkAccelerationStructureGeometryKHR* geometries, VkDeviceAddress scratch) {
	memset(info, 0, sizeof(*info));
	info->sType = VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_BUILD_GEOMETRY_INFO_KHR;
	info->type = type;
	info->flags = flags;
	info->mode = mode;
	info->srcAccelerationStructure = src;
	info->dstAccelerationStructure = dst;
	info->geometryCount = count;
	info->pGeometries = geometries;
	info->scratchData.deviceAddress = scratch;
}

static void lumenBuildSizes(VkDevice device, const VkAccelerationStructureBuildGeometryInfoKHR* info,
		const uint32_t* maxPrimitiveCounts, VkAccelerationStructureBuildSizesInfoKHR* out) {
	memset(out, 0, sizeof(*out));
	out->sType = VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_BUILD_SIZES_INFO_KHR;
	pfnGetAccelerationStructureBuildSizes(device, VK_ACCELERATION_STRUCTURE_BUILD_TYPE_DEVICE_KHR, info, maxPrimitiveCounts, out);
}

static VkResult lumenCreateAccelerationStructure(VkDevice device, VkBuffer buffer, VkDeviceSize size,
		VkAccelerationStructureTypeKHR type, VkAccelerationStructureKHR* out) {
	VkAccelerationStructureCreateInfoKHR info;
	memset(&info, 0, sizeof(info));
	info.sType = VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_CREATE_INFO_KHR;
	info.buffer = buffer;
	info.size = size;
	info.type = type;
	return pfnCreateAccelerationStructure(device, &info, NULL, out);
}

static VkDeviceAddress lumenAccelerationStructureAddress(VkDevice device, VkAccelerationStructureKHR as) {
	VkAccelerationStructureDeviceAddressInfoKHR info;
	memset(&info, 0, sizeof(info));
	info.sType = VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_DEVICE_ADDRESS_INFO_KHR;
	info.accelerationStructure = as;
	return pfnGetAccelerationStructureDeviceAddress(device, &info);
}

static void lumenDestroyAccelerationStructure(VkDevice device, VkAccelerationStructureKHR as) {
	pfnDestroyAccelerationStructure(device, as, NULL);
}

static void lumenCmdBuildAccelerationStructure(VkCommandBuffer cmd, const VkAccelerationStructureBuildGeometryInfoKHR* info,
		const VkAccelerationStructureBuildRangeInfoKHR* ranges) {
	pfnCmdBuildAccelerationStructures(cmd, 1, info, &ranges);
}

// groups holds five values per group: type, general, closest hit, any hit, intersection.
static VkResult lumenCreateRayTracingPipeline(VkDevice device, VkPipelineLayout layout,
		uint32_t stageCount, const VkShaderModule* modules, const uint32_t* stages,
		uint32_t groupCount, const uint32_t* groups, uint32_t maxDepth, VkPipeline* out) {
	VkPipelineShaderStageCreateInfo* stageInfos = calloc(stageCount ? stageCount : 1, sizeof(VkPipelineShaderStageCreateInfo));
	VkRayTracingShaderGroupCreateInfoKHR* groupInfos = calloc(groupCount ? groupCount : 1, sizeof(VkRayTracingShaderGroupCreateInfoKHR));
	for (uint32_t i = 0; i < stageCount; i++) {
		stageInfos[i].sType = VK_STRUCTURE_TYPE_PIPELINE_SHADER_STAGE_CREATE_INFO;
		stageInfos[i].stage = (VkShaderStageFlagBits)stages[i];
		stageInfos[i].module = modules[i];
		stageInfos[i].pName = "main";
	}
	for (uint32_t i = 0; i < groupCount; i++) {
		const uint32_t* g = &groups[i * 5];
		groupInfos[i].sType = VK_STRUCTURE_TYPE_RAY_TRACING_SHADER_GROUP_CREATE_INFO_KHR;
		groupInfos[i].type = (VkRayTracingShaderGroupTypeKHR)g[0];
		groupInfos[i].generalShader = g[1];
		groupInfos[i].closestHitShader = g[2];
		groupInfos[i].anyHitShader = g[3];
		groupInfos[i].intersectionShader = g[4];
	}
	VkRayTracingPipelineCreateInfoKHR info;
	memset(&info, 0, sizeof(info));
	info.sType = VK_STRUCTURE_TYPE_RAY_TRACING_PIPELINE_CREATE_INFO_KHR;
	info.stageCount = stageCount;
	info.pStages = stageInfos;
	info.groupCount = groupCount;
	info.pGroups = groupInfos;
	info.maxPipelineRayRecursionDepth = maxDepth;
	info.layout = layout;
	VkResult res = pfnCreateRayTracingPipelines(device, VK_NULL_HANDLE, VK_NULL_HANDLE, 1, &info, NULL, out);
	free(stageInfos);
	free(groupInfos);
	return res;
}

static VkResult lumenShaderGroupHandles(VkDevice device, VkPipeline pipeline, uint32_t first, uint32_t count, size_t size, void* data) {
	return pfnGetRayTracingShaderGroupHandles(device, pipeline, first, count, size, data);
}

// regions holds raygen, miss, hit and callable in that order.
static void lumenCmdTraceRays(VkCommandBuffer cmd, const VkStridedDeviceAddressRegionKHR* regions, uint32_t w, uint32_t h, uint32_t d) {
	pfnCmdTraceRays(cmd, &regions[0], &regions[1], &regions[2], &regions[3], w, h, d);
}
*/
import "C"

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// Entry points of VK_KHR_acceleration_structure, VK_KHR_ray_tracing_pipeline and
// VK_KHR_buffer_device_address are resolved here through vkGetDeviceProcAddr.

func loadInstanceFunctions(procAddr unsafe.Pointer, instance vk.Instance) error {
	if C.lumenLoadInstance(procAddr, cInstance(instance)) == 0 {
		return errors.New("vkGetPhysicalDeviceProperties2 or vkGetPhysicalDeviceFeatures2 is unavailable, Vulkan 1.1 is required")
	}
	return nil
}

func loadDeviceFunctions(device vk.Device) error {
	if missing := C.lumenLoadDevice(cDevice(device)); missing != nil {
		return errors.Newf("device entry point %s could not be loaded", C.GoString(missing))
	}
	return nil
}

func cInstance(i vk.Instance) C.VkInstance { return C.VkInstance(unsafe.Pointer(i)) }
func cPhysicalDevice(p vk.PhysicalDevice) C.VkPhysicalDevice {
	return C.VkPhysicalDevice(unsafe.Pointer(p))
}
func cDevice(d vk.Device) C.VkDevice { return C.VkDevice(unsafe.Pointer(d)) }
func cBuffer(b vk.Buffer) C.VkBuffer { return C.VkBuffer(unsafe.Pointer(b)) }
func cCommandBuffer(c vk.CommandBuffer) C.VkCommandBuffer {
	return C.VkCommandBuffer(unsafe.Pointer(c))
}
func cShaderModule(m vk.ShaderModule) C.VkShaderModule { return C.VkShaderModule(unsafe.Pointer(m)) }
func cPipelineLayout(l vk.PipelineLayout) C.VkPipelineLayout {
	return C.VkPipelineLayout(unsafe.Pointer(l))
}
func cPipeline(p vk.Pipeline) C.VkPipeline { return C.VkPipeline(unsafe.Pointer(p)) }

func queryRayTracingProperties(pd vk.PhysicalDevice) (metadata.RayTracingProperties, uint32) {
	var out C.lumenRayTracingProperties
	C.lumenQueryRayTracingProperties(cPhysicalDevice(pd), &out)
	return metadata.RayTracingProperties{
		ShaderGroupHandleSize:      uint32(out.handleSize),
		ShaderGroupHandleAlignment: uint32(out.handleAlignment),
		ShaderGroupBaseAlignment:   uint32(out.baseAlignment),
		MaxRayRecursionDepth:       uint32(out.maxRecursionDepth),
	}, uint32(out.apiVersion)
}

// DeviceFeatures lists the feature bits a ray tracing device must expose.
type DeviceFeatures struct {
	SamplerAnisotropy              bool
	BufferDeviceAddress            bool
	RayTracingPipeline             bool
	AccelerationStructure          bool
	RuntimeDescriptorArray         bool
	VariableDescriptorCount        bool
	PartiallyBound                 bool
	SampledImageNonUniformIndexing bool
}

func queryDeviceFeatures(pd vk.PhysicalDevice) DeviceFeatures {
	var out C.lumenFeatures
	C.lumenQueryFeatures(cPhysicalDevice(pd), &out)
	return DeviceFeatures{
		SamplerAnisotropy:              out.samplerAnisotropy != 0,
		BufferDeviceAddress:            out.bufferDeviceAddress != 0,
		RayTracingPipeline:             out.rayTracingPipeline != 0,
		AccelerationStructure:          out.accelerationStructure != 0,
		RuntimeDescriptorArray:         out.runtimeDescriptorArray != 0,
		VariableDescriptorCount:        out.variableDescriptorCount != 0,
		PartiallyBound:                 out.partiallyBound != 0,
		SampledImageNonUniformIndexing: out.sampledImageNonUniformIndexing != 0,
	}
}

// featureChain is the pNext chain enabling every feature in DeviceFeatures.
type featureChain struct {
	c *C.lumenFeatureChain
}

func newFeatureChain() featureChain {
	return featureChain{c: C.lumenNewFeatureChain()}
}

func (f featureChain) pointer() unsafe.Pointer { return unsafe.Pointer(&f.c.features2) }

func (f featureChain) free() { C.free(unsafe.Pointer(f.c)) }

func addressAllocateFlags() unsafe.Pointer { return C.lumenAddressAllocateFlags() }

type bindingFlags struct {
	info *C.VkDescriptorSetLayoutBindingFlagsCreateInfo
}

func newBindingFlags(count, variableIndex int) bindingFlags {
	return bindingFlags{info: C.lumenNewBindingFlags(C.uint32_t(count), C.uint32_t(variableIndex))}
}

func (b bindingFlags) pointer() unsafe.Pointer { return unsafe.Pointer(b.info) }
func (b bindingFlags) free()                   { C.lumenFreeBindingFlags(b.info) }

type variableCount struct {
	info *C.VkDescriptorSetVariableDescriptorCountAllocateInfo
}

func newVariableCount(count uint32) variableCount {
	return variableCount{info: C.lumenNewVariableCount(C.uint32_t(count))}
}

func (v variableCount) pointer() unsafe.Pointer { return unsafe.Pointer(v.info) }
func (v variableCount) free()                   { C.lumenFreeVariableCount(v.info) }

type accelerationWrite struct {
	info *C.VkWriteDescriptorSetAccelerationStructureKHR
}

func newAccelerationWrite(handles []C.VkAccelerationStructureKHR) accelerationWrite {
	w := accelerationWrite{info: C.lumenNewAccelerationWrite(C.uint32_t(len(handles)))}
	for i, h := range handles {
		C.lumenSetAccelerationWrite(w.info, C.uint32_t(i), h)
	}
	return w
}

func (a accelerationWrite) pointer() unsafe.Pointer { return unsafe.Pointer(a.info) }
func (a accelerationWrite) free()                   { C.lumenFreeAccelerationWrite(a.info) }

func bufferDeviceAddress(device vk.Device, buffer vk.Buffer) uint64 {
	return uint64(C.lumenBufferDeviceAddress(cDevice(device), cBuffer(buffer)))
}

// buildInfo owns the C geometry array referenced by a build geometry info.
type buildInfo struct {
	info       C.VkAccelerationStructureBuildGeometryInfoKHR
	geometries *C.VkAccelerationStructureGeometryKHR
}

func newBuildInfo(info metadata.BuildGeometryInfo, src, dst C.VkAccelerationStructureKHR) (*buildInfo, error) {
	n := len(info.Geometries)
	b := &buildInfo{geometries: C.lumenNewGeometries(C.uint32_t(n))}
	for i, g := range info.Geometries {
		switch g.Type {
		case metadata.GeometryTypeTriangles:
			t := g.Triangles
			C.lumenSetTriangles(b.geometries, C.uint32_t(i), C.VkGeometryFlagsKHR(g.Flags),
				C.VkFormat(t.VertexFormat), C.VkDeviceAddress(t.VertexAddress), C.VkDeviceSize(t.VertexStride),
				C.uint32_t(t.MaxVertex), C.VkDeviceAddress(t.IndexAddress), C.VkDeviceAddress(t.TransformAddress))
		case metadata.GeometryTypeInstances:
			C.lumenSetInstances(b.geometries, C.uint32_t(i), C.VkGeometryFlagsKHR(g.Flags), C.VkDeviceAddress(g.Instances.Address))
		default:
			b.free()
			return nil, errors.Newf("geometry type %d has no acceleration structure input", g.Type)
		}
	}
	C.lumenFillBuildInfo(&b.info,
		C.VkAccelerationStructureTypeKHR(info.Type), C.VkBuildAccelerationStructureFlagsKHR(info.Flags),
		C.VkBuildAccelerationStructureModeKHR(info.Mode), src, dst,
		C.uint32_t(n), b.geometries, C.VkDeviceAddress(info.ScratchAddress))
	return b, nil
}

func (b *buildInfo) free() { C.free(unsafe.Pointer(b.geometries)) }

func buildSizes(device vk.Device, b *buildInfo, maxPrimitiveCounts []uint32) metadata.BuildSizes {
	var out C.VkAccelerationStructureBuildSizesInfoKHR
	var counts *C.uint32_t
	if len(maxPrimitiveCounts) > 0 {
		counts = (*C.uint32_t)(unsafe.Pointer(&maxPrimitiveCounts[0]))
	}
	C.lumenBuildSizes(cDevice(device), &b.info, counts, &out)
	return metadata.BuildSizes{
		AccelerationStructureSize: uint64(out.accelerationStructureSize),
		UpdateScratchSize:         uint64(out.updateScratchSize),
		BuildScratchSize:          uint64(out.buildScratchSize),
	}
}

func createAccelerationStructure(device vk.Device, buffer vk.Buffer, size uint64, kind metadata.AccelerationStructureType) (C.VkAccelerationStructureKHR, vk.Result) {
	var out C.VkAccelerationStructureKHR
	res := C.lumenCreateAccelerationStructure(cDevice(device), cBuffer(buffer), C.VkDeviceSize(size), C.VkAccelerationStructureTypeKHR(kind), &out)
	return out, vk.Result(res)
}

func accelerationStructureAddress(device vk.Device, as C.VkAccelerationStructureKHR) uint64 {
	return uint64(C.lumenAccelerationStructureAddress(cDevice(device), as))
}

func destroyAccelerationStructure(device vk.Device, as C.VkAccelerationStructureKHR) {
	C.lumenDestroyAccelerationStructure(cDevice(device), as)
}

func cmdBuildAccelerationStructure(cmd vk.CommandBuffer, b *buildInfo, ranges []metadata.BuildRangeInfo) {
	cr := make([]C.VkAccelerationStructureBuildRangeInfoKHR, len(ranges))
	for i, r := range ranges {
		cr[i].primitiveCount = C.uint32_t(r.PrimitiveCount)
		cr[i].primitiveOffset = C.uint32_t(r.PrimitiveOffset)
		cr[i].firstVertex = C.uint32_t(r.FirstVertex)
		cr[i].transformOffset = C.uint32_t(r.TransformOffset)
	}
	var p *C.VkAccelerationStructureBuildRangeInfoKHR
	if len(cr) > 0 {
		p = &cr[0]
	}
	C.lumenCmdBuildAccelerationStructure(cCommandBuffer(cmd), &b.info, p)
}

func createRayTracingPipeline(device vk.Device, layout vk.PipelineLayout, modules []vk.ShaderModule, stages []metadata.ShaderStage, groups []metadata.ShaderGroupInfo, maxDepth uint32) (vk.Pipeline, vk.Result) {
	cModules := (*C.VkShaderModule)(C.calloc(C.size_t(len(modules)+1), C.size_t(unsafe.Sizeof(C.VkShaderModule(nil)))))
	defer C.free(unsafe.Pointer(cModules))
	ms := unsafe.Slice(cModules, len(modules))
	for i, m := range modules {
		ms[i] = cShaderModule(m)
	}
	cStages := make([]C.uint32_t, len(stages)+1)
	for i, s := range stages {
		cStages[i] = C.uint32_t(s)
	}
	cGroups := make([]C.uint32_t, 5*len(groups)+1)
	for i, g := range groups {
		cGroups[5*i+0] = C.uint32_t(g.Type)
		cGroups[5*i+1] = C.uint32_t(g.General)
		cGroups[5*i+2] = C.uint32_t(g.ClosestHit)
		cGroups[5*i+3] = C.uint32_t(g.AnyHit)
		cGroups[5*i+4] = C.uint32_t(g.Intersection)
	}
	var out C.VkPipeline
	res := C.lumenCreateRayTracingPipeline(cDevice(device), cPipelineLayout(layout),
		C.uint32_t(len(modules)), cModules, &cStages[0],
		C.uint32_t(len(groups)), &cGroups[0], C.uint32_t(maxDepth), &out)
	return vk.Pipeline(unsafe.Pointer(out)), vk.Result(res)
}

func shaderGroupHandles(device vk.Device, pipeline vk.Pipeline, first, count uint32, data []byte) vk.Result {
	if len(data) == 0 {
		return vk.Success
	}
	return vk.Result(C.lumenShaderGroupHandles(cDevice(device), cPipeline(pipeline), C.uint32_t(first), C.uint32_t(count), C.size_t(len(data)), unsafe.Pointer(&data[0])))
}

func cmdTraceRays(cmd vk.CommandBuffer, regions [4]metadata.StridedRegion, width, height, depth uint32) {
	var cr [4]C.VkStridedDeviceAddressRegionKHR
	for i, r := range regions {
		cr[i].deviceAddress = C.VkDeviceAddress(r.DeviceAddress)
		cr[i].stride = C.VkDeviceSize(r.Stride)
		cr[i].size = C.VkDeviceSize(r.Size)
	}
	C.lumenCmdTraceRays(cCommandBuffer(cmd), &cr[0], C.uint32_t(width), C.uint32_t(height), C.uint32_t(depth))
}

type accelerationStructure = C.VkAccelerationStructureKHR

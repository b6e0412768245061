package raytracing

import (
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// BindingRole names what a descriptor binding carries.
type BindingRole int

const (
	RoleAccelerationStructure BindingRole = iota
	RoleStorageImage
	RoleUniform
	RoleGeometryNodes
	// RoleGeometryIndices holds the first geometry node of every instance.
	RoleGeometryIndices
	RoleSkinJoints
	RoleExtraTexture
	RoleTextureArray
)

func (r BindingRole) String() string {
	switch r {
	case RoleAccelerationStructure:
		return "tlas"
	case RoleStorageImage:
		return "storage-image"
	case RoleUniform:
		return "uniform"
	case RoleGeometryNodes:
		return "geometry-nodes"
	case RoleGeometryIndices:
		return "geometry-indices"
	case RoleSkinJoints:
		return "skin-joints"
	case RoleExtraTexture:
		return "extra-texture"
	case RoleTextureArray:
		return "texture-array"
	}
	return "unknown"
}

const (
	hitStages    = metadata.ShaderStageClosestHit | metadata.ShaderStageAnyHit
	bufferStages = metadata.ShaderStageClosestHit | metadata.ShaderStageAnyHit | metadata.ShaderStageRaygen
)

func (r BindingRole) descriptor() (metadata.DescriptorType, metadata.ShaderStage) {
	switch r {
	case RoleAccelerationStructure:
		return metadata.DescriptorTypeAccelerationStructure, metadata.ShaderStageRaygen | metadata.ShaderStageClosestHit
	case RoleStorageImage:
		return metadata.DescriptorTypeStorageImage, metadata.ShaderStageRaygen
	case RoleUniform:
		return metadata.DescriptorTypeUniformBuffer, metadata.ShaderStageRaygen | metadata.ShaderStageClosestHit | metadata.ShaderStageMiss
	case RoleGeometryNodes, RoleGeometryIndices, RoleSkinJoints:
		return metadata.DescriptorTypeStorageBuffer, bufferStages
	default:
		return metadata.DescriptorTypeCombinedImageSampler, hitStages
	}
}

// Binding is a descriptor binding tagged with its role.
type Binding struct {
	metadata.DescriptorBinding
	Role BindingRole
}

// BindingTable is the ordered binding list of a pipeline's single set.
type BindingTable []Binding

// NewBindingTable lays out the TLAS, storage image and uniform buffer at
// bindings 0 to 2, then the variant's extra bindings in order and, for
// textured variants, the variable-count texture array last. The array is
// declared with max(textureCount, 1) slots.
func NewBindingTable(v *Variant, textureCount uint32) BindingTable {
	roles := append([]BindingRole{RoleAccelerationStructure, RoleStorageImage, RoleUniform}, v.Extras...)
	if v.Textured {
		roles = append(roles, RoleTextureArray)
	}
	table := make(BindingTable, len(roles))
	for i, role := range roles {
		kind, stages := role.descriptor()
		b := metadata.DescriptorBinding{
			Binding: uint32(i),
			Type:    kind,
			Count:   1,
			Stages:  stages,
		}
		if role == RoleTextureArray {
			b.Count = max(textureCount, 1)
			b.VariableCount = true
		}
		table[i] = Binding{DescriptorBinding: b, Role: role}
	}
	return table
}

func (t BindingTable) Find(role BindingRole) (Binding, bool) {
	for _, b := range t {
		if b.Role == role {
			return b, true
		}
	}
	return Binding{}, false
}

// VariableCount is the declared size of the texture array, or 0.
func (t BindingTable) VariableCount() uint32 {
	if b, ok := t.Find(RoleTextureArray); ok {
		return b.Count
	}
	return 0
}

func (t BindingTable) Descriptors() []metadata.DescriptorBinding {
	out := make([]metadata.DescriptorBinding, len(t))
	for i, b := range t {
		out[i] = b.DescriptorBinding
	}
	return out
}

// PoolSizes sums descriptor counts per type.
func (t BindingTable) PoolSizes() []metadata.DescriptorPoolSize {
	var sizes []metadata.DescriptorPoolSize
	index := map[metadata.DescriptorType]int{}
	for _, b := range t {
		i, ok := index[b.Type]
		if !ok {
			i = len(sizes)
			index[b.Type] = i
			sizes = append(sizes, metadata.DescriptorPoolSize{Type: b.Type})
		}
		sizes[i].Count += b.Count
	}
	return sizes
}

package raytracing

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// ShaderFile is one compiled stage loaded from the shader directory.
type ShaderFile struct {
	Name  string
	Stage metadata.ShaderStage
}

// Variant describes one scene flavour on top of the shared acceleration
// structure and pipeline protocol: the shader stages and groups it uses,
// the descriptor bindings it adds and its recursion depth.
type Variant struct {
	Name              string
	Shaders           []ShaderFile
	Groups            ShaderGroups
	Extras            []BindingRole
	Textured          bool
	MaxRecursionDepth uint32
}

var (
	raygenShader    = ShaderFile{Name: "raygen.rgen.spv", Stage: metadata.ShaderStageRaygen}
	missShader      = ShaderFile{Name: "miss.rmiss.spv", Stage: metadata.ShaderStageMiss}
	shadowShader    = ShaderFile{Name: "shadow.rmiss.spv", Stage: metadata.ShaderStageMiss}
	closestShader   = ShaderFile{Name: "closesthit.rchit.spv", Stage: metadata.ShaderStageClosestHit}
	anyHitShader    = ShaderFile{Name: "anyhit.rahit.spv", Stage: metadata.ShaderStageAnyHit}
	reflectRaygen   = ShaderFile{Name: "reflections.rgen.spv", Stage: metadata.ShaderStageRaygen}
	reflectClosest  = ShaderFile{Name: "reflections.rchit.spv", Stage: metadata.ShaderStageClosestHit}
	texturedClosest = ShaderFile{Name: "textured.rchit.spv", Stage: metadata.ShaderStageClosestHit}
)

func generalGroup(region SBTRegion, stage int) ShaderGroup {
	return ShaderGroup{Region: region, General: stage, ClosestHit: Unused, AnyHit: Unused}
}

func hitGroup(closest, anyHit int) ShaderGroup {
	return ShaderGroup{Region: RegionHit, General: Unused, ClosestHit: closest, AnyHit: anyHit}
}

// VariantBasic traces primary rays against untextured geometry.
func VariantBasic() *Variant {
	return &Variant{
		Name:    "basic",
		Shaders: []ShaderFile{raygenShader, missShader, closestShader},
		Groups: ShaderGroups{
			generalGroup(RegionRaygen, 0),
			generalGroup(RegionMiss, 1),
			hitGroup(2, Unused),
		},
		Extras:            []BindingRole{RoleGeometryNodes},
		MaxRecursionDepth: 1,
	}
}

// VariantTextured samples per-material textures with alpha testing in any-hit.
func VariantTextured() *Variant {
	return &Variant{
		Name:    "textured",
		Shaders: []ShaderFile{raygenShader, missShader, texturedClosest, anyHitShader},
		Groups: ShaderGroups{
			generalGroup(RegionRaygen, 0),
			generalGroup(RegionMiss, 1),
			hitGroup(2, 3),
		},
		Extras:            []BindingRole{RoleGeometryNodes},
		Textured:          true,
		MaxRecursionDepth: 1,
	}
}

// VariantShadows adds a shadow miss shader for occlusion rays.
func VariantShadows() *Variant {
	return &Variant{
		Name:    "shadows",
		Shaders: []ShaderFile{raygenShader, missShader, shadowShader, texturedClosest, anyHitShader},
		Groups: ShaderGroups{
			generalGroup(RegionRaygen, 0),
			generalGroup(RegionMiss, 1),
			generalGroup(RegionMiss, 2),
			hitGroup(3, 4),
		},
		Extras:            []BindingRole{RoleGeometryNodes},
		Textured:          true,
		MaxRecursionDepth: 2,
	}
}

// VariantReflections bounces rays recursively off reflective surfaces.
func VariantReflections() *Variant {
	return &Variant{
		Name:    "reflections",
		Shaders: []ShaderFile{reflectRaygen, missShader, shadowShader, reflectClosest},
		Groups: ShaderGroups{
			generalGroup(RegionRaygen, 0),
			generalGroup(RegionMiss, 1),
			generalGroup(RegionMiss, 2),
			hitGroup(3, Unused),
		},
		Extras:            []BindingRole{RoleGeometryNodes},
		MaxRecursionDepth: 4,
	}
}

// VariantMultiModel renders several textured models, each under its own
// instance, with a per-instance geometry index lookup.
func VariantMultiModel() *Variant {
	return &Variant{
		Name:    "multi_model",
		Shaders: []ShaderFile{raygenShader, missShader, shadowShader, texturedClosest, anyHitShader},
		Groups: ShaderGroups{
			generalGroup(RegionRaygen, 0),
			generalGroup(RegionMiss, 1),
			generalGroup(RegionMiss, 2),
			hitGroup(3, 4),
		},
		Extras:            []BindingRole{RoleGeometryNodes, RoleGeometryIndices},
		Textured:          true,
		MaxRecursionDepth: 2,
	}
}

// VariantMain is the full renderer: shadows, skinning, a glass texture and
// the texture array.
func VariantMain() *Variant {
	return &Variant{
		Name:    "main",
		Shaders: []ShaderFile{raygenShader, missShader, shadowShader, texturedClosest, anyHitShader},
		Groups: ShaderGroups{
			generalGroup(RegionRaygen, 0),
			generalGroup(RegionMiss, 1),
			generalGroup(RegionMiss, 2),
			hitGroup(3, 4),
		},
		Extras:            []BindingRole{RoleGeometryNodes, RoleSkinJoints, RoleExtraTexture},
		Textured:          true,
		MaxRecursionDepth: 2,
	}
}

var variants = map[string]func() *Variant{
	"basic":       VariantBasic,
	"textured":    VariantTextured,
	"shadows":     VariantShadows,
	"reflections": VariantReflections,
	"multi_model": VariantMultiModel,
	"main":        VariantMain,
}

func VariantByName(name string) (*Variant, error) {
	ctor, ok := variants[strings.ToLower(name)]
	if !ok {
		return nil, errors.Newf("unknown renderer variant %q", name)
	}
	return ctor(), nil
}

// ShaderNames lists the compiled shader files the variant loads.
func (v *Variant) ShaderNames() []string {
	names := make([]string, len(v.Shaders))
	for i, s := range v.Shaders {
		names[i] = s.Name
	}
	return names
}

func (v *Variant) hasExtra(role BindingRole) bool {
	for _, r := range v.Extras {
		if r == role {
			return true
		}
	}
	return false
}

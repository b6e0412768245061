package raytracing

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// Unused marks an empty stage slot in a ShaderGroup.
const Unused = -1

// SBTRegion is the shader binding table region a group's handle lands in.
type SBTRegion int

const (
	RegionRaygen SBTRegion = iota
	RegionMiss
	RegionHit
	RegionCallable
	regionCount
)

func (r SBTRegion) String() string {
	switch r {
	case RegionRaygen:
		return "raygen"
	case RegionMiss:
		return "miss"
	case RegionHit:
		return "hit"
	case RegionCallable:
		return "callable"
	}
	return "invalid"
}

// ShaderGroup references stages by their index in the variant's shader list.
type ShaderGroup struct {
	Region     SBTRegion
	General    int
	ClosestHit int
	AnyHit     int
}

// ShaderGroups is ordered: a group's position is its shader group index and
// decides where its handle is read from.
type ShaderGroups []ShaderGroup

func (g ShaderGroups) Count(region SBTRegion) uint32 {
	var n uint32
	for _, group := range g {
		if group.Region == region {
			n++
		}
	}
	return n
}

// First returns the group index of the first group in region.
func (g ShaderGroups) First(region SBTRegion) (uint32, bool) {
	for i, group := range g {
		if group.Region == region {
			return uint32(i), true
		}
	}
	return 0, false
}

// Validate checks that there is exactly one raygen group, that groups are
// sorted by region so every region is contiguous, and that stage indices
// match the group kind.
func (g ShaderGroups) Validate(shaders []ShaderFile) error {
	if g.Count(RegionRaygen) != 1 {
		return errors.Newf("expected exactly one raygen group, got %d", g.Count(RegionRaygen))
	}
	stage := func(i int) (metadata.ShaderStage, bool) {
		if i == Unused {
			return 0, true
		}
		if i < 0 || i >= len(shaders) {
			return 0, false
		}
		return shaders[i].Stage, true
	}
	last := RegionRaygen
	for i, group := range g {
		if group.Region < last {
			return errors.Newf("group %d (%s) declared after %s groups", i, group.Region, last)
		}
		last = group.Region

		general, ok1 := stage(group.General)
		closest, ok2 := stage(group.ClosestHit)
		anyHit, ok3 := stage(group.AnyHit)
		if !ok1 || !ok2 || !ok3 {
			return errors.Newf("group %d references a shader outside the stage list", i)
		}

		switch group.Region {
		case RegionHit:
			if group.General != Unused || group.ClosestHit == Unused {
				return errors.Newf("hit group %d needs a closest-hit stage and no general stage", i)
			}
			if closest != metadata.ShaderStageClosestHit || (group.AnyHit != Unused && anyHit != metadata.ShaderStageAnyHit) {
				return errors.Newf("hit group %d has mismatched stages", i)
			}
		default:
			want := map[SBTRegion]metadata.ShaderStage{
				RegionRaygen:   metadata.ShaderStageRaygen,
				RegionMiss:     metadata.ShaderStageMiss,
				RegionCallable: metadata.ShaderStageCallable,
			}[group.Region]
			if group.General == Unused || general != want || group.ClosestHit != Unused || group.AnyHit != Unused {
				return errors.Newf("%s group %d must hold a single %s stage", group.Region, i, want)
			}
		}
	}
	return nil
}

func (g ShaderGroups) infos() []metadata.ShaderGroupInfo {
	toIndex := func(i int) uint32 {
		if i == Unused {
			return metadata.ShaderUnused
		}
		return uint32(i)
	}
	out := make([]metadata.ShaderGroupInfo, len(g))
	for i, group := range g {
		info := metadata.ShaderGroupInfo{
			Type:         metadata.ShaderGroupTypeGeneral,
			General:      toIndex(group.General),
			ClosestHit:   toIndex(group.ClosestHit),
			AnyHit:       toIndex(group.AnyHit),
			Intersection: metadata.ShaderUnused,
		}
		if group.Region == RegionHit {
			info.Type = metadata.ShaderGroupTypeTrianglesHitGroup
		}
		out[i] = info
	}
	return out
}

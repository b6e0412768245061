package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

// JointMatrixSize is the std430 size of one joint matrix.
const JointMatrixSize = 64

type Skin struct {
	Name        string
	Joints      []int
	InverseBind []mgl32.Mat4
}

// JointMatrices returns inverse(world(skinned)) * world(joint) * inverseBind
// for every joint, so the skinned vertices stay in the mesh node's space.
func (s *Skin) JointMatrices(arena *Arena, skinned int) []mgl32.Mat4 {
	inverseNode := mgl32.Ident4()
	if skinned >= 0 && skinned < arena.Len() {
		inverseNode = arena.WorldMatrix(skinned).Inv()
	}
	out := make([]mgl32.Mat4, len(s.Joints))
	for i, j := range s.Joints {
		bind := mgl32.Ident4()
		if i < len(s.InverseBind) {
			bind = s.InverseBind[i]
		}
		out[i] = inverseNode.Mul4(arena.WorldMatrix(j)).Mul4(bind)
	}
	return out
}

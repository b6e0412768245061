package math

import "github.com/go-gl/mathgl/mgl32"

// Transform is a TRS triple with a cached local matrix.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
	IsDirty  bool
	local    mgl32.Mat4
}

func TransformCreate() Transform {
	return TransformFromPositionRotationScale(mgl32.Vec3{}, mgl32.QuatIdent(), mgl32.Vec3{1, 1, 1})
}

func TransformFromPosition(position mgl32.Vec3) Transform {
	return TransformFromPositionRotationScale(position, mgl32.QuatIdent(), mgl32.Vec3{1, 1, 1})
}

func TransformFromPositionRotationScale(position mgl32.Vec3, rotation mgl32.Quat, scale mgl32.Vec3) Transform {
	return Transform{
		Position: position,
		Rotation: rotation,
		Scale:    scale,
		IsDirty:  true,
	}
}

func (t *Transform) SetPosition(position mgl32.Vec3) {
	t.Position = position
	t.IsDirty = true
}

func (t *Transform) Translate(translation mgl32.Vec3) {
	t.Position = t.Position.Add(translation)
	t.IsDirty = true
}

func (t *Transform) SetRotation(rotation mgl32.Quat) {
	t.Rotation = rotation
	t.IsDirty = true
}

func (t *Transform) Rotate(rotation mgl32.Quat) {
	t.Rotation = t.Rotation.Mul(rotation).Normalize()
	t.IsDirty = true
}

func (t *Transform) SetScale(scale mgl32.Vec3) {
	t.Scale = scale
	t.IsDirty = true
}

// Local returns T * R * S, recomputing it only when the transform changed.
func (t *Transform) Local() mgl32.Mat4 {
	if t.IsDirty {
		t.local = ComposeTRS(t.Position, t.Rotation, t.Scale)
		t.IsDirty = false
	}
	return t.local
}

func ComposeTRS(position mgl32.Vec3, rotation mgl32.Quat, scale mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(position[0], position[1], position[2]).
		Mul4(rotation.Mat4()).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
}

// EulerToQuat builds a rotation from XYZ Euler angles in degrees.
func EulerToQuat(degrees mgl32.Vec3) mgl32.Quat {
	return mgl32.AnglesToQuat(DegToRad(degrees[0]), DegToRad(degrees[1]), DegToRad(degrees[2]), mgl32.XYZ)
}

// TransformMatrix3x4 packs the upper three rows of a column-major matrix into
// the row-major 3x4 layout used by acceleration structure instances and
// geometry transform buffers.
func TransformMatrix3x4(m mgl32.Mat4) [12]float32 {
	var out [12]float32
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			out[row*4+col] = m.At(row, col)
		}
	}
	return out
}

func Identity3x4() [12]float32 {
	return TransformMatrix3x4(mgl32.Ident4())
}

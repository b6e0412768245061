package components

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func TestCameraDefaultsLookDownNegativeZ(t *testing.T) {
	c := NewCamera()
	if !c.Forward().ApproxEqual(mgl32.Vec3{0, 0, -1}) {
		t.Fatalf("forward = %v", c.Forward())
	}
	if !c.Right().ApproxEqual(mgl32.Vec3{1, 0, 0}) {
		t.Fatalf("right = %v", c.Right())
	}
}

func TestCameraMoveAndYaw(t *testing.T) {
	c := NewCamera()
	c.MoveForward(2)
	if !c.GetPosition().ApproxEqual(mgl32.Vec3{0, 0, -2}) {
		t.Fatalf("position = %v", c.GetPosition())
	}
	c.Yaw(math.DegToRad(90))
	// Yawing left by 90 degrees turns -Z into -X.
	if !c.Forward().ApproxEqualThreshold(mgl32.Vec3{-1, 0, 0}, 1e-5) {
		t.Fatalf("forward after yaw = %v", c.Forward())
	}
	if !c.GetView().Mul4(c.World()).ApproxEqualThreshold(mgl32.Ident4(), 1e-5) {
		t.Fatal("view is not the inverse of world")
	}
}

func TestCameraPitchClamps(t *testing.T) {
	c := NewCamera()
	c.Pitch(10)
	if got := c.GetEulerRotation().X(); got > math.DegToRad(89)+1e-6 {
		t.Fatalf("pitch = %v", got)
	}
}

func TestCameraUniform(t *testing.T) {
	c := NewCamera()
	c.SetPosition(mgl32.Vec3{0, 1, 5})
	u := c.Uniform(metadata.Extent2D{Width: 1600, Height: 900}, mgl32.Vec4{0, 5, 0, 0}, 7, 4)
	if u.Frame != 7 || u.MaxDepth != 4 {
		t.Fatalf("uniform = %+v", u)
	}
	if got := u.ViewInverse.Col(3).Vec3(); !got.ApproxEqual(mgl32.Vec3{0, 1, 5}) {
		t.Fatalf("camera origin = %v", got)
	}
	proj := c.Projection(1600.0 / 900.0)
	if !proj.Mul4(u.ProjInverse).ApproxEqualThreshold(mgl32.Ident4(), 1e-4) {
		t.Fatal("ProjInverse is not the inverse projection")
	}
	if proj[5] >= 0 {
		t.Fatal("projection does not flip Y")
	}
}

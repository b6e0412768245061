package components

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief A free-flying camera whose inverse view and projection feed the
 * raygen shader through the uniform buffer.
 */
type Camera struct {
	/**
	 * @brief The position of this camera.
	 * NOTE: set it through SetPosition so the view matrix is recalculated.
	 */
	Position mgl32.Vec3
	/**
	 * @brief The rotation of this camera using Euler angles in radians (pitch, yaw, roll).
	 * NOTE: set it through SetEulerRotation so the view matrix is recalculated.
	 */
	EulerRotation mgl32.Vec3
	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty bool

	FieldOfView float32
	Near        float32
	Far         float32

	world      mgl32.Mat4
	viewMatrix mgl32.Mat4
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.EulerRotation = mgl32.Vec3{}
	c.Position = mgl32.Vec3{}
	c.FieldOfView = 60
	c.Near = 0.1
	c.Far = 512
	c.world = mgl32.Ident4()
	c.viewMatrix = mgl32.Ident4()
	c.IsDirty = false
}

func (c *Camera) GetPosition() mgl32.Vec3 {
	return c.Position
}

func (c *Camera) SetPosition(position mgl32.Vec3) {
	c.Position = position
	c.IsDirty = true
}

func (c *Camera) GetEulerRotation() mgl32.Vec3 {
	return c.EulerRotation
}

func (c *Camera) SetEulerRotation(rotation mgl32.Vec3) {
	c.EulerRotation = rotation
	c.IsDirty = true
}

func (c *Camera) update() {
	if !c.IsDirty {
		return
	}
	rotation := mgl32.AnglesToQuat(c.EulerRotation.Y(), c.EulerRotation.X(), c.EulerRotation.Z(), mgl32.YXZ).Mat4()
	c.world = mgl32.Translate3D(c.Position.X(), c.Position.Y(), c.Position.Z()).Mul4(rotation)
	c.viewMatrix = c.world.Inv()
	c.IsDirty = false
}

func (c *Camera) GetView() mgl32.Mat4 {
	c.update()
	return c.viewMatrix
}

// World is the camera-to-world matrix, the inverse of GetView.
func (c *Camera) World() mgl32.Mat4 {
	c.update()
	return c.world
}

func (c *Camera) Forward() mgl32.Vec3 {
	return c.World().Col(2).Vec3().Mul(-1).Normalize()
}

func (c *Camera) Backward() mgl32.Vec3 {
	return c.Forward().Mul(-1)
}

func (c *Camera) Left() mgl32.Vec3 {
	return c.Right().Mul(-1)
}

func (c *Camera) Right() mgl32.Vec3 {
	return c.World().Col(0).Vec3().Normalize()
}

func (c *Camera) move(direction mgl32.Vec3, amount float32) {
	c.Position = c.Position.Add(direction.Mul(amount))
	c.IsDirty = true
}

func (c *Camera) MoveForward(amount float32)  { c.move(c.Forward(), amount) }
func (c *Camera) MoveBackward(amount float32) { c.move(c.Backward(), amount) }
func (c *Camera) MoveLeft(amount float32)     { c.move(c.Left(), amount) }
func (c *Camera) MoveRight(amount float32)    { c.move(c.Right(), amount) }
func (c *Camera) MoveUp(amount float32)       { c.move(mgl32.Vec3{0, 1, 0}, amount) }
func (c *Camera) MoveDown(amount float32)     { c.move(mgl32.Vec3{0, -1, 0}, amount) }

func (c *Camera) Yaw(amount float32) {
	c.EulerRotation[1] += amount
	c.IsDirty = true
}

func (c *Camera) Pitch(amount float32) {
	c.EulerRotation[0] += amount

	// Clamp to avoid Gimbal lock.
	limit := math.DegToRad(89)
	c.EulerRotation[0] = math.Clamp(c.EulerRotation[0], -limit, limit)

	c.IsDirty = true
}

// Projection is a Vulkan clip-space perspective with Y pointing down.
func (c *Camera) Projection(aspect float32) mgl32.Mat4 {
	p := mgl32.Perspective(math.DegToRad(c.FieldOfView), aspect, c.Near, c.Far)
	p[5] *= -1
	return p
}

// Uniform fills the per-frame camera block for an extent.
func (c *Camera) Uniform(extent metadata.Extent2D, light mgl32.Vec4, frame int32, maxDepth int32) metadata.UniformData {
	aspect := float32(1)
	if extent.Height > 0 {
		aspect = float32(extent.Width) / float32(extent.Height)
	}
	return metadata.UniformData{
		ViewInverse: c.World(),
		ProjInverse: c.Projection(aspect).Inv(),
		LightPos:    light,
		Frame:       frame,
		MaxDepth:    maxDepth,
	}
}

package raytracing

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// ModelData is the per-frame edit request polled from the UI.
// TransformValues holds translation, euler rotation in degrees and scale;
// UpdateBLAS is indexed by model.
type ModelData struct {
	ModelIndex      int
	TransformValues []float32
	UpdateBLAS      []bool
	DeleteModel     bool
}

// HasTransform reports whether a full translation/rotation/scale triple is set.
func (d ModelData) HasTransform() bool {
	return len(d.TransformValues) >= 9
}

// Transform composes the requested model matrix.
func (d ModelData) Transform() mgl32.Mat4 {
	v := d.TransformValues
	return math.ComposeTRS(
		mgl32.Vec3{v[0], v[1], v[2]},
		math.EulerToQuat(mgl32.Vec3{v[3], v[4], v[5]}),
		mgl32.Vec3{v[6], v[7], v[8]},
	)
}

// Controller applies scene edits, poses, resizes and shader reloads to a
// renderer, doing the least rebuild work each change needs.
type Controller struct {
	r *Renderer
}

func NewController(r *Renderer) *Controller {
	return &Controller{r: r}
}

// Poll applies one ModelData. Transform edits rebuild the TLAS in place,
// flagged BLASes are rebuilt first, and deletion removes the model.
func (c *Controller) Poll(d ModelData) error {
	scene := c.r.scene
	if d.DeleteModel {
		return c.deleteModel(d.ModelIndex)
	}

	rebuildTLAS := false
	for i, update := range d.UpdateBLAS {
		if !update {
			continue
		}
		m, ok := scene.Model(i)
		if !ok {
			continue
		}
		if err := c.r.ctx.Device.WaitIdle(); err != nil {
			return err
		}
		if err := c.updateBLAS(m); err != nil {
			return err
		}
		rebuildTLAS = true
	}

	if m, ok := scene.Model(d.ModelIndex); ok && d.HasTransform() {
		if t := d.Transform(); t != m.Transform {
			m.Transform = t
			rebuildTLAS = true
		}
	}
	if !rebuildTLAS {
		return nil
	}
	return c.updateTLAS()
}

func (c *Controller) updateBLAS(m *SceneModel) error {
	if h, ok := m.Source.(Hierarchical); ok {
		if _, err := h.UpdateTransforms(); err != nil {
			return err
		}
	}
	if err := m.BLAS.Update(c.r.ctx); err != nil {
		return err
	}
	core.LogDebug("Controller: BLAS '%s' rebuilt", m.BLAS.Name)
	return nil
}

// updateTLAS rebuilds the TLAS over the current instances. Descriptors are
// only rewritten when the rebuild had to reallocate the structure.
func (c *Controller) updateTLAS() error {
	if err := c.r.ctx.Device.WaitIdle(); err != nil {
		return err
	}
	instances, err := c.r.scene.Instances()
	if err != nil {
		return err
	}
	changed, err := c.r.tlas.Update(c.r.ctx, instances)
	if err != nil {
		return err
	}
	if changed {
		c.r.descriptors.WriteAccelerationStructure(c.r.tlas.Handle())
	}
	c.r.recorder.MarkStale()
	return nil
}

// deleteModel drops the model from the TLAS before destroying its BLAS, then
// reallocates the descriptor set for the smaller texture array.
func (c *Controller) deleteModel(index int) error {
	scene := c.r.scene
	m, ok := scene.RemoveModel(index)
	if !ok {
		return core.NewPreconditionError("delete of model %d, scene has %d", index, len(scene.Models))
	}
	if err := c.updateTLAS(); err != nil {
		// the TLAS still references m
		scene.InsertModel(index, m)
		return err
	}
	scene.DisposeModel(m)
	if err := scene.UploadNodes(); err != nil {
		return err
	}
	if err := c.reallocateDescriptors(); err != nil {
		return err
	}
	core.LogInfo("Controller: model %d deleted, %d remain", index, len(scene.Models))
	return nil
}

func (c *Controller) reallocateDescriptors() error {
	textures, err := c.r.scene.Textures()
	if err != nil {
		return err
	}
	count := uint32(len(textures))
	if count > c.r.pipeline.Bindings.VariableCount() {
		// the layout is too small for the new texture array
		return c.rebuildPipeline()
	}
	if err := c.r.descriptors.Allocate(count); err != nil {
		return err
	}
	if err := c.r.writeDescriptors(); err != nil {
		return err
	}
	c.r.recorder.MarkStale()
	return nil
}

func (c *Controller) rebuildPipeline() error {
	if err := c.r.createPipeline(); err != nil {
		return err
	}
	return c.r.recorder.BuildCommandBuffers(c.r.dispatch())
}

// AddModel builds a BLAS for src and places it in the scene. The controller
// owns src from here on: when any step fails the model is taken back out of
// the scene and src is disposed.
func (c *Controller) AddModel(src GeometrySource, transform mgl32.Mat4) error {
	if err := c.r.ctx.Device.WaitIdle(); err != nil {
		disposeSource(c.r.ctx, src)
		return err
	}
	m, err := c.r.scene.AddModel(src, transform)
	if err != nil {
		disposeSource(c.r.ctx, src)
		return err
	}
	if err := c.r.scene.UploadNodes(); err != nil {
		return c.rollbackAdd(m, false, err)
	}
	if err := c.updateTLAS(); err != nil {
		return c.rollbackAdd(m, false, err)
	}
	if err := c.reallocateDescriptors(); err != nil {
		return c.rollbackAdd(m, true, err)
	}
	return nil
}

// rollbackAdd restores the scene to its state before m was added. placed
// reports whether the TLAS already references m. A rollback that fails
// leaves the renderer faulted.
func (c *Controller) rollbackAdd(m *SceneModel, placed bool, cause error) error {
	scene := c.r.scene
	scene.RemoveModel(scene.IndexOf(m))
	var rollback error
	if err := scene.UploadNodes(); err != nil {
		rollback = errors.CombineErrors(rollback, err)
	}
	if placed {
		if err := c.updateTLAS(); err != nil {
			rollback = errors.CombineErrors(rollback, err)
		}
	}
	if err := c.reallocateDescriptors(); err != nil {
		rollback = errors.CombineErrors(rollback, err)
	}
	scene.DisposeModel(m)
	if rollback != nil {
		c.r.fault = errors.CombineErrors(cause, errors.Wrapf(rollback, "rollback of model '%s'", m.BLAS.Name))
		core.LogError("Controller: %v", c.r.fault)
		return c.r.fault
	}
	core.LogWarn("Controller: model '%s' not added: %v", m.BLAS.Name, cause)
	return cause
}

func disposeSource(ctx BuildContext, src GeometrySource) {
	if d, ok := src.(Disposable); ok {
		d.Dispose(ctx)
	}
}

// Resize recreates the storage image at extent, rewrites only its
// descriptor and re-records every command buffer for the new swapchain
// images. Calling it again with the same extent changes nothing.
func (c *Controller) Resize(extent metadata.Extent2D, swapchainImages []metadata.ImageHandle) error {
	if extent.IsZero() {
		return core.NewPreconditionError("resize to empty extent")
	}
	if err := c.r.ctx.Device.WaitIdle(); err != nil {
		return err
	}
	if _, err := c.r.storage.Recreate(extent); err != nil {
		return err
	}
	c.r.descriptors.WriteStorageImage(c.r.storage.View())

	c.r.cfg.Extent = extent
	c.r.cfg.SwapchainImages = swapchainImages
	if err := c.r.recorder.Resize(uint32(len(swapchainImages))); err != nil {
		return err
	}
	if err := c.r.recorder.BuildCommandBuffers(c.r.dispatch()); err != nil {
		return err
	}
	core.LogInfo("Controller: resized to %dx%d", extent.Width, extent.Height)
	return nil
}

// UpdatePose rewrites the joint matrices of a skinned model. A hierarchy
// change additionally rebuilds the model's BLAS and then the TLAS.
func (c *Controller) UpdatePose(index int) error {
	m, ok := c.r.scene.Model(index)
	if !ok {
		return core.NewPreconditionError("pose update of model %d, scene has %d", index, len(c.r.scene.Models))
	}
	if sk, ok := m.Source.(Skinned); ok {
		if err := sk.UpdateJoints(); err != nil {
			return err
		}
	}
	h, ok := m.Source.(Hierarchical)
	if !ok {
		return nil
	}
	changed, err := h.UpdateTransforms()
	if err != nil || !changed {
		return err
	}
	if err := c.r.ctx.Device.WaitIdle(); err != nil {
		return err
	}
	if err := m.BLAS.Update(c.r.ctx); err != nil {
		return err
	}
	return c.updateTLAS()
}

// ReloadShaders rebuilds the pipeline and SBT from new shader code, writes
// every descriptor and re-records all command buffers. On failure the
// current pipeline stays in use.
func (c *Controller) ReloadShaders(shaders map[string][]uint32) error {
	if err := c.r.ctx.Device.WaitIdle(); err != nil {
		return err
	}
	previous := c.r.cfg.Shaders
	c.r.cfg.Shaders = shaders
	if err := c.rebuildPipeline(); err != nil {
		c.r.cfg.Shaders = previous
		return err
	}
	core.LogInfo("Controller: shaders reloaded for '%s'", c.r.cfg.Variant.Name)
	return nil
}

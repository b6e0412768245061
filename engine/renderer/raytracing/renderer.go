package raytracing

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// RendererConfig selects the variant and describes the presentation target.
type RendererConfig struct {
	Variant           *Variant
	Shaders           map[string][]uint32
	Extent            metadata.Extent2D
	SwapchainImages   []metadata.ImageHandle
	StorageFormat     metadata.Format
	MaxRecursionDepth uint32
}

// ModelDesc places a geometry source in the initial scene.
type ModelDesc struct {
	Source    GeometrySource
	Transform mgl32.Mat4
}

// Renderer owns every ray tracing resource of one variant, created in Init
// and released in reverse order by Destroy.
type Renderer struct {
	ctx       BuildContext
	cfg       RendererConfig
	cache     *LayoutCache
	assembler *PipelineAssembler

	uniform     *UniformBuffer
	storage     *StorageImage
	scene       *Scene
	tlas        *TLAS
	pipeline    *Pipeline
	sbt         *ShaderBindingTable
	descriptors *DescriptorWriter
	recorder    *CommandRecorder

	// fault is set when a failed update could not be rolled back; every
	// later Frame returns it.
	fault error
}

func NewRenderer(device Device, cfg RendererConfig) *Renderer {
	alloc := NewAllocator(device)
	ctx := BuildContext{Device: device, Allocator: alloc}
	cache := NewLayoutCache(device)
	if cfg.StorageFormat == metadata.FormatUndefined {
		cfg.StorageFormat = metadata.FormatB8G8R8A8Unorm
	}
	return &Renderer{
		ctx:       ctx,
		cfg:       cfg,
		cache:     cache,
		assembler: NewPipelineAssembler(device, cache),
		scene:     NewScene(ctx),
	}
}

// Allocator is used by geometry providers to upload their buffers before Init.
func (r *Renderer) Allocator() *Allocator {
	return r.ctx.Allocator
}

func (r *Renderer) Context() BuildContext {
	return r.ctx
}

func (r *Renderer) Scene() *Scene {
	return r.scene
}

func (r *Renderer) Variant() *Variant {
	return r.cfg.Variant
}

// Init creates, in order: uniform buffer, storage image, one BLAS per model,
// the geometry node buffer, the TLAS, pipeline, shader binding table,
// descriptor set and frame command buffers. On failure everything created
// so far is released.
func (r *Renderer) Init(models []ModelDesc) (err error) {
	if r.cfg.Variant == nil {
		return core.NewPreconditionError("renderer has no variant")
	}
	defer func() {
		if err != nil {
			r.Destroy()
		}
	}()

	if r.uniform, err = NewUniformBuffer(r.ctx.Allocator); err != nil {
		return err
	}
	if r.storage, err = NewStorageImage(r.ctx, r.cfg.Extent, r.cfg.StorageFormat); err != nil {
		return err
	}
	for _, m := range models {
		if _, err = r.scene.AddModel(m.Source, m.Transform); err != nil {
			return err
		}
	}
	if err = r.scene.UploadNodes(); err != nil {
		return err
	}
	instances, err := r.scene.Instances()
	if err != nil {
		return err
	}
	if r.tlas, err = BuildTLAS(r.ctx, "scene", instances); err != nil {
		return err
	}
	if err = r.createPipeline(); err != nil {
		return err
	}
	if r.recorder, err = NewCommandRecorder(r.ctx.Device, uint32(len(r.cfg.SwapchainImages))); err != nil {
		return err
	}
	if err = r.recorder.BuildCommandBuffers(r.dispatch()); err != nil {
		return err
	}
	core.LogInfo("Ray tracing renderer '%s' ready: %d models, %d textures", r.cfg.Variant.Name, len(r.scene.Models), r.descriptors.VariableCount())
	return nil
}

// createPipeline builds the pipeline, its SBT and a fully written
// descriptor set, replacing any previous ones only on success.
func (r *Renderer) createPipeline() error {
	textures, err := r.scene.Textures()
	if err != nil {
		return err
	}
	pipeline, err := r.assembler.Assemble(PipelineDesc{
		Variant:           r.cfg.Variant,
		TextureCount:      uint32(len(textures)),
		Shaders:           r.cfg.Shaders,
		MaxRecursionDepth: r.cfg.MaxRecursionDepth,
	})
	if err != nil {
		return err
	}
	sbt, err := BuildShaderBindingTable(r.ctx.Device, r.ctx.Allocator, pipeline)
	if err != nil {
		r.assembler.Destroy(pipeline)
		return err
	}
	descriptors, err := NewDescriptorWriter(r.ctx.Device, pipeline)
	if err != nil {
		sbt.Destroy(r.ctx.Allocator)
		r.assembler.Destroy(pipeline)
		return err
	}

	r.destroyPipeline()
	r.pipeline, r.sbt, r.descriptors = pipeline, sbt, descriptors
	if err := r.writeDescriptors(); err != nil {
		return err
	}
	return nil
}

func (r *Renderer) destroyPipeline() {
	if r.descriptors != nil {
		r.descriptors.Destroy()
		r.descriptors = nil
	}
	if r.sbt != nil {
		r.sbt.Destroy(r.ctx.Allocator)
		r.sbt = nil
	}
	if r.pipeline != nil {
		r.assembler.Destroy(r.pipeline)
		r.pipeline = nil
	}
}

func (r *Renderer) descriptorResources() (DescriptorResources, error) {
	res := DescriptorResources{
		TLAS:            r.tlas.Handle(),
		StorageImage:    r.storage.View(),
		Uniform:         r.uniform.Buffer(),
		GeometryNodes:   r.scene.NodeBuffer(),
		GeometryIndices: r.scene.IndexBuffer(),
	}
	var err error
	if res.Textures, err = r.scene.Textures(); err != nil {
		return res, err
	}
	if r.cfg.Variant.hasExtra(RoleSkinJoints) {
		if res.SkinJoints, err = r.scene.JointBuffer(); err != nil {
			return res, err
		}
	}
	if r.cfg.Variant.hasExtra(RoleExtraTexture) {
		if res.ExtraTexture, err = r.scene.ExtraTexture(); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (r *Renderer) writeDescriptors() error {
	res, err := r.descriptorResources()
	if err != nil {
		return err
	}
	return r.descriptors.WriteAll(res)
}

func (r *Renderer) dispatch() Dispatch {
	return Dispatch{
		Pipeline:        r.pipeline.Handle,
		Layout:          r.pipeline.Layout,
		Set:             r.descriptors.Set(),
		SBT:             r.sbt,
		Extent:          r.storage.Extent(),
		StorageImage:    r.storage.Handle(),
		SwapchainImages: r.cfg.SwapchainImages,
	}
}

// UpdateUniformBuffer copies data into the mapped uniform buffer. It must
// run before the frame's command buffer is submitted.
func (r *Renderer) UpdateUniformBuffer(data metadata.UniformData) {
	r.uniform.Update(data)
}

func (r *Renderer) Uniform() *UniformBuffer {
	return r.uniform
}

// Frame returns the command buffer to submit for imageIndex, re-recording
// it first if a change made it stale. The caller guarantees the buffer is
// no longer executing.
func (r *Renderer) Frame(imageIndex uint32) (metadata.CommandBufferHandle, error) {
	if r.fault != nil {
		return metadata.NullHandle, r.fault
	}
	if r.tlas == nil || !r.tlas.Built() {
		return metadata.NullHandle, errors.Wrap(core.ErrNotBuilt, "frame without a built TLAS")
	}
	frame := int(imageIndex)
	if frame >= r.recorder.Len() {
		return metadata.NullHandle, core.NewPreconditionError("image index %d with %d command buffers", imageIndex, r.recorder.Len())
	}
	if r.recorder.NeedsRecording(frame) {
		if err := r.recorder.Begin(frame); err != nil {
			return metadata.NullHandle, err
		}
		if err := r.recorder.RebuildCommandBuffers(frame, r.dispatch()); err != nil {
			return metadata.NullHandle, err
		}
		if err := r.recorder.End(frame); err != nil {
			return metadata.NullHandle, err
		}
	}
	if err := r.recorder.MarkSubmitted(frame); err != nil {
		return metadata.NullHandle, err
	}
	return r.recorder.Buffer(frame), nil
}

// Err reports the fault that stopped frame submission, if any.
func (r *Renderer) Err() error {
	return r.fault
}

func (r *Renderer) TLAS() *TLAS {
	return r.tlas
}

func (r *Renderer) Pipeline() *Pipeline {
	return r.pipeline
}

func (r *Renderer) SBT() *ShaderBindingTable {
	return r.sbt
}

func (r *Renderer) Descriptors() *DescriptorWriter {
	return r.descriptors
}

func (r *Renderer) Recorder() *CommandRecorder {
	return r.recorder
}

func (r *Renderer) StorageImage() *StorageImage {
	return r.storage
}

// Destroy releases resources in reverse creation order. The TLAS goes
// before the BLASes it references.
func (r *Renderer) Destroy() {
	if err := r.ctx.Device.WaitIdle(); err != nil {
		core.LogWarn("wait idle before destroy: %v", err)
	}
	if r.recorder != nil {
		r.recorder.Destroy()
		r.recorder = nil
	}
	r.destroyPipeline()
	if r.tlas != nil {
		r.tlas.Destroy(r.ctx)
		r.tlas = nil
	}
	r.scene.Destroy()
	if r.storage != nil {
		r.storage.Destroy()
		r.storage = nil
	}
	if r.uniform != nil {
		r.uniform.Destroy(r.ctx.Allocator)
		r.uniform = nil
	}
	r.cache.Destroy()
	if buffers, images := r.ctx.Allocator.Live(); buffers+images > 0 {
		core.LogWarn("Renderer destroyed with %d buffers and %d images still allocated: %v", buffers, images, r.ctx.Allocator.Names())
	}
}

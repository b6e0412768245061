package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/loov/hrtime"

	"github.com/spaghettifunk/lumen/engine/assets"
	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/containers"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/platform"
	"github.com/spaghettifunk/lumen/engine/renderer/components"
	"github.com/spaghettifunk/lumen/engine/renderer/raytracing"
	"github.com/spaghettifunk/lumen/engine/renderer/vulkan"
	"github.com/spaghettifunk/lumen/engine/scene"
)

// maxPendingEdits bounds the model edits queued between two frames.
const maxPendingEdits = 64

// DefaultLight is the point light position written to the uniform block.
var DefaultLight = mgl32.Vec4{5, 10, 5, 0}

// Renderer drives one ray tracing variant on a backend: it applies queued
// scene edits and shader reloads, follows swapchain recreation and submits
// the recorded command buffer of every acquired image.
type Renderer struct {
	cfg        config.Renderer
	backend    RendererBackend
	core       *raytracing.Renderer
	controller *raytracing.Controller
	variant    *raytracing.Variant
	camera     *components.Camera
	watcher    *assets.ShaderWatcher

	Light mgl32.Vec4

	generation     uint64
	frame          int32
	edits          *containers.RingQueue[raytracing.ModelData]
	shadersChanged bool
	listeners      map[core.EventCode]uint64
}

// New brings up the Vulkan backend on the platform window and builds the
// configured scene.
func New(cfg *config.Config, p *platform.Platform) (*Renderer, error) {
	return NewWithBackend(cfg, vulkan.New(p, cfg.Renderer.Validation))
}

func NewWithBackend(cfg *config.Config, backend RendererBackend) (*Renderer, error) {
	variant, err := raytracing.VariantByName(cfg.Renderer.Variant)
	if err != nil {
		return nil, err
	}
	format, err := cfg.Renderer.Format()
	if err != nil {
		return nil, err
	}
	shaders, err := assets.LoadShaders(cfg.Renderer.ShaderDir, variant.ShaderNames()...)
	if err != nil {
		return nil, err
	}

	app := cfg.Application
	if err := backend.Initialize(app.Name, app.Width, app.Height); err != nil {
		return nil, err
	}

	r := &Renderer{
		cfg:        cfg.Renderer,
		backend:    backend,
		variant:    variant,
		camera:     components.NewCamera(),
		Light:      DefaultLight,
		generation: backend.SwapchainGeneration(),
		edits:      containers.NewRingQueue[raytracing.ModelData](maxPendingEdits),
		listeners:  make(map[core.EventCode]uint64),
	}
	r.camera.SetPosition(mgl32.Vec3{0, 1, 6})

	r.core = raytracing.NewRenderer(backend.Device(), raytracing.RendererConfig{
		Variant:           variant,
		Shaders:           shaders,
		Extent:            backend.Extent(),
		SwapchainImages:   backend.SwapchainImages(),
		StorageFormat:     format,
		MaxRecursionDepth: cfg.Renderer.MaxRayRecursion,
	})

	descs, err := r.loadScene(cfg.Scene.Models)
	if err != nil {
		r.core.Destroy()
		backend.Shutdown()
		return nil, err
	}
	start := hrtime.Now()
	if err := r.core.Init(descs); err != nil {
		backend.Shutdown()
		return nil, err
	}
	core.LogInfo("Scene ready in %s", hrtime.Since(start))
	r.controller = raytracing.NewController(r.core)

	if cfg.Renderer.HotReload {
		if r.watcher, err = assets.NewShaderWatcher(cfg.Renderer.ShaderDir, assets.DefaultDebounce); err != nil {
			core.LogWarn("shader hot reload disabled: %v", err)
		}
	}
	r.listen(core.EVENT_CODE_MODEL_EDITED, r.onModelEdited)
	r.listen(core.EVENT_CODE_SHADER_CHANGED, r.onShaderChanged)
	return r, nil
}

func (r *Renderer) loadScene(models []config.Model) ([]raytracing.ModelDesc, error) {
	ctx := r.core.Context()
	descs := make([]raytracing.ModelDesc, 0, len(models))
	fail := func(err error) ([]raytracing.ModelDesc, error) {
		for _, d := range descs {
			d.Source.(*scene.Model).Dispose(ctx)
		}
		return nil, err
	}
	built := make([]*scene.Model, 0, len(models))
	for _, m := range models {
		model, err := buildModel(m)
		if err != nil {
			return nil, err
		}
		built = append(built, model)
	}
	textures, err := decodeTextures(built)
	if err != nil {
		return nil, err
	}
	for i, model := range built {
		if err := uploadModel(ctx, model, textures[i]); err != nil {
			return fail(err)
		}
		descs = append(descs, raytracing.ModelDesc{Source: model, Transform: modelTransform(models[i])})
	}
	return descs, nil
}

func (r *Renderer) listen(code core.EventCode, fn core.FnOnEvent) {
	r.listeners[code] = core.EventRegister(code, fn)
}

func (r *Renderer) onModelEdited(ctx core.EventContext) {
	if e, ok := ctx.Data.(*core.ModelEvent); ok {
		if err := r.edits.Enqueue(modelData(e, r.ModelCount())); err != nil {
			core.LogWarn("model edit for %d dropped: %v", e.ModelIndex, err)
		}
	}
}

func (r *Renderer) onShaderChanged(ctx core.EventContext) {
	if e, ok := ctx.Data.(*core.FileEvent); ok {
		core.LogInfo("Shader changed: %s", e.Path)
	}
	r.shadersChanged = true
}

func (r *Renderer) Camera() *components.Camera {
	return r.camera
}

func (r *Renderer) Variant() *raytracing.Variant {
	return r.variant
}

func (r *Renderer) ModelCount() int {
	if r.core == nil || r.core.Scene() == nil {
		return 0
	}
	return len(r.core.Scene().Models)
}

// Model returns the host model at scene index i.
func (r *Renderer) Model(i int) (*scene.Model, bool) {
	m, ok := r.core.Scene().Model(i)
	if !ok {
		return nil, false
	}
	model, ok := m.Source.(*scene.Model)
	return model, ok
}

// AddModel uploads a new model and places it in the running scene.
func (r *Renderer) AddModel(m config.Model) error {
	model, err := buildModel(m)
	if err != nil {
		return err
	}
	textures, err := decodeTextures([]*scene.Model{model})
	if err != nil {
		return err
	}
	ctx := r.core.Context()
	if err := uploadModel(ctx, model, textures[0]); err != nil {
		return err
	}
	// the controller disposes the model when it cannot be placed
	return r.controller.AddModel(model, modelTransform(m))
}

// Pose rotates a node of model i and pushes the new pose to the device.
func (r *Renderer) Pose(model, node int, rotation mgl32.Quat) error {
	m, ok := r.Model(model)
	if !ok {
		return core.NewPreconditionError("pose of model %d, scene has %d", model, r.ModelCount())
	}
	m.SetRotation(node, rotation)
	return r.controller.UpdatePose(model)
}

func (r *Renderer) OnResize(width, height uint32) {
	r.backend.Resized(width, height)
}

// maxDepth is the bounce limit handed to the shaders.
func (r *Renderer) maxDepth() int32 {
	if r.cfg.MaxRayRecursion > 0 {
		return int32(r.cfg.MaxRayRecursion)
	}
	return int32(r.variant.MaxRecursionDepth)
}

// applyPending runs queued edits and shader reloads before the frame is
// acquired. Only device failures are returned.
func (r *Renderer) applyPending() error {
	for _, d := range r.edits.Drain() {
		if err := editError(d, r.controller.Poll(d)); err != nil {
			return err
		}
	}
	if !r.shadersChanged {
		return nil
	}
	r.shadersChanged = false
	shaders, err := assets.LoadShaders(r.cfg.ShaderDir, r.variant.ShaderNames()...)
	if err != nil {
		core.LogError("shader reload skipped: %v", err)
		return nil
	}
	start := hrtime.Now()
	if err := r.controller.ReloadShaders(shaders); err != nil {
		core.LogError("shader reload failed, keeping previous pipeline: %v", err)
		return nil
	}
	core.LogInfo("Shaders reloaded in %s", hrtime.Since(start))
	return nil
}

// editError drops a rejected edit after logging it. Device failures are
// returned and stop rendering.
func editError(d raytracing.ModelData, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrResourceCreation) || errors.Is(err, core.ErrNotBuilt) {
		return errors.Wrapf(err, "model edit of model %d", d.ModelIndex)
	}
	core.LogError("model edit %+v failed: %v", d, err)
	return nil
}

// syncSwapchain resizes the core once the backend finished recreating its
// swapchain.
func (r *Renderer) syncSwapchain() error {
	gen := r.backend.SwapchainGeneration()
	if gen == r.generation {
		return nil
	}
	extent := r.backend.Extent()
	if extent.IsZero() {
		return nil
	}
	if err := r.controller.Resize(extent, r.backend.SwapchainImages()); err != nil {
		return err
	}
	r.generation = gen
	return nil
}

func (r *Renderer) DrawFrame(deltaTime float64) error {
	if err := r.applyPending(); err != nil {
		return err
	}

	imageIndex, err := r.backend.BeginFrame()
	if errors.Is(err, core.ErrSwapchainBooting) {
		return r.syncSwapchain()
	}
	if err != nil {
		return err
	}
	if err := r.syncSwapchain(); err != nil {
		return err
	}

	r.core.UpdateUniformBuffer(r.camera.Uniform(r.backend.Extent(), r.Light, r.frame, r.maxDepth()))
	cmd, err := r.core.Frame(imageIndex)
	if err != nil {
		return err
	}
	if err := r.backend.EndFrame(cmd); err != nil {
		return err
	}
	r.frame++
	return nil
}

func (r *Renderer) Shutdown() error {
	for code, id := range r.listeners {
		core.EventUnregister(code, id)
	}
	if r.watcher != nil {
		if err := r.watcher.Close(); err != nil {
			core.LogWarn("closing shader watcher: %v", err)
		}
	}
	r.core.Destroy()
	return r.backend.Shutdown()
}

var _ RendererBackend = (*vulkan.VulkanRenderer)(nil)

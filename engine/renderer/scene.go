package renderer

import (
	"runtime"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/assets"
	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/jobs"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/raytracing"
	"github.com/spaghettifunk/lumen/engine/scene"
)

var kindColors = map[string]mgl32.Vec4{
	config.KindCube:         {0.8, 0.3, 0.2, 1},
	config.KindPlane:        {0.7, 0.7, 0.7, 1},
	config.KindSkinnedStrip: {0.2, 0.5, 0.9, 1},
}

// StripSegments is the row count of configured skinned strips.
const StripSegments = 8

// buildModel creates the host geometry of one configured model.
func buildModel(m config.Model) (*scene.Model, error) {
	color := kindColors[m.Kind]
	var model *scene.Model
	switch m.Kind {
	case config.KindCube:
		model = scene.NewCube(m.Name, color)
	case config.KindPlane:
		model = scene.NewPlane(m.Name, color)
	case config.KindSkinnedStrip:
		model = scene.NewSkinnedStrip(m.Name, StripSegments, color)
	default:
		return nil, core.NewPreconditionError("model '%s' has unknown kind %q", m.Name, m.Kind)
	}
	model.TexturePath = m.Texture
	return model, nil
}

func modelTransform(m config.Model) mgl32.Mat4 {
	return math.ComposeTRS(mgl32.Vec3(m.Translation), math.EulerToQuat(mgl32.Vec3(m.Rotation)), mgl32.Vec3(m.Scale))
}

// decodeTextures reads the texture files of models on a worker pool. The
// result is indexed like models and holds nil for untextured ones.
func decodeTextures(models []*scene.Model) ([]*metadata.ImageResourceData, error) {
	out := make([]*metadata.ImageResourceData, len(models))
	pending := 0
	for _, m := range models {
		if m.TexturePath != "" {
			pending++
		}
	}
	if pending == 0 {
		return out, nil
	}
	js, err := jobs.NewJobSystem(min(pending, runtime.NumCPU()), pending)
	if err != nil {
		return nil, err
	}
	var (
		mu   sync.Mutex
		errs error
	)
	for i, m := range models {
		if m.TexturePath == "" {
			continue
		}
		i, path := i, m.TexturePath
		js.Submit(jobs.Task{
			Name: "texture " + path,
			Run: func() error {
				data, err := assets.LoadTexture(path, false)
				if err != nil {
					return err
				}
				out[i] = data
				return nil
			},
			OnFailure: func(err error) {
				mu.Lock()
				errs = errors.CombineErrors(errs, err)
				mu.Unlock()
			},
		})
	}
	if err := js.Shutdown(); err != nil {
		return nil, err
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

// uploadModel copies the geometry to the device and attaches the decoded
// texture, if any.
func uploadModel(ctx raytracing.BuildContext, model *scene.Model, texture *metadata.ImageResourceData) error {
	if err := model.Upload(ctx.Allocator); err != nil {
		return err
	}
	if texture == nil {
		return nil
	}
	tex, err := raytracing.UploadTexture(ctx, model.Name()+".basecolor", *texture)
	if err != nil {
		model.Dispose(ctx)
		return err
	}
	model.AttachTexture(0, *tex)
	return nil
}

// modelData turns an edit event into the controller request. UpdateBLAS is
// sized to the current model count.
func modelData(e *core.ModelEvent, models int) raytracing.ModelData {
	d := raytracing.ModelData{ModelIndex: e.ModelIndex, DeleteModel: e.DeleteModel}
	if e.DeleteModel {
		return d
	}
	if e.Scale != ([3]float32{}) {
		d.TransformValues = make([]float32, 0, 9)
		d.TransformValues = append(d.TransformValues, e.Translation[:]...)
		d.TransformValues = append(d.TransformValues, e.Rotation[:]...)
		d.TransformValues = append(d.TransformValues, e.Scale[:]...)
	}
	if e.UpdateBLAS && e.ModelIndex >= 0 && e.ModelIndex < models {
		d.UpdateBLAS = make([]bool, models)
		d.UpdateBLAS[e.ModelIndex] = true
	}
	return d
}

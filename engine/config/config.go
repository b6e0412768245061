package config

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/raytracing"
)

type Config struct {
	Application Application `toml:"application"`
	Renderer    Renderer    `toml:"renderer"`
	Scene       Scene       `toml:"scene"`
}

type Application struct {
	Name     string `toml:"name"`
	Width    uint32 `toml:"width"`
	Height   uint32 `toml:"height"`
	PosX     uint32 `toml:"pos_x"`
	PosY     uint32 `toml:"pos_y"`
	LogLevel string `toml:"log_level"`
}

type Renderer struct {
	Variant   string `toml:"variant"`
	ShaderDir string `toml:"shader_dir"`
	// MaxRayRecursion of 0 keeps the variant's own depth.
	MaxRayRecursion uint32 `toml:"max_ray_recursion"`
	StorageFormat   string `toml:"storage_format"`
	Validation      bool   `toml:"validation"`
	HotReload       bool   `toml:"hot_reload"`
}

type Scene struct {
	Models []Model `toml:"models"`
}

// Model places one procedural mesh. Rotation is euler degrees.
type Model struct {
	Name        string     `toml:"name"`
	Kind        string     `toml:"kind"`
	Translation [3]float32 `toml:"translation"`
	Rotation    [3]float32 `toml:"rotation"`
	Scale       [3]float32 `toml:"scale"`
	Texture     string     `toml:"texture"`
}

const (
	KindCube         = "cube"
	KindPlane        = "plane"
	KindSkinnedStrip = "skinned_strip"
)

func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func defaultModels() []Model {
	return []Model{
		{Name: "floor", Kind: KindPlane, Translation: [3]float32{0, -1, 0}, Scale: [3]float32{10, 1, 10}},
		{Name: "cube", Kind: KindCube, Scale: [3]float32{1, 1, 1}},
	}
}

func (c *Config) applyDefaults() {
	a := &c.Application
	if a.Name == "" {
		a.Name = "Lumen"
	}
	if a.Width == 0 {
		a.Width = 1280
	}
	if a.Height == 0 {
		a.Height = 720
	}
	if a.LogLevel == "" {
		a.LogLevel = "info"
	}

	r := &c.Renderer
	if r.Variant == "" {
		r.Variant = "main"
	}
	if r.ShaderDir == "" {
		r.ShaderDir = "shaders/compiled"
	}
	if r.StorageFormat == "" {
		r.StorageFormat = "bgra8"
	}

	if len(c.Scene.Models) == 0 {
		c.Scene.Models = defaultModels()
	}
	for i := range c.Scene.Models {
		m := &c.Scene.Models[i]
		if m.Scale == ([3]float32{}) {
			m.Scale = [3]float32{1, 1, 1}
		}
		if m.Kind == "" {
			m.Kind = KindCube
		}
	}
}

// Load reads a TOML file. Unknown keys are rejected; missing ones get defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open config %s", path)
	}
	defer f.Close()
	cfg, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

func Decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, errors.Newf("unknown configuration keys:\n%s", strict.String())
		}
		return nil, errors.Wrap(err, "decode")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.Application.Width == 0 || c.Application.Height == 0 {
		problems = append(problems, "application width and height must be positive")
	}
	if _, err := core.ParseLogLevel(c.Application.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := raytracing.VariantByName(c.Renderer.Variant); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := c.Renderer.Format(); err != nil {
		problems = append(problems, err.Error())
	}
	names := make(map[string]struct{}, len(c.Scene.Models))
	for i, m := range c.Scene.Models {
		switch m.Kind {
		case KindCube, KindPlane, KindSkinnedStrip:
		default:
			problems = append(problems, errors.Newf("model %d: unknown kind %q", i, m.Kind).Error())
		}
		if m.Name == "" {
			problems = append(problems, errors.Newf("model %d: missing name", i).Error())
			continue
		}
		if _, dup := names[m.Name]; dup {
			problems = append(problems, errors.Newf("model %d: duplicate name %q", i, m.Name).Error())
		}
		names[m.Name] = struct{}{}
	}
	if len(problems) > 0 {
		return errors.Newf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Format maps storage_format to the storage image format.
func (r Renderer) Format() (metadata.Format, error) {
	switch strings.ToLower(r.StorageFormat) {
	case "bgra8":
		return metadata.FormatB8G8R8A8Unorm, nil
	case "rgba8":
		return metadata.FormatR8G8B8A8Unorm, nil
	}
	return metadata.FormatUndefined, errors.Newf("unknown storage format %q", r.StorageFormat)
}

func (a Application) Level() core.LogLevel {
	level, err := core.ParseLogLevel(a.LogLevel)
	if err != nil {
		return core.InfoLevel
	}
	return level
}

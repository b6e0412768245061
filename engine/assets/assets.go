package assets

import (
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/lumen/engine/assets/loaders"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// LoadShaders reads the named SPIR-V files from dir concurrently. The
// result is keyed by file name. Any failing file fails the whole load.
func LoadShaders(dir string, names ...string) (map[string][]uint32, error) {
	if len(names) == 0 {
		return nil, errors.New("no shaders requested")
	}
	var (
		mu     sync.Mutex
		loaded = make(map[string][]uint32, len(names))
		loader = &loaders.ShaderLoader{}
	)
	g := new(errgroup.Group)
	for _, name := range names {
		name := name
		g.Go(func() error {
			code, err := loader.Load(filepath.Join(dir, name))
			if err != nil {
				return err
			}
			mu.Lock()
			loaded[name] = code
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	core.LogDebug("Loaded %d shaders from %s", len(loaded), dir)
	return loaded, nil
}

// LoadTexture decodes an image file into RGBA8 pixel data, flipped so row 0
// is the bottom of the image when flipY is set.
func LoadTexture(path string, flipY bool) (*metadata.ImageResourceData, error) {
	il := &loaders.ImageLoader{FlipY: flipY}
	return il.Load(path)
}

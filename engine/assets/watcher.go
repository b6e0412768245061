package assets

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/lumen/engine/core"
)

const DefaultDebounce = 200 * time.Millisecond

// ShaderWatcher publishes EVENT_CODE_SHADER_CHANGED once writes to compiled
// shaders under a directory have settled.
type ShaderWatcher struct {
	fsnotify *fsnotify.Watcher
	debounce time.Duration
	ext      string

	mu       sync.Mutex
	pending  map[string]struct{}
	timer    *time.Timer
	isClosed bool
	done     chan struct{}
	wg       sync.WaitGroup

	publish func(path string)
}

func fireShaderChanged(path string) {
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_SHADER_CHANGED,
		Data: &core.FileEvent{Path: path},
	})
}

func NewShaderWatcher(dir string, debounce time.Duration) (*ShaderWatcher, error) {
	return newShaderWatcher(dir, debounce, fireShaderChanged)
}

func newShaderWatcher(dir string, debounce time.Duration, publish func(path string)) (*ShaderWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create shader watcher")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	sw := &ShaderWatcher{
		fsnotify: fsWatch,
		debounce: debounce,
		ext:      ".spv",
		pending:  make(map[string]struct{}),
		done:     make(chan struct{}),
		publish:  publish,
	}
	if err := sw.watchRecursive(dir); err != nil {
		fsWatch.Close()
		return nil, err
	}
	sw.wg.Add(1)
	go sw.start()
	core.LogInfo("Watching %s for shader changes", dir)
	return sw, nil
}

func (sw *ShaderWatcher) start() {
	defer sw.wg.Done()
	for {
		select {
		case e, ok := <-sw.fsnotify.Events:
			if !ok {
				return
			}
			if e.Op&fsnotify.Create != 0 {
				if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
					if err := sw.watchRecursive(e.Name); err != nil {
						core.LogWarn("watch %s: %v", e.Name, err)
					}
					continue
				}
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 && filepath.Ext(e.Name) == sw.ext {
				sw.schedule(e.Name)
			}

		case err, ok := <-sw.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("shader watcher: %v", err)

		case <-sw.done:
			return
		}
	}
}

// schedule coalesces events arriving within the debounce window.
func (sw *ShaderWatcher) schedule(path string) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.isClosed {
		return
	}
	sw.pending[path] = struct{}{}
	if sw.timer != nil {
		sw.timer.Stop()
	}
	sw.timer = time.AfterFunc(sw.debounce, sw.flush)
}

func (sw *ShaderWatcher) flush() {
	sw.mu.Lock()
	if sw.isClosed {
		sw.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(sw.pending))
	for p := range sw.pending {
		paths = append(paths, p)
	}
	sw.pending = make(map[string]struct{})
	sw.mu.Unlock()

	for _, p := range paths {
		core.LogDebug("Shader changed: %s", p)
		sw.publish(p)
	}
}

// watchRecursive adds dir and every directory below it.
func (sw *ShaderWatcher) watchRecursive(dir string) error {
	return filepath.Walk(dir, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return sw.fsnotify.Add(walkPath)
		}
		return nil
	})
}

// Close stops the watcher. Pending events are dropped.
func (sw *ShaderWatcher) Close() error {
	sw.mu.Lock()
	if sw.isClosed {
		sw.mu.Unlock()
		return nil
	}
	sw.isClosed = true
	if sw.timer != nil {
		sw.timer.Stop()
	}
	sw.mu.Unlock()

	close(sw.done)
	err := sw.fsnotify.Close()
	sw.wg.Wait()
	return err
}

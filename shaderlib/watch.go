package shaderlib

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gogpu/gfxcore"
	"github.com/gogpu/gfxcore/device"
)

// DefaultDebounce is the quiet time after the last change of a shader
// before it is reloaded.
const DefaultDebounce = 100 * time.Millisecond

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	debounce time.Duration
	ready    func()
}

// WithDebounce sets the per-shader quiet time.
func WithDebounce(d time.Duration) WatchOption {
	return func(c *watchConfig) {
		c.debounce = d
	}
}

// WithReady registers a function called once dir is being watched.
func WithReady(fn func()) WatchOption {
	return func(c *watchConfig) {
		c.ready = fn
	}
}

// Watch calls fn with the full source of a shader whenever one of its
// stage files in dir is written, created or renamed. Changes to the same
// shader within the debounce window are delivered once. fn runs on the
// goroutine calling Watch, which blocks until ctx is done.
func Watch(ctx context.Context, dir string, fn func(name string, src device.ShaderSource), opts ...WatchOption) error {
	cfg := watchConfig{debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := gfxcore.Logger().With("component", "shaderlib", "dir", dir)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("shaderlib: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("shaderlib: watch: %w", err)
	}
	if cfg.ready != nil {
		cfg.ready()
	}

	pending := make(map[string]*time.Timer)
	fire := make(chan string)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			name, _, ok := ParseFileName(ev.Name)
			if !ok {
				continue
			}
			if t, ok := pending[name]; ok {
				t.Reset(cfg.debounce)
				continue
			}
			pending[name] = time.AfterFunc(cfg.debounce, func() {
				select {
				case fire <- name:
				case <-ctx.Done():
				}
			})

		case name := <-fire:
			delete(pending, name)
			src, err := LoadShader(dir, name)
			if err != nil {
				log.Warn("shader reload skipped", "shader", name, "error", err)
				continue
			}
			log.Debug("shader changed", "shader", name)
			fn(name, src)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error("watch error", "error", err)
		}
	}
}

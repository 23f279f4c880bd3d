package gfxcore

import (
	"errors"
	"log/slog"

	"github.com/gogpu/gpucontext"
)

// ErrContextUnavailable is returned when the graphics context cannot be
// activated.
var ErrContextUnavailable = errors.New("gfxcore: graphics context unavailable")

// GraphicsContext is the platform collaborator that owns the window
// surface. The render core calls exactly these three methods: Activate
// before a frame, Update to present it, and IsActive to check readiness.
type GraphicsContext interface {
	Activate() error
	Update() error
	IsActive() bool
}

// RenderContext holds the collaborators shared by every render component.
// It is built once per window and handed to the device, the command queue
// and the frame executor, replacing process-wide singletons.
type RenderContext struct {
	// Config is the configuration the context was created with.
	Config Config

	// Graphics is the platform context used for activation and present.
	Graphics GraphicsContext

	// Window reports the backbuffer size. May be nil, in which case
	// Config.Width and Config.Height are used.
	Window gpucontext.WindowProvider

	// Counters accumulates per-frame statistics.
	Counters *Counters

	log *slog.Logger
}

// ContextOption configures a RenderContext during creation.
type ContextOption func(*RenderContext)

// WithWindow sets the window provider used to size the backbuffer.
func WithWindow(w gpucontext.WindowProvider) ContextOption {
	return func(rc *RenderContext) {
		rc.Window = w
	}
}

// WithLogger pins a logger to the context. Without it the context follows
// the package logger set by SetLogger.
func WithLogger(l *slog.Logger) ContextOption {
	return func(rc *RenderContext) {
		rc.log = l
	}
}

// NewRenderContext creates a context around the given graphics context.
// A nil gc is replaced by a HeadlessContext.
func NewRenderContext(cfg Config, gc GraphicsContext, opts ...ContextOption) *RenderContext {
	if gc == nil {
		gc = &HeadlessContext{}
	}
	rc := &RenderContext{
		Config:   cfg,
		Graphics: gc,
		Counters: &Counters{},
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// Logger returns the logger components should log through.
func (rc *RenderContext) Logger() *slog.Logger {
	if rc == nil || rc.log == nil {
		return Logger()
	}
	return rc.log
}

// BackbufferSize returns the drawable size in physical pixels. The window
// provider wins over the configured size when it reports a non-empty area.
func (rc *RenderContext) BackbufferSize() (width, height uint32) {
	if rc.Window != nil {
		w, h := rc.Window.Size()
		if w > 0 && h > 0 {
			sf := rc.Window.ScaleFactor()
			if sf <= 0 {
				sf = 1
			}
			return uint32(float64(w) * sf), uint32(float64(h) * sf)
		}
	}
	return rc.Config.Width, rc.Config.Height
}

// HeadlessContext is a GraphicsContext without a window. Present is counted
// but otherwise discarded. Useful for tests and offscreen rendering.
type HeadlessContext struct {
	// Fail makes Activate return ErrContextUnavailable.
	Fail bool

	active   bool
	presents int
}

// Activate marks the context current.
func (h *HeadlessContext) Activate() error {
	if h.Fail {
		return ErrContextUnavailable
	}
	h.active = true
	return nil
}

// Update records a present.
func (h *HeadlessContext) Update() error {
	if !h.active {
		return ErrContextUnavailable
	}
	h.presents++
	return nil
}

// IsActive reports whether Activate succeeded.
func (h *HeadlessContext) IsActive() bool { return h.active }

// Presents returns how many frames were presented.
func (h *HeadlessContext) Presents() int { return h.presents }

package gfxcore

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the package-wide logger. Accessed atomically so that
// SetLogger can race with logging from the render goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the default logger for gfxcore and its sub-packages.
// By default, gfxcore produces no log output.
//
// A RenderContext created without an explicit logger resolves to this
// logger on every call. Devices, queues, executors and renderers derive
// their component loggers once when they are created, so call SetLogger
// before building them. Pass nil to restore the silent default.
//
// Log levels used by gfxcore:
//   - [slog.LevelDebug]: per-frame diagnostics (pipeline cache misses, pass skips)
//   - [slog.LevelInfo]: lifecycle events (backend selected, shader linked, scene cleared)
//   - [slog.LevelWarn]: degraded rendering (compile failure, dropped command, texture fallback)
//   - [slog.LevelError]: device failures (submit errors, lost targets)
//
// Example:
//
//	gfxcore.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current package-wide logger.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

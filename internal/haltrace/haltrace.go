// Package haltrace wraps a HAL device and queue so that every call that
// creates, binds or draws is appended to a Recorder.
//
// Tests use it as the mock device: the recorder log is the observable
// call order. With Config.Trace set, the render device wraps its HAL
// device with a recorder that forwards each call to the debug logger.
package haltrace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Call is one recorded HAL call.
type Call struct {
	Op   string
	Args string
}

func (c Call) String() string {
	if c.Args == "" {
		return c.Op
	}
	return c.Op + "(" + c.Args + ")"
}

// Recorder accumulates calls in order. Safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
	keep  bool
	log   *slog.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger forwards every call to l at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.log = l }
}

// Discard stops the recorder from retaining calls. Combine with
// WithLogger for a streaming trace.
func Discard() Option {
	return func(r *Recorder) { r.keep = false }
}

// NewRecorder creates a recorder that retains calls.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{keep: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) record(op string, format string, args ...any) {
	c := Call{Op: op}
	if format != "" {
		c.Args = fmt.Sprintf(format, args...)
	}
	if r.log != nil && r.log.Enabled(context.Background(), slog.LevelDebug) {
		r.log.Debug("hal call", "op", c.Op, "args", c.Args)
	}
	if !r.keep {
		return
	}
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Ops returns the recorded operation names in order.
func (r *Recorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Op
	}
	return out
}

// Filter returns the recorded calls whose Op is one of ops, in order.
func (r *Recorder) Filter(ops ...string) []Call {
	want := make(map[string]bool, len(ops))
	for _, op := range ops {
		want[op] = true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if want[c.Op] {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many times op was recorded.
func (r *Recorder) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Reset forgets all recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = r.calls[:0]
	r.mu.Unlock()
}

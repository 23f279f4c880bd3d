package frame

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gfxcore"
	"github.com/gogpu/gfxcore/cmdqueue"
	"github.com/gogpu/gfxcore/device"
)

// State is the position of the executor in a frame.
type State uint8

const (
	Idle State = iota
	PreFrame
	PerPass
	PostFrame
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PreFrame:
		return "pre-frame"
	case PerPass:
		return "per-pass"
	case PostFrame:
		return "post-frame"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Executor drives frames: it walks the pipeline passes, drains the
// commands of each pass into the device and presents the result.
//
// An Executor is used from a single goroutine, except RequestShutdown.
type Executor struct {
	rc       *gfxcore.RenderContext
	dev      *device.GraphicsDevice
	queue    *cmdqueue.Queue
	pipeline *Pipeline
	log      *slog.Logger

	state    State
	ready    bool
	shutdown atomic.Bool
	dispatch dispatcher
}

// NewExecutor creates an executor. A nil rc uses the device's context.
func NewExecutor(rc *gfxcore.RenderContext, dev *device.GraphicsDevice, queue *cmdqueue.Queue, pipeline *Pipeline) *Executor {
	if rc == nil && dev != nil {
		rc = dev.Context()
	}
	if rc == nil {
		rc = gfxcore.NewRenderContext(gfxcore.DefaultConfig(), nil)
	}
	if queue == nil {
		queue = cmdqueue.New(rc)
	}
	if pipeline == nil {
		pipeline = &Pipeline{}
	}
	e := &Executor{
		rc:       rc,
		dev:      dev,
		queue:    queue,
		pipeline: pipeline,
		log:      rc.Logger().With("component", "executor"),
	}
	e.dispatch = dispatcher{dev: dev, log: e.log}
	return e
}

// Queue returns the command queue drained by the executor.
func (e *Executor) Queue() *cmdqueue.Queue { return e.queue }

// Pipeline returns the pass pipeline.
func (e *Executor) Pipeline() *Pipeline { return e.pipeline }

// State returns the current frame state.
func (e *Executor) State() State { return e.state }

// Setup activates the graphics context. It is done once; later calls
// return nil. A failure means the core cannot render.
func (e *Executor) Setup(ctx context.Context) error {
	if e.ready {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.dev == nil {
		return ErrNoDevice
	}
	if e.pipeline.NumPasses() == 0 {
		return ErrNoPasses
	}
	if err := e.activate(); err != nil {
		return err
	}
	e.ready = true
	e.log.Info("executor ready", "passes", e.pipeline.NumPasses())
	return nil
}

func (e *Executor) activate() error {
	gc := e.rc.Graphics
	if gc == nil {
		return gfxcore.ErrContextUnavailable
	}
	if err := gc.Activate(); err != nil {
		if errors.Is(err, gfxcore.ErrContextUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", gfxcore.ErrContextUnavailable, err)
	}
	return nil
}

// RequestShutdown makes the next RunFrame return ErrShutdown before it
// touches the device. A frame in progress completes. Safe to call from
// any goroutine.
func (e *Executor) RequestShutdown() { e.shutdown.Store(true) }

// ShutdownRequested reports whether RequestShutdown was called.
func (e *Executor) ShutdownRequested() bool { return e.shutdown.Load() }

// RunFrame renders one frame. Failures inside a pass are logged and the
// remaining commands and passes still run; RunFrame only returns errors
// that prevent the frame from starting or being submitted.
func (e *Executor) RunFrame(ctx context.Context) error {
	if e.shutdown.Load() {
		return ErrShutdown
	}
	if err := e.Setup(ctx); err != nil {
		return err
	}
	if err := e.preFrame(); err != nil {
		e.state = Idle
		return err
	}
	e.perPass()
	return e.postFrame()
}

func (e *Executor) preFrame() error {
	e.state = PreFrame
	if err := e.activate(); err != nil {
		return err
	}
	if e.pipeline.NumPasses() == 0 {
		return ErrNoPasses
	}
	if e.pipeline.BeginFrame() == 0 {
		return ErrInFrame
	}
	for _, p := range e.pipeline.passes {
		p.dirty = e.queue.HasCommands(p.ID)
	}
	first := e.pipeline.passes[0]
	if err := e.dev.BeginFrame(first.Clear, first.ClearColor); err != nil {
		e.pipeline.EndFrame()
		return fmt.Errorf("frame: begin: %w", err)
	}
	return nil
}

func (e *Executor) perPass() {
	e.state = PerPass
	for _, p := range e.pipeline.passes {
		if !p.dirty {
			continue
		}
		if !e.pipeline.BeginPass(p.ID) {
			e.log.Warn("pass not started", "pass", p.ID)
			continue
		}
		if err := e.dev.BeginPass(p.target()); err != nil {
			e.log.Warn("pass skipped", "pass", p.Name, "error", err)
			e.pipeline.EndPass(p.ID)
			continue
		}
		e.dev.ApplyFixedState(p.State)
		e.dev.SetMatrix(device.MatrixModel, mgl32.Ident4())
		e.dev.SetMatrix(device.MatrixView, p.View)
		e.dev.SetMatrix(device.MatrixProjection, p.Projection)

		e.dispatch.pass = p
		n := e.queue.Drain(p.ID, &e.dispatch)
		e.dispatch.pass = nil

		e.dev.EndPass()
		e.pipeline.EndPass(p.ID)
		e.log.Debug("pass drawn", "pass", p.Name, "commands", n)
	}
}

func (e *Executor) postFrame() error {
	e.state = PostFrame
	defer func() { e.state = Idle }()

	e.dev.UseShader(nil)
	e.dev.UnbindVertexArray()
	err := e.dev.RenderFrame()
	if err != nil {
		err = fmt.Errorf("frame: render: %w", err)
	} else if perr := e.rc.Graphics.Update(); perr != nil {
		err = fmt.Errorf("frame: present: %w", perr)
	}

	e.queue.Clear()
	for _, p := range e.pipeline.passes {
		p.dirty = false
	}
	e.pipeline.EndFrame()
	e.rc.Counters.AddFrame()
	return err
}

// Run renders frames until ctx is done, frames frames were rendered, or a
// shutdown is requested. frames <= 0 means no limit. A shutdown ends Run
// without error. before, when not nil, runs ahead of every frame and is
// where producers refill the queue.
func (e *Executor) Run(ctx context.Context, frames int, before func() error) error {
	for n := 0; frames <= 0 || n < frames; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if before != nil {
			if err := before(); err != nil {
				return err
			}
		}
		err := e.RunFrame(ctx)
		if errors.Is(err, ErrShutdown) {
			e.log.Info("executor shut down", "frames", n)
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

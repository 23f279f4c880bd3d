package cmdqueue

import (
	"log/slog"
	"sync"

	"github.com/gogpu/gfxcore"
)

// Dispatcher receives drained commands, one method per command kind.
// Draw methods get the current matrix buffer of the command's batch, the
// zero MatrixBuffer when the batch has none.
type Dispatcher interface {
	SetMaterial(c *SetMaterial)
	DrawPrimitives(c *DrawPrimitives, m MatrixBuffer)
	DrawPrimitivesInstanced(c *DrawPrimitivesInstanced, m MatrixBuffer)
	SetRenderTarget(c *SetRenderTarget)
	SetParameter(c *SetParameter)
}

// Queue is an append-only list of render commands tagged by pass, plus the
// matrix buffers of every batch. Commands live until Clear; matrix buffers
// live until they are removed or ClearAll is called.
//
// Enqueue and the matrix methods may be called from any goroutine. Drain
// is called by the goroutine that owns the device.
type Queue struct {
	mu       sync.Mutex
	cmds     []Command
	perPass  map[PassID]int
	matrices map[string]MatrixBuffer

	counters *gfxcore.Counters
	log      *slog.Logger
}

// New creates an empty queue. rc may be nil.
func New(rc *gfxcore.RenderContext) *Queue {
	q := &Queue{
		perPass:  make(map[PassID]int),
		matrices: make(map[string]MatrixBuffer),
		log:      rc.Logger().With("component", "cmdqueue"),
	}
	if rc != nil {
		q.counters = rc.Counters
	}
	return q
}

// Enqueue appends cmd. Nil commands and commands missing their payload are
// logged and dropped.
func (q *Queue) Enqueue(cmd Command) bool {
	if err := validate(cmd); err != nil {
		q.log.Warn("command dropped", "error", err)
		q.counters.AddDroppedCommand()
		return false
	}
	q.mu.Lock()
	q.cmds = append(q.cmds, cmd)
	q.perPass[cmd.Pass()]++
	q.mu.Unlock()
	return true
}

// SetMatrixBuffer replaces the matrix buffer of a batch.
func (q *Queue) SetMatrixBuffer(batchID string, m MatrixBuffer) {
	q.mu.Lock()
	q.matrices[batchID] = m
	q.mu.Unlock()
}

// MatrixBuffer returns the matrix buffer of a batch.
func (q *Queue) MatrixBuffer(batchID string) (MatrixBuffer, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	m, ok := q.matrices[batchID]
	return m, ok
}

// RemoveMatrixBuffer drops the matrix buffer of a batch.
func (q *Queue) RemoveMatrixBuffer(batchID string) {
	q.mu.Lock()
	delete(q.matrices, batchID)
	q.mu.Unlock()
}

// NumMatrixBuffers returns the number of batches with a matrix buffer.
func (q *Queue) NumMatrixBuffers() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.matrices)
}

type drained struct {
	cmd Command
	m   MatrixBuffer
}

// Drain dispatches the commands of pass to d in enqueue order and returns
// how many were dispatched. Commands stay queued. Matrix buffers are read
// when Drain starts; commands enqueued by d are not dispatched.
func (q *Queue) Drain(pass PassID, d Dispatcher) int {
	q.mu.Lock()
	batch := make([]drained, 0, q.perPass[pass])
	for _, cmd := range q.cmds {
		if cmd.Pass() != pass {
			continue
		}
		e := drained{cmd: cmd}
		switch c := cmd.(type) {
		case *DrawPrimitives:
			e.m = q.matrices[c.BatchID]
		case *DrawPrimitivesInstanced:
			e.m = q.matrices[c.BatchID]
		}
		batch = append(batch, e)
	}
	q.mu.Unlock()

	for _, e := range batch {
		switch c := e.cmd.(type) {
		case *SetMaterial:
			d.SetMaterial(c)
		case *DrawPrimitives:
			d.DrawPrimitives(c, e.m)
		case *DrawPrimitivesInstanced:
			d.DrawPrimitivesInstanced(c, e.m)
		case *SetRenderTarget:
			d.SetRenderTarget(c)
		case *SetParameter:
			d.SetParameter(c)
		}
	}
	return len(batch)
}

// HasCommands reports whether any command is queued for pass.
func (q *Queue) HasCommands(pass PassID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.perPass[pass] > 0
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.cmds)
}

// Clear drops every command. Matrix buffers are kept.
func (q *Queue) Clear() {
	q.mu.Lock()
	clear(q.cmds)
	q.cmds = q.cmds[:0]
	clear(q.perPass)
	q.mu.Unlock()
}

// ClearAll drops every command and every matrix buffer.
func (q *Queue) ClearAll() {
	q.mu.Lock()
	clear(q.cmds)
	q.cmds = q.cmds[:0]
	clear(q.perPass)
	clear(q.matrices)
	q.mu.Unlock()
}

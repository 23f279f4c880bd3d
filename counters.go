package gfxcore

import "sync/atomic"

// Counters tracks render statistics. All methods are safe for concurrent
// use and tolerate a nil receiver.
type Counters struct {
	frames          atomic.Uint64
	draws           atomic.Uint64
	skippedDraws    atomic.Uint64
	stateChanges    atomic.Uint64
	pipelineHits    atomic.Uint64
	pipelineMisses  atomic.Uint64
	droppedCommands atomic.Uint64
}

// CounterSnapshot is a point-in-time copy of Counters.
type CounterSnapshot struct {
	Frames          uint64
	Draws           uint64
	SkippedDraws    uint64
	StateChanges    uint64
	PipelineHits    uint64
	PipelineMisses  uint64
	DroppedCommands uint64
}

func (c *Counters) AddFrame() {
	if c != nil {
		c.frames.Add(1)
	}
}

func (c *Counters) AddDraw() {
	if c != nil {
		c.draws.Add(1)
	}
}

func (c *Counters) AddSkippedDraw() {
	if c != nil {
		c.skippedDraws.Add(1)
	}
}

func (c *Counters) AddStateChange() {
	if c != nil {
		c.stateChanges.Add(1)
	}
}

// AddPipelineLookup records a pipeline cache hit or miss.
func (c *Counters) AddPipelineLookup(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.pipelineHits.Add(1)
	} else {
		c.pipelineMisses.Add(1)
	}
}

func (c *Counters) AddDroppedCommand() {
	if c != nil {
		c.droppedCommands.Add(1)
	}
}

// Snapshot returns the current values.
func (c *Counters) Snapshot() CounterSnapshot {
	if c == nil {
		return CounterSnapshot{}
	}
	return CounterSnapshot{
		Frames:          c.frames.Load(),
		Draws:           c.draws.Load(),
		SkippedDraws:    c.skippedDraws.Load(),
		StateChanges:    c.stateChanges.Load(),
		PipelineHits:    c.pipelineHits.Load(),
		PipelineMisses:  c.pipelineMisses.Load(),
		DroppedCommands: c.droppedCommands.Load(),
	}
}

// Reset zeroes every counter.
func (c *Counters) Reset() {
	if c == nil {
		return
	}
	c.frames.Store(0)
	c.draws.Store(0)
	c.skippedDraws.Store(0)
	c.stateChanges.Store(0)
	c.pipelineHits.Store(0)
	c.pipelineMisses.Store(0)
	c.droppedCommands.Store(0)
}

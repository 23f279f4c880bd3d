package frame

import (
	"fmt"

	"github.com/gogpu/gfxcore/cmdqueue"
)

// Pipeline is the ordered list of passes of a frame. It tracks which frame
// and pass are open so that mismatched begin/end calls are caught.
type Pipeline struct {
	passes []*Pass
	byID   map[cmdqueue.PassID]*Pass

	inFrame bool
	current *Pass
	frames  uint64
}

// NewPipeline returns a pipeline with the given passes.
func NewPipeline(passes ...*Pass) (*Pipeline, error) {
	pl := &Pipeline{byID: make(map[cmdqueue.PassID]*Pass)}
	for _, p := range passes {
		if err := pl.AddPass(p); err != nil {
			return nil, err
		}
	}
	return pl, nil
}

// AddPass appends p. A nil pass is ignored. Passes cannot be added while a
// frame is open.
func (pl *Pipeline) AddPass(p *Pass) error {
	if p == nil {
		return nil
	}
	if pl.inFrame {
		return ErrInFrame
	}
	if pl.byID == nil {
		pl.byID = make(map[cmdqueue.PassID]*Pass)
	}
	if _, dup := pl.byID[p.ID]; dup {
		return fmt.Errorf("%w: %d", ErrDuplicatePass, p.ID)
	}
	pl.passes = append(pl.passes, p)
	pl.byID[p.ID] = p
	return nil
}

// NumPasses returns the number of passes.
func (pl *Pipeline) NumPasses() int { return len(pl.passes) }

// PassByID returns the pass with the given ID, or nil.
func (pl *Pipeline) PassByID(id cmdqueue.PassID) *Pass { return pl.byID[id] }

// Passes returns the passes in execution order.
func (pl *Pipeline) Passes() []*Pass {
	out := make([]*Pass, len(pl.passes))
	copy(out, pl.passes)
	return out
}

// BeginFrame opens a frame and returns the number of passes to walk. It
// returns 0 when a frame is already open or there are no passes.
func (pl *Pipeline) BeginFrame() int {
	if pl.inFrame || len(pl.passes) == 0 {
		return 0
	}
	pl.inFrame = true
	return len(pl.passes)
}

// BeginPass opens pass id. It fails outside a frame, for an unknown id, or
// while another pass is open.
func (pl *Pipeline) BeginPass(id cmdqueue.PassID) bool {
	p, ok := pl.byID[id]
	if !pl.inFrame || !ok || pl.current != nil {
		return false
	}
	pl.current = p
	return true
}

// EndPass closes pass id. It returns false when id is not the open pass.
func (pl *Pipeline) EndPass(id cmdqueue.PassID) bool {
	if pl.current == nil || pl.current.ID != id {
		return false
	}
	pl.current = nil
	return true
}

// Current returns the open pass, or nil.
func (pl *Pipeline) Current() *Pass { return pl.current }

// EndFrame closes the frame and any pass left open.
func (pl *Pipeline) EndFrame() {
	if !pl.inFrame {
		return
	}
	pl.inFrame = false
	pl.current = nil
	pl.frames++
}

// Frames returns the number of frames ended.
func (pl *Pipeline) Frames() uint64 { return pl.frames }

// Clear removes every pass. It does nothing while a frame is open.
func (pl *Pipeline) Clear() {
	if pl.inFrame {
		return
	}
	clear(pl.passes)
	pl.passes = pl.passes[:0]
	clear(pl.byID)
}

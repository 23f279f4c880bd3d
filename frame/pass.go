package frame

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gfxcore"
	"github.com/gogpu/gfxcore/cmdqueue"
	"github.com/gogpu/gfxcore/device"
)

// Pass is one step of a Pipeline. Each frame it binds its target, applies
// its fixed state, view and projection, then draws the commands queued
// for its ID.
type Pass struct {
	ID   cmdqueue.PassID
	Name string

	// Target is the render texture drawn into, nil for the backbuffer.
	Target *device.Texture

	Viewport   device.Viewport
	View       mgl32.Mat4
	Projection mgl32.Mat4
	State      device.FixedState

	Clear      device.ClearState
	ClearColor [4]float64

	dirty bool
}

// NewPass returns a pass with identity matrices, the default fixed state
// and a full color and depth clear to opaque black.
func NewPass(id cmdqueue.PassID, name string) *Pass {
	return &Pass{
		ID:         id,
		Name:       name,
		View:       mgl32.Ident4(),
		Projection: mgl32.Ident4(),
		State:      device.DefaultFixedState(),
		Clear:      device.ClearColor | device.ClearDepth | device.ClearStencil,
		ClearColor: [4]float64{0, 0, 0, 1},
	}
}

// PassFromConfig builds a pass from its configuration. clearColor is the
// color used when the pass clears color.
func PassFromConfig(pc gfxcore.PassConfig, clearColor [4]float64) (*Pass, error) {
	p := NewPass(cmdqueue.PassID(pc.ID), pc.Name)
	if p.Name == "" {
		p.Name = fmt.Sprintf("pass%d", pc.ID)
	}
	clear, err := device.ParseClearState(pc.Clear)
	if err != nil {
		return nil, fmt.Errorf("frame: pass %d: %w", pc.ID, err)
	}
	state, err := device.ParseFixedState(pc.Cull, pc.Blend, pc.Polygon, pc.DepthTest)
	if err != nil {
		return nil, fmt.Errorf("frame: pass %d: %w", pc.ID, err)
	}
	p.Clear = clear
	p.ClearColor = clearColor
	p.State = state
	p.Viewport = device.Viewport{
		X:      pc.Viewport[0],
		Y:      pc.Viewport[1],
		Width:  pc.Viewport[2],
		Height: pc.Viewport[3],
	}
	return p, nil
}

// Dirty reports whether the pass has commands in the current frame.
func (p *Pass) Dirty() bool { return p.dirty }

func (p *Pass) target() device.PassTarget {
	return device.PassTarget{
		Label:      p.Name,
		Target:     p.Target,
		Clear:      p.Clear,
		ClearColor: p.ClearColor,
		ClearDepth: 1,
		Viewport:   p.Viewport,
	}
}

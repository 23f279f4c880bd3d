package device

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// PolygonMode selects how triangles are rasterized.
type PolygonMode uint8

const (
	PolygonFill PolygonMode = iota
	// PolygonLine draws the index stream as a line list. WebGPU has no
	// wireframe fill mode, so triangle edges are not reconstructed.
	PolygonLine
	PolygonPoint
)

func (m PolygonMode) String() string {
	switch m {
	case PolygonFill:
		return "fill"
	case PolygonLine:
		return "line"
	case PolygonPoint:
		return "point"
	default:
		return fmt.Sprintf("PolygonMode(%d)", uint8(m))
	}
}

// topology returns the topology used to draw t under m.
func (m PolygonMode) topology(t gputypes.PrimitiveTopology) gputypes.PrimitiveTopology {
	switch m {
	case PolygonLine:
		if t == gputypes.PrimitiveTopologyTriangleList || t == gputypes.PrimitiveTopologyTriangleStrip {
			return gputypes.PrimitiveTopologyLineList
		}
	case PolygonPoint:
		return gputypes.PrimitiveTopologyPointList
	}
	return t
}

// BlendMode selects a color blend equation.
type BlendMode uint8

const (
	BlendReplace BlendMode = iota
	BlendAlpha
	BlendPremultiplied
	BlendAdditive
)

func (b BlendMode) String() string {
	switch b {
	case BlendReplace:
		return "replace"
	case BlendAlpha:
		return "alpha"
	case BlendPremultiplied:
		return "premultiplied"
	case BlendAdditive:
		return "additive"
	default:
		return fmt.Sprintf("BlendMode(%d)", uint8(b))
	}
}

// state returns the HAL blend state, nil for replace.
func (b BlendMode) state() *gputypes.BlendState {
	var s gputypes.BlendState
	switch b {
	case BlendAlpha:
		s = gputypes.BlendStateAlpha()
	case BlendPremultiplied:
		s = gputypes.BlendStatePremultiplied()
	case BlendAdditive:
		add := gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOne,
			Operation: gputypes.BlendOperationAdd,
		}
		s = gputypes.BlendState{Color: add, Alpha: add}
	default:
		return nil
	}
	return &s
}

// SamplerState configures the sampler bound next to each texture.
type SamplerState struct {
	Filter  gputypes.FilterMode
	Address gputypes.AddressMode
	Mipmaps bool
}

// StencilState configures the stencil test for both faces.
type StencilState struct {
	Enabled   bool
	Compare   gputypes.CompareFunction
	Fail      hal.StencilOperation
	DepthFail hal.StencilOperation
	Pass      hal.StencilOperation
	Reference uint32
	ReadMask  uint32
	WriteMask uint32
}

// DepthState configures the depth test.
type DepthState struct {
	Test    bool
	Write   bool
	Compare gputypes.CompareFunction
}

// FixedState is the aggregate of fixed-function state. It is comparable
// and part of the render pipeline key.
type FixedState struct {
	Polygon   PolygonMode
	Cull      gputypes.CullMode
	FrontFace gputypes.FrontFace
	Blend     BlendMode
	Sampler   SamplerState
	Stencil   StencilState
	Depth     DepthState
}

// DefaultFixedState returns filled, back-face culled, opaque, depth tested
// rendering with linear repeat sampling.
func DefaultFixedState() FixedState {
	return FixedState{
		Polygon:   PolygonFill,
		Cull:      gputypes.CullModeBack,
		FrontFace: gputypes.FrontFaceCCW,
		Blend:     BlendReplace,
		Sampler: SamplerState{
			Filter:  gputypes.FilterModeLinear,
			Address: gputypes.AddressModeRepeat,
			Mipmaps: true,
		},
		Stencil: StencilState{
			Compare:   gputypes.CompareFunctionAlways,
			ReadMask:  0xFF,
			WriteMask: 0xFF,
		},
		Depth: DepthState{
			Test:    true,
			Write:   true,
			Compare: gputypes.CompareFunctionLessEqual,
		},
	}
}

// ApplyFixedState makes s the state of the following draws. It returns
// false and does nothing when s equals the applied state.
func (d *GraphicsDevice) ApplyFixedState(s FixedState) bool {
	if d.stateApplied && s == d.state {
		return false
	}
	d.state = s
	d.stateApplied = true
	d.currentPipeline = nil
	d.rc.Counters.AddStateChange()
	if d.frame.pass != nil && s.Stencil.Enabled {
		d.frame.pass.SetStencilReference(s.Stencil.Reference)
	}
	return true
}

// CurrentState returns the applied fixed state.
func (d *GraphicsDevice) CurrentState() FixedState { return d.state }

// ClearState is a bitmask of the attachments cleared at pass start.
type ClearState uint8

const (
	ClearColor ClearState = 1 << iota
	ClearDepth
	ClearStencil

	ClearNone ClearState = 0
	ClearAll             = ClearColor | ClearDepth | ClearStencil
)

// Has reports whether every bit of c2 is set.
func (c ClearState) Has(c2 ClearState) bool { return c&c2 == c2 }

func (c ClearState) String() string {
	if c == ClearNone {
		return "none"
	}
	var parts []string
	if c.Has(ClearColor) {
		parts = append(parts, "color")
	}
	if c.Has(ClearDepth) {
		parts = append(parts, "depth")
	}
	if c.Has(ClearStencil) {
		parts = append(parts, "stencil")
	}
	return strings.Join(parts, "|")
}

// ParseClearState parses attachment names: color, depth, stencil, all.
func ParseClearState(names []string) (ClearState, error) {
	var c ClearState
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "color":
			c |= ClearColor
		case "depth":
			c |= ClearDepth
		case "stencil":
			c |= ClearStencil
		case "all":
			c |= ClearAll
		default:
			return 0, fmt.Errorf("device: unknown clear target %q", n)
		}
	}
	return c, nil
}

// ParseFixedState builds a state from config names, starting from
// DefaultFixedState. Empty names keep the default.
func ParseFixedState(cull, blend, polygon string, depthTest bool) (FixedState, error) {
	s := DefaultFixedState()
	switch strings.ToLower(cull) {
	case "":
	case "none":
		s.Cull = gputypes.CullModeNone
	case "front":
		s.Cull = gputypes.CullModeFront
	case "back":
		s.Cull = gputypes.CullModeBack
	default:
		return s, fmt.Errorf("device: unknown cull mode %q", cull)
	}
	switch strings.ToLower(blend) {
	case "", "replace", "opaque":
		s.Blend = BlendReplace
	case "alpha":
		s.Blend = BlendAlpha
	case "premultiplied":
		s.Blend = BlendPremultiplied
	case "additive":
		s.Blend = BlendAdditive
	default:
		return s, fmt.Errorf("device: unknown blend mode %q", blend)
	}
	switch strings.ToLower(polygon) {
	case "", "fill":
		s.Polygon = PolygonFill
	case "line":
		s.Polygon = PolygonLine
	case "point":
		s.Polygon = PolygonPoint
	default:
		return s, fmt.Errorf("device: unknown polygon mode %q", polygon)
	}
	s.Depth.Test = depthTest
	s.Depth.Write = depthTest
	return s, nil
}

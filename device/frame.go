package device

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Viewport is a rectangle in target pixels with a depth range. A zero
// width or height covers the whole target.
type Viewport struct {
	X, Y               float32
	Width, Height      float32
	MinDepth, MaxDepth float32
}

func (v Viewport) resolve(t *Texture) Viewport {
	if v.Width <= 0 || v.Height <= 0 {
		v = Viewport{Width: float32(t.Width), Height: float32(t.Height)}
	}
	if v.MaxDepth <= v.MinDepth {
		v.MinDepth, v.MaxDepth = 0, 1
	}
	return v
}

// PassTarget describes the attachments of a render pass. A nil Target
// renders into the backbuffer. Attachments not named in Clear keep their
// content. ClearDepth applies when Clear has ClearDepth; depth cleared
// only by the BeginFrame request clears to 1.
type PassTarget struct {
	Label        string
	Target       *Texture
	Clear        ClearState
	ClearColor   [4]float64
	ClearDepth   float32
	ClearStencil uint32
	Viewport     Viewport
}

// frameState is the recording state between BeginFrame and RenderFrame.
type frameState struct {
	active  bool
	encoder hal.CommandEncoder
	pass    hal.RenderPassEncoder
	target  *Texture

	viewport Viewport

	// Clear requested by BeginFrame, applied by the first backbuffer pass.
	pendingClear ClearState
	pendingColor [4]float64
	cleared      bool

	bindGroups   map[bindGroupKey]hal.BindGroup
	deadBuffers  []hal.Buffer
	deadTextures []hal.Texture
	deadViews    []hal.TextureView

	// Submitted frames whose resources wait for the GPU.
	inflight []inflightFrame
}

type inflightFrame struct {
	index      uint64
	cmd        hal.CommandBuffer
	bindGroups []hal.BindGroup
	buffers    []hal.Buffer
	textures   []hal.Texture
	views      []hal.TextureView
	pipelines  []hal.RenderPipeline
}

// InFrame reports whether a frame is being recorded.
func (d *GraphicsDevice) InFrame() bool { return d.frame.active }

// BeginFrame starts recording a frame. The clear applies to the first pass
// that renders into the backbuffer; when no pass does, RenderFrame clears
// the backbuffer on its own.
func (d *GraphicsDevice) BeginFrame(clear ClearState, color [4]float64) error {
	if d.hd == nil {
		return ErrNilDevice
	}
	if d.frame.active {
		return ErrFrameActive
	}
	d.reclaim(false)
	if _, err := d.Backbuffer(); err != nil {
		return err
	}

	enc, err := d.hd.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "frame"})
	if err != nil {
		return fmt.Errorf("device: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding("frame"); err != nil {
		return fmt.Errorf("device: begin encoding: %w", err)
	}

	f := &d.frame
	f.active = true
	f.encoder = enc
	f.pendingClear = clear
	f.pendingColor = color
	f.cleared = false
	f.bindGroups = make(map[bindGroupKey]hal.BindGroup)
	d.ring.reset()
	d.currentVAO = nil
	d.currentPipeline = nil
	return nil
}

// BeginPass ends the current HAL pass, if any, and starts a new one on pt.
func (d *GraphicsDevice) BeginPass(pt PassTarget) error {
	f := &d.frame
	if !f.active {
		return ErrNoFrame
	}
	target := pt.Target
	if target == nil {
		target = d.backbuffer
	} else if !target.IsRenderTarget() || target.view == nil {
		return fmt.Errorf("%w: %q", ErrNotRenderTarget, target.Name)
	}
	d.EndPass()

	clear, color := pt.Clear, pt.ClearColor
	if target == d.backbuffer && !f.cleared {
		if !clear.Has(ClearColor) && f.pendingClear.Has(ClearColor) {
			color = f.pendingColor
		}
		clear |= f.pendingClear
		f.cleared = true
	}
	clearDepth := pt.ClearDepth
	if clearDepth == 0 && pt.Clear&ClearDepth == 0 {
		clearDepth = 1
	}

	label := pt.Label
	if label == "" {
		label = target.Name
	}
	desc := &hal.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target.view,
			LoadOp:     loadOp(clear.Has(ClearColor)),
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: color[0], G: color[1], B: color[2], A: color[3]},
		}},
	}
	if target.depthView != nil {
		ds := &hal.RenderPassDepthStencilAttachment{
			View:            target.depthView,
			DepthLoadOp:     loadOp(clear.Has(ClearDepth)),
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: clearDepth,
		}
		if d.opts.depthFormat.HasStencil() {
			ds.StencilLoadOp = loadOp(clear.Has(ClearStencil))
			ds.StencilStoreOp = gputypes.StoreOpStore
			ds.StencilClearValue = pt.ClearStencil
		}
		desc.DepthStencilAttachment = ds
	}

	f.pass = f.encoder.BeginRenderPass(desc)
	f.target = target
	// A fresh pass encoder carries no bindings.
	d.currentVAO = nil
	d.currentPipeline = nil

	d.SetViewport(pt.Viewport)
	if d.state.Stencil.Enabled {
		f.pass.SetStencilReference(d.state.Stencil.Reference)
	}
	return nil
}

func loadOp(clear bool) gputypes.LoadOp {
	if clear {
		return gputypes.LoadOpClear
	}
	return gputypes.LoadOpLoad
}

// SetViewport sets the viewport of the current pass. A zero size covers
// the whole target.
func (d *GraphicsDevice) SetViewport(v Viewport) {
	f := &d.frame
	target := f.target
	if target == nil {
		target = d.backbuffer
	}
	if target != nil {
		v = v.resolve(target)
	}
	f.viewport = v
	if f.pass != nil {
		f.pass.SetViewport(v.X, v.Y, v.Width, v.Height, v.MinDepth, v.MaxDepth)
	}
}

// CurrentViewport returns the last viewport set.
func (d *GraphicsDevice) CurrentViewport() Viewport { return d.frame.viewport }

// CurrentTarget returns the texture of the current pass, or nil outside a
// pass.
func (d *GraphicsDevice) CurrentTarget() *Texture {
	if d.frame.pass == nil {
		return nil
	}
	return d.frame.target
}

// SetRenderTarget ends the current pass and continues on tex, or on the
// backbuffer for nil. The target keeps its content.
func (d *GraphicsDevice) SetRenderTarget(tex *Texture) error {
	label := "backbuffer"
	if tex != nil {
		label = tex.Name
	}
	return d.BeginPass(PassTarget{Label: label, Target: tex})
}

// EndPass ends the current HAL pass.
func (d *GraphicsDevice) EndPass() {
	f := &d.frame
	if f.pass == nil {
		return
	}
	f.pass.End()
	f.pass = nil
	f.target = nil
	d.currentVAO = nil
	d.currentPipeline = nil
}

// RenderFrame finishes recording and submits the frame. Presenting is
// left to the graphics context.
func (d *GraphicsDevice) RenderFrame() error {
	f := &d.frame
	if !f.active {
		return ErrNoFrame
	}
	if !f.cleared && f.pendingClear != ClearNone {
		if err := d.BeginPass(PassTarget{Label: "clear"}); err != nil {
			d.abortFrame()
			return err
		}
	}
	d.EndPass()

	cmd, err := f.encoder.EndEncoding()
	if err != nil {
		d.abortFrame()
		return fmt.Errorf("device: end encoding: %w", err)
	}
	index, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		d.hd.FreeCommandBuffer(cmd)
		d.abortFrame()
		return fmt.Errorf("device: submit: %w", err)
	}

	done := inflightFrame{
		index:     index,
		cmd:       cmd,
		buffers:   f.deadBuffers,
		textures:  f.deadTextures,
		views:     f.deadViews,
		pipelines: d.retired,
	}
	for _, bg := range f.bindGroups {
		done.bindGroups = append(done.bindGroups, bg)
	}
	f.inflight = append(f.inflight, done)
	d.retired = nil
	d.finishFrame()
	d.reclaim(false)
	return nil
}

// abortFrame discards a frame being recorded.
func (d *GraphicsDevice) abortFrame() {
	f := &d.frame
	if !f.active {
		return
	}
	if f.pass != nil {
		f.pass.End()
		f.pass = nil
	}
	f.encoder.DiscardEncoding()

	// Nothing recorded was submitted, so the GPU holds no reference.
	for _, bg := range f.bindGroups {
		d.hd.DestroyBindGroup(bg)
	}
	f.active = false
	d.destroyDead(f.deadBuffers, f.deadTextures, f.deadViews)
	d.finishFrame()
	d.flushRetired()
}

func (d *GraphicsDevice) finishFrame() {
	f := &d.frame
	f.active = false
	f.encoder = nil
	f.pass = nil
	f.target = nil
	f.bindGroups = nil
	f.deadBuffers = nil
	f.deadTextures = nil
	f.deadViews = nil
	d.ring.reset()
	d.currentVAO = nil
	d.currentPipeline = nil
}

// reclaim destroys the resources of submitted frames the GPU completed.
// wait blocks until every submission completed.
func (d *GraphicsDevice) reclaim(wait bool) {
	f := &d.frame
	if len(f.inflight) == 0 {
		return
	}
	if wait {
		if err := d.hd.WaitIdle(); err != nil {
			d.log.Warn("wait idle failed", "error", err)
		}
	}
	completed := d.queue.PollCompleted()
	kept := f.inflight[:0]
	for _, fr := range f.inflight {
		if !wait && fr.index > completed {
			kept = append(kept, fr)
			continue
		}
		for _, bg := range fr.bindGroups {
			d.hd.DestroyBindGroup(bg)
		}
		for _, p := range fr.pipelines {
			d.hd.DestroyRenderPipeline(p)
		}
		d.destroyDead(fr.buffers, fr.textures, fr.views)
		d.hd.FreeCommandBuffer(fr.cmd)
	}
	clear(f.inflight[len(kept):])
	f.inflight = kept
}

func (d *GraphicsDevice) destroyDead(buffers []hal.Buffer, textures []hal.Texture, views []hal.TextureView) {
	for _, b := range buffers {
		d.hd.DestroyBuffer(b)
	}
	for _, v := range views {
		d.hd.DestroyTextureView(v)
	}
	for _, t := range textures {
		d.hd.DestroyTexture(t)
	}
}

// ResizeBackbuffer sets the configured backbuffer size. A window provider
// attached to the render context still wins when it reports a size.
func (d *GraphicsDevice) ResizeBackbuffer(width, height uint32) error {
	if d.frame.active {
		return ErrFrameActive
	}
	d.rc.Config.Width = width
	d.rc.Config.Height = height
	_, err := d.Backbuffer()
	return err
}

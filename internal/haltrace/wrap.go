package haltrace

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Wrap returns a device and queue that record into r before delegating.
// Encoders and render passes created through the returned device are
// wrapped as well.
func Wrap(d hal.Device, q hal.Queue, r *Recorder) (hal.Device, hal.Queue) {
	return &device{Device: d, rec: r}, &queue{Queue: q, rec: r}
}

type device struct {
	hal.Device
	rec *Recorder
}

func (d *device) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	d.rec.record("CreateBuffer", "%s size=%d", desc.Label, desc.Size)
	return d.Device.CreateBuffer(desc)
}

func (d *device) DestroyBuffer(b hal.Buffer) {
	d.rec.record("DestroyBuffer", "")
	d.Device.DestroyBuffer(b)
}

func (d *device) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	d.rec.record("CreateTexture", "%s %dx%d mips=%d", desc.Label, desc.Size.Width, desc.Size.Height, desc.MipLevelCount)
	return d.Device.CreateTexture(desc)
}

func (d *device) DestroyTexture(t hal.Texture) {
	d.rec.record("DestroyTexture", "")
	d.Device.DestroyTexture(t)
}

func (d *device) CreateSampler(desc *hal.SamplerDescriptor) (hal.Sampler, error) {
	d.rec.record("CreateSampler", "%s", desc.Label)
	return d.Device.CreateSampler(desc)
}

func (d *device) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	d.rec.record("CreateShaderModule", "%s", desc.Label)
	return d.Device.CreateShaderModule(desc)
}

func (d *device) DestroyShaderModule(m hal.ShaderModule) {
	d.rec.record("DestroyShaderModule", "")
	d.Device.DestroyShaderModule(m)
}

func (d *device) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	d.rec.record("CreateRenderPipeline", "%s", desc.Label)
	return d.Device.CreateRenderPipeline(desc)
}

func (d *device) DestroyRenderPipeline(p hal.RenderPipeline) {
	d.rec.record("DestroyRenderPipeline", "")
	d.Device.DestroyRenderPipeline(p)
}

func (d *device) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	d.rec.record("CreateBindGroup", "%s entries=%d", desc.Label, len(desc.Entries))
	return d.Device.CreateBindGroup(desc)
}

func (d *device) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	d.rec.record("CreateCommandEncoder", "%s", desc.Label)
	enc, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return &encoder{CommandEncoder: enc, rec: d.rec}, nil
}

type queue struct {
	hal.Queue
	rec *Recorder
}

func (q *queue) Submit(bufs []hal.CommandBuffer) (uint64, error) {
	q.rec.record("Submit", "buffers=%d", len(bufs))
	return q.Queue.Submit(bufs)
}

func (q *queue) WriteBuffer(b hal.Buffer, offset uint64, data []byte) error {
	q.rec.record("WriteBuffer", "offset=%d len=%d", offset, len(data))
	return q.Queue.WriteBuffer(b, offset, data)
}

func (q *queue) WriteTexture(dst *hal.ImageCopyTexture, data []byte, layout *hal.ImageDataLayout, size *hal.Extent3D) error {
	q.rec.record("WriteTexture", "mip=%d %dx%d", dst.MipLevel, size.Width, size.Height)
	return q.Queue.WriteTexture(dst, data, layout, size)
}

type encoder struct {
	hal.CommandEncoder
	rec *Recorder
}

func (e *encoder) BeginEncoding(label string) error {
	e.rec.record("BeginEncoding", "%s", label)
	return e.CommandEncoder.BeginEncoding(label)
}

func (e *encoder) EndEncoding() (hal.CommandBuffer, error) {
	e.rec.record("EndEncoding", "")
	return e.CommandEncoder.EndEncoding()
}

func (e *encoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	load := gputypes.LoadOpUndefined
	if len(desc.ColorAttachments) > 0 {
		load = desc.ColorAttachments[0].LoadOp
	}
	e.rec.record("BeginRenderPass", "%s load=%s", desc.Label, load)
	return &pass{RenderPassEncoder: e.CommandEncoder.BeginRenderPass(desc), rec: e.rec}
}

type pass struct {
	hal.RenderPassEncoder
	rec *Recorder
}

func (p *pass) End() {
	p.rec.record("EndRenderPass", "")
	p.RenderPassEncoder.End()
}

func (p *pass) SetPipeline(pl hal.RenderPipeline) {
	p.rec.record("SetPipeline", "")
	p.RenderPassEncoder.SetPipeline(pl)
}

func (p *pass) SetBindGroup(index uint32, g hal.BindGroup, offsets []uint32) {
	p.rec.record("SetBindGroup", "group=%d offsets=%v", index, offsets)
	p.RenderPassEncoder.SetBindGroup(index, g, offsets)
}

func (p *pass) SetVertexBuffer(slot uint32, b hal.Buffer, offset uint64) {
	p.rec.record("SetVertexBuffer", "slot=%d", slot)
	p.RenderPassEncoder.SetVertexBuffer(slot, b, offset)
}

func (p *pass) SetIndexBuffer(b hal.Buffer, format gputypes.IndexFormat, offset uint64) {
	p.rec.record("SetIndexBuffer", "%s", format)
	p.RenderPassEncoder.SetIndexBuffer(b, format, offset)
}

func (p *pass) SetViewport(x, y, w, h, minDepth, maxDepth float32) {
	p.rec.record("SetViewport", "%g,%g %gx%g", x, y, w, h)
	p.RenderPassEncoder.SetViewport(x, y, w, h, minDepth, maxDepth)
}

func (p *pass) SetStencilReference(ref uint32) {
	p.rec.record("SetStencilReference", "%d", ref)
	p.RenderPassEncoder.SetStencilReference(ref)
}

func (p *pass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.rec.record("Draw", "count=%d instances=%d first=%d", vertexCount, instanceCount, firstVertex)
	p.RenderPassEncoder.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *pass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.rec.record("DrawIndexed", "count=%d instances=%d first=%d", indexCount, instanceCount, firstIndex)
	p.RenderPassEncoder.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

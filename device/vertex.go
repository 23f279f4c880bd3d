package device

import (
	"fmt"

	"github.com/gogpu/gfxcore/registry"
	"github.com/gogpu/gputypes"
)

// VertexAttribute is one named attribute of an interleaved vertex.
type VertexAttribute struct {
	Name   string
	Format gputypes.VertexFormat
	Offset uint64
}

// VertexLayout describes an interleaved vertex buffer. Attribute names are
// matched against the vertex stage inputs of the bound shader.
type VertexLayout struct {
	Name       string
	Stride     uint64
	Attributes []VertexAttribute
}

// ColorVertex is position, normal and color0, three f32x3 each.
var ColorVertex = VertexLayout{
	Name:   "color",
	Stride: 36,
	Attributes: []VertexAttribute{
		{Name: "position", Format: gputypes.VertexFormatFloat32x3, Offset: 0},
		{Name: "normal", Format: gputypes.VertexFormatFloat32x3, Offset: 12},
		{Name: "color0", Format: gputypes.VertexFormatFloat32x3, Offset: 24},
	},
}

// RenderVertex is ColorVertex followed by an f32x2 texcoord0.
var RenderVertex = VertexLayout{
	Name:   "render",
	Stride: 44,
	Attributes: []VertexAttribute{
		{Name: "position", Format: gputypes.VertexFormatFloat32x3, Offset: 0},
		{Name: "normal", Format: gputypes.VertexFormatFloat32x3, Offset: 12},
		{Name: "color0", Format: gputypes.VertexFormatFloat32x3, Offset: 24},
		{Name: "texcoord0", Format: gputypes.VertexFormatFloat32x2, Offset: 36},
	},
}

// Attribute returns the attribute called name.
func (l VertexLayout) Attribute(name string) (VertexAttribute, bool) {
	for _, a := range l.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return VertexAttribute{}, false
}

// bufferLayout builds the HAL vertex buffer layout for sh: every attribute
// the shader consumes, at the location the shader declares.
func (l VertexLayout) bufferLayout(sh *Shader) (gputypes.VertexBufferLayout, error) {
	out := gputypes.VertexBufferLayout{
		ArrayStride: l.Stride,
		StepMode:    gputypes.VertexStepModeVertex,
	}
	for _, in := range sh.refl.inputs {
		a, ok := l.Attribute(in.name)
		if !ok {
			return out, fmt.Errorf("%w: layout %q, attribute %q", ErrMissingAttribute, l.Name, in.name)
		}
		out.Attributes = append(out.Attributes, gputypes.VertexAttribute{
			Format:         a.Format,
			Offset:         a.Offset,
			ShaderLocation: in.location,
		})
	}
	return out, nil
}

// VertexArray pairs a vertex buffer with an optional index buffer.
type VertexArray struct {
	Handle      registry.Handle
	Vertices    *Buffer
	Indices     *Buffer
	Layout      VertexLayout
	IndexFormat gputypes.IndexFormat
}

func (vao *VertexArray) indexed() bool {
	return vao.Indices.Resident() && vao.IndexFormat != gputypes.IndexFormatUndefined
}

// CreateVertexArray allocates a vertex array slot. ib may be nil for
// non-indexed geometry.
func (d *GraphicsDevice) CreateVertexArray(vb, ib *Buffer, layout VertexLayout, indexFormat gputypes.IndexFormat) *VertexArray {
	if ib == nil {
		indexFormat = gputypes.IndexFormatUndefined
	}
	vao := &VertexArray{
		Vertices:    vb,
		Indices:     ib,
		Layout:      layout,
		IndexFormat: indexFormat,
	}
	vao.Handle = d.vertexArrays.Allocate(vao)
	return vao
}

// BindVertexArray makes vao current. Binding the current vertex array does
// nothing; otherwise its buffers are set on the active pass.
func (d *GraphicsDevice) BindVertexArray(vao *VertexArray) {
	if vao == d.currentVAO {
		return
	}
	d.currentVAO = vao
	d.applyVertexArray()
}

// UnbindVertexArray clears the current vertex array.
func (d *GraphicsDevice) UnbindVertexArray() {
	d.currentVAO = nil
}

// CurrentVertexArray returns the bound vertex array, or nil.
func (d *GraphicsDevice) CurrentVertexArray() *VertexArray { return d.currentVAO }

func (d *GraphicsDevice) applyVertexArray() {
	pass, vao := d.frame.pass, d.currentVAO
	if pass == nil || vao == nil {
		return
	}
	if vao.Vertices.Resident() {
		pass.SetVertexBuffer(0, vao.Vertices.raw, 0)
	}
	if vao.indexed() {
		pass.SetIndexBuffer(vao.Indices.raw, vao.IndexFormat, 0)
	}
}

// ReleaseVertexArray frees the vertex array slot. The buffers it refers
// to are not released.
func (d *GraphicsDevice) ReleaseVertexArray(vao *VertexArray) bool {
	if vao == nil || !d.vertexArrays.Release(vao.Handle) {
		return false
	}
	if d.currentVAO == vao {
		d.currentVAO = nil
	}
	vao.Handle = registry.InvalidHandle
	return true
}

// ReleaseAllVertexArrays frees every vertex array slot.
func (d *GraphicsDevice) ReleaseAllVertexArrays() {
	d.vertexArrays.Each(func(_ registry.Handle, vao *VertexArray) {
		vao.Handle = registry.InvalidHandle
	})
	d.vertexArrays.Reset()
	d.currentVAO = nil
}

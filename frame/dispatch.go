package frame

import (
	"log/slog"

	"github.com/gogpu/gfxcore/cmdqueue"
	"github.com/gogpu/gfxcore/device"
)

// dispatcher replays drained commands on the device within one pass.
// State set by a command stays in effect for the commands after it.
type dispatcher struct {
	dev  *device.GraphicsDevice
	log  *slog.Logger
	pass *Pass
}

var _ cmdqueue.Dispatcher = (*dispatcher)(nil)

func (d *dispatcher) SetMaterial(c *cmdqueue.SetMaterial) {
	if !d.dev.UseShader(c.Shader) {
		return
	}
	for unit := range device.MaxTextureUnits {
		var tex *device.Texture
		if unit < len(c.Textures) {
			tex = c.Textures[unit]
		}
		d.dev.BindTexture(unit, tex)
	}
	for _, p := range c.Parameters {
		d.dev.SetUniform(p)
	}
}

func (d *dispatcher) DrawPrimitives(c *cmdqueue.DrawPrimitives, m cmdqueue.MatrixBuffer) {
	if !d.prepareDraw(c.VertexArray, m) {
		return
	}
	for _, g := range c.Groups {
		d.dev.Draw(g)
	}
}

func (d *dispatcher) DrawPrimitivesInstanced(c *cmdqueue.DrawPrimitivesInstanced, m cmdqueue.MatrixBuffer) {
	if !d.prepareDraw(c.VertexArray, m) {
		return
	}
	for _, g := range c.Groups {
		d.dev.DrawInstanced(g, c.Instances)
	}
}

// prepareDraw loads the batch matrices and binds vao. Without a usable
// shader the draw is skipped here rather than once per group.
func (d *dispatcher) prepareDraw(vao *device.VertexArray, m cmdqueue.MatrixBuffer) bool {
	if !d.dev.ActiveShader().IsCompiled() {
		return false
	}
	m = m.Resolve(d.pass.View, d.pass.Projection)
	d.dev.SetMatrix(device.MatrixModel, m.Model)
	d.dev.SetMatrix(device.MatrixView, m.View)
	d.dev.SetMatrix(device.MatrixProjection, m.Projection)
	d.dev.ApplyMatrices()
	d.dev.BindVertexArray(vao)
	return true
}

func (d *dispatcher) SetRenderTarget(c *cmdqueue.SetRenderTarget) {
	pt := device.PassTarget{
		Target:     c.Target,
		Clear:      c.Clear,
		ClearColor: c.ClearColor,
		ClearDepth: 1,
	}
	if c.Target == nil {
		pt.Label = d.pass.Name
		pt.Target = d.pass.Target
		pt.Viewport = d.pass.Viewport
	} else {
		pt.Label = d.pass.Name + "/" + c.Target.Name
	}
	if err := d.dev.BeginPass(pt); err != nil {
		d.log.Warn("render target not set", "pass", d.pass.Name, "error", err)
	}
}

func (d *dispatcher) SetParameter(c *cmdqueue.SetParameter) {
	d.dev.SetUniform(c.Parameter)
}

package device

import "github.com/gogpu/gputypes"

// PrimitiveIndex addresses a primitive group.
type PrimitiveIndex int

// PrimitiveGroup is a range of the bound vertex array drawn with one
// topology. For non-indexed vertex arrays StartIndex and IndexCount count
// vertices.
type PrimitiveGroup struct {
	Topology    gputypes.PrimitiveTopology
	StartIndex  uint32
	IndexCount  uint32
	IndexFormat gputypes.IndexFormat
	BaseVertex  int32
}

// AddPrimitiveGroup appends g and returns its index. Groups are only
// removed all at once by ClearPrimitiveGroups.
func (d *GraphicsDevice) AddPrimitiveGroup(g PrimitiveGroup) PrimitiveIndex {
	d.groups = append(d.groups, g)
	return PrimitiveIndex(len(d.groups) - 1)
}

// PrimitiveGroup returns the group at idx.
func (d *GraphicsDevice) PrimitiveGroup(idx PrimitiveIndex) (PrimitiveGroup, bool) {
	if idx < 0 || int(idx) >= len(d.groups) {
		return PrimitiveGroup{}, false
	}
	return d.groups[idx], true
}

// SetPrimitiveGroup replaces the group at idx in place and reports
// whether idx was in range.
func (d *GraphicsDevice) SetPrimitiveGroup(idx PrimitiveIndex, g PrimitiveGroup) bool {
	if idx < 0 || int(idx) >= len(d.groups) {
		return false
	}
	d.groups[idx] = g
	return true
}

// NumPrimitiveGroups returns the number of groups.
func (d *GraphicsDevice) NumPrimitiveGroups() int { return len(d.groups) }

// ClearPrimitiveGroups removes every group. Indices handed out before are
// invalid afterwards.
func (d *GraphicsDevice) ClearPrimitiveGroups() {
	d.groups = d.groups[:0]
}

// Draw draws group idx once from the bound vertex array with the bound
// shader. It reports whether a draw was issued: an index out of range is
// logged, a missing shader, vertex array or pass skips silently.
func (d *GraphicsDevice) Draw(idx PrimitiveIndex) bool {
	return d.draw(idx, 1)
}

// DrawInstanced draws group idx instances times.
func (d *GraphicsDevice) DrawInstanced(idx PrimitiveIndex, instances uint32) bool {
	if instances == 0 {
		d.rc.Counters.AddSkippedDraw()
		return false
	}
	return d.draw(idx, instances)
}

func (d *GraphicsDevice) draw(idx PrimitiveIndex, instances uint32) bool {
	g, ok := d.PrimitiveGroup(idx)
	if !ok {
		d.log.Warn("primitive group out of range", "index", idx, "groups", len(d.groups))
		d.rc.Counters.AddSkippedDraw()
		return false
	}
	sh, vao, pass := d.activeShader, d.currentVAO, d.frame.pass
	if !sh.IsCompiled() || vao == nil || pass == nil || !vao.Vertices.Resident() {
		d.rc.Counters.AddSkippedDraw()
		return false
	}

	p, err := d.pipelineFor(sh, vao, g)
	if err != nil {
		d.log.Warn("draw skipped", "shader", sh.Name, "layout", vao.Layout.Name, "error", err)
		d.rc.Counters.AddSkippedDraw()
		return false
	}
	if p != d.currentPipeline {
		pass.SetPipeline(p)
		d.currentPipeline = p
	}
	if err := d.bindResources(sh, pass); err != nil {
		d.log.Warn("draw skipped", "shader", sh.Name, "error", err)
		d.rc.Counters.AddSkippedDraw()
		return false
	}

	if vao.indexed() {
		pass.DrawIndexed(g.IndexCount, instances, g.StartIndex, g.BaseVertex, 0)
	} else {
		pass.Draw(g.IndexCount, instances, g.StartIndex, 0)
	}
	d.rc.Counters.AddDraw()
	return true
}

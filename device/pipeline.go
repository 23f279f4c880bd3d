package device

import (
	"cmp"
	"fmt"

	"github.com/gogpu/gfxcore/registry"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// pipelineKey identifies a render pipeline. Shader generation changes on
// every relink, so stale entries never match.
type pipelineKey struct {
	shader     registry.Handle
	generation uint32
	layout     string
	stride     uint64
	topology   gputypes.PrimitiveTopology
	stripIndex gputypes.IndexFormat
	state      FixedState
	color      gputypes.TextureFormat
	depth      gputypes.TextureFormat
}

// pipelineFor returns the pipeline drawing g from vao with sh under the
// applied fixed state.
func (d *GraphicsDevice) pipelineFor(sh *Shader, vao *VertexArray, g PrimitiveGroup) (hal.RenderPipeline, error) {
	key := pipelineKey{
		shader:     sh.Handle,
		generation: sh.generation,
		layout:     vao.Layout.Name,
		stride:     vao.Layout.Stride,
		topology:   d.state.Polygon.topology(g.Topology),
		state:      d.state,
		color:      d.opts.colorFormat,
		depth:      d.targetDepthFormat(),
	}
	strip := key.topology == gputypes.PrimitiveTopologyLineStrip || key.topology == gputypes.PrimitiveTopologyTriangleStrip
	if strip && vao.indexed() {
		key.stripIndex = cmp.Or(g.IndexFormat, vao.IndexFormat)
	}
	if key.depth == gputypes.TextureFormatUndefined {
		// Depth and stencil settings have no effect without an attachment.
		key.state.Depth = DepthState{}
		key.state.Stencil = StencilState{}
	}

	p, hit, err := d.pipelines.GetOrCreate(key, func() (hal.RenderPipeline, error) {
		return d.createPipeline(sh, vao, key)
	})
	d.rc.Counters.AddPipelineLookup(hit)
	return p, err
}

func (d *GraphicsDevice) targetDepthFormat() gputypes.TextureFormat {
	if t := d.frame.target; t != nil && t.depthView == nil {
		return gputypes.TextureFormatUndefined
	}
	return d.opts.depthFormat
}

func (d *GraphicsDevice) createPipeline(sh *Shader, vao *VertexArray, key pipelineKey) (hal.RenderPipeline, error) {
	vbl, err := vao.Layout.bufferLayout(sh)
	if err != nil {
		return nil, err
	}
	vs := &sh.stages[StageVertex]
	desc := &hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("%s/%s", sh.Name, vao.Layout.Name),
		Layout: sh.pipelineLayout,
		Vertex: hal.VertexState{
			Module:     vs.module,
			EntryPoint: vs.entry,
			Buffers:    []gputypes.VertexBufferLayout{vbl},
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  key.topology,
			FrontFace: key.state.FrontFace,
			CullMode:  key.state.Cull,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	}
	if key.stripIndex != gputypes.IndexFormatUndefined {
		strip := key.stripIndex
		desc.Primitive.StripIndexFormat = &strip
	}
	if fs := &sh.stages[StageFragment]; fs.module != nil {
		desc.Fragment = &hal.FragmentState{
			Module:     fs.module,
			EntryPoint: fs.entry,
			Targets: []gputypes.ColorTargetState{{
				Format:    key.color,
				Blend:     key.state.Blend.state(),
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		}
	}
	if key.depth != gputypes.TextureFormatUndefined {
		desc.DepthStencil = depthStencilState(key.depth, key.state)
	}

	p, err := d.hd.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("device: create pipeline %q: %w", desc.Label, err)
	}
	d.log.Debug("pipeline created",
		"pipeline", desc.Label,
		"topology", key.topology,
		"blend", key.state.Blend,
		"cull", key.state.Cull)
	return p, nil
}

func depthStencilState(format gputypes.TextureFormat, s FixedState) *hal.DepthStencilState {
	ds := &hal.DepthStencilState{
		Format:            format,
		DepthWriteEnabled: s.Depth.Test && s.Depth.Write,
		DepthCompare:      gputypes.CompareFunctionAlways,
		StencilFront:      hal.StencilFaceState{Compare: gputypes.CompareFunctionAlways},
		StencilBack:       hal.StencilFaceState{Compare: gputypes.CompareFunctionAlways},
	}
	if s.Depth.Test {
		ds.DepthCompare = s.Depth.Compare
	}
	if s.Stencil.Enabled && format.HasStencil() {
		face := hal.StencilFaceState{
			Compare:     s.Stencil.Compare,
			FailOp:      s.Stencil.Fail,
			DepthFailOp: s.Stencil.DepthFail,
			PassOp:      s.Stencil.Pass,
		}
		ds.StencilFront = face
		ds.StencilBack = face
		ds.StencilReadMask = s.Stencil.ReadMask
		ds.StencilWriteMask = s.Stencil.WriteMask
	}
	return ds
}

type samplerKey struct {
	state      SamplerState
	comparison bool
}

// samplerFor returns the cached sampler for s. Comparison samplers never
// filter between mips.
func (d *GraphicsDevice) samplerFor(s SamplerState, comparison bool) (hal.Sampler, error) {
	if comparison {
		s.Mipmaps = false
	}
	key := samplerKey{state: s, comparison: comparison}
	if smp, ok := d.samplers[key]; ok {
		return smp, nil
	}
	desc := &hal.SamplerDescriptor{
		Label:        "sampler",
		AddressModeU: s.Address,
		AddressModeV: s.Address,
		AddressModeW: s.Address,
		MagFilter:    s.Filter,
		MinFilter:    s.Filter,
		MipmapFilter: gputypes.FilterModeNearest,
	}
	if s.Mipmaps {
		desc.MipmapFilter = s.Filter
		desc.LodMaxClamp = 32
	}
	if comparison {
		desc.Compare = gputypes.CompareFunctionLessEqual
	}
	smp, err := d.hd.CreateSampler(desc)
	if err != nil {
		return nil, fmt.Errorf("device: create sampler: %w", err)
	}
	d.samplers[key] = smp
	return smp, nil
}

type bindGroupKey struct {
	shader   *Shader
	gen      uint32
	ring     uint32
	group    uint32
	textures [MaxTextureUnits]*Texture
	sampler  SamplerState
}

// bindResources writes the staged uniform blocks of sh into the ring and
// sets every bind group. Texture bindings take units in binding order;
// unbound units sample the default texture.
func (d *GraphicsDevice) bindResources(sh *Shader, pass hal.RenderPassEncoder) error {
	r := &sh.refl
	var textures [MaxTextureUnits]*Texture
	for i := range min(len(r.textures), MaxTextureUnits) {
		textures[i] = d.boundTextures[i]
		if textures[i] == nil || textures[i].view == nil {
			textures[i] = d.DefaultTexture()
		}
	}

	for g := range r.groupCount {
		if err := d.reserveUniforms(r.blocksSize(g)); err != nil {
			return err
		}
		var offsets []uint32
		for i := range r.blocks {
			if r.blocks[i].key.group != g {
				continue
			}
			off, err := d.ring.push(r.blocks[i].data)
			if err != nil {
				return err
			}
			offsets = append(offsets, off)
		}

		key := bindGroupKey{
			shader:   sh,
			gen:      sh.generation,
			ring:     d.ring.gen,
			group:    g,
			textures: textures,
			sampler:  d.state.Sampler,
		}
		bg, ok := d.frame.bindGroups[key]
		if !ok {
			var err error
			bg, err = d.createBindGroup(sh, g, &textures)
			if err != nil {
				return err
			}
			d.frame.bindGroups[key] = bg
		}
		pass.SetBindGroup(g, bg, offsets)
	}
	return nil
}

func (d *GraphicsDevice) createBindGroup(sh *Shader, g uint32, textures *[MaxTextureUnits]*Texture) (hal.BindGroup, error) {
	r := &sh.refl
	var entries []gputypes.BindGroupEntry
	for _, b := range r.blocks {
		if b.key.group == g {
			entries = append(entries, gputypes.BindGroupEntry{
				Binding: b.key.binding,
				Resource: gputypes.BufferBinding{
					Buffer: d.ring.buf.NativeHandle(),
					Size:   uint64(b.size),
				},
			})
		}
	}
	for i, t := range r.textures {
		if t.key.group != g || i >= MaxTextureUnits || textures[i] == nil {
			continue
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  t.key.binding,
			Resource: gputypes.TextureViewBinding{TextureView: textures[i].view.NativeHandle()},
		})
	}
	for _, s := range r.samplers {
		if s.key.group != g {
			continue
		}
		smp, err := d.samplerFor(d.state.Sampler, s.comparison)
		if err != nil {
			return nil, err
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  s.key.binding,
			Resource: gputypes.SamplerBinding{Sampler: smp.NativeHandle()},
		})
	}

	bg, err := d.hd.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   fmt.Sprintf("%s.group%d", sh.Name, g),
		Layout:  sh.layouts[g],
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("device: create bind group %d of %q: %w", g, sh.Name, err)
	}
	return bg, nil
}

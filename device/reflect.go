package device

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/ir"
)

// bindingKey addresses a resource binding, @group(g) @binding(b).
type bindingKey struct {
	group, binding uint32
}

func (k bindingKey) compare(o bindingKey) int {
	if c := cmp.Compare(k.group, o.group); c != 0 {
		return c
	}
	return cmp.Compare(k.binding, o.binding)
}

type vertexInput struct {
	name     string
	location uint32
}

// uniformField is one addressable uniform: a member of a uniform struct,
// or a whole non-struct uniform global.
type uniformField struct {
	name   string
	key    bindingKey
	block  int
	offset uint32
	size   uint32
}

// uniformBlock is a uniform buffer binding. data stages the CPU copy that
// is written into the uniform ring on every draw.
type uniformBlock struct {
	name       string
	key        bindingKey
	size       uint32
	visibility gputypes.ShaderStages
	data       []byte
}

type resourceKind uint8

const (
	resourceTexture resourceKind = iota
	resourceSampler
)

type resourceSlot struct {
	name       string
	key        bindingKey
	kind       resourceKind
	visibility gputypes.ShaderStages
	viewDim    gputypes.TextureViewDimension
	sampleType gputypes.TextureSampleType
	comparison bool
}

// reflection is the merged interface of a linked program.
type reflection struct {
	inputs     []vertexInput
	fields     []uniformField
	fieldIndex map[string]int32
	blocks     []uniformBlock
	textures   []resourceSlot
	samplers   []resourceSlot
	groupCount uint32
}

// findEntryPoint returns the first entry point of the given stage.
func findEntryPoint(m *ir.Module, stage ir.ShaderStage) (*ir.EntryPoint, bool) {
	for i := range m.EntryPoints {
		if m.EntryPoints[i].Stage == stage {
			return &m.EntryPoints[i], true
		}
	}
	return nil, false
}

func locationOf(b *ir.Binding) (uint32, bool) {
	if b == nil || *b == nil {
		return 0, false
	}
	switch lb := (*b).(type) {
	case ir.LocationBinding:
		return lb.Location, true
	case *ir.LocationBinding:
		return lb.Location, true
	}
	return 0, false
}

// addVertexInputs records the @location arguments of a vertex entry point,
// including members of struct arguments.
func (r *reflection) addVertexInputs(m *ir.Module, ep *ir.EntryPoint) {
	for _, arg := range ep.Function.Arguments {
		if loc, ok := locationOf(arg.Binding); ok {
			r.inputs = append(r.inputs, vertexInput{name: arg.Name, location: loc})
			continue
		}
		if int(arg.Type) >= len(m.Types) {
			continue
		}
		st, ok := m.Types[arg.Type].Inner.(ir.StructType)
		if !ok {
			continue
		}
		for _, mem := range st.Members {
			if loc, ok := locationOf(mem.Binding); ok {
				r.inputs = append(r.inputs, vertexInput{name: mem.Name, location: loc})
			}
		}
	}
	slices.SortFunc(r.inputs, func(a, b vertexInput) int {
		return cmp.Compare(a.location, b.location)
	})
}

// addGlobals merges the resource bindings of one stage module.
func (r *reflection) addGlobals(m *ir.Module, vis gputypes.ShaderStages) error {
	for _, gv := range m.GlobalVariables {
		if gv.Binding == nil || int(gv.Type) >= len(m.Types) {
			continue
		}
		key := bindingKey{gv.Binding.Group, gv.Binding.Binding}
		inner := m.Types[gv.Type].Inner

		switch gv.Space {
		case ir.SpaceUniform:
			if err := r.addUniform(m, gv.Name, key, inner, ir.TypeSize(m, gv.Type), vis); err != nil {
				return err
			}
		case ir.SpaceHandle:
			slot, ok := handleSlot(gv.Name, key, inner, vis)
			if !ok {
				continue
			}
			if err := r.addResource(slot); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *reflection) addUniform(m *ir.Module, name string, key bindingKey, inner ir.TypeInner, size uint32, vis gputypes.ShaderStages) error {
	for i := range r.blocks {
		if r.blocks[i].key == key {
			if r.blocks[i].size != size {
				return fmt.Errorf("%w: uniform %q at %v has size %d and %d",
					ErrBindingConflict, name, key, r.blocks[i].size, size)
			}
			r.blocks[i].visibility |= vis
			return nil
		}
	}
	if r.resourceAt(key) {
		return fmt.Errorf("%w: uniform %q at %v", ErrBindingConflict, name, key)
	}

	r.blocks = append(r.blocks, uniformBlock{name: name, key: key, size: size, visibility: vis})
	if st, ok := inner.(ir.StructType); ok {
		for _, mem := range st.Members {
			r.fields = append(r.fields, uniformField{
				name:   mem.Name,
				key:    key,
				offset: mem.Offset,
				size:   ir.TypeSize(m, mem.Type),
			})
		}
		return nil
	}
	r.fields = append(r.fields, uniformField{name: name, key: key, size: size})
	return nil
}

func handleSlot(name string, key bindingKey, inner ir.TypeInner, vis gputypes.ShaderStages) (resourceSlot, bool) {
	slot := resourceSlot{name: name, key: key, visibility: vis}
	switch t := inner.(type) {
	case ir.ImageType:
		slot.kind = resourceTexture
		slot.sampleType = gputypes.TextureSampleTypeFloat
		if t.Class == ir.ImageClassDepth {
			slot.sampleType = gputypes.TextureSampleTypeDepth
		}
		switch t.Dim {
		case ir.Dim1D:
			slot.viewDim = gputypes.TextureViewDimension1D
		case ir.Dim3D:
			slot.viewDim = gputypes.TextureViewDimension3D
		case ir.DimCube:
			slot.viewDim = gputypes.TextureViewDimensionCube
		default:
			slot.viewDim = gputypes.TextureViewDimension2D
			if t.Arrayed {
				slot.viewDim = gputypes.TextureViewDimension2DArray
			}
		}
		return slot, true
	case ir.SamplerType:
		slot.kind = resourceSampler
		slot.comparison = t.Comparison
		return slot, true
	}
	return slot, false
}

func (r *reflection) addResource(slot resourceSlot) error {
	list := &r.textures
	if slot.kind == resourceSampler {
		list = &r.samplers
	}
	for i := range *list {
		if (*list)[i].key == slot.key {
			(*list)[i].visibility |= slot.visibility
			return nil
		}
	}
	for i := range r.blocks {
		if r.blocks[i].key == slot.key {
			return fmt.Errorf("%w: %q at %v", ErrBindingConflict, slot.name, slot.key)
		}
	}
	other := r.samplers
	if slot.kind == resourceSampler {
		other = r.textures
	}
	for _, o := range other {
		if o.key == slot.key {
			return fmt.Errorf("%w: %q at %v", ErrBindingConflict, slot.name, slot.key)
		}
	}
	*list = append(*list, slot)
	return nil
}

func (r *reflection) resourceAt(key bindingKey) bool {
	for _, s := range r.textures {
		if s.key == key {
			return true
		}
	}
	for _, s := range r.samplers {
		if s.key == key {
			return true
		}
	}
	return false
}

// finish orders bindings, allocates the CPU uniform blocks and builds the
// name to location index. Locations are indexes into fields.
func (r *reflection) finish() {
	slices.SortFunc(r.blocks, func(a, b uniformBlock) int { return a.key.compare(b.key) })
	slices.SortFunc(r.textures, func(a, b resourceSlot) int { return a.key.compare(b.key) })
	slices.SortFunc(r.samplers, func(a, b resourceSlot) int { return a.key.compare(b.key) })

	blockOf := make(map[bindingKey]int, len(r.blocks))
	for i := range r.blocks {
		r.blocks[i].data = make([]byte, r.blocks[i].size)
		blockOf[r.blocks[i].key] = i
		r.groupCount = max(r.groupCount, r.blocks[i].key.group+1)
	}
	for _, s := range r.textures {
		r.groupCount = max(r.groupCount, s.key.group+1)
	}
	for _, s := range r.samplers {
		r.groupCount = max(r.groupCount, s.key.group+1)
	}

	r.fieldIndex = make(map[string]int32, len(r.fields))
	for i := range r.fields {
		r.fields[i].block = blockOf[r.fields[i].key]
		if _, dup := r.fieldIndex[r.fields[i].name]; !dup {
			r.fieldIndex[r.fields[i].name] = int32(i) // #nosec G115 -- bounded by shader declarations
		}
	}
}

// layoutEntries returns the bind group layout entries of group g.
func (r *reflection) layoutEntries(g uint32) []gputypes.BindGroupLayoutEntry {
	var entries []gputypes.BindGroupLayoutEntry
	for _, b := range r.blocks {
		if b.key.group != g {
			continue
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    b.key.binding,
			Visibility: b.visibility,
			Buffer: &gputypes.BufferBindingLayout{
				Type:             gputypes.BufferBindingTypeUniform,
				HasDynamicOffset: true,
				MinBindingSize:   uint64(b.size),
			},
		})
	}
	for _, t := range r.textures {
		if t.key.group != g {
			continue
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    t.key.binding,
			Visibility: t.visibility,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    t.sampleType,
				ViewDimension: t.viewDim,
			},
		})
	}
	for _, s := range r.samplers {
		if s.key.group != g {
			continue
		}
		typ := gputypes.SamplerBindingTypeFiltering
		if s.comparison {
			typ = gputypes.SamplerBindingTypeComparison
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    s.key.binding,
			Visibility: s.visibility,
			Sampler:    &gputypes.SamplerBindingLayout{Type: typ},
		})
	}
	slices.SortFunc(entries, func(a, b gputypes.BindGroupLayoutEntry) int {
		return cmp.Compare(a.Binding, b.Binding)
	})
	return entries
}

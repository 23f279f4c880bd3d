package device

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gfxcore/registry"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gputypes"
)

// ParamType is the value type of a shader parameter.
type ParamType uint8

const (
	ParamInt ParamType = iota
	ParamFloat
	ParamFloat2
	ParamFloat3
	ParamFloat4
	ParamMat4
	ParamMat4Array
)

// ElemSize returns the byte size of one element.
func (t ParamType) ElemSize() int {
	switch t {
	case ParamFloat2:
		return 8
	case ParamFloat3:
		return 12
	case ParamFloat4:
		return 16
	case ParamMat4, ParamMat4Array:
		return 64
	default:
		return 4
	}
}

func (t ParamType) String() string {
	switch t {
	case ParamInt:
		return "int"
	case ParamFloat:
		return "float"
	case ParamFloat2:
		return "float2"
	case ParamFloat3:
		return "float3"
	case ParamFloat4:
		return "float4"
	case ParamMat4:
		return "mat4"
	case ParamMat4Array:
		return "mat4[]"
	default:
		return fmt.Sprintf("ParamType(%d)", uint8(t))
	}
}

// Parameter is a named shader value. Data holds Count elements in the
// little-endian layout WGSL uniforms use.
type Parameter struct {
	Handle registry.Handle
	Name   string
	Type   ParamType
	Count  int
	Data   []byte

	// Location cache for the shader it was last resolved against. -1 is
	// unresolved, distinct from location 0.
	owner    *Shader
	ownerGen uint32
	loc      int32
}

// NewParameter returns an unregistered parameter. count below 1 is 1.
func NewParameter(name string, typ ParamType, count int) *Parameter {
	count = max(count, 1)
	return &Parameter{
		Name:  name,
		Type:  typ,
		Count: count,
		Data:  make([]byte, typ.ElemSize()*count),
		loc:   -1,
	}
}

// SetInt stores v as the first element.
func (p *Parameter) SetInt(v int32) {
	p.ensure(4)
	binary.LittleEndian.PutUint32(p.Data, uint32(v)) // #nosec G115 -- bit pattern
}

// SetFloats stores vs from the first element on.
func (p *Parameter) SetFloats(vs ...float32) {
	p.ensure(4 * len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(p.Data[i*4:], math.Float32bits(v))
	}
}

// SetVec3 stores v.
func (p *Parameter) SetVec3(v mgl32.Vec3) { p.SetFloats(v[:]...) }

// SetVec4 stores v.
func (p *Parameter) SetVec4(v mgl32.Vec4) { p.SetFloats(v[:]...) }

// SetMat4 stores m in column-major order.
func (p *Parameter) SetMat4(m mgl32.Mat4) { p.SetFloats(m[:]...) }

// SetMat4Array stores ms back to back.
func (p *Parameter) SetMat4Array(ms []mgl32.Mat4) {
	p.ensure(64 * len(ms))
	for i, m := range ms {
		for j, v := range m {
			binary.LittleEndian.PutUint32(p.Data[i*64+j*4:], math.Float32bits(v))
		}
	}
}

// Floats decodes Data as float32 values.
func (p *Parameter) Floats() []float32 {
	out := make([]float32, len(p.Data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(p.Data[i*4:]))
	}
	return out
}

func (p *Parameter) ensure(n int) {
	if len(p.Data) < n {
		grown := make([]byte, n)
		copy(grown, p.Data)
		p.Data = grown
	}
}

// CreateParameter registers a named parameter. An existing parameter with
// the same name is returned unchanged.
func (d *GraphicsDevice) CreateParameter(name string, typ ParamType, count int) *Parameter {
	if name == "" {
		d.log.Warn("parameter without name")
		return nil
	}
	if p, ok := d.params.Lookup(name); ok {
		return p
	}
	p := NewParameter(name, typ, count)
	p.Handle, _ = d.params.AllocateNamed(name, p)
	return p
}

// FindParameter returns the parameter called name, or nil.
func (d *GraphicsDevice) FindParameter(name string) *Parameter {
	p, _ := d.params.Lookup(name)
	return p
}

// ReleaseParameter frees the parameter slot and its name.
func (d *GraphicsDevice) ReleaseParameter(p *Parameter) bool {
	if p == nil || !d.params.Release(p.Handle) {
		return false
	}
	p.Handle = registry.InvalidHandle
	return true
}

// ReleaseAllParameters frees every registered parameter.
func (d *GraphicsDevice) ReleaseAllParameters() {
	d.params.Each(func(_ registry.Handle, p *Parameter) {
		p.Handle = registry.InvalidHandle
	})
	d.params.Reset()
}

// SetUniform stages p into the uniform blocks of the bound shader. The
// location is resolved on first use against each shader. Without a bound
// shader, or when the shader has no uniform called p.Name, SetUniform
// does nothing.
func (d *GraphicsDevice) SetUniform(p *Parameter) {
	sh := d.activeShader
	if p == nil || !sh.IsCompiled() {
		return
	}
	if p.owner != sh || p.ownerGen != sh.generation {
		p.owner = sh
		p.ownerGen = sh.generation
		p.loc = sh.UniformLocation(p.Name)
	}
	if p.loc < 0 {
		return
	}
	field := sh.refl.fields[p.loc]
	block := &sh.refl.blocks[field.block]
	end := min(uint64(field.offset)+uint64(field.size), uint64(len(block.data)))
	copy(block.data[field.offset:end], p.Data)
}

// Location returns the cached location of p, -1 when unresolved.
func (p *Parameter) Location() int32 { return p.loc }

const minUniformAlignment = 256

// uniformRing is a per-frame uniform arena. Every draw copies the staged
// blocks of its shader into fresh slices of the ring and binds them with
// dynamic offsets. The ring rewinds when the frame is submitted and grows
// when a frame outruns it.
type uniformRing struct {
	buf    hal.Buffer
	queue  hal.Queue
	size   uint64
	offset uint64
	gen    uint32
}

func newUniformRing(hd hal.Device, q hal.Queue, size uint64) (*uniformRing, error) {
	size = align(size, minUniformAlignment)
	buf, err := hd.CreateBuffer(&hal.BufferDescriptor{
		Label: "uniform-ring",
		Size:  size,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	return &uniformRing{buf: buf, queue: q, size: size}, nil
}

// push writes data at the next aligned offset.
func (r *uniformRing) push(data []byte) (uint32, error) {
	off := align(r.offset, minUniformAlignment)
	if off+uint64(len(data)) > r.size {
		return 0, ErrUniformRingFull
	}
	if err := r.queue.WriteBuffer(r.buf, off, data); err != nil {
		return 0, err
	}
	r.offset = off + uint64(len(data))
	return uint32(off), nil // #nosec G115 -- ring size fits dynamic offsets
}

// reserveUniforms makes room for need more bytes. An exhausted ring is
// replaced by a buffer at least twice as large; the old buffer is retired
// with the frame that still references it.
func (d *GraphicsDevice) reserveUniforms(need uint64) error {
	r := d.ring
	if align(r.offset, minUniformAlignment)+need <= r.size {
		return nil
	}
	size := max(r.size*2, align(need, minUniformAlignment))
	buf, err := d.hd.CreateBuffer(&hal.BufferDescriptor{
		Label: "uniform-ring",
		Size:  size,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("device: grow uniform ring: %w", err)
	}
	d.retireBuffer(r.buf)
	d.log.Debug("uniform ring grown", "from", r.size, "to", size)
	r.buf = buf
	r.size = size
	r.offset = 0
	r.gen++
	return nil
}

// blocksSize is the ring space the aligned blocks of group g take.
func (r *reflection) blocksSize(g uint32) uint64 {
	var n uint64
	for i := range r.blocks {
		if r.blocks[i].key.group == g {
			n += align(uint64(len(r.blocks[i].data)), minUniformAlignment)
		}
	}
	return n
}

func (r *uniformRing) reset() { r.offset = 0 }

// used returns the bytes consumed this frame.
func (r *uniformRing) used() uint64 { return r.offset }

func (r *uniformRing) destroy(hd hal.Device) {
	if r.buf != nil {
		hd.DestroyBuffer(r.buf)
		r.buf = nil
	}
}

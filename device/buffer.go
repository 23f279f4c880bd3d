package device

import (
	"fmt"

	"github.com/gogpu/gfxcore/registry"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// BufferKind is the role of a GPU buffer.
type BufferKind uint8

const (
	BufferVertex BufferKind = iota
	BufferIndex
	BufferUniform
)

func (k BufferKind) String() string {
	switch k {
	case BufferVertex:
		return "vertex"
	case BufferIndex:
		return "index"
	case BufferUniform:
		return "uniform"
	default:
		return fmt.Sprintf("BufferKind(%d)", uint8(k))
	}
}

func (k BufferKind) usage() gputypes.BufferUsage {
	switch k {
	case BufferIndex:
		return gputypes.BufferUsageIndex
	case BufferUniform:
		return gputypes.BufferUsageUniform
	default:
		return gputypes.BufferUsageVertex
	}
}

// AccessHint describes how often a buffer is rewritten. It only selects
// usage flags; every hint gives the same results.
type AccessHint uint8

const (
	// AccessStatic buffers are written once.
	AccessStatic AccessHint = iota
	// AccessDynamic buffers are rewritten occasionally.
	AccessDynamic
	// AccessStream buffers are rewritten every frame.
	AccessStream
)

func (h AccessHint) usage() gputypes.BufferUsage {
	if h == AccessStatic {
		return gputypes.BufferUsageCopyDst
	}
	return gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
}

// Buffer is a GPU buffer slot. Size is zero until the first CopyToBuffer.
type Buffer struct {
	Handle registry.Handle
	Kind   BufferKind
	Label  string
	Size   uint64

	hint     AccessHint
	raw      hal.Buffer
	capacity uint64
	usage    gputypes.BufferUsage
}

// Hint returns the access hint of the last copy.
func (b *Buffer) Hint() AccessHint { return b.hint }

// Resident reports whether the buffer holds GPU storage.
func (b *Buffer) Resident() bool { return b != nil && b.raw != nil }

// CreateBuffer allocates a buffer slot. GPU storage is created by the first
// CopyToBuffer, once the size is known.
func (d *GraphicsDevice) CreateBuffer(kind BufferKind, label string) *Buffer {
	b := &Buffer{Kind: kind, Label: label}
	b.Handle = d.buffers.Allocate(b)
	return b
}

// CopyToBuffer replaces the whole content of buf with data. The GPU buffer
// is recreated when the padded size or the usage changes.
func (d *GraphicsDevice) CopyToBuffer(buf *Buffer, data []byte, hint AccessHint) error {
	if buf == nil || !d.buffers.Contains(buf.Handle) {
		return ErrNilBuffer
	}
	if len(data) == 0 {
		return ErrEmptyData
	}

	size := uint64(len(data))
	padded := align(size, 4)
	usage := buf.Kind.usage() | hint.usage()
	if buf.raw == nil || buf.capacity != padded || buf.usage != usage {
		if buf.raw != nil {
			d.retireBuffer(buf.raw)
			buf.raw = nil
		}
		raw, err := d.hd.CreateBuffer(&hal.BufferDescriptor{
			Label: buf.Label,
			Size:  padded,
			Usage: usage,
		})
		if err != nil {
			return fmt.Errorf("device: create %s buffer %q: %w", buf.Kind, buf.Label, err)
		}
		buf.raw = raw
		buf.capacity = padded
		buf.usage = usage
	}

	if size != padded {
		tmp := make([]byte, padded)
		copy(tmp, data)
		data = tmp
	}
	if err := d.queue.WriteBuffer(buf.raw, 0, data); err != nil {
		return fmt.Errorf("device: write %s buffer %q: %w", buf.Kind, buf.Label, err)
	}
	buf.Size = size
	buf.hint = hint

	// Vertex arrays bound in the current pass must see the new storage.
	if d.currentVAO != nil && (d.currentVAO.Vertices == buf || d.currentVAO.Indices == buf) {
		d.applyVertexArray()
	}
	return nil
}

// ReleaseBuffer destroys buf and frees its slot. Releasing a released
// buffer does nothing and returns false.
func (d *GraphicsDevice) ReleaseBuffer(buf *Buffer) bool {
	if buf == nil || !d.buffers.Release(buf.Handle) {
		return false
	}
	d.destroyBuffer(buf)
	return true
}

// ReleaseAllBuffers destroys every buffer and clears the free list.
func (d *GraphicsDevice) ReleaseAllBuffers() {
	d.buffers.Each(func(_ registry.Handle, b *Buffer) {
		d.destroyBuffer(b)
	})
	d.buffers.Reset()
}

func (d *GraphicsDevice) destroyBuffer(b *Buffer) {
	if b.raw != nil {
		d.retireBuffer(b.raw)
		b.raw = nil
	}
	b.Size = 0
	b.capacity = 0
	b.Handle = registry.InvalidHandle
}

func align(n, a uint64) uint64 {
	return (n + a - 1) &^ (a - 1)
}

// retireBuffer destroys raw once no recorded or submitted frame can
// reference it.
func (d *GraphicsDevice) retireBuffer(raw hal.Buffer) {
	switch fr := d.lastInflight(); {
	case d.frame.active:
		d.frame.deadBuffers = append(d.frame.deadBuffers, raw)
	case fr != nil:
		fr.buffers = append(fr.buffers, raw)
	default:
		d.hd.DestroyBuffer(raw)
	}
}

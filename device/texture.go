package device

import (
	"fmt"

	"github.com/gogpu/gfxcore/registry"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// TextureTarget is the dimensionality of a texture.
type TextureTarget uint8

const (
	Texture2D TextureTarget = iota
	Texture3D
	TextureCube
)

func (t TextureTarget) String() string {
	switch t {
	case Texture2D:
		return "2d"
	case Texture3D:
		return "3d"
	case TextureCube:
		return "cube"
	default:
		return fmt.Sprintf("TextureTarget(%d)", uint8(t))
	}
}

// DefaultTextureName is the name of the checkerboard fallback texture.
const DefaultTextureName = "default"

const checkerSize = 32

// TextureDescriptor describes a texture and its level 0 pixels.
//
// Format may be left undefined, in which case it follows Channels: 1 is
// R8, 2 is RG8, 3 and 4 are RGBA8. Three-channel pixels are expanded to
// four with opaque alpha. Cube textures hold six faces back to back, 3D
// textures Depth slices.
type TextureDescriptor struct {
	Name     string
	Target   TextureTarget
	Format   gputypes.TextureFormat
	Width    uint32
	Height   uint32
	Depth    uint32
	Channels int
	Pixels   []byte
}

// Texture is a sampled texture, or a render target when created by
// CreateRenderTexture.
type Texture struct {
	Handle    registry.Handle
	Name      string
	Target    TextureTarget
	Format    gputypes.TextureFormat
	Width     uint32
	Height    uint32
	Depth     uint32
	Channels  int
	MipLevels uint32

	raw       hal.Texture
	view      hal.TextureView
	depth     hal.Texture
	depthView hal.TextureView
	target    bool
}

// IsRenderTarget reports whether the texture can be rendered into.
func (t *Texture) IsRenderTarget() bool { return t != nil && t.target }

func (t *Texture) layers() uint32 {
	switch t.Target {
	case TextureCube:
		return 6
	case Texture3D:
		return max(t.Depth, 1)
	}
	return 1
}

func (t *Texture) viewDimension() gputypes.TextureViewDimension {
	switch t.Target {
	case TextureCube:
		return gputypes.TextureViewDimensionCube
	case Texture3D:
		return gputypes.TextureViewDimension3D
	}
	return gputypes.TextureViewDimension2D
}

// bytesPerPixel returns the texel size of the formats textures are
// uploaded in, 0 for others.
func bytesPerPixel(f gputypes.TextureFormat) int {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRG8Unorm:
		return 2
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatR32Float:
		return 4
	case gputypes.TextureFormatRGBA16Float:
		return 8
	case gputypes.TextureFormatRGBA32Float:
		return 16
	}
	return 0
}

// mippable reports whether CPU box filtering applies to f.
func mippable(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatR8Unorm, gputypes.TextureFormatRG8Unorm,
		gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm:
		return true
	}
	return false
}

func formatForChannels(channels int) gputypes.TextureFormat {
	switch channels {
	case 1:
		return gputypes.TextureFormatR8Unorm
	case 2:
		return gputypes.TextureFormatRG8Unorm
	case 3, 4:
		return gputypes.TextureFormatRGBA8Unorm
	}
	return gputypes.TextureFormatUndefined
}

func mipCount(w, h uint32) uint32 {
	n := uint32(1)
	for s := max(w, h); s > 1; s >>= 1 {
		n++
	}
	return n
}

// CreateTexture creates and uploads a texture. A texture with the same
// name is returned unchanged. An empty name or malformed pixels give nil.
func (d *GraphicsDevice) CreateTexture(desc TextureDescriptor) *Texture {
	if desc.Name == "" {
		d.log.Warn("texture without name")
		return nil
	}
	if t, ok := d.textures.Lookup(desc.Name); ok {
		return t
	}

	t, pixels, err := d.prepareTexture(desc)
	if err == nil {
		err = d.uploadTexture(t, pixels)
	}
	if err != nil {
		d.log.Warn("texture creation failed", "texture", desc.Name, "error", err)
		d.destroyTexture(t)
		return nil
	}
	t.Handle, _ = d.textures.AllocateNamed(t.Name, t)
	d.log.Debug("texture created",
		"texture", t.Name,
		"target", t.Target,
		"size", fmt.Sprintf("%dx%d", t.Width, t.Height),
		"mips", t.MipLevels)
	return t
}

// prepareTexture validates desc and creates the HAL texture and view.
func (d *GraphicsDevice) prepareTexture(desc TextureDescriptor) (*Texture, []byte, error) {
	t := &Texture{
		Name:     desc.Name,
		Target:   desc.Target,
		Format:   desc.Format,
		Width:    desc.Width,
		Height:   desc.Height,
		Depth:    desc.Depth,
		Channels: desc.Channels,
	}
	if t.Width == 0 || t.Height == 0 {
		return t, nil, fmt.Errorf("empty size %dx%d", t.Width, t.Height)
	}
	pixels := desc.Pixels
	if t.Format == gputypes.TextureFormatUndefined {
		t.Format = formatForChannels(desc.Channels)
		if desc.Channels == 3 && pixels != nil {
			pixels = expandRGB(pixels)
		}
	}
	bpp := bytesPerPixel(t.Format)
	if bpp == 0 {
		return t, nil, fmt.Errorf("unsupported format %s, %d channels", t.Format, desc.Channels)
	}
	if pixels != nil {
		want := int(t.Width) * int(t.Height) * int(t.layers()) * bpp
		if len(pixels) != want {
			return t, nil, fmt.Errorf("pixel data is %d bytes, want %d", len(pixels), want)
		}
	}

	t.MipLevels = 1
	if mippable(t.Format) && t.Target != Texture3D {
		t.MipLevels = mipCount(t.Width, t.Height)
	}

	dim := gputypes.TextureDimension2D
	if t.Target == Texture3D {
		dim = gputypes.TextureDimension3D
	}
	var err error
	t.raw, err = d.hd.CreateTexture(&hal.TextureDescriptor{
		Label:         t.Name,
		Size:          hal.Extent3D{Width: t.Width, Height: t.Height, DepthOrArrayLayers: t.layers()},
		MipLevelCount: t.MipLevels,
		SampleCount:   1,
		Dimension:     dim,
		Format:        t.Format,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return t, nil, err
	}
	t.view, err = d.hd.CreateTextureView(t.raw, &hal.TextureViewDescriptor{
		Label:           t.Name,
		Format:          t.Format,
		Dimension:       t.viewDimension(),
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   t.MipLevels,
		ArrayLayerCount: t.arrayLayers(),
	})
	return t, pixels, err
}

func (t *Texture) arrayLayers() uint32 {
	if t.Target == Texture3D {
		return 1
	}
	return t.layers()
}

// uploadTexture writes level 0 and, for 8-bit formats, a box-filtered mip
// chain.
func (d *GraphicsDevice) uploadTexture(t *Texture, pixels []byte) error {
	if pixels == nil {
		return nil
	}
	bpp := bytesPerPixel(t.Format)
	w, h := t.Width, t.Height
	level := pixels
	for mip := range t.MipLevels {
		if err := d.queue.WriteTexture(
			&hal.ImageCopyTexture{Texture: t.raw, MipLevel: mip, Aspect: gputypes.TextureAspectAll},
			level,
			&hal.ImageDataLayout{BytesPerRow: w * uint32(bpp), RowsPerImage: h}, // #nosec G115 -- bpp <= 16
			&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: t.layers()},
		); err != nil {
			return fmt.Errorf("upload mip %d: %w", mip, err)
		}
		if mip+1 == t.MipLevels {
			break
		}
		level, w, h = downsampleLayers(level, w, h, t.layers(), bpp)
	}
	return nil
}

// downsampleLayers halves every layer with a 2x2 box filter.
func downsampleLayers(src []byte, w, h, layers uint32, bpp int) ([]byte, uint32, uint32) {
	nw, nh := max(w/2, 1), max(h/2, 1)
	srcLayer := int(w) * int(h) * bpp
	dstLayer := int(nw) * int(nh) * bpp
	dst := make([]byte, dstLayer*int(layers))
	for l := range int(layers) {
		boxFilter(dst[l*dstLayer:(l+1)*dstLayer], src[l*srcLayer:(l+1)*srcLayer], int(w), int(h), int(nw), int(nh), bpp)
	}
	return dst, nw, nh
}

func boxFilter(dst, src []byte, w, h, nw, nh, bpp int) {
	for y := range nh {
		y0 := min(2*y, h-1)
		y1 := min(2*y+1, h-1)
		for x := range nw {
			x0 := min(2*x, w-1)
			x1 := min(2*x+1, w-1)
			for c := range bpp {
				sum := int(src[(y0*w+x0)*bpp+c]) +
					int(src[(y0*w+x1)*bpp+c]) +
					int(src[(y1*w+x0)*bpp+c]) +
					int(src[(y1*w+x1)*bpp+c])
				dst[(y*nw+x)*bpp+c] = byte((sum + 2) / 4)
			}
		}
	}
}

func expandRGB(rgb []byte) []byte {
	n := len(rgb) / 3
	out := make([]byte, n*4)
	for i := range n {
		out[i*4] = rgb[i*3]
		out[i*4+1] = rgb[i*3+1]
		out[i*4+2] = rgb[i*3+2]
		out[i*4+3] = 0xFF
	}
	return out
}

// CreateRenderTexture creates a color render target, with a depth/stencil
// attachment when the device has a depth format. Like CreateTexture it is
// idempotent by name.
func (d *GraphicsDevice) CreateRenderTexture(name string, width, height uint32) *Texture {
	if name == "" {
		d.log.Warn("render texture without name")
		return nil
	}
	if t, ok := d.textures.Lookup(name); ok {
		return t
	}
	t, err := d.newRenderTarget(name, width, height, gputypes.TextureUsageTextureBinding)
	if err != nil {
		d.log.Warn("render texture creation failed", "texture", name, "error", err)
		d.destroyTexture(t)
		return nil
	}
	t.Handle, _ = d.textures.AllocateNamed(name, t)
	return t
}

func (d *GraphicsDevice) newRenderTarget(name string, width, height uint32, usage gputypes.TextureUsage) (*Texture, error) {
	t := &Texture{
		Name:      name,
		Target:    Texture2D,
		Format:    d.opts.colorFormat,
		Width:     max(width, 1),
		Height:    max(height, 1),
		Channels:  4,
		MipLevels: 1,
		target:    true,
	}
	size := hal.Extent3D{Width: t.Width, Height: t.Height, DepthOrArrayLayers: 1}

	var err error
	t.raw, err = d.hd.CreateTexture(&hal.TextureDescriptor{
		Label:         name,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        t.Format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc | usage,
	})
	if err != nil {
		return t, err
	}
	t.view, err = d.hd.CreateTextureView(t.raw, &hal.TextureViewDescriptor{
		Label:           name,
		Format:          t.Format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		return t, err
	}

	if d.opts.depthFormat == gputypes.TextureFormatUndefined {
		return t, nil
	}
	t.depth, err = d.hd.CreateTexture(&hal.TextureDescriptor{
		Label:         name + ".depth",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        d.opts.depthFormat,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return t, err
	}
	t.depthView, err = d.hd.CreateTextureView(t.depth, &hal.TextureViewDescriptor{
		Label:           name + ".depth",
		Format:          d.opts.depthFormat,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	return t, err
}

// DefaultTexture returns the checkerboard fallback, creating it on first
// use.
func (d *GraphicsDevice) DefaultTexture() *Texture {
	if t, ok := d.textures.Lookup(DefaultTextureName); ok {
		return t
	}
	pixels := make([]byte, checkerSize*checkerSize*4)
	for y := range checkerSize {
		for x := range checkerSize {
			i := (y*checkerSize + x) * 4
			v := byte(0x40)
			if (x/4+y/4)%2 == 0 {
				v = 0xC0
			}
			pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = v, v, v, 0xFF
		}
	}
	return d.CreateTexture(TextureDescriptor{
		Name:     DefaultTextureName,
		Target:   Texture2D,
		Width:    checkerSize,
		Height:   checkerSize,
		Channels: 4,
		Pixels:   pixels,
	})
}

// FindTexture returns the texture called name, or nil.
func (d *GraphicsDevice) FindTexture(name string) *Texture {
	t, _ := d.textures.Lookup(name)
	return t
}

// TextureOrDefault returns the texture called name, falling back to the
// checkerboard.
func (d *GraphicsDevice) TextureOrDefault(name string) *Texture {
	if t := d.FindTexture(name); t != nil {
		return t
	}
	d.log.Debug("texture missing, using default", "texture", name)
	return d.DefaultTexture()
}

// BindTexture binds tex to a texture unit. Units map to the shader texture
// bindings in binding order. A nil tex unbinds the unit.
func (d *GraphicsDevice) BindTexture(unit int, tex *Texture) bool {
	if unit < 0 || unit >= MaxTextureUnits {
		d.log.Warn("texture unit out of range", "unit", unit)
		return false
	}
	d.boundTextures[unit] = tex
	return true
}

// BoundTexture returns the texture bound to unit, or nil.
func (d *GraphicsDevice) BoundTexture(unit int) *Texture {
	if unit < 0 || unit >= MaxTextureUnits {
		return nil
	}
	return d.boundTextures[unit]
}

// ReleaseTexture destroys tex and frees its name.
func (d *GraphicsDevice) ReleaseTexture(tex *Texture) bool {
	if tex == nil || !d.textures.Release(tex.Handle) {
		return false
	}
	d.destroyTexture(tex)
	tex.Handle = registry.InvalidHandle
	return true
}

// ReleaseAllTextures destroys every registered texture. The backbuffer is
// kept.
func (d *GraphicsDevice) ReleaseAllTextures() {
	d.textures.Each(func(_ registry.Handle, t *Texture) {
		d.destroyTexture(t)
		t.Handle = registry.InvalidHandle
	})
	d.textures.Reset()
}

func (d *GraphicsDevice) destroyTexture(t *Texture) {
	if t == nil {
		return
	}
	for i, b := range d.boundTextures {
		if b == t {
			d.boundTextures[i] = nil
		}
	}
	if d.frame.target == t {
		d.frame.target = nil
	}
	d.retireTexture(t.view, t.raw)
	d.retireTexture(t.depthView, t.depth)
	t.raw, t.view, t.depth, t.depthView = nil, nil, nil, nil
}

// retireTexture destroys a texture and its view once no recorded or
// submitted frame can reference them.
func (d *GraphicsDevice) retireTexture(view hal.TextureView, raw hal.Texture) {
	views, textures := &d.frame.deadViews, &d.frame.deadTextures
	if !d.frame.active {
		fr := d.lastInflight()
		if fr == nil {
			if view != nil {
				d.hd.DestroyTextureView(view)
			}
			if raw != nil {
				d.hd.DestroyTexture(raw)
			}
			return
		}
		views, textures = &fr.views, &fr.textures
	}
	if view != nil {
		*views = append(*views, view)
	}
	if raw != nil {
		*textures = append(*textures, raw)
	}
}

// Backbuffer returns the offscreen backbuffer, creating or resizing it to
// the render context size.
func (d *GraphicsDevice) Backbuffer() (*Texture, error) {
	w, h := d.rc.BackbufferSize()
	w, h = max(w, 1), max(h, 1)
	if bb := d.backbuffer; bb != nil && bb.Width == w && bb.Height == h {
		return bb, nil
	}
	d.destroyBackbuffer()
	bb, err := d.newRenderTarget("backbuffer", w, h, 0)
	if err != nil {
		d.destroyTexture(bb)
		return nil, fmt.Errorf("device: create backbuffer: %w", err)
	}
	d.backbuffer = bb
	return bb, nil
}

func (d *GraphicsDevice) destroyBackbuffer() {
	if d.backbuffer != nil {
		d.destroyTexture(d.backbuffer)
		d.backbuffer = nil
	}
}

package device

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gfxcore"
	"github.com/gogpu/gfxcore/internal/cache"
	"github.com/gogpu/gfxcore/internal/haltrace"
	"github.com/gogpu/gfxcore/registry"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// MaxTextureUnits is the number of texture units BindTexture accepts.
const MaxTextureUnits = 8

const defaultRingSize = 1 << 20

// Option configures a GraphicsDevice.
type Option func(*options)

type options struct {
	colorFormat gputypes.TextureFormat
	depthFormat gputypes.TextureFormat
	recorder    *haltrace.Recorder
	cacheSize   int
	ringSize    uint64
}

// WithColorFormat sets the format of the backbuffer and of render textures.
// Default: RGBA8Unorm.
func WithColorFormat(f gputypes.TextureFormat) Option {
	return func(o *options) {
		if f != gputypes.TextureFormatUndefined {
			o.colorFormat = f
		}
	}
}

// WithDepthFormat sets the depth/stencil attachment format. Undefined
// renders without a depth attachment. Default: Depth24PlusStencil8.
func WithDepthFormat(f gputypes.TextureFormat) Option {
	return func(o *options) {
		o.depthFormat = f
	}
}

// WithRecorder records every HAL call into r.
func WithRecorder(r *haltrace.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithPipelineCacheSize overrides Config.PipelineCacheSize.
func WithPipelineCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// WithUniformRingSize overrides Config.UniformRingSize.
func WithUniformRingSize(n uint64) Option {
	return func(o *options) {
		o.ringSize = n
	}
}

// GraphicsDevice translates resource operations into HAL calls and holds
// the transient bind state of the render core.
type GraphicsDevice struct {
	rc    *gfxcore.RenderContext
	log   *slog.Logger
	hd    hal.Device
	queue hal.Queue
	opts  options

	buffers      *registry.Pool[*Buffer]
	vertexArrays *registry.Pool[*VertexArray]
	shaders      *registry.NamedPool[*Shader]
	textures     *registry.NamedPool[*Texture]
	params       *registry.NamedPool[*Parameter]
	groups       []PrimitiveGroup

	activeShader  *Shader
	currentVAO    *VertexArray
	boundTextures [MaxTextureUnits]*Texture
	state         FixedState
	stateApplied  bool
	matrices      matrixState

	pipelines       *cache.Cache[pipelineKey, hal.RenderPipeline]
	currentPipeline hal.RenderPipeline
	retired         []hal.RenderPipeline
	samplers        map[samplerKey]hal.Sampler

	ring       *uniformRing
	frame      frameState
	backbuffer *Texture
}

// New wraps a HAL device and queue. The device does not take ownership of
// hd and q: Destroy releases what the GraphicsDevice created and leaves the
// HAL device open.
//
// A nil rc is replaced by a headless context with the default config.
func New(rc *gfxcore.RenderContext, hd hal.Device, q hal.Queue, opts ...Option) (*GraphicsDevice, error) {
	if hd == nil {
		return nil, ErrNilDevice
	}
	if q == nil {
		return nil, ErrNilQueue
	}
	if rc == nil {
		rc = gfxcore.NewRenderContext(gfxcore.DefaultConfig(), nil)
	}

	o := options{
		colorFormat: gputypes.TextureFormatRGBA8Unorm,
		depthFormat: gputypes.TextureFormatDepth24PlusStencil8,
		cacheSize:   rc.Config.PipelineCacheSize,
		ringSize:    rc.Config.UniformRingSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ringSize < minUniformAlignment {
		o.ringSize = defaultRingSize
	}

	log := rc.Logger().With("component", "device")
	switch {
	case o.recorder != nil:
		hd, q = haltrace.Wrap(hd, q, o.recorder)
	case rc.Config.Trace:
		hd, q = haltrace.Wrap(hd, q, haltrace.NewRecorder(haltrace.Discard(), haltrace.WithLogger(log)))
	}

	d := &GraphicsDevice{
		rc:           rc,
		log:          log,
		hd:           hd,
		queue:        q,
		opts:         o,
		buffers:      registry.NewPool[*Buffer](64),
		vertexArrays: registry.NewPool[*VertexArray](64),
		shaders:      registry.NewNamedPool[*Shader](16),
		textures:     registry.NewNamedPool[*Texture](32),
		params:       registry.NewNamedPool[*Parameter](32),
		samplers:     make(map[samplerKey]hal.Sampler),
		state:        DefaultFixedState(),
	}
	d.matrices.reset()
	d.pipelines = cache.New(o.cacheSize, func(_ pipelineKey, p hal.RenderPipeline) {
		// A pipeline may still be referenced by the pass being recorded.
		d.retired = append(d.retired, p)
	})

	ring, err := newUniformRing(hd, q, o.ringSize)
	if err != nil {
		return nil, fmt.Errorf("device: create uniform ring: %w", err)
	}
	d.ring = ring

	d.log.Debug("device created",
		"color_format", o.colorFormat,
		"depth_format", o.depthFormat,
		"pipeline_cache", o.cacheSize,
		"uniform_ring", o.ringSize)
	return d, nil
}

// halProvider is implemented by device providers that expose HAL objects,
// such as driver.Provider.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// Open creates a GraphicsDevice from a gpucontext.DeviceProvider. The
// provider must expose HAL objects through HalDevice and HalQueue. Its
// surface format, when defined, becomes the backbuffer format.
func Open(rc *gfxcore.RenderContext, provider gpucontext.DeviceProvider, opts ...Option) (*GraphicsDevice, error) {
	hp, ok := provider.(halProvider)
	if !ok || hp == nil {
		return nil, ErrNoHALProvider
	}
	hd, ok := hp.HalDevice().(hal.Device)
	if !ok || hd == nil {
		return nil, ErrNoHALProvider
	}
	q, ok := hp.HalQueue().(hal.Queue)
	if !ok || q == nil {
		return nil, ErrNoHALProvider
	}
	if f := provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		opts = append([]Option{WithColorFormat(f)}, opts...)
	}
	return New(rc, hd, q, opts...)
}

// Context returns the render context the device was created with.
func (d *GraphicsDevice) Context() *gfxcore.RenderContext { return d.rc }

// ColorFormat returns the render target color format.
func (d *GraphicsDevice) ColorFormat() gputypes.TextureFormat { return d.opts.colorFormat }

// DepthFormat returns the depth/stencil format, Undefined without depth.
func (d *GraphicsDevice) DepthFormat() gputypes.TextureFormat { return d.opts.depthFormat }

// Stats reports live resource counts.
type Stats struct {
	Buffers         int
	VertexArrays    int
	Shaders         int
	Textures        int
	Parameters      int
	PrimitiveGroups int
	Pipelines       int
}

// Stats returns the number of live resources of each kind.
func (d *GraphicsDevice) Stats() Stats {
	return Stats{
		Buffers:         d.buffers.Len(),
		VertexArrays:    d.vertexArrays.Len(),
		Shaders:         d.shaders.Len(),
		Textures:        d.textures.Len(),
		Parameters:      d.params.Len(),
		PrimitiveGroups: len(d.groups),
		Pipelines:       d.pipelines.Len(),
	}
}

// Destroy releases every resource the device created. An unfinished frame
// is discarded. The GraphicsDevice must not be used afterwards.
func (d *GraphicsDevice) Destroy() {
	if d.hd == nil {
		return
	}
	d.abortFrame()

	d.UseShader(nil)
	d.UnbindVertexArray()
	d.ReleaseAllVertexArrays()
	d.ReleaseAllBuffers()
	d.ReleaseAllShaders()
	d.ReleaseAllTextures()
	d.ReleaseAllParameters()
	d.ClearPrimitiveGroups()

	d.pipelines.Clear()
	d.flushRetired()
	d.destroyBackbuffer()
	d.reclaim(true)
	for key, s := range d.samplers {
		d.hd.DestroySampler(s)
		delete(d.samplers, key)
	}
	if d.ring != nil {
		d.ring.destroy(d.hd)
		d.ring = nil
	}
	d.log.Debug("device destroyed")
	d.hd = nil
}

// flushRetired destroys pipelines evicted from the cache, or hands them to
// the last submitted frame when the GPU may still use them.
func (d *GraphicsDevice) flushRetired() {
	if len(d.retired) == 0 {
		return
	}
	for _, p := range d.retired {
		if p == d.currentPipeline {
			d.currentPipeline = nil
		}
	}
	if fr := d.lastInflight(); fr != nil {
		fr.pipelines = append(fr.pipelines, d.retired...)
	} else {
		for _, p := range d.retired {
			d.hd.DestroyRenderPipeline(p)
		}
	}
	d.retired = nil
}

func (d *GraphicsDevice) lastInflight() *inflightFrame {
	if n := len(d.frame.inflight); n > 0 {
		return &d.frame.inflight[n-1]
	}
	return nil
}

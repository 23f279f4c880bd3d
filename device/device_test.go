package device

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gfxcore/internal/haltrace"
	"github.com/gogpu/gfxcore/registry"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const basicVertexWGSL = `
struct Transforms {
    model: mat4x4<f32>,
    mvp: mat4x4<f32>,
}

@group(0) @binding(0) var<uniform> transforms: Transforms;

struct VertexOutput {
    @builtin(position) clip: vec4<f32>,
    @location(0) color: vec3<f32>,
}

@vertex
fn vs_main(@location(0) position: vec3<f32>, @location(1) color0: vec3<f32>) -> VertexOutput {
    var result: VertexOutput;
    result.clip = transforms.mvp * vec4<f32>(position, 1.0);
    result.color = color0;
    return result;
}
`

const basicFragmentWGSL = `
@fragment
fn fs_main(@location(0) color: vec3<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(color, 1.0);
}
`

const tintedFragmentWGSL = `
@fragment
fn fs_main(@location(0) color: vec3<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(color * 0.5, 1.0);
}
`

const brokenFragmentWGSL = `
@fragment
fn fs_main(@location(0) color: vec3<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(color, 1.0)
`

func basicSource() ShaderSource {
	return ShaderSource{Vertex: basicVertexWGSL, Fragment: basicFragmentWGSL}
}

// createNoopDevice opens a device on the noop HAL backend.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	require.NoError(t, err)
	adapters := instance.EnumerateAdapters(nil)
	require.NotEmpty(t, adapters)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

func newTestDevice(t *testing.T, opts ...Option) (*GraphicsDevice, *haltrace.Recorder) {
	t.Helper()
	hd, q, cleanup := createNoopDevice(t)
	rec := haltrace.NewRecorder()
	d, err := New(nil, hd, q, append([]Option{WithRecorder(rec)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		d.Destroy()
		cleanup()
	})
	return d, rec
}

// triangle returns a vertex array holding one indexed ColorVertex triangle.
func triangle(t *testing.T, d *GraphicsDevice) *VertexArray {
	t.Helper()
	vb := d.CreateBuffer(BufferVertex, "triangle.vb")
	ib := d.CreateBuffer(BufferIndex, "triangle.ib")
	require.NoError(t, d.CopyToBuffer(vb, make([]byte, 3*ColorVertex.Stride), AccessStatic))
	require.NoError(t, d.CopyToBuffer(ib, []byte{0, 0, 1, 0, 2, 0}, AccessStatic))
	return d.CreateVertexArray(vb, ib, ColorVertex, gputypes.IndexFormatUint16)
}

func beginBackbufferPass(t *testing.T, d *GraphicsDevice) {
	t.Helper()
	require.NoError(t, d.BeginFrame(ClearAll, [4]float64{0, 0, 0, 1}))
	require.NoError(t, d.BeginPass(PassTarget{Label: "main"}))
}

func TestNewRejectsNilDevice(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.ErrorIs(t, err, ErrNilDevice)

	hd, _, cleanup := createNoopDevice(t)
	defer cleanup()
	_, err = New(nil, hd, nil)
	assert.ErrorIs(t, err, ErrNilQueue)
}

func TestBufferLifecycle(t *testing.T) {
	d, rec := newTestDevice(t)

	buf := d.CreateBuffer(BufferVertex, "vb")
	assert.True(t, buf.Handle.IsValid())
	assert.False(t, buf.Resident())
	assert.Zero(t, buf.Size)

	assert.ErrorIs(t, d.CopyToBuffer(buf, nil, AccessStatic), ErrEmptyData)
	assert.ErrorIs(t, d.CopyToBuffer(nil, []byte{1}, AccessStatic), ErrNilBuffer)

	rec.Reset()
	require.NoError(t, d.CopyToBuffer(buf, []byte{1, 2, 3, 4, 5, 6}, AccessStatic))
	assert.Equal(t, uint64(6), buf.Size)
	require.Len(t, rec.Filter("CreateBuffer"), 1)
	assert.Contains(t, rec.Filter("CreateBuffer")[0].Args, "size=8")

	// Same padded size and usage reuses the GPU buffer.
	require.NoError(t, d.CopyToBuffer(buf, []byte{1, 2, 3, 4, 5, 6, 7}, AccessStatic))
	assert.Equal(t, 1, rec.Count("CreateBuffer"))
	assert.Equal(t, uint64(7), buf.Size)

	// A different hint changes usage and recreates it.
	require.NoError(t, d.CopyToBuffer(buf, []byte{1, 2, 3, 4}, AccessStream))
	assert.Equal(t, 2, rec.Count("CreateBuffer"))
	assert.Equal(t, 1, rec.Count("DestroyBuffer"))
	assert.Equal(t, AccessStream, buf.Hint())
}

func TestReleaseBufferTwice(t *testing.T) {
	d, _ := newTestDevice(t)

	buf := d.CreateBuffer(BufferIndex, "ib")
	h := buf.Handle
	require.NoError(t, d.CopyToBuffer(buf, []byte{1, 2}, AccessDynamic))

	assert.True(t, d.ReleaseBuffer(buf))
	assert.False(t, d.ReleaseBuffer(buf))
	assert.Equal(t, registry.InvalidHandle, buf.Handle)
	assert.Zero(t, d.Stats().Buffers)

	// The freed slot is reused exactly once.
	a := d.CreateBuffer(BufferVertex, "a")
	b := d.CreateBuffer(BufferVertex, "b")
	assert.Equal(t, h, a.Handle)
	assert.NotEqual(t, a.Handle, b.Handle)
}

func TestBindVertexArrayOnce(t *testing.T) {
	d, rec := newTestDevice(t)
	vao := triangle(t, d)
	beginBackbufferPass(t, d)

	rec.Reset()
	d.BindVertexArray(vao)
	d.BindVertexArray(vao)
	assert.Equal(t, 1, rec.Count("SetVertexBuffer"))
	assert.Equal(t, 1, rec.Count("SetIndexBuffer"))
	assert.Same(t, vao, d.CurrentVertexArray())

	d.UnbindVertexArray()
	d.BindVertexArray(vao)
	assert.Equal(t, 2, rec.Count("SetVertexBuffer"))

	// A new pass forgets the binding.
	require.NoError(t, d.BeginPass(PassTarget{Label: "second"}))
	assert.Nil(t, d.CurrentVertexArray())
	d.BindVertexArray(vao)
	assert.Equal(t, 3, rec.Count("SetVertexBuffer"))
	require.NoError(t, d.RenderFrame())
}

func TestReleaseVertexArrayKeepsBuffers(t *testing.T) {
	d, _ := newTestDevice(t)
	vao := triangle(t, d)
	d.BindVertexArray(vao)

	assert.True(t, d.ReleaseVertexArray(vao))
	assert.False(t, d.ReleaseVertexArray(vao))
	assert.Nil(t, d.CurrentVertexArray())
	assert.True(t, vao.Vertices.Resident())
	assert.Equal(t, 2, d.Stats().Buffers)
}

func TestCreateShader(t *testing.T) {
	d, _ := newTestDevice(t)

	sh := d.CreateShader("basic", basicSource())
	require.True(t, sh.IsCompiled(), "compile error: %v", sh.Err())
	assert.NoError(t, sh.Err())

	assert.Equal(t, int32(0), sh.AttributeLocation("position"))
	assert.Equal(t, int32(1), sh.AttributeLocation("color0"))
	assert.Equal(t, int32(-1), sh.AttributeLocation("texcoord0"))

	loc := sh.UniformLocation("mvp")
	assert.GreaterOrEqual(t, loc, int32(0))
	assert.Equal(t, loc, sh.UniformLocation("mvp"))
	assert.GreaterOrEqual(t, sh.UniformLocation("model"), int32(0))
	assert.Equal(t, int32(-1), sh.UniformLocation("nope"))
	assert.ElementsMatch(t, []string{"model", "mvp"}, sh.Uniforms())

	assert.Same(t, sh, d.CreateShader("basic", ShaderSource{Vertex: "garbage"}))
	assert.Same(t, sh, d.FindShader("basic"))
	assert.Equal(t, 1, d.Stats().Shaders)
}

func TestBrokenShader(t *testing.T) {
	d, _ := newTestDevice(t)

	sh := d.CreateShader("broken", ShaderSource{Vertex: basicVertexWGSL, Fragment: brokenFragmentWGSL})
	assert.False(t, sh.IsCompiled())
	assert.Error(t, sh.Err())
	assert.Equal(t, int32(-1), sh.UniformLocation("mvp"))

	good := d.CreateShader("basic", basicSource())
	require.True(t, d.UseShader(good))
	assert.False(t, d.UseShader(sh))
	assert.Nil(t, d.ActiveShader())
}

func TestGeometryStageNeverCompiles(t *testing.T) {
	d, _ := newTestDevice(t)

	src := basicSource()
	src.Geometry = "@geometry fn gs_main() {}"
	sh := d.CreateShader("geom", src)
	assert.False(t, sh.IsCompiled())
	assert.ErrorIs(t, sh.Err(), ErrGeometryStage)
}

func TestRecompileOnlyUpdatedStages(t *testing.T) {
	d, rec := newTestDevice(t)
	sh := d.CreateShader("basic", basicSource())
	require.True(t, sh.IsCompiled())
	assert.Equal(t, 2, rec.Count("CreateShaderModule"))
	gen := sh.generation

	assert.False(t, d.UpdateShaderSource(sh, StageFragment, basicFragmentWGSL))
	assert.True(t, d.UpdateShaderSource(sh, StageFragment, tintedFragmentWGSL))
	assert.Equal(t, Updated, sh.StageState(StageFragment))
	assert.Equal(t, Unmodified, sh.StageState(StageVertex))

	require.True(t, d.RecompileShader(sh))
	assert.Equal(t, 3, rec.Count("CreateShaderModule"))
	assert.Equal(t, 1, rec.Count("DestroyShaderModule"))
	assert.Equal(t, Unmodified, sh.StageState(StageFragment))
	assert.Equal(t, gen+1, sh.generation)

	// A broken update unlinks the program until fixed.
	d.UpdateShaderSource(sh, StageFragment, brokenFragmentWGSL)
	assert.False(t, d.RecompileShader(sh))
	d.UpdateShaderSource(sh, StageFragment, basicFragmentWGSL)
	assert.True(t, d.RecompileShader(sh))
}

func TestUseShader(t *testing.T) {
	d, _ := newTestDevice(t)
	sh := d.CreateShader("basic", basicSource())

	assert.False(t, d.UseShader(nil))
	assert.True(t, d.UseShader(sh))
	assert.True(t, d.UseShader(sh))
	assert.Same(t, sh, d.ActiveShader())
	assert.True(t, d.UseShader(nil))
	assert.Nil(t, d.ActiveShader())
}

func TestReleaseShaderInUse(t *testing.T) {
	d, _ := newTestDevice(t)
	sh := d.CreateShader("basic", basicSource())
	require.True(t, d.UseShader(sh))

	assert.ErrorIs(t, d.ReleaseShader(sh), ErrShaderInUse)
	assert.Equal(t, 1, d.Stats().Shaders)

	d.UseShader(nil)
	assert.NoError(t, d.ReleaseShader(sh))
	assert.NoError(t, d.ReleaseShader(sh))
	assert.Nil(t, d.FindShader("basic"))
}

func TestSetUniform(t *testing.T) {
	d, _ := newTestDevice(t)
	sh := d.CreateShader("basic", basicSource())

	p := NewParameter("mvp", ParamMat4, 1)
	p.SetMat4(mgl32.Scale3D(2, 2, 2))

	// No shader bound: nothing happens and nothing is cached.
	d.SetUniform(p)
	assert.Equal(t, int32(-1), p.Location())

	require.True(t, d.UseShader(sh))
	d.SetUniform(p)
	loc := p.Location()
	require.GreaterOrEqual(t, loc, int32(0))

	field := sh.refl.fields[loc]
	block := sh.refl.blocks[field.block]
	assert.Equal(t, p.Data, block.data[field.offset:field.offset+field.size])

	unknown := NewParameter("unknown", ParamFloat, 1)
	unknown.SetFloats(1)
	d.SetUniform(unknown)
	assert.Equal(t, int32(-1), unknown.Location())
}

func TestParameters(t *testing.T) {
	d, _ := newTestDevice(t)

	p := d.CreateParameter("time", ParamFloat, 1)
	require.NotNil(t, p)
	assert.Same(t, p, d.CreateParameter("time", ParamFloat4, 1))
	assert.Same(t, p, d.FindParameter("time"))
	assert.Nil(t, d.CreateParameter("", ParamFloat, 1))

	p.SetFloats(1.5)
	assert.Equal(t, []float32{1.5}, p.Floats())

	bones := d.CreateParameter("bones", ParamMat4Array, 2)
	assert.Len(t, bones.Data, 128)
	bones.SetMat4Array([]mgl32.Mat4{mgl32.Ident4(), mgl32.Translate3D(1, 2, 3)})
	assert.Equal(t, float32(3), bones.Floats()[16+14])

	d.ReleaseAllParameters()
	assert.Zero(t, d.Stats().Parameters)
	assert.Nil(t, d.FindParameter("time"))
}

func TestMatrices(t *testing.T) {
	d, _ := newTestDevice(t)
	assert.Equal(t, mgl32.Ident4(), d.MVP())

	model := mgl32.Translate3D(1, 0, 0)
	view := mgl32.Translate3D(0, 0, -5)
	proj := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 100)
	d.SetMatrix(MatrixModel, model)
	d.SetMatrix(MatrixView, view)
	d.SetMatrix(MatrixProjection, proj)

	assert.Equal(t, model, d.Matrix(MatrixModel))
	assert.True(t, proj.Mul4(view).Mul4(model).ApproxEqual(d.MVP()))

	sh := d.CreateShader("basic", basicSource())
	require.True(t, d.UseShader(sh))
	d.ApplyMatrices()
	field := sh.refl.fields[sh.UniformLocation("mvp")]
	block := sh.refl.blocks[field.block]
	want := NewParameter("mvp", ParamMat4, 1)
	want.SetMat4(d.MVP())
	assert.Equal(t, want.Data, block.data[field.offset:field.offset+field.size])
}

func TestCreateTextureIdempotent(t *testing.T) {
	d, rec := newTestDevice(t)

	desc := TextureDescriptor{
		Name:     "bricks",
		Width:    8,
		Height:   8,
		Channels: 3,
		Pixels:   make([]byte, 8*8*3),
	}
	tex := d.CreateTexture(desc)
	require.NotNil(t, tex)
	assert.Equal(t, gputypes.TextureFormatRGBA8Unorm, tex.Format)
	assert.Equal(t, uint32(4), tex.MipLevels)
	assert.Equal(t, 1, rec.Count("CreateTexture"))
	assert.Equal(t, 4, rec.Count("WriteTexture"))

	assert.Same(t, tex, d.CreateTexture(desc))
	assert.Equal(t, 1, rec.Count("CreateTexture"))
	assert.Same(t, tex, d.FindTexture("bricks"))

	assert.Nil(t, d.CreateTexture(TextureDescriptor{Width: 1, Height: 1, Channels: 4, Pixels: make([]byte, 4)}))
	assert.Nil(t, d.CreateTexture(TextureDescriptor{Name: "short", Width: 4, Height: 4, Channels: 4, Pixels: make([]byte, 3)}))
	assert.Nil(t, d.FindTexture("short"))

	assert.True(t, d.ReleaseTexture(tex))
	assert.False(t, d.ReleaseTexture(tex))
	assert.Nil(t, d.FindTexture("bricks"))
}

func TestTextureOrDefault(t *testing.T) {
	d, _ := newTestDevice(t)

	def := d.TextureOrDefault("missing.png")
	require.NotNil(t, def)
	assert.Equal(t, DefaultTextureName, def.Name)
	assert.Equal(t, uint32(checkerSize), def.Width)
	assert.Same(t, def, d.DefaultTexture())
}

func TestBindTexture(t *testing.T) {
	d, _ := newTestDevice(t)
	tex := d.DefaultTexture()

	assert.True(t, d.BindTexture(0, tex))
	assert.Same(t, tex, d.BoundTexture(0))
	assert.False(t, d.BindTexture(MaxTextureUnits, tex))
	assert.False(t, d.BindTexture(-1, tex))

	d.ReleaseTexture(tex)
	assert.Nil(t, d.BoundTexture(0))
}

func TestBoxFilter(t *testing.T) {
	src := []byte{
		0, 100, 10, 10,
		200, 100, 10, 10,
	}
	dst, w, h := downsampleLayers(src, 4, 2, 1, 1)
	assert.Equal(t, uint32(2), w)
	assert.Equal(t, uint32(1), h)
	assert.Equal(t, []byte{100, 10}, dst)
	assert.Equal(t, uint32(9), mipCount(256, 3))
}

func TestApplyFixedStateSkipsUnchanged(t *testing.T) {
	d, _ := newTestDevice(t)
	s := DefaultFixedState()

	assert.True(t, d.ApplyFixedState(s))
	assert.False(t, d.ApplyFixedState(s))

	s.Blend = BlendAlpha
	assert.True(t, d.ApplyFixedState(s))
	assert.Equal(t, s, d.CurrentState())
	assert.Equal(t, uint64(2), d.Context().Counters.Snapshot().StateChanges)
}

func TestDrawOutOfRange(t *testing.T) {
	d, rec := newTestDevice(t)
	sh := d.CreateShader("basic", basicSource())
	vao := triangle(t, d)
	beginBackbufferPass(t, d)
	d.UseShader(sh)
	d.BindVertexArray(vao)

	assert.False(t, d.Draw(0))
	assert.False(t, d.Draw(-1))
	assert.Zero(t, rec.Count("DrawIndexed"))
	assert.Equal(t, uint64(2), d.Context().Counters.Snapshot().SkippedDraws)
	require.NoError(t, d.RenderFrame())
}

func TestDrawSkipsWithoutShader(t *testing.T) {
	d, rec := newTestDevice(t)
	vao := triangle(t, d)
	idx := d.AddPrimitiveGroup(PrimitiveGroup{
		Topology:   gputypes.PrimitiveTopologyTriangleList,
		IndexCount: 3,
	})
	beginBackbufferPass(t, d)
	d.BindVertexArray(vao)

	assert.False(t, d.Draw(idx))
	assert.Zero(t, rec.Count("DrawIndexed"))
	require.NoError(t, d.RenderFrame())

	// Outside a pass the draw is skipped as well.
	d.UseShader(d.CreateShader("basic", basicSource()))
	assert.False(t, d.Draw(idx))
}

func TestDrawUsesPipelineCache(t *testing.T) {
	d, rec := newTestDevice(t)
	sh := d.CreateShader("basic", basicSource())
	vao := triangle(t, d)
	idx := d.AddPrimitiveGroup(PrimitiveGroup{
		Topology:    gputypes.PrimitiveTopologyTriangleList,
		IndexCount:  3,
		IndexFormat: gputypes.IndexFormatUint16,
	})

	for range 2 {
		beginBackbufferPass(t, d)
		require.True(t, d.UseShader(sh))
		d.BindVertexArray(vao)
		d.ApplyMatrices()
		assert.True(t, d.Draw(idx))
		assert.True(t, d.DrawInstanced(idx, 4))
		require.NoError(t, d.RenderFrame())
	}

	assert.Equal(t, 1, rec.Count("CreateRenderPipeline"))
	assert.Equal(t, 2, rec.Count("SetPipeline"))
	assert.Equal(t, 4, rec.Count("DrawIndexed"))
	assert.Equal(t, 2, rec.Count("Submit"))

	snap := d.Context().Counters.Snapshot()
	assert.Equal(t, uint64(4), snap.Draws)
	assert.Equal(t, uint64(1), snap.PipelineMisses)
	assert.Equal(t, uint64(3), snap.PipelineHits)

	// New fixed state means a new pipeline.
	s := DefaultFixedState()
	s.Cull = gputypes.CullModeNone
	beginBackbufferPass(t, d)
	d.ApplyFixedState(s)
	d.UseShader(sh)
	d.BindVertexArray(vao)
	assert.True(t, d.Draw(idx))
	require.NoError(t, d.RenderFrame())
	assert.Equal(t, 2, rec.Count("CreateRenderPipeline"))
	assert.Equal(t, 2, d.Stats().Pipelines)
}

func TestUniformRingGrows(t *testing.T) {
	// One Transforms block per draw takes one 256-byte slot.
	d, rec := newTestDevice(t, WithUniformRingSize(256))
	sh := d.CreateShader("basic", basicSource())
	vao := triangle(t, d)
	idx := d.AddPrimitiveGroup(PrimitiveGroup{
		Topology:    gputypes.PrimitiveTopologyTriangleList,
		IndexCount:  3,
		IndexFormat: gputypes.IndexFormatUint16,
	})

	rec.Reset()
	beginBackbufferPass(t, d)
	require.True(t, d.UseShader(sh))
	d.BindVertexArray(vao)
	for range 5 {
		d.ApplyMatrices()
		assert.True(t, d.Draw(idx))
	}
	// 256 -> 512 -> 1024 bytes.
	assert.Equal(t, 2, rec.Count("CreateBuffer"))
	assert.Zero(t, rec.Count("DestroyBuffer"))
	require.NoError(t, d.RenderFrame())

	assert.Equal(t, 5, rec.Count("DrawIndexed"))
	assert.Equal(t, 2, rec.Count("DestroyBuffer"))
	snap := d.Context().Counters.Snapshot()
	assert.Equal(t, uint64(5), snap.Draws)
	assert.Zero(t, snap.SkippedDraws)

	// The grown ring is kept for later frames.
	rec.Reset()
	beginBackbufferPass(t, d)
	d.UseShader(sh)
	d.BindVertexArray(vao)
	for range 4 {
		assert.True(t, d.Draw(idx))
	}
	require.NoError(t, d.RenderFrame())
	assert.Zero(t, rec.Count("CreateBuffer"))
	assert.Equal(t, 4, rec.Count("DrawIndexed"))
}

func TestRecompileDropsPipelines(t *testing.T) {
	d, rec := newTestDevice(t)
	sh := d.CreateShader("basic", basicSource())
	vao := triangle(t, d)
	idx := d.AddPrimitiveGroup(PrimitiveGroup{Topology: gputypes.PrimitiveTopologyTriangleList, IndexCount: 3})

	beginBackbufferPass(t, d)
	d.UseShader(sh)
	d.BindVertexArray(vao)
	require.True(t, d.Draw(idx))
	require.NoError(t, d.RenderFrame())
	require.Equal(t, 1, d.Stats().Pipelines)

	d.UpdateShaderSource(sh, StageFragment, tintedFragmentWGSL)
	require.True(t, d.RecompileShader(sh))
	assert.Zero(t, d.Stats().Pipelines)
	assert.Equal(t, 1, rec.Count("DestroyRenderPipeline"))
}

func TestMissingVertexAttributeSkipsDraw(t *testing.T) {
	d, _ := newTestDevice(t)
	sh := d.CreateShader("basic", basicSource())
	vb := d.CreateBuffer(BufferVertex, "positions")
	require.NoError(t, d.CopyToBuffer(vb, make([]byte, 36), AccessStatic))
	layout := VertexLayout{
		Name:       "position-only",
		Stride:     12,
		Attributes: []VertexAttribute{{Name: "position", Format: gputypes.VertexFormatFloat32x3}},
	}
	vao := d.CreateVertexArray(vb, nil, layout, gputypes.IndexFormatUint16)
	assert.Equal(t, gputypes.IndexFormatUndefined, vao.IndexFormat)
	idx := d.AddPrimitiveGroup(PrimitiveGroup{Topology: gputypes.PrimitiveTopologyTriangleList, IndexCount: 3})

	beginBackbufferPass(t, d)
	d.UseShader(sh)
	d.BindVertexArray(vao)
	assert.False(t, d.Draw(idx))
	require.NoError(t, d.RenderFrame())
}

func TestFrameClearsWithoutPasses(t *testing.T) {
	d, rec := newTestDevice(t)

	require.NoError(t, d.BeginFrame(ClearColor, [4]float64{1, 0, 0, 1}))
	assert.ErrorIs(t, d.BeginFrame(ClearColor, [4]float64{}), ErrFrameActive)
	require.NoError(t, d.RenderFrame())

	passes := rec.Filter("BeginRenderPass")
	require.Len(t, passes, 1)
	assert.Contains(t, passes[0].Args, "load=Clear")
	assert.Equal(t, 1, rec.Count("Submit"))
	assert.ErrorIs(t, d.RenderFrame(), ErrNoFrame)
}

func TestFrameClearAppliesOnce(t *testing.T) {
	d, rec := newTestDevice(t)

	require.NoError(t, d.BeginFrame(ClearColor, [4]float64{0, 0, 1, 1}))
	require.NoError(t, d.BeginPass(PassTarget{Label: "opaque"}))
	require.NoError(t, d.BeginPass(PassTarget{Label: "overlay"}))
	require.NoError(t, d.RenderFrame())

	passes := rec.Filter("BeginRenderPass")
	require.Len(t, passes, 2)
	assert.Equal(t, "opaque load=Clear", passes[0].Args)
	assert.Equal(t, "overlay load=Load", passes[1].Args)
	assert.Equal(t, 2, rec.Count("EndRenderPass"))
}

func TestSetRenderTarget(t *testing.T) {
	d, rec := newTestDevice(t)
	plain := d.DefaultTexture()
	rt := d.CreateRenderTexture("shadow", 256, 256)
	require.NotNil(t, rt)
	assert.True(t, rt.IsRenderTarget())
	assert.Same(t, rt, d.CreateRenderTexture("shadow", 16, 16))

	assert.ErrorIs(t, d.SetRenderTarget(rt), ErrNoFrame)

	beginBackbufferPass(t, d)
	assert.ErrorIs(t, d.SetRenderTarget(plain), ErrNotRenderTarget)
	require.NoError(t, d.SetRenderTarget(rt))
	assert.Same(t, rt, d.CurrentTarget())
	assert.Equal(t, Viewport{Width: 256, Height: 256, MaxDepth: 1}, d.CurrentViewport())

	require.NoError(t, d.SetRenderTarget(nil))
	bb, err := d.Backbuffer()
	require.NoError(t, err)
	assert.Same(t, bb, d.CurrentTarget())
	require.NoError(t, d.RenderFrame())

	passes := rec.Filter("BeginRenderPass")
	require.Len(t, passes, 3)
	assert.Equal(t, "shadow load=Load", passes[1].Args)
	assert.Equal(t, "backbuffer load=Load", passes[2].Args)
}

func TestResizeBackbuffer(t *testing.T) {
	d, _ := newTestDevice(t)

	require.NoError(t, d.ResizeBackbuffer(320, 200))
	bb, err := d.Backbuffer()
	require.NoError(t, err)
	assert.Equal(t, uint32(320), bb.Width)
	assert.Equal(t, uint32(200), bb.Height)

	require.NoError(t, d.BeginFrame(ClearNone, [4]float64{}))
	assert.ErrorIs(t, d.ResizeBackbuffer(10, 10), ErrFrameActive)
	require.NoError(t, d.RenderFrame())
}

func TestReleaseDuringFrameIsDeferred(t *testing.T) {
	d, rec := newTestDevice(t)
	buf := d.CreateBuffer(BufferVertex, "vb")
	require.NoError(t, d.CopyToBuffer(buf, make([]byte, 16), AccessStatic))

	beginBackbufferPass(t, d)
	rec.Reset()
	d.ReleaseBuffer(buf)
	assert.Zero(t, rec.Count("DestroyBuffer"))
	require.NoError(t, d.RenderFrame())
	// The noop queue completes every submission at once.
	assert.Equal(t, 1, rec.Count("DestroyBuffer"))
}

func TestDestroyReleasesEverything(t *testing.T) {
	d, rec := newTestDevice(t)
	d.CreateShader("basic", basicSource())
	triangle(t, d)
	d.DefaultTexture()
	d.CreateParameter("time", ParamFloat, 1)
	d.AddPrimitiveGroup(PrimitiveGroup{IndexCount: 3})

	d.Destroy()
	assert.Equal(t, Stats{}, d.Stats())
	assert.Equal(t, rec.Count("CreateBuffer"), rec.Count("DestroyBuffer"))
	assert.Equal(t, rec.Count("CreateTexture"), rec.Count("DestroyTexture"))
	assert.Equal(t, rec.Count("CreateShaderModule"), rec.Count("DestroyShaderModule"))

	// Destroy is idempotent.
	d.Destroy()
}

func TestParseState(t *testing.T) {
	c, err := ParseClearState([]string{"color", "Depth"})
	require.NoError(t, err)
	assert.Equal(t, ClearColor|ClearDepth, c)
	assert.Equal(t, "color|depth", c.String())
	_, err = ParseClearState([]string{"accum"})
	assert.Error(t, err)

	s, err := ParseFixedState("none", "alpha", "line", false)
	require.NoError(t, err)
	assert.Equal(t, gputypes.CullModeNone, s.Cull)
	assert.Equal(t, BlendAlpha, s.Blend)
	assert.Equal(t, PolygonLine, s.Polygon)
	assert.False(t, s.Depth.Test)

	_, err = ParseFixedState("sideways", "", "", true)
	assert.Error(t, err)

	assert.Equal(t, gputypes.PrimitiveTopologyLineList, PolygonLine.topology(gputypes.PrimitiveTopologyTriangleList))
	assert.Equal(t, gputypes.PrimitiveTopologyPointList, PolygonPoint.topology(gputypes.PrimitiveTopologyLineStrip))
	assert.Nil(t, BlendReplace.state())
}

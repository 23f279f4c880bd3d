package frame

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gfxcore"
	"github.com/gogpu/gfxcore/cmdqueue"
	"github.com/gogpu/gfxcore/device"
	"github.com/gogpu/gfxcore/internal/haltrace"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vertexWGSL = `
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

const fragmentWGSL = `
@fragment
fn fs_main(@location(0) color: vec3<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(color, 1.0);
}
`

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
	return openDev.Device, openDev.Queue, func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
}

type harness struct {
	exec  *Executor
	dev   *device.GraphicsDevice
	queue *cmdqueue.Queue
	rec   *haltrace.Recorder
	gc    *gfxcore.HeadlessContext
	rc    *gfxcore.RenderContext

	shader *device.Shader
	vao    *device.VertexArray
	group  device.PrimitiveIndex
}

func newHarness(t *testing.T, passes ...*Pass) *harness {
	t.Helper()
	h := &harness{gc: &gfxcore.HeadlessContext{}, rec: haltrace.NewRecorder()}
	h.rc = gfxcore.NewRenderContext(gfxcore.DefaultConfig(), h.gc)

	hd, q, cleanup := createNoopDevice(t)
	dev, err := device.New(h.rc, hd, q, device.WithRecorder(h.rec))
	require.NoError(t, err)
	t.Cleanup(func() {
		dev.Destroy()
		cleanup()
	})
	h.dev = dev

	pl, err := NewPipeline(passes...)
	require.NoError(t, err)
	h.queue = cmdqueue.New(h.rc)
	h.exec = NewExecutor(h.rc, dev, h.queue, pl)

	h.shader = dev.CreateShader("basic", device.ShaderSource{Vertex: vertexWGSL, Fragment: fragmentWGSL})
	require.True(t, h.shader.IsCompiled(), "compile: %v", h.shader.Err())
	vb := dev.CreateBuffer(device.BufferVertex, "vb")
	ib := dev.CreateBuffer(device.BufferIndex, "ib")
	require.NoError(t, dev.CopyToBuffer(vb, make([]byte, 3*device.ColorVertex.Stride), device.AccessStatic))
	require.NoError(t, dev.CopyToBuffer(ib, []byte{0, 0, 1, 0, 2, 0}, device.AccessStatic))
	h.vao = dev.CreateVertexArray(vb, ib, device.ColorVertex, gputypes.IndexFormatUint16)
	h.group = dev.AddPrimitiveGroup(device.PrimitiveGroup{
		Topology:    gputypes.PrimitiveTopologyTriangleList,
		IndexCount:  3,
		IndexFormat: gputypes.IndexFormatUint16,
	})
	return h
}

func (h *harness) enqueueTriangle(pass cmdqueue.PassID, batch string) {
	h.queue.Enqueue(&cmdqueue.SetMaterial{PassID: pass, Shader: h.shader})
	h.queue.Enqueue(&cmdqueue.DrawPrimitives{
		PassID:      pass,
		BatchID:     batch,
		VertexArray: h.vao,
		Groups:      []device.PrimitiveIndex{h.group},
	})
}

func TestSetupFailures(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t)
	assert.ErrorIs(t, h.exec.Setup(ctx), ErrNoPasses)

	assert.ErrorIs(t, NewExecutor(nil, nil, nil, nil).Setup(ctx), ErrNoDevice)

	h = newHarness(t, NewPass(0, "main"))
	h.gc.Fail = true
	assert.ErrorIs(t, h.exec.Setup(ctx), gfxcore.ErrContextUnavailable)

	h.gc.Fail = false
	require.NoError(t, h.exec.Setup(ctx))
	assert.True(t, h.gc.IsActive())
	h.gc.Fail = true
	assert.NoError(t, h.exec.Setup(ctx), "Setup runs once")

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	h = newHarness(t, NewPass(0, "main"))
	assert.ErrorIs(t, h.exec.Setup(canceled), context.Canceled)
}

func TestRunFrameDrawsAndPresents(t *testing.T) {
	h := newHarness(t, NewPass(0, "main"))
	h.enqueueTriangle(0, "tri")

	require.NoError(t, h.exec.RunFrame(context.Background()))

	assert.Equal(t, 1, h.rec.Count("DrawIndexed"))
	assert.Equal(t, 1, h.rec.Count("Submit"))
	assert.Equal(t, 1, h.gc.Presents())
	assert.Zero(t, h.queue.Len())
	assert.Equal(t, Idle, h.exec.State())
	assert.Nil(t, h.dev.ActiveShader())
	assert.Nil(t, h.dev.CurrentVertexArray())

	snap := h.rc.Counters.Snapshot()
	assert.Equal(t, uint64(1), snap.Frames)
	assert.Equal(t, uint64(1), snap.Draws)
}

func TestCleanPassesAreSkipped(t *testing.T) {
	shadow := NewPass(1, "shadow")
	color := NewPass(2, "color")
	h := newHarness(t, shadow, color)
	shadow.Target = h.dev.CreateRenderTexture("shadowmap", 64, 64)
	h.enqueueTriangle(2, "tri")

	require.NoError(t, h.exec.RunFrame(context.Background()))

	passes := h.rec.Filter("BeginRenderPass")
	require.Len(t, passes, 1)
	assert.Equal(t, "color load=Clear", passes[0].Args)
	assert.False(t, shadow.Dirty())
	assert.False(t, color.Dirty())

	// An empty frame still clears the backbuffer.
	h.rec.Reset()
	require.NoError(t, h.exec.RunFrame(context.Background()))
	passes = h.rec.Filter("BeginRenderPass")
	require.Len(t, passes, 1)
	assert.Equal(t, "clear load=Clear", passes[0].Args)
	assert.Zero(t, h.rec.Count("DrawIndexed"))
}

func TestPassesDrainOwnCommands(t *testing.T) {
	shadow := NewPass(1, "shadow")
	color := NewPass(2, "color")
	h := newHarness(t, shadow, color)
	shadow.Target = h.dev.CreateRenderTexture("shadowmap", 64, 64)
	h.enqueueTriangle(1, "caster")
	h.enqueueTriangle(2, "caster")
	h.enqueueTriangle(2, "floor")

	require.NoError(t, h.exec.RunFrame(context.Background()))

	passes := h.rec.Filter("BeginRenderPass")
	require.Len(t, passes, 2)
	assert.Equal(t, "shadow load=Clear", passes[0].Args)
	assert.Equal(t, "color load=Clear", passes[1].Args)
	assert.Equal(t, 3, h.rec.Count("DrawIndexed"))
}

func TestRenderTargetSwitchInsidePass(t *testing.T) {
	h := newHarness(t, NewPass(0, "main"))
	rt := h.dev.CreateRenderTexture("offscreen", 32, 32)
	h.enqueueTriangle(0, "a")
	h.queue.Enqueue(&cmdqueue.SetRenderTarget{Target: rt, Clear: device.ClearColor})
	h.queue.Enqueue(&cmdqueue.DrawPrimitives{BatchID: "b", VertexArray: h.vao, Groups: []device.PrimitiveIndex{h.group}})
	h.queue.Enqueue(&cmdqueue.SetRenderTarget{})
	h.queue.Enqueue(&cmdqueue.DrawPrimitives{BatchID: "c", VertexArray: h.vao, Groups: []device.PrimitiveIndex{h.group}})

	require.NoError(t, h.exec.RunFrame(context.Background()))

	var labels []string
	for _, c := range h.rec.Filter("BeginRenderPass") {
		labels = append(labels, c.Args)
	}
	assert.Equal(t, []string{
		"main load=Clear",
		"main/offscreen load=Clear",
		"main load=Load",
	}, labels)
	assert.Equal(t, 3, h.rec.Count("DrawIndexed"))
}

func TestFailedDrawDoesNotAbortPass(t *testing.T) {
	h := newHarness(t, NewPass(0, "main"))
	h.queue.Enqueue(&cmdqueue.SetMaterial{Shader: h.shader})
	h.queue.Enqueue(&cmdqueue.DrawPrimitives{
		BatchID:     "tri",
		VertexArray: h.vao,
		Groups:      []device.PrimitiveIndex{99, h.group},
	})
	broken := h.dev.CreateShader("broken", device.ShaderSource{Vertex: "fn", Fragment: fragmentWGSL})
	require.False(t, broken.IsCompiled())
	h.queue.Enqueue(&cmdqueue.SetMaterial{Shader: broken})
	h.queue.Enqueue(&cmdqueue.DrawPrimitives{BatchID: "tri", VertexArray: h.vao, Groups: []device.PrimitiveIndex{h.group}})
	h.queue.Enqueue(&cmdqueue.SetMaterial{Shader: h.shader})
	h.queue.Enqueue(&cmdqueue.DrawPrimitivesInstanced{
		BatchID:     "tri",
		VertexArray: h.vao,
		Groups:      []device.PrimitiveIndex{h.group},
		Instances:   5,
	})

	require.NoError(t, h.exec.RunFrame(context.Background()))
	assert.Equal(t, 2, h.rec.Count("DrawIndexed"))
	assert.Equal(t, 1, h.gc.Presents())
	assert.Equal(t, uint64(1), h.rc.Counters.Snapshot().SkippedDraws)
}

func TestStickyMatricesAcrossFrames(t *testing.T) {
	h := newHarness(t, NewPass(0, "main"))
	ctx := context.Background()
	m1 := mgl32.Translate3D(1, 0, 0)
	m2 := mgl32.Translate3D(2, 0, 0)

	h.queue.SetMatrixBuffer("tri", cmdqueue.NewMatrixBuffer(m1))
	h.enqueueTriangle(0, "tri")
	require.NoError(t, h.exec.RunFrame(ctx))
	assert.Equal(t, m1, h.dev.Matrix(device.MatrixModel))

	h.enqueueTriangle(0, "tri")
	require.NoError(t, h.exec.RunFrame(ctx))
	assert.Equal(t, m1, h.dev.Matrix(device.MatrixModel))

	h.queue.SetMatrixBuffer("tri", cmdqueue.NewMatrixBuffer(m2))
	h.enqueueTriangle(0, "tri")
	require.NoError(t, h.exec.RunFrame(ctx))
	assert.Equal(t, m2, h.dev.Matrix(device.MatrixModel))
}

func TestPassMatricesFeedBatches(t *testing.T) {
	pass := NewPass(0, "main")
	pass.View = mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	pass.Projection = mgl32.Perspective(mgl32.DegToRad(45), 4.0/3.0, 0.1, 50)
	h := newHarness(t, pass)
	model := mgl32.Translate3D(0, 1, 0)
	h.queue.SetMatrixBuffer("tri", cmdqueue.NewMatrixBuffer(model))
	h.enqueueTriangle(0, "tri")

	require.NoError(t, h.exec.RunFrame(context.Background()))
	want := pass.Projection.Mul4(pass.View).Mul4(model)
	assert.True(t, want.ApproxEqual(h.dev.MVP()))
}

func TestShutdown(t *testing.T) {
	h := newHarness(t, NewPass(0, "main"))
	h.exec.RequestShutdown()
	assert.True(t, h.exec.ShutdownRequested())

	assert.ErrorIs(t, h.exec.RunFrame(context.Background()), ErrShutdown)
	assert.Zero(t, h.rec.Count("Submit"))
	assert.Zero(t, h.gc.Presents())
	assert.NoError(t, h.exec.Run(context.Background(), 0, nil))
}

func TestRun(t *testing.T) {
	h := newHarness(t, NewPass(0, "main"))
	frames := 0
	err := h.exec.Run(context.Background(), 3, func() error {
		frames++
		h.enqueueTriangle(0, "tri")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, frames)
	assert.Equal(t, 3, h.gc.Presents())
	assert.Equal(t, 3, h.rec.Count("DrawIndexed"))

	// The hook can stop the loop by requesting a shutdown.
	err = h.exec.Run(context.Background(), 0, func() error {
		if h.gc.Presents() == 5 {
			h.exec.RequestShutdown()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, h.gc.Presents())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, newHarness(t, NewPass(0, "main")).exec.Run(ctx, 0, nil), context.Canceled)
}

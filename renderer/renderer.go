package renderer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/gogpu/gfxcore"
	"github.com/gogpu/gfxcore/cmdqueue"
	"github.com/gogpu/gfxcore/device"
	"github.com/gogpu/gfxcore/frame"
	"github.com/gogpu/gputypes"
)

// Option configures a Renderer.
type Option func(*options)

type options struct {
	passes []*frame.Pass
}

// WithPasses replaces the passes built from the render context config.
func WithPasses(passes ...*frame.Pass) Option {
	return func(o *options) {
		o.passes = passes
	}
}

// Renderer turns scene submissions into device resources and queued
// commands, and renders frames from them. Committed batches are retained:
// every frame replays them into the command queue until they are removed
// or the scene is cleared.
//
// A Renderer is used from the goroutine that owns the device, except
// ReloadShader.
type Renderer struct {
	rc    *gfxcore.RenderContext
	dev   *device.GraphicsDevice
	queue *cmdqueue.Queue
	exec  *frame.Executor
	log   *slog.Logger

	meshes  map[string]*meshResources
	batches map[string]*batch
	order   []string

	frameVars []*device.Parameter

	mu      sync.Mutex
	reloads map[string]device.ShaderSource
}

// New builds the queue, pipeline and executor around dev. Passes come
// from WithPasses, else from rc.Config.Passes, else a single pass 0.
func New(rc *gfxcore.RenderContext, dev *device.GraphicsDevice, opts ...Option) (*Renderer, error) {
	if dev == nil {
		return nil, ErrNoDevice
	}
	if rc == nil {
		rc = dev.Context()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	passes := o.passes
	if len(passes) == 0 {
		for _, pc := range rc.Config.Passes {
			p, err := frame.PassFromConfig(pc, rc.Config.ClearColor)
			if err != nil {
				return nil, fmt.Errorf("renderer: %w", err)
			}
			passes = append(passes, p)
		}
	}
	if len(passes) == 0 {
		p := frame.NewPass(0, "main")
		p.ClearColor = rc.Config.ClearColor
		passes = append(passes, p)
	}
	pipeline, err := frame.NewPipeline(passes...)
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}

	queue := cmdqueue.New(rc)
	r := &Renderer{
		rc:      rc,
		dev:     dev,
		queue:   queue,
		exec:    frame.NewExecutor(rc, dev, queue, pipeline),
		log:     rc.Logger().With("component", "renderer"),
		meshes:  make(map[string]*meshResources),
		batches: make(map[string]*batch),
		reloads: make(map[string]device.ShaderSource),
	}
	return r, nil
}

// Device returns the graphics device.
func (r *Renderer) Device() *device.GraphicsDevice { return r.dev }

// Queue returns the command queue.
func (r *Renderer) Queue() *cmdqueue.Queue { return r.queue }

// Executor returns the frame executor.
func (r *Renderer) Executor() *frame.Executor { return r.exec }

// Setup activates the graphics context. See frame.Executor.Setup.
func (r *Renderer) Setup(ctx context.Context) error { return r.exec.Setup(ctx) }

// RegisterShader compiles a shader for use by materials. Registering a
// name again returns the existing shader; use ReloadShader to change it.
func (r *Renderer) RegisterShader(name string, src device.ShaderSource) *device.Shader {
	sh := r.dev.CreateShader(name, src)
	if !sh.IsCompiled() {
		r.log.Warn("shader registered uncompiled", "shader", name, "error", sh.Err())
	}
	return sh
}

// Commit uploads the meshes of sub that are not resident yet, resolves its
// materials and retains its draw list under sub.BatchID, replacing an
// earlier commit of the same batch. The batch matrices are stored in the
// queue.
func (r *Renderer) Commit(sub Submission) error {
	if sub.BatchID == "" {
		return ErrNoBatchID
	}
	if r.exec.Pipeline().PassByID(sub.Pass) == nil {
		return fmt.Errorf("batch %q: %w: %d", sub.BatchID, ErrUnknownPass, sub.Pass)
	}
	for i, e := range sub.Meshes {
		if err := validateMesh(e.Mesh); err != nil {
			return fmt.Errorf("batch %q entry %d: %w", sub.BatchID, i, err)
		}
		if e.Material == nil {
			return fmt.Errorf("batch %q entry %d: %w: no material", sub.BatchID, i, ErrInvalidMesh)
		}
		if r.dev.FindShader(e.Material.Shader) == nil {
			return fmt.Errorf("batch %q entry %d: %w: %q", sub.BatchID, i, ErrUnknownShader, e.Material.Shader)
		}
	}

	b := &batch{id: sub.BatchID, pass: sub.Pass}
	var last *Material
	for _, e := range sub.Meshes {
		res, err := r.upload(e.Mesh)
		if err != nil {
			return fmt.Errorf("batch %q: %w", sub.BatchID, err)
		}
		if e.Material != last {
			b.commands = append(b.commands, r.materialCommand(sub.Pass, e.Material))
			last = e.Material
		}
		b.commands = append(b.commands, drawCommand(sub, res, e.Instances))
	}

	if _, ok := r.batches[sub.BatchID]; !ok {
		r.order = append(r.order, sub.BatchID)
	}
	r.batches[sub.BatchID] = b
	r.queue.SetMatrixBuffer(sub.BatchID, sub.Matrices)
	r.log.Debug("batch committed", "batch", sub.BatchID, "pass", sub.Pass, "commands", len(b.commands))
	return nil
}

func validateMesh(m *Mesh) error {
	switch {
	case m == nil:
		return fmt.Errorf("%w: nil mesh", ErrInvalidMesh)
	case m.ID == "":
		return fmt.Errorf("%w: mesh without id", ErrInvalidMesh)
	case len(m.Vertices) == 0 || m.Layout.Stride == 0:
		return fmt.Errorf("%w: mesh %q has no vertices", ErrInvalidMesh, m.ID)
	case len(m.Indices) > 0 && indexSize(m.IndexFormat) == 0:
		return fmt.Errorf("%w: mesh %q has indices without index format", ErrInvalidMesh, m.ID)
	}
	return nil
}

func (r *Renderer) materialCommand(pass cmdqueue.PassID, m *Material) *cmdqueue.SetMaterial {
	cmd := &cmdqueue.SetMaterial{
		PassID:     pass,
		Shader:     r.dev.FindShader(m.Shader),
		Parameters: m.Parameters,
	}
	for _, name := range m.Textures {
		cmd.Textures = append(cmd.Textures, r.dev.TextureOrDefault(name))
	}
	return cmd
}

func drawCommand(sub Submission, res *meshResources, instances uint32) cmdqueue.Command {
	if instances > 0 {
		return &cmdqueue.DrawPrimitivesInstanced{
			PassID:      sub.Pass,
			BatchID:     sub.BatchID,
			VertexArray: res.vao,
			Groups:      res.groups,
			Instances:   instances,
		}
	}
	return &cmdqueue.DrawPrimitives{
		PassID:      sub.Pass,
		BatchID:     sub.BatchID,
		VertexArray: res.vao,
		Groups:      res.groups,
	}
}

// upload returns the resident copy of m, uploading it on first use.
func (r *Renderer) upload(m *Mesh) (*meshResources, error) {
	if res, ok := r.meshes[m.ID]; ok {
		return res, nil
	}
	res := &meshResources{vertices: r.dev.CreateBuffer(device.BufferVertex, m.ID+".vertices")}
	if err := r.dev.CopyToBuffer(res.vertices, m.Vertices, device.AccessStatic); err != nil {
		r.dev.ReleaseBuffer(res.vertices)
		return nil, fmt.Errorf("upload %q: %w", m.ID, err)
	}
	format := gputypes.IndexFormatUndefined
	if len(m.Indices) > 0 {
		res.indices = r.dev.CreateBuffer(device.BufferIndex, m.ID+".indices")
		if err := r.dev.CopyToBuffer(res.indices, m.Indices, device.AccessStatic); err != nil {
			r.dev.ReleaseBuffer(res.vertices)
			r.dev.ReleaseBuffer(res.indices)
			return nil, fmt.Errorf("upload %q: %w", m.ID, err)
		}
		format = m.IndexFormat
	}
	res.vao = r.dev.CreateVertexArray(res.vertices, res.indices, m.Layout, format)

	groups := m.Groups
	if len(groups) == 0 {
		count := len(m.Vertices) / int(m.Layout.Stride)
		if format != gputypes.IndexFormatUndefined {
			count = len(m.Indices) / indexSize(format)
		} else {
			res.countsVertices = true
		}
		groups = []device.PrimitiveGroup{defaultGroup(count, format)}
	}
	for _, g := range groups {
		res.groups = append(res.groups, r.dev.AddPrimitiveGroup(g))
	}

	r.meshes[m.ID] = res
	r.log.Debug("mesh uploaded", "mesh", m.ID, "vertices", len(m.Vertices), "groups", len(groups))
	return res, nil
}

// UpdateGeometry replaces the vertex data of a committed mesh. An unindexed
// mesh without explicit groups draws every vertex of the new data; explicit
// groups and index data are kept as committed.
func (r *Renderer) UpdateGeometry(meshID string, vertices []byte) error {
	res, ok := r.meshes[meshID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMesh, meshID)
	}
	stride := int(res.vao.Layout.Stride)
	if len(vertices) < stride {
		return fmt.Errorf("%w: mesh %q has no vertices", ErrInvalidMesh, meshID)
	}
	if err := r.dev.CopyToBuffer(res.vertices, vertices, device.AccessDynamic); err != nil {
		return fmt.Errorf("renderer: update %q: %w", meshID, err)
	}
	if res.countsVertices {
		r.dev.SetPrimitiveGroup(res.groups[0], defaultGroup(len(vertices)/stride, gputypes.IndexFormatUndefined))
	}
	return nil
}

// defaultGroup is a triangle list over count indices, or count vertices
// without an index format.
func defaultGroup(count int, format gputypes.IndexFormat) device.PrimitiveGroup {
	return device.PrimitiveGroup{
		Topology:    gputypes.PrimitiveTopologyTriangleList,
		IndexCount:  uint32(count), // #nosec G115 -- bounded by buffer size
		IndexFormat: format,
	}
}

// SetFrameVariable creates or updates a named shader parameter that is set
// after every material change of every frame.
func (r *Renderer) SetFrameVariable(name string, typ device.ParamType, values ...float32) *device.Parameter {
	p := r.dev.CreateParameter(name, typ, 1)
	if p == nil {
		return nil
	}
	if !slices.Contains(r.frameVars, p) {
		r.frameVars = append(r.frameVars, p)
	}
	if typ == device.ParamInt && len(values) > 0 {
		p.SetInt(int32(values[0]))
	} else {
		p.SetFloats(values...)
	}
	return p
}

// RemoveBatch drops a committed batch and its matrices. Its meshes stay
// resident.
func (r *Renderer) RemoveBatch(id string) bool {
	if _, ok := r.batches[id]; !ok {
		return false
	}
	delete(r.batches, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.queue.RemoveMatrixBuffer(id)
	return true
}

// NumBatches returns the number of retained batches.
func (r *Renderer) NumBatches() int { return len(r.batches) }

// NumMeshes returns the number of resident meshes.
func (r *Renderer) NumMeshes() int { return len(r.meshes) }

// RenderFrame applies pending shader reloads, queues every retained batch
// in commit order and renders one frame.
func (r *Renderer) RenderFrame(ctx context.Context) error {
	r.applyReloads()
	r.enqueueBatches()
	return r.exec.RunFrame(ctx)
}

func (r *Renderer) enqueueBatches() {
	for _, id := range r.order {
		b := r.batches[id]
		for _, cmd := range b.commands {
			r.queue.Enqueue(cmd)
			if _, ok := cmd.(*cmdqueue.SetMaterial); !ok {
				continue
			}
			for _, p := range r.frameVars {
				r.queue.Enqueue(&cmdqueue.SetParameter{PassID: b.pass, Parameter: p})
			}
		}
	}
}

// Run renders frames until ctx is done, frames were rendered, or a
// shutdown is requested. frames <= 0 means no limit.
func (r *Renderer) Run(ctx context.Context, frames int) error {
	return r.exec.Run(ctx, frames, func() error {
		r.applyReloads()
		r.enqueueBatches()
		return nil
	})
}

// ClearScene releases every device resource, the queued commands, the
// matrix buffers, the retained batches and the frame variables. The
// device returns to the state it had after creation.
func (r *Renderer) ClearScene() {
	r.queue.ClearAll()
	clear(r.batches)
	r.order = r.order[:0]
	clear(r.meshes)
	r.frameVars = nil

	r.dev.UseShader(nil)
	r.dev.ReleaseAllVertexArrays()
	r.dev.ReleaseAllBuffers()
	r.dev.ReleaseAllShaders()
	r.dev.ReleaseAllTextures()
	r.dev.ReleaseAllParameters()
	r.dev.ClearPrimitiveGroups()
	r.log.Info("scene cleared")
}

// Close clears the scene and stops the executor. The device stays open.
func (r *Renderer) Close() {
	r.exec.RequestShutdown()
	r.ClearScene()
}

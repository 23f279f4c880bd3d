package device

import (
	"errors"
	"fmt"

	"github.com/gogpu/gfxcore/registry"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
	"github.com/gogpu/wgpu/hal"
)

// Stage is a programmable pipeline stage.
type Stage uint8

// Stages compile in this order.
const (
	StageVertex Stage = iota
	StageFragment
	StageGeometry

	numStages = 3
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageGeometry:
		return "geometry"
	default:
		return fmt.Sprintf("Stage(%d)", uint8(s))
	}
}

// CompileState tracks whether a stage source changed since it was last
// compiled.
type CompileState uint8

const (
	Unmodified CompileState = iota
	Updated
)

// ShaderSource holds WGSL text per stage. Empty stages are skipped.
type ShaderSource struct {
	Vertex   string
	Fragment string
	Geometry string
}

// Stage returns the source of st.
func (s ShaderSource) Stage(st Stage) string {
	switch st {
	case StageVertex:
		return s.Vertex
	case StageFragment:
		return s.Fragment
	case StageGeometry:
		return s.Geometry
	}
	return ""
}

type stageState struct {
	source string
	state  CompileState
	module hal.ShaderModule
	entry  string
	ir     *ir.Module
	err    error
}

// Shader is a linked program of WGSL stages. Attribute and uniform tables
// are reflected once at link time and served from cache afterwards.
type Shader struct {
	Handle registry.Handle
	Name   string

	stages     [numStages]stageState
	linked     bool
	generation uint32
	err        error

	refl           reflection
	layouts        []hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
}

// IsCompiled reports whether the program linked.
func (s *Shader) IsCompiled() bool { return s != nil && s.linked }

// Err returns the last compile or link error, or nil.
func (s *Shader) Err() error { return s.err }

// StageState returns the compile state of st.
func (s *Shader) StageState(st Stage) CompileState {
	if st >= numStages {
		return Unmodified
	}
	return s.stages[st].state
}

// HasStage reports whether st has source.
func (s *Shader) HasStage(st Stage) bool {
	return st < numStages && s.stages[st].source != ""
}

// AttributeLocation returns the location of a vertex input, or -1.
func (s *Shader) AttributeLocation(name string) int32 {
	if !s.IsCompiled() {
		return -1
	}
	for _, in := range s.refl.inputs {
		if in.name == name {
			return int32(in.location) // #nosec G115 -- WGSL locations are small
		}
	}
	return -1
}

// UniformLocation returns the location of a uniform, or -1. Uniform struct
// members are addressed by member name.
func (s *Shader) UniformLocation(name string) int32 {
	if !s.IsCompiled() {
		return -1
	}
	if loc, ok := s.refl.fieldIndex[name]; ok {
		return loc
	}
	return -1
}

// Uniforms returns the addressable uniform names in location order.
func (s *Shader) Uniforms() []string {
	names := make([]string, 0, len(s.refl.fields))
	for _, f := range s.refl.fields {
		names = append(names, f.name)
	}
	return names
}

// NumTextures returns the number of texture bindings, one per unit.
func (s *Shader) NumTextures() int { return len(s.refl.textures) }

// CreateShader compiles and links a program. A shader with the same name
// is returned as is, whatever src holds. Compile and link failures are
// logged; check IsCompiled.
func (d *GraphicsDevice) CreateShader(name string, src ShaderSource) *Shader {
	if name != "" {
		if sh, ok := d.shaders.Lookup(name); ok {
			return sh
		}
	}
	sh := &Shader{Name: name}
	for st := range Stage(numStages) {
		if text := src.Stage(st); text != "" {
			sh.stages[st] = stageState{source: text, state: Updated}
		}
	}
	sh.Handle, _ = d.shaders.AllocateNamed(name, sh)
	d.buildShader(sh)
	return sh
}

// FindShader returns the shader called name, or nil.
func (d *GraphicsDevice) FindShader(name string) *Shader {
	sh, _ := d.shaders.Lookup(name)
	return sh
}

// UpdateShaderSource replaces the source of one stage and marks it
// Updated. It returns false when the source is unchanged.
func (d *GraphicsDevice) UpdateShaderSource(sh *Shader, st Stage, src string) bool {
	if sh == nil || st >= numStages || sh.stages[st].source == src {
		return false
	}
	sh.stages[st].source = src
	sh.stages[st].state = Updated
	return true
}

// RecompileShader recompiles the Updated stages of sh and relinks it.
func (d *GraphicsDevice) RecompileShader(sh *Shader) bool {
	if sh == nil || !d.shaders.Contains(sh.Handle) {
		return false
	}
	d.buildShader(sh)
	if d.activeShader == sh {
		d.currentPipeline = nil
	}
	return sh.IsCompiled()
}

// buildShader compiles Updated stages in order and links when at least
// one stage compiled.
func (d *GraphicsDevice) buildShader(sh *Shader) {
	compiled := 0
	var failed error
	for st := range Stage(numStages) {
		stage := &sh.stages[st]
		if stage.source == "" {
			d.dropStage(stage)
			continue
		}
		if stage.state == Updated {
			d.compileStage(sh, st)
		}
		if stage.err != nil {
			failed = errors.Join(failed, stage.err)
			continue
		}
		if stage.module != nil {
			compiled++
		}
	}

	d.unlink(sh)
	if compiled == 0 {
		sh.err = failed
		d.log.Warn("shader has no compiled stage", "shader", sh.Name, "error", failed)
		return
	}
	if failed != nil {
		sh.err = fmt.Errorf("link %q: %w", sh.Name, failed)
		d.log.Warn("shader link failed", "shader", sh.Name, "error", failed)
		return
	}
	if err := d.link(sh); err != nil {
		sh.err = fmt.Errorf("link %q: %w", sh.Name, err)
		d.log.Warn("shader link failed", "shader", sh.Name, "error", err)
		d.unlink(sh)
		return
	}
	sh.err = nil
	sh.linked = true
	sh.generation++
	d.log.Debug("shader linked",
		"shader", sh.Name,
		"inputs", len(sh.refl.inputs),
		"uniforms", len(sh.refl.fields),
		"textures", len(sh.refl.textures))
}

// compileStage turns WGSL into SPIR-V and a HAL shader module. The lowered
// IR is kept for reflection.
func (d *GraphicsDevice) compileStage(sh *Shader, st Stage) {
	stage := &sh.stages[st]
	d.dropStage(stage)
	stage.state = Unmodified

	if st == StageGeometry {
		stage.err = fmt.Errorf("%s stage: %w", st, ErrGeometryStage)
		d.log.Warn("shader compile failed", "shader", sh.Name, "stage", st, "error", stage.err)
		return
	}

	module, words, err := compileWGSL(stage.source)
	if err == nil {
		want := ir.StageVertex
		if st == StageFragment {
			want = ir.StageFragment
		}
		ep, ok := findEntryPoint(module, want)
		if !ok {
			err = ErrNoEntryPoint
		} else {
			stage.entry = ep.Name
		}
	}
	if err == nil {
		stage.module, err = d.hd.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label: sh.Name + "." + st.String(),
			Source: hal.ShaderSource{
				WGSL:  stage.source,
				SPIRV: words,
			},
		})
	}
	if err != nil {
		stage.err = fmt.Errorf("%s stage: %w", st, err)
		stage.module = nil
		d.log.Warn("shader compile failed", "shader", sh.Name, "stage", st, "error", err)
		return
	}
	stage.ir = module
}

// compileWGSL parses, lowers, validates and emits SPIR-V words.
func compileWGSL(source string) (*ir.Module, []uint32, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, nil, err
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, nil, err
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, nil, err
	}
	if len(verrs) > 0 {
		return nil, nil, &verrs[0]
	}
	code, err := naga.GenerateSPIRV(module, spirv.Options{Version: spirv.Version1_3})
	if err != nil {
		return nil, nil, err
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = uint32(code[i*4]) |
			uint32(code[i*4+1])<<8 |
			uint32(code[i*4+2])<<16 |
			uint32(code[i*4+3])<<24
	}
	return module, words, nil
}

// link reflects the compiled stages and creates the binding layouts.
func (d *GraphicsDevice) link(sh *Shader) error {
	vs := &sh.stages[StageVertex]
	if vs.module == nil {
		return ErrNoVertexStage
	}

	var r reflection
	ep, _ := findEntryPoint(vs.ir, ir.StageVertex)
	r.addVertexInputs(vs.ir, ep)
	if err := r.addGlobals(vs.ir, gputypes.ShaderStageVertex); err != nil {
		return err
	}
	if fs := &sh.stages[StageFragment]; fs.module != nil {
		if err := r.addGlobals(fs.ir, gputypes.ShaderStageFragment); err != nil {
			return err
		}
	}
	r.finish()
	sh.refl = r

	// Empty layouts fill unused group indices below the highest group.
	sh.layouts = make([]hal.BindGroupLayout, 0, r.groupCount)
	for g := range r.groupCount {
		layout, err := d.hd.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s.group%d", sh.Name, g),
			Entries: r.layoutEntries(g),
		})
		if err != nil {
			return fmt.Errorf("create bind group layout %d: %w", g, err)
		}
		sh.layouts = append(sh.layouts, layout)
	}
	pl, err := d.hd.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            sh.Name,
		BindGroupLayouts: sh.layouts,
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	sh.pipelineLayout = pl
	return nil
}

// unlink drops the link products of sh and every pipeline built from it.
func (d *GraphicsDevice) unlink(sh *Shader) {
	sh.linked = false
	handle := sh.Handle
	d.pipelines.DeleteFunc(func(k pipelineKey) bool { return k.shader == handle })
	if !d.frame.active {
		d.flushRetired()
	}
	if sh.pipelineLayout != nil {
		d.hd.DestroyPipelineLayout(sh.pipelineLayout)
		sh.pipelineLayout = nil
	}
	for _, l := range sh.layouts {
		d.hd.DestroyBindGroupLayout(l)
	}
	sh.layouts = nil
	sh.refl = reflection{}
}

func (d *GraphicsDevice) dropStage(stage *stageState) {
	if stage.module != nil {
		d.hd.DestroyShaderModule(stage.module)
	}
	stage.module = nil
	stage.ir = nil
	stage.entry = ""
	stage.err = nil
}

// UseShader binds sh for the following draws. Binding nil unbinds and
// reports whether a shader was bound. A shader that did not link is
// rejected and leaves no shader bound, so later draws are skipped.
func (d *GraphicsDevice) UseShader(sh *Shader) bool {
	if sh == nil {
		was := d.activeShader != nil
		d.activeShader = nil
		d.currentPipeline = nil
		return was
	}
	if sh == d.activeShader && sh.IsCompiled() {
		return true
	}
	d.currentPipeline = nil
	if !sh.IsCompiled() {
		d.log.Warn("use of uncompiled shader", "shader", sh.Name, "error", sh.err)
		d.activeShader = nil
		return false
	}
	d.activeShader = sh
	return true
}

// ActiveShader returns the bound shader, or nil.
func (d *GraphicsDevice) ActiveShader() *Shader { return d.activeShader }

// ReleaseShader destroys sh. The active shader must be unbound first.
// Releasing a released shader does nothing.
func (d *GraphicsDevice) ReleaseShader(sh *Shader) error {
	if sh == nil || !d.shaders.Contains(sh.Handle) {
		return nil
	}
	if sh == d.activeShader {
		return fmt.Errorf("release %q: %w", sh.Name, ErrShaderInUse)
	}
	d.destroyShader(sh)
	d.shaders.Release(sh.Handle)
	sh.Handle = registry.InvalidHandle
	return nil
}

// ReleaseAllShaders unbinds the active shader and destroys every shader.
func (d *GraphicsDevice) ReleaseAllShaders() {
	d.UseShader(nil)
	d.shaders.Each(func(_ registry.Handle, sh *Shader) {
		d.destroyShader(sh)
		sh.Handle = registry.InvalidHandle
	})
	d.shaders.Reset()
}

func (d *GraphicsDevice) destroyShader(sh *Shader) {
	d.unlink(sh)
	for st := range sh.stages {
		d.dropStage(&sh.stages[st])
	}
}

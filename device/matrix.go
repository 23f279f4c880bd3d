package device

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// MatrixKind names one of the transform matrices.
type MatrixKind uint8

const (
	MatrixModel MatrixKind = iota
	MatrixView
	MatrixProjection
)

func (k MatrixKind) String() string {
	switch k {
	case MatrixModel:
		return "model"
	case MatrixView:
		return "view"
	case MatrixProjection:
		return "projection"
	default:
		return fmt.Sprintf("MatrixKind(%d)", uint8(k))
	}
}

// Uniform names the matrices are pushed under by ApplyMatrices.
const (
	UniformModel      = "model"
	UniformView       = "view"
	UniformProjection = "projection"
	UniformMVP        = "mvp"
)

type matrixState struct {
	m   [3]mgl32.Mat4
	mvp mgl32.Mat4

	// Unregistered parameters, so they survive ReleaseAllParameters.
	params [4]*Parameter
}

func (s *matrixState) reset() {
	for i := range s.m {
		s.m[i] = mgl32.Ident4()
	}
	s.mvp = mgl32.Ident4()
	if s.params[0] == nil {
		for i, name := range [...]string{UniformModel, UniformView, UniformProjection, UniformMVP} {
			s.params[i] = NewParameter(name, ParamMat4, 1)
		}
	}
}

// SetMatrix replaces one matrix and recomputes projection * view * model.
func (d *GraphicsDevice) SetMatrix(kind MatrixKind, m mgl32.Mat4) {
	if kind > MatrixProjection {
		return
	}
	s := &d.matrices
	s.m[kind] = m
	s.mvp = s.m[MatrixProjection].Mul4(s.m[MatrixView]).Mul4(s.m[MatrixModel])
}

// Matrix returns the current matrix of the given kind.
func (d *GraphicsDevice) Matrix(kind MatrixKind) mgl32.Mat4 {
	if kind > MatrixProjection {
		return mgl32.Ident4()
	}
	return d.matrices.m[kind]
}

// MVP returns projection * view * model.
func (d *GraphicsDevice) MVP() mgl32.Mat4 { return d.matrices.mvp }

// ApplyMatrices pushes the model, view, projection and mvp uniforms into
// the bound shader. Shaders that declare none of them are unaffected.
func (d *GraphicsDevice) ApplyMatrices() {
	s := &d.matrices
	for i := range s.m {
		s.params[i].SetMat4(s.m[i])
		d.SetUniform(s.params[i])
	}
	s.params[3].SetMat4(s.mvp)
	d.SetUniform(s.params[3])
}

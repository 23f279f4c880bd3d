package cmdqueue

import "github.com/go-gl/mathgl/mgl32"

// MatrixBuffer is the transform triple of a batch. A zero View or
// Projection defers to the matrix of the pass the batch is drawn in.
type MatrixBuffer struct {
	Model      mgl32.Mat4
	View       mgl32.Mat4
	Projection mgl32.Mat4
}

// NewMatrixBuffer returns a buffer with the given model matrix that uses
// the pass view and projection.
func NewMatrixBuffer(model mgl32.Mat4) MatrixBuffer {
	return MatrixBuffer{Model: model}
}

// Resolve fills zero View and Projection from the pass matrices. A zero
// Model becomes the identity.
func (m MatrixBuffer) Resolve(view, projection mgl32.Mat4) MatrixBuffer {
	var zero mgl32.Mat4
	if m.Model == zero {
		m.Model = mgl32.Ident4()
	}
	if m.View == zero {
		m.View = view
	}
	if m.Projection == zero {
		m.Projection = projection
	}
	return m
}

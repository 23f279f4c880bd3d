package renderer

import (
	"github.com/gogpu/gfxcore/cmdqueue"
	"github.com/gogpu/gfxcore/device"
	"github.com/gogpu/gputypes"
)

// Mesh is vertex and index data with its primitive groups. Meshes are
// uploaded once per ID; later commits with the same ID reuse the GPU copy.
type Mesh struct {
	ID          string
	Layout      device.VertexLayout
	Vertices    []byte
	Indices     []byte
	IndexFormat gputypes.IndexFormat

	// Groups split the mesh into draws. Empty means one triangle list
	// over every index, or every vertex without indices.
	Groups []device.PrimitiveGroup
}

// Material selects a shader by name, textures by name and the shader
// parameters set before drawing.
type Material struct {
	Name   string
	Shader string

	// Textures are bound to units in order. Missing names sample the
	// default checkerboard.
	Textures   []string
	Parameters []*device.Parameter
}

// MeshEntry draws one mesh with a material. Instances 0 is a plain draw.
type MeshEntry struct {
	Mesh      *Mesh
	Material  *Material
	Instances uint32
}

// Submission is the scene content of one batch: its matrices and the
// meshes it draws, all in one pass.
type Submission struct {
	BatchID  string
	Pass     cmdqueue.PassID
	Matrices cmdqueue.MatrixBuffer
	Meshes   []MeshEntry
}

// meshResources are the device objects of an uploaded mesh.
type meshResources struct {
	vertices *device.Buffer
	indices  *device.Buffer
	vao      *device.VertexArray
	groups   []device.PrimitiveIndex

	// countsVertices marks a generated group over every vertex of an
	// unindexed mesh; it follows the vertex count on geometry updates.
	countsVertices bool
}

// batch is a committed submission, replayed into the queue every frame.
type batch struct {
	id       string
	pass     cmdqueue.PassID
	commands []cmdqueue.Command
}

func indexSize(f gputypes.IndexFormat) int {
	switch f {
	case gputypes.IndexFormatUint16:
		return 2
	case gputypes.IndexFormatUint32:
		return 4
	}
	return 0
}

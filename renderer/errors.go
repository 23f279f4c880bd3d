package renderer

import "errors"

var (
	// ErrNoDevice is returned by New without a graphics device.
	ErrNoDevice = errors.New("renderer: no graphics device")

	// ErrNoBatchID is returned for a submission without a batch id.
	ErrNoBatchID = errors.New("renderer: submission without batch id")

	// ErrInvalidMesh is returned for meshes that cannot be uploaded.
	ErrInvalidMesh = errors.New("renderer: invalid mesh")

	// ErrUnknownMesh is returned for geometry updates of a mesh that was
	// never committed.
	ErrUnknownMesh = errors.New("renderer: unknown mesh")

	// ErrUnknownShader is returned for materials naming a shader that was
	// never registered.
	ErrUnknownShader = errors.New("renderer: unknown shader")

	// ErrUnknownPass is returned for submissions to a pass the pipeline
	// does not have.
	ErrUnknownPass = errors.New("renderer: unknown pass")
)

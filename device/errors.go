package device

import "errors"

var (
	// ErrNilDevice is returned by New when no HAL device is given.
	ErrNilDevice = errors.New("device: nil hal device")

	// ErrNilQueue is returned by New when no HAL queue is given.
	ErrNilQueue = errors.New("device: nil hal queue")

	// ErrNoHALProvider is returned by Open when the provider does not
	// expose HAL device and queue objects.
	ErrNoHALProvider = errors.New("device: provider does not expose a hal device")

	// ErrShaderInUse is returned when releasing the active shader.
	ErrShaderInUse = errors.New("device: shader in use")

	// ErrGeometryStage is the compile error of every geometry stage.
	// WebGPU has no geometry stage.
	ErrGeometryStage = errors.New("device: geometry stage not supported")

	// ErrNoVertexStage is the link error of a program without a compiled
	// vertex stage.
	ErrNoVertexStage = errors.New("device: program has no vertex stage")

	// ErrNoEntryPoint is returned when a stage source declares no entry
	// point for its stage.
	ErrNoEntryPoint = errors.New("device: no entry point for stage")

	// ErrBindingConflict is returned when two stages declare different
	// resources at the same group and binding.
	ErrBindingConflict = errors.New("device: conflicting resource binding")

	// ErrNilBuffer is returned when a nil or released buffer is used.
	ErrNilBuffer = errors.New("device: nil or released buffer")

	// ErrEmptyData is returned by CopyToBuffer for empty data.
	ErrEmptyData = errors.New("device: empty buffer data")

	// ErrFrameActive is returned by BeginFrame and ResizeBackbuffer while
	// a frame is being recorded.
	ErrFrameActive = errors.New("device: frame already in progress")

	// ErrNoFrame is returned by pass and submit operations outside a frame.
	ErrNoFrame = errors.New("device: no frame in progress")

	// ErrUniformRingFull is returned when a frame writes more uniform data
	// than the per-frame ring holds.
	ErrUniformRingFull = errors.New("device: uniform ring exhausted")

	// ErrNotRenderTarget is returned by SetRenderTarget for textures not
	// created by CreateRenderTexture.
	ErrNotRenderTarget = errors.New("device: texture is not a render target")

	// ErrMissingAttribute is returned when a shader consumes a vertex
	// attribute the bound vertex layout does not provide.
	ErrMissingAttribute = errors.New("device: vertex layout lacks attribute")
)

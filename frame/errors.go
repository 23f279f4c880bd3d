package frame

import "errors"

var (
	// ErrShutdown is returned by RunFrame once a shutdown was requested.
	ErrShutdown = errors.New("frame: shutdown requested")

	// ErrNoPasses is returned by Setup for an empty pipeline.
	ErrNoPasses = errors.New("frame: pipeline has no passes")

	// ErrNoDevice is returned by Setup without a graphics device.
	ErrNoDevice = errors.New("frame: no graphics device")

	// ErrDuplicatePass is returned when a pass ID is added twice.
	ErrDuplicatePass = errors.New("frame: duplicate pass id")

	// ErrInFrame is returned for pipeline changes while a frame is open.
	ErrInFrame = errors.New("frame: frame in progress")
)

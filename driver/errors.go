package driver

import "errors"

var (
	// ErrNoBackend is returned by Open when no backend is registered.
	ErrNoBackend = errors.New("driver: no backend registered")

	// ErrUnknownBackend is returned by Open for a name that is not
	// registered.
	ErrUnknownBackend = errors.New("driver: unknown backend")

	// ErrNoAdapter is returned by Open when the backend exposes no adapter.
	ErrNoAdapter = errors.New("driver: no adapter")
)

package cmdqueue

import (
	"errors"
	"fmt"
)

var (
	// ErrNilCommand is returned for a nil command.
	ErrNilCommand = errors.New("cmdqueue: nil command")

	// ErrNilPayload is returned for a command missing a required payload.
	ErrNilPayload = errors.New("cmdqueue: missing payload")
)

func payloadError(cmd Command, what string) error {
	return fmt.Errorf("%w: %s without %s", ErrNilPayload, cmd.Kind(), what)
}

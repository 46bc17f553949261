package jobs

import (
	"errors"
	"fmt"
)

// Sentinel errors for controller operations.
// These can be checked with errors.Is().
var (
	ErrAlreadyInFlight = errors.New("a request is already in flight")
	ErrNoUpload        = errors.New("no uploaded file")
	ErrNotCompleted    = errors.New("job has not completed")
	ErrClosed          = errors.New("controller closed")
)

// inFlightError returns a wrapped error for a submit attempted mid-request.
func inFlightError(id string, state State) error {
	return fmt.Errorf("%w (state: %s): %s", ErrAlreadyInFlight, state, id)
}

// notCompletedError returns a wrapped error for artifact access too early.
func notCompletedError(id string, state State) error {
	return fmt.Errorf("%w (state: %s): %s", ErrNotCompleted, state, id)
}

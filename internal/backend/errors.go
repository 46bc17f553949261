package backend

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below.
var (
	ErrTransport = errors.New("backend unreachable")
	ErrRejected  = errors.New("backend rejected request")
)

// TransportError covers network failures and responses that could not be
// understood (non-JSON bodies, truncated reads).
type TransportError struct {
	Op     string
	Status int // zero when no response was received
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend: %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("backend: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// BackendError is an explicit refusal: a parsed response without success.
type BackendError struct {
	Op      string
	Status  int
	Message string // as reported by the backend, may be empty
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: %s: request failed (status %d)", e.Op, e.Status)
	}
	return fmt.Sprintf("backend: %s: %s", e.Op, e.Message)
}

func (e *BackendError) Is(target error) bool { return target == ErrRejected }

package backend

import (
	"errors"
	"fmt"
)

// ErrNotConfigured means a backend name was requested that the registry
// has never heard of.
var ErrNotConfigured = errors.New("backend not configured")

// ConnectionError means the backend could not be reached at all
type ConnectionError struct {
	Backend string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("backend %s: connection failed: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError means the backend did not answer within the call deadline
type TimeoutError struct {
	Backend string
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("backend %s: request timed out: %v", e.Backend, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ProtocolError means the backend answered but not with a usable response
type ProtocolError struct {
	Backend    string
	StatusCode int
	Err        error
}

func (e *ProtocolError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend %s: protocol error (HTTP %d): %v", e.Backend, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("backend %s: protocol error: %v", e.Backend, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

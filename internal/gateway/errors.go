package gateway

import (
	"errors"

	"llm-gateway/internal/backend"
	"llm-gateway/internal/routing"
)

var (
	// ErrQueueFull is returned when the queue is at capacity at
	// submission time. Submissions never block waiting for space.
	ErrQueueFull = errors.New("request queue full")

	// ErrNotRunning is returned when Submit is called before Start or
	// after Stop.
	ErrNotRunning = errors.New("gateway not running")

	// ErrRequestTimeout is returned when the submit-level wait exceeds
	// the configured timeout. The underlying item may still complete
	// later; its result is discarded.
	ErrRequestTimeout = errors.New("request timed out")
)

// ErrorKind classifies an error from the gateway taxonomy into a short
// stable tag, used by the request history and status reporting.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var connErr *backend.ConnectionError
	var timeoutErr *backend.TimeoutError
	var protoErr *backend.ProtocolError
	switch {
	case errors.Is(err, ErrQueueFull):
		return "queue_full"
	case errors.Is(err, ErrNotRunning):
		return "not_running"
	case errors.Is(err, ErrRequestTimeout):
		return "request_timeout"
	case errors.Is(err, routing.ErrUnknownBackend):
		return "unknown_backend"
	case errors.Is(err, backend.ErrNotConfigured):
		return "unknown_backend"
	case errors.As(err, &timeoutErr):
		return "backend_timeout"
	case errors.As(err, &connErr):
		return "backend_connection"
	case errors.As(err, &protoErr):
		return "backend_protocol"
	default:
		return "internal"
	}
}

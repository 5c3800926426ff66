package backend

import (
	"context"

	"llm-gateway/internal/llm"
)

// Client is the uniform contract every backend implements. The gateway
// core never looks past this interface at backend-specific wire formats.
type Client interface {
	// ChatCompletion runs one request against the backend. Failures are
	// always one of *ConnectionError, *TimeoutError or *ProtocolError.
	ChatCompletion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	// HealthCheck probes the backend. It never returns an error; any
	// internal fault degrades to false.
	HealthCheck(ctx context.Context) bool

	// ListModels returns the model identifiers the backend advertises
	ListModels(ctx context.Context) ([]string, error)

	// Close releases connection resources. Idempotent.
	Close() error
}

package routing

import (
	"errors"
	"fmt"
	"log"

	"llm-gateway/internal/llm"
)

// ErrUnknownBackend means an explicit backend was requested that is not
// configured at all. This is the only condition under which resolution
// fails instead of falling back.
var ErrUnknownBackend = errors.New("unknown backend")

// Conventional backend names the capability rules key on
const (
	BackendLocal    = "local"
	BackendCloud    = "cloud"
	BackendDeepseek = "deepseek"
)

// BackendDirectory is the slice of the registry the router needs: which
// names exist and which one is the default.
type BackendDirectory interface {
	AvailableBackends() []string
	DefaultBackend() string
}

// Router picks which backend serves a request. It is a pure decision
// function: no I/O, no state beyond the directory it consults.
type Router struct {
	dir BackendDirectory
}

func NewRouter(dir BackendDirectory) *Router {
	return &Router{dir: dir}
}

// ResolveBackend returns the backend name that should serve a request.
//
// Rule order, first match wins:
//  1. explicit override (errors only if the name is entirely unknown;
//     a configured-but-excluded name falls back to default)
//  2. complexity "einstein": deepseek or default, nothing substitutes
//  3. complexity "ultra": deepseek, then cloud, then default
//  4. complexity "high": cloud, then deepseek, then default
//  5. complexity "low": local, then default
//  6. high priority with no complexity: cloud if present
//  7. default
//
// A zero priority means "not specified". Complexity always beats priority.
func (r *Router) ResolveBackend(priority llm.Priority, complexity, explicit string, exclude map[string]bool) (string, error) {
	configured := make(map[string]bool)
	available := make(map[string]bool)
	for _, name := range r.dir.AvailableBackends() {
		configured[name] = true
		if !exclude[name] {
			available[name] = true
		}
	}
	defaultName := r.dir.DefaultBackend()

	if explicit != "" {
		if available[explicit] {
			return explicit, nil
		}
		if configured[explicit] {
			log.Printf("[Router] Backend %q excluded, falling back to default %q", explicit, defaultName)
			return defaultName, nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnknownBackend, explicit)
	}

	switch complexity {
	case llm.ComplexityEinstein:
		// The reasoning capability is backend-specific; no substitute
		if available[BackendDeepseek] {
			return BackendDeepseek, nil
		}
		log.Printf("[Router] Reasoning backend unavailable, cannot honor complexity=einstein; using default %q", defaultName)
		return defaultName, nil
	case llm.ComplexityUltra:
		return firstAvailable(available, defaultName, BackendDeepseek, BackendCloud), nil
	case llm.ComplexityHigh:
		return firstAvailable(available, defaultName, BackendCloud, BackendDeepseek), nil
	case llm.ComplexityLow:
		return firstAvailable(available, defaultName, BackendLocal), nil
	}

	// Backward-compatible rule: interactive requests get the stronger
	// backend when nothing else is specified
	if priority == llm.PriorityHigh && available[BackendCloud] {
		return BackendCloud, nil
	}

	return defaultName, nil
}

func firstAvailable(available map[string]bool, fallback string, preferred ...string) string {
	for _, name := range preferred {
		if available[name] {
			return name
		}
	}
	return fallback
}

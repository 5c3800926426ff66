package backend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"llm-gateway/internal/config"
)

// Backend types the registry knows how to build clients for
const (
	TypeLocal    = "local"
	TypeCloud    = "cloud"
	TypeDeepseek = "deepseek"
)

// DefaultModel is used when a backend has no recorded config entry,
// which only happens on the legacy-fallback path.
const DefaultModel = "llama-3.1-8b-instruct"

// Registry owns one client per enabled backend and resolves names to
// clients. It is built once at startup and read-only afterwards except
// for CloseAll.
type Registry struct {
	mu          sync.RWMutex
	clients     map[string]Client
	configs     map[string]config.BackendConfig
	order       []string
	defaultName string
}

// NewRegistry builds clients for every enabled, recognized backend entry.
// Disabled or unknown-type entries are skipped with a log line. If nothing
// survives filtering an implicit "local" client is built from the legacy
// top-level LLM settings so there is always at least one usable backend.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		clients: make(map[string]Client),
		configs: make(map[string]config.BackendConfig),
	}

	timeout := cfg.RequestTimeout()
	for _, bc := range cfg.Backends {
		if !bc.Enabled {
			log.Printf("[Registry] Skipping disabled backend %q", bc.Name)
			continue
		}
		switch bc.Type {
		case TypeLocal, TypeCloud, TypeDeepseek:
		default:
			log.Printf("[Registry] Skipping backend %q: unrecognized type %q", bc.Name, bc.Type)
			continue
		}
		if _, dup := r.clients[bc.Name]; dup {
			log.Printf("[Registry] Skipping backend %q: duplicate name", bc.Name)
			continue
		}
		r.clients[bc.Name] = NewHTTPClient(bc, timeout)
		r.configs[bc.Name] = bc
		r.order = append(r.order, bc.Name)
		log.Printf("[Registry] Registered backend %q (type=%s, url=%s)", bc.Name, bc.Type, bc.BaseURL())
	}

	if len(r.clients) == 0 {
		fallback := config.BackendConfig{
			Name:    TypeLocal,
			Enabled: true,
			Type:    TypeLocal,
			Host:    cfg.LLM.Host,
			Port:    cfg.LLM.Port,
			Model:   cfg.LLM.Model,
		}
		r.clients[fallback.Name] = NewHTTPClient(fallback, timeout)
		r.order = append(r.order, fallback.Name)
		log.Printf("[Registry] No backends configured, falling back to local endpoint %s", fallback.BaseURL())
	}

	switch {
	case cfg.DefaultBackend != "" && r.clients[cfg.DefaultBackend] != nil:
		r.defaultName = cfg.DefaultBackend
	case r.clients[TypeLocal] != nil:
		r.defaultName = TypeLocal
	default:
		r.defaultName = r.order[0]
	}
	log.Printf("[Registry] Default backend: %q", r.defaultName)

	return r
}

// Register installs (or replaces) a client under a name. Used by tests
// to substitute doubles; production clients come from NewRegistry.
func (r *Registry) Register(name string, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, known := r.clients[name]; !known {
		r.order = append(r.order, name)
	}
	r.clients[name] = c
}

// GetClient resolves a backend name. An empty name yields the default.
func (r *Registry) GetClient(name string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.defaultName
	}
	c, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, name)
	}
	return c, nil
}

// Model returns the configured model for a backend, or DefaultModel when
// the backend has no recorded config entry.
func (r *Registry) Model(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.defaultName
	}
	if bc, ok := r.configs[name]; ok && bc.Model != "" {
		return bc.Model
	}
	return DefaultModel
}

// AvailableBackends returns the registered names, sorted for stable output
func (r *Registry) AvailableBackends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultBackend returns the configured default backend name
func (r *Registry) DefaultBackend() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// HealthCheckAll probes every backend independently. One failing probe
// never hides the others; a panicking probe records false.
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]bool {
	r.mu.RLock()
	clients := make(map[string]Client, len(r.clients))
	for name, c := range r.clients {
		clients[name] = c
	}
	r.mu.RUnlock()

	results := make(map[string]bool, len(clients))
	for name, c := range clients {
		results[name] = safeHealthCheck(ctx, name, c)
	}
	return results
}

func safeHealthCheck(ctx context.Context, name string, c Client) (healthy bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[Registry] Health check for %q panicked: %v", name, rec)
			healthy = false
		}
	}()
	return c.HealthCheck(ctx)
}

// CloseAll closes every client. A failure closing one client does not
// stop the others; errors are joined.
func (r *Registry) CloseAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for name, c := range r.clients {
		if err := c.Close(); err != nil {
			log.Printf("[Registry] Failed to close backend %q: %v", name, err)
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

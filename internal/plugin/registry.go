package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Config represents plugin-specific configuration (opaque to the session).
type Config map[string]any

// Float extracts a numeric option, falling back when absent or mistyped.
func (c Config) Float(key string, fallback float64) float64 {
	switch value := c[key].(type) {
	case float64:
		return value
	case float32:
		return float64(value)
	case int:
		return float64(value)
	case int64:
		return float64(value)
	default:
		return fallback
	}
}

// Int extracts an integer option, falling back when absent or mistyped.
func (c Config) Int(key string, fallback int) int {
	switch value := c[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	default:
		return fallback
	}
}

// Factory constructs a plugin bound to a host with the provided configuration.
type Factory func(host Host, cfg Config) (Plugin, error)

// Registry maintains known plugin factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register installs a plugin factory. Returns an error if the ID already exists.
func (r *Registry) Register(id string, factory Factory) error {
	if id == "" {
		return fmt.Errorf("plugin: id is required")
	}
	if factory == nil {
		return fmt.Errorf("plugin: factory is required for %s", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("plugin: %s already registered", id)
	}
	r.factories[id] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(id string, factory Factory) {
	if err := r.Register(id, factory); err != nil {
		panic(err)
	}
}

// Resolve constructs a plugin by ID.
func (r *Registry) Resolve(id string, host Host, cfg Config) (Plugin, error) {
	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("plugin: unknown id %s", id)
	}
	p, err := factory(host, cfg)
	if err != nil {
		return nil, err
	}
	if p.Name() == "" {
		return nil, fmt.Errorf("plugin: %s returned an unnamed plugin", id)
	}
	return p, nil
}

// IDs returns a sorted list of registered plugin identifiers.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

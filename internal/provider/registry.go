package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gaiakodi/gaiasource/internal/media"
)

// Registry manages all available providers
type Registry struct {
	mu            sync.RWMutex
	providers     map[string]Client
	priorities    map[string]int
	enabledStatus map[string]bool
	configs       map[string]map[string]interface{}
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers:     make(map[string]Client),
		priorities:    make(map[string]int),
		enabledStatus: make(map[string]bool),
		configs:       make(map[string]map[string]interface{}),
	}
}

// Register adds a provider to the registry. A priority of zero keeps the
// provider's declared default.
func (r *Registry) Register(name string, client Client, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	caps := client.Capabilities()
	if err := ValidateCapabilities(caps); err != nil {
		return fmt.Errorf("invalid provider capabilities for %s: %w", name, err)
	}
	for _, kind := range caps.Operations {
		if !Implements(client, kind) {
			return fmt.Errorf("provider %s declares %s but does not implement it", name, kind)
		}
	}

	if priority == 0 {
		priority = caps.Priority
	}
	r.providers[name] = client
	r.priorities[name] = priority
	r.enabledStatus[name] = false // Disabled by default

	return nil
}

// Get returns a provider by name
func (r *Registry) Get(name string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.providers[name]
	return client, exists
}

// List returns all registered providers, highest priority first
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	r.sortByPriority(names)
	return names
}

// sortByPriority orders names by priority, then name. Caller holds mu.
func (r *Registry) sortByPriority(names []string) {
	sort.Slice(names, func(i, j int) bool {
		pi, pj := r.priorities[names[i]], r.priorities[names[j]]
		if pi != pj {
			return pi > pj
		}
		return names[i] < names[j]
	})
}

// Priority returns the priority of a provider.
func (r *Registry) Priority(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.priorities[name]
}

// SetPriority overrides the priority of a registered provider.
func (r *Registry) SetPriority(name string, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; !exists {
		return fmt.Errorf("provider %s not found", name)
	}
	r.priorities[name] = priority
	return nil
}

// Enable enables a provider
func (r *Registry) Enable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, exists := r.providers[name]
	if !exists {
		return fmt.Errorf("provider %s not found", name)
	}

	// Validate configuration if required
	if client.Capabilities().RequiresAuth {
		if config, hasConfig := r.configs[name]; !hasConfig || len(config) == 0 {
			return fmt.Errorf("provider %s requires configuration", name)
		}
	}

	r.enabledStatus[name] = true
	return nil
}

// Disable disables a provider
func (r *Registry) Disable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; !exists {
		return fmt.Errorf("provider %s not found", name)
	}
	r.enabledStatus[name] = false
	return nil
}

// IsEnabled reports whether a provider is registered and enabled
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabledStatus[name]
}

// Enabled returns the enabled providers, highest priority first
func (r *Registry) Enabled() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name, on := range r.enabledStatus {
		if on {
			names = append(names, name)
		}
	}
	r.sortByPriority(names)
	out := make([]Client, len(names))
	for i, name := range names {
		out[i] = r.providers[name]
	}
	return out
}

// Serving returns the enabled providers that implement kind for media m.
func (r *Registry) Serving(kind media.Kind, m media.Media) []Client {
	var out []Client
	for _, c := range r.Enabled() {
		if c.Capabilities().Supports(kind, m) {
			out = append(out, c)
		}
	}
	return out
}

// Configure sets configuration for a provider
func (r *Registry) Configure(name string, config map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, exists := r.providers[name]
	if !exists {
		return fmt.Errorf("provider %s not found", name)
	}

	// Apply configuration to provider
	if err := client.Configure(config); err != nil {
		return fmt.Errorf("failed to configure provider %s: %w", name, err)
	}

	// Store configuration
	r.configs[name] = config

	return nil
}

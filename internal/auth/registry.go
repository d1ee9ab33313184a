package auth

import (
	"fmt"
	"sort"
)

// Registry stores configured auth providers.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry for auth providers.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under a name.
func (r *Registry) Register(name string, provider Provider) {
	r.providers[name] = provider
}

// Provider returns the provider registered for name.
func (r *Registry) Provider(name string) (Provider, bool) {
	provider, ok := r.providers[name]
	return provider, ok
}

// MustProvider is like Provider but reports unknown names as an error
// listing what is registered.
func (r *Registry) MustProvider(name string) (Provider, error) {
	if provider, ok := r.providers[name]; ok {
		return provider, nil
	}
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return nil, fmt.Errorf("unknown auth provider %q (registered: %v)", name, names)
}

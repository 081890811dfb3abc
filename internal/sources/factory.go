package sources

import (
	"fmt"

	"github.com/vellankikoti/tool-versions/internal/config"
	"github.com/vellankikoti/tool-versions/internal/httpclient"
)

// AdapterRegistry resolves the adapter for a source type
type AdapterRegistry interface {
	// Lookup returns the adapter registered for sourceType, or an error
	// wrapping ErrUnsupportedSourceType
	Lookup(sourceType config.SourceType) (Adapter, error)
}

// Registry is the default AdapterRegistry backed by a map
type Registry struct {
	adapters map[config.SourceType]Adapter
}

var _ AdapterRegistry = (*Registry)(nil)

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithAdapter registers adapter for sourceType, replacing any previous one
func WithAdapter(sourceType config.SourceType, adapter Adapter) RegistryOption {
	return func(r *Registry) {
		r.adapters[sourceType] = adapter
	}
}

// NewRegistry creates a registry holding only the given adapters
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{adapters: make(map[config.SourceType]Adapter)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewDefaultRegistry registers every implemented adapter. The webpage type
// stays unregistered until a scraper exists.
func NewDefaultRegistry(client httpclient.Client, opts ...GitHubOption) *Registry {
	return NewRegistry(
		WithAdapter(config.SourceTypeGitHubRelease, NewGitHubReleaseAdapter(client, opts...)),
	)
}

// Lookup returns the adapter for sourceType
func (r *Registry) Lookup(sourceType config.SourceType) (Adapter, error) {
	adapter, ok := r.adapters[sourceType]
	if !ok || adapter == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, sourceType)
	}
	return adapter, nil
}

package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"yieldfetcher/internal/provider"
)

// ErrNoProviders means no configured name resolved to a known provider.
// The process cannot do useful work and should exit.
var ErrNoProviders = errors.New("no providers enabled")

// Factory constructs one provider.
type Factory func() provider.Provider

// Registry resolves configured provider names to live providers once.
type Registry struct {
	factories map[string]Factory
	names     []string
	log       *zap.Logger

	once    sync.Once
	enabled []provider.Provider
	err     error
}

// New returns a registry over factories, keyed by lowercase provider name.
// names is the configured list in priority order.
func New(factories map[string]Factory, names []string, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{factories: factories, names: names, log: log.Named("registry")}
}

// Available lists the known provider names, sorted.
func (r *Registry) Available() []string {
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Load resolves the configured names. Only the first call does any work;
// later calls return the first outcome.
func (r *Registry) Load() error {
	r.once.Do(func() {
		r.enabled, r.err = r.load()
	})
	return r.err
}

func (r *Registry) load() ([]provider.Provider, error) {
	available := r.Available()
	seen := make(map[string]struct{}, len(r.names))
	out := make([]provider.Provider, 0, len(r.names))
	for _, raw := range r.names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		factory, ok := r.factories[name]
		if !ok {
			r.log.Warn("unknown provider",
				zap.String("name", name),
				zap.Strings("available", available),
			)
			continue
		}
		if _, dup := seen[name]; dup {
			r.log.Warn("duplicate provider skipped", zap.String("name", name))
			continue
		}
		seen[name] = struct{}{}
		out = append(out, factory())
		r.log.Info("provider enabled", zap.String("name", name))
	}
	if len(out) == 0 {
		r.log.Error("no providers enabled", zap.Strings("available", available))
		return nil, fmt.Errorf("%w (available: %s)", ErrNoProviders, strings.Join(available, ", "))
	}
	return out, nil
}

// Enabled returns a copy of the loaded providers in configured order.
func (r *Registry) Enabled() []provider.Provider {
	return slices.Clone(r.enabled)
}

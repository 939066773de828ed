// Package registry resolves logical model names to upstream routes. The
// mapping comes from a TOML file loaded once at startup; unknown models are
// rejected before any upstream work happens.
package registry

import (
	"os"
	"strings"
	"sync"

	"github.com/Laisky/errors/v2"
	"github.com/pelletier/go-toml/v2"
)

// Provider tags. Every route names exactly one of these.
const (
	ProviderOpenRouter = "openrouter"
	ProviderVertex     = "vertex"
	ProviderClewdr     = "clewdr"
)

// Route is one resolved upstream target for a logical model.
type Route struct {
	Provider        string         `toml:"provider"`
	ProviderModelID string         `toml:"provider_model_id"`
	Region          string         `toml:"region,omitempty"`
	Project         string         `toml:"project,omitempty"`
	Extra           map[string]any `toml:"extra,omitempty"`
	TimeoutsMS      int64          `toml:"timeouts_ms,omitempty"`
}

// modelSpec is the on-disk shape of one model entry, e.g.
//
//	[models.gpt-smart.primary]
//	provider = "openrouter"
//	provider_model_id = "openai/gpt-4o"
type modelSpec struct {
	Primary Route `toml:"primary"`
}

type registryFile struct {
	Models map[string]modelSpec `toml:"models"`
}

// Registry is a logical-model table loaded once at startup. Safe for
// concurrent reads.
type Registry struct {
	mu     sync.RWMutex
	routes map[string]Route
}

// Load reads and parses the registry file at path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read registry file %q", path)
	}
	return Parse(data)
}

// Parse builds a Registry from raw TOML bytes.
func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "parse registry toml")
	}

	routes := make(map[string]Route, len(file.Models))
	for name, spec := range file.Models {
		route := spec.Primary
		route.Provider = strings.ToLower(route.Provider)
		switch route.Provider {
		case ProviderOpenRouter, ProviderVertex, ProviderClewdr:
		default:
			return nil, errors.Errorf("model %q: unknown provider %q", name, spec.Primary.Provider)
		}
		if route.ProviderModelID == "" {
			return nil, errors.Errorf("model %q: provider_model_id is required", name)
		}
		routes[name] = route
	}
	return &Registry{routes: routes}, nil
}

// Resolve maps a logical model name to its primary route.
func (r *Registry) Resolve(logicalModel string) (Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	route, ok := r.routes[logicalModel]
	return route, ok
}

// Models lists the registered logical model names.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	return names
}

package plugin

import (
	"sort"

	"github.com/alvarorichard/aniplay/internal/util"
)

// Factory builds one plugin. A factory returning an error is skipped with a
// warning; it never aborts loading.
type Factory func() (Plugin, error)

// Registry holds the active plugins keyed by name.
type Registry struct {
	plugins map[string]Plugin
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds a plugin, overwriting any previous plugin of the same name.
func (r *Registry) Register(p Plugin) {
	r.plugins[p.Name()] = p
}

// Load runs every factory and registers the plugins that survive the
// disabled-set and language filters.
func (r *Registry) Load(factories []Factory, disabled map[string]bool, languages []string) {
	for _, factory := range factories {
		p, err := factory()
		if err != nil {
			util.Warn("Plugin failed to initialize, skipping", "error", err)
			continue
		}
		if disabled[p.Name()] {
			util.Debug("Plugin disabled by preferences", "plugin", p.Name())
			continue
		}
		if !languageMatch(p.Languages(), languages) {
			util.Debug("Plugin filtered out by language", "plugin", p.Name())
			continue
		}
		r.Register(p)
	}
}

// Get returns the plugin registered under name.
func (r *Registry) Get(name string) (Plugin, bool) {
	p, ok := r.plugins[name]
	return p, ok
}

// All returns the registered plugins in name order.
func (r *Registry) All() []Plugin {
	names := r.ActiveSources()
	plugins := make([]Plugin, 0, len(names))
	for _, n := range names {
		plugins = append(plugins, r.plugins[n])
	}
	return plugins
}

// ActiveSources returns the sorted names of all registered plugins.
func (r *Registry) ActiveSources() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// languageMatch reports whether the plugin serves at least one of the
// requested languages. An empty request matches everything.
func languageMatch(declared, requested []string) bool {
	if len(requested) == 0 {
		return true
	}
	for _, want := range requested {
		for _, have := range declared {
			if want == have {
				return true
			}
		}
	}
	return false
}

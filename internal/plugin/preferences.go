package plugin

import (
	"encoding/json"
	"os"

	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
)

// Preferences is the persisted plugin enable/disable state.
type Preferences struct {
	DisabledPlugins []string `json:"disabled_plugins"`
}

// LoadPreferences reads the preferences file. A missing file means nothing
// is disabled.
func LoadPreferences(path string) (*Preferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Preferences{}, nil
		}
		return nil, errors.Wrap(err, "failed to read plugin preferences")
	}

	prefs := &Preferences{}
	if err := json.Unmarshal(data, prefs); err != nil {
		return nil, errors.Wrap(err, "failed to parse plugin preferences")
	}
	return prefs, nil
}

// Save atomically rewrites the preferences file.
func (p *Preferences) Save(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode plugin preferences")
	}
	return renameio.WriteFile(path, data, 0600)
}

// DisabledSet returns the disabled plugin names as a lookup set.
func (p *Preferences) DisabledSet() map[string]bool {
	set := make(map[string]bool, len(p.DisabledPlugins))
	for _, name := range p.DisabledPlugins {
		set[name] = true
	}
	return set
}

// Package config loads the aniplay configuration from defaults, the YAML
// config file and environment variable overrides, in that precedence order.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Search   SearchConfig   `yaml:"search,omitempty"`
	Cache    CacheConfig    `yaml:"cache,omitempty"`
	AniList  AniListConfig  `yaml:"anilist,omitempty"`
	Playback PlaybackConfig `yaml:"playback,omitempty"`
	Plugins  PluginsConfig  `yaml:"plugins,omitempty"`
}

// SearchConfig tunes the aggregating catalog.
type SearchConfig struct {
	// ProgressiveSearchMinWords is the shortest query prefix (in words) the
	// progressive reducer will fall back to. Minimum 1.
	ProgressiveSearchMinWords int `yaml:"progressive_search_min_words,omitempty"`
	// FuzzyThreshold is the minimum Levenshtein ratio (0-100) for accepting
	// an AniList identity match. Bounded to 70-100.
	FuzzyThreshold int `yaml:"fuzzy_threshold,omitempty"`
}

// CacheConfig tunes the on-disk cache layer.
type CacheConfig struct {
	// DurationHours is the TTL for search and episode cache entries.
	// Bounded to 1-720.
	DurationHours int `yaml:"duration_hours,omitempty"`
}

// AniListConfig contains AniList OAuth settings.
type AniListConfig struct {
	ClientID string `yaml:"client_id,omitempty"`
}

// PlaybackConfig contains player and stream-resolution settings.
type PlaybackConfig struct {
	// PreferredSource is raced first during stream resolution. Empty means a
	// single one-tier race across all sources.
	PreferredSource string  `yaml:"preferred_source,omitempty"`
	Speed           float64 `yaml:"speed,omitempty"`
	ReadaheadSecs   int     `yaml:"readahead_secs,omitempty"`
}

// PluginsConfig controls which scraper plugins load.
type PluginsConfig struct {
	// Languages filters plugins by declared language ("pt-BR", "en", ...).
	// Empty means all languages.
	Languages []string `yaml:"languages,omitempty"`
}

// Load builds the configuration:
//  1. start from static defaults
//  2. write the default config file if none exists yet
//  3. merge the on-disk file over the defaults
//  4. apply environment variable overrides (a local .env is read first)
func Load() (*Config, error) {
	cfg := createBaseDefaultConfig()

	configPath, err := getConfigPath()
	if err != nil {
		return nil, errors.Wrap(err, "unable to determine config file path")
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		// Best effort: fall back to pure defaults if the write fails.
		_ = save(cfg, configPath)
	}

	fileConfig, err := loadFromDisk(configPath)
	if err == nil {
		if err = mergo.Merge(cfg, fileConfig, mergo.WithOverride); err != nil {
			return nil, errors.Wrap(err, "error merging config loaded from disk")
		}
	}

	// A local .env may carry the same ANIPLAY__ overrides.
	_ = godotenv.Load()
	applyEnvVarOverrides(cfg)

	cfg.clamp()
	return cfg, nil
}

// clamp forces the bounded knobs back into their documented ranges.
func (c *Config) clamp() {
	if c.Search.ProgressiveSearchMinWords < 1 {
		c.Search.ProgressiveSearchMinWords = 1
	}
	if c.Search.FuzzyThreshold < 70 {
		c.Search.FuzzyThreshold = 70
	}
	if c.Search.FuzzyThreshold > 100 {
		c.Search.FuzzyThreshold = 100
	}
	if c.Cache.DurationHours < 1 {
		c.Cache.DurationHours = 1
	}
	if c.Cache.DurationHours > 720 {
		c.Cache.DurationHours = 720
	}
	if c.Playback.Speed <= 0 {
		c.Playback.Speed = 1.0
	}
	if c.Playback.ReadaheadSecs < 30 {
		c.Playback.ReadaheadSecs = 30
	}
}

func loadFromDisk(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read config file")
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "unable to parse config file")
	}

	return cfg, nil
}

func save(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// getConfigPath returns the path to the config file, honoring the
// ANIPLAY_CONFIG_PATH override.
func getConfigPath() (string, error) {
	if configPath := os.Getenv("ANIPLAY_CONFIG_PATH"); configPath != "" {
		return configPath, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "aniplay", "config.yaml"), nil
}

// StateDir returns the per-user state directory, creating it if missing.
// This is the one place that may fail fatally: without a state directory no
// history, token or cache persistence is possible.
func StateDir() (string, error) {
	if dir := os.Getenv("ANIPLAY_STATE_DIR"); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return "", errors.Wrap(err, "unable to create state directory")
		}
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "unable to resolve home directory")
	}

	var base string
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			base = filepath.Join(appData, "aniplay")
		} else {
			base = filepath.Join(home, "AppData", "Local", "aniplay")
		}
	case "darwin":
		base = filepath.Join(home, "Library", "Application Support", "aniplay")
	default:
		if xdgState := os.Getenv("XDG_STATE_HOME"); xdgState != "" {
			base = filepath.Join(xdgState, "aniplay")
		} else {
			base = filepath.Join(home, ".local", "share", "aniplay")
		}
	}

	if err := os.MkdirAll(base, 0700); err != nil {
		return "", errors.Wrap(err, "unable to create state directory")
	}
	return base, nil
}

// createBaseDefaultConfig creates a config with all default values
func createBaseDefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			ProgressiveSearchMinWords: 1,
			FuzzyThreshold:            90,
		},
		Cache: CacheConfig{
			DurationHours: 168,
		},
		AniList: AniListConfig{
			ClientID: "21576",
		},
		Playback: PlaybackConfig{
			PreferredSource: "animefire",
			Speed:           1.0,
			ReadaheadSecs:   30,
		},
		Plugins: PluginsConfig{},
	}
}

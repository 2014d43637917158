package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment overrides use one common prefix with double-underscore nesting,
// e.g. ANIPLAY__CACHE__DURATION_HOURS=24.
type envVar struct {
	name  string
	desc  string
	apply func(*Config, string)
}

var supportedEnvVars = []envVar{
	{
		// Documented here; handled before the config is loaded.
		name:  "ANIPLAY_CONFIG_PATH",
		desc:  "Sets the path to the config file.  Default: OS-specific config directory",
		apply: func(c *Config, s string) {},
	},
	{
		name:  "ANIPLAY_STATE_DIR",
		desc:  "Sets the state directory for history, cache and tokens.  Default: OS-specific",
		apply: func(c *Config, s string) {},
	},
	{
		name: "ANIPLAY__SEARCH__PROGRESSIVE_SEARCH_MIN_WORDS",
		desc: "Minimum word count the progressive search reducer falls back to.  Default: 1",
		apply: func(c *Config, s string) {
			if n, err := strconv.Atoi(s); err == nil {
				c.Search.ProgressiveSearchMinWords = n
			}
		},
	},
	{
		name: "ANIPLAY__SEARCH__FUZZY_THRESHOLD",
		desc: "Minimum ratio (70-100) to accept an AniList identity match.  Default: 90",
		apply: func(c *Config, s string) {
			if n, err := strconv.Atoi(s); err == nil {
				c.Search.FuzzyThreshold = n
			}
		},
	},
	{
		name: "ANIPLAY__CACHE__DURATION_HOURS",
		desc: "TTL in hours for search and episode cache entries (1-720).  Default: 168",
		apply: func(c *Config, s string) {
			if n, err := strconv.Atoi(s); err == nil {
				c.Cache.DurationHours = n
			}
		},
	},
	{
		name:  "ANIPLAY__ANILIST__CLIENT_ID",
		desc:  "AniList OAuth client id.  Default: built-in",
		apply: func(c *Config, s string) { c.AniList.ClientID = s },
	},
	{
		name:  "ANIPLAY__PLAYBACK__PREFERRED_SOURCE",
		desc:  "Plugin raced first during stream extraction.  Empty disables the fast path.  Default: animefire",
		apply: func(c *Config, s string) { c.Playback.PreferredSource = s },
	},
	{
		name: "ANIPLAY__PLAYBACK__SPEED",
		desc: "Default playback speed.  Default: 1.0",
		apply: func(c *Config, s string) {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				c.Playback.Speed = f
			}
		},
	},
	{
		name: "ANIPLAY__PLAYBACK__READAHEAD_SECS",
		desc: "Player readahead window in seconds (minimum 30).  Default: 30",
		apply: func(c *Config, s string) {
			if n, err := strconv.Atoi(s); err == nil {
				c.Playback.ReadaheadSecs = n
			}
		},
	},
	{
		name: "ANIPLAY__PLUGINS__LANGUAGES",
		desc: "Comma-separated plugin language filter, e.g. 'en,pt-BR'.  Default: all",
		apply: func(c *Config, s string) {
			var langs []string
			for _, l := range strings.Split(s, ",") {
				if l = strings.TrimSpace(l); l != "" {
					langs = append(langs, l)
				}
			}
			c.Plugins.Languages = langs
		},
	},
}

func applyEnvVarOverrides(c *Config) {
	for _, envVar := range supportedEnvVars {
		if value := os.Getenv(envVar.name); value != "" {
			envVar.apply(c, value)
		}
	}
}

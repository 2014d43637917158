package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ANIPLAY_CONFIG_PATH", filepath.Join(dir, "config.yaml"))
	t.Setenv("ANIPLAY_STATE_DIR", filepath.Join(dir, "state"))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Search.ProgressiveSearchMinWords)
	assert.Equal(t, 90, cfg.Search.FuzzyThreshold)
	assert.Equal(t, 168, cfg.Cache.DurationHours)
	assert.Equal(t, "animefire", cfg.Playback.PreferredSource)
	assert.Equal(t, 1.0, cfg.Playback.Speed)
	assert.Equal(t, 30, cfg.Playback.ReadaheadSecs)
}

func TestLoadWritesDefaultFileOnFirstRun(t *testing.T) {
	dir := isolate(t)

	_, err := Load()
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "config.yaml"))
	assert.NoError(t, statErr)
}

func TestFileOverridesDefaults(t *testing.T) {
	dir := isolate(t)
	content := "search:\n  fuzzy_threshold: 80\ncache:\n  duration_hours: 24\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Search.FuzzyThreshold)
	assert.Equal(t, 24, cfg.Cache.DurationHours)
	// Untouched sections keep their defaults.
	assert.Equal(t, "animefire", cfg.Playback.PreferredSource)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	content := "cache:\n  duration_hours: 24\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0600))
	t.Setenv("ANIPLAY__CACHE__DURATION_HOURS", "48")
	t.Setenv("ANIPLAY__PLAYBACK__PREFERRED_SOURCE", "allanime")
	t.Setenv("ANIPLAY__PLUGINS__LANGUAGES", "en, pt-BR")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 48, cfg.Cache.DurationHours)
	assert.Equal(t, "allanime", cfg.Playback.PreferredSource)
	assert.Equal(t, []string{"en", "pt-BR"}, cfg.Plugins.Languages)
}

func TestClampBoundsKnobs(t *testing.T) {
	isolate(t)
	t.Setenv("ANIPLAY__SEARCH__FUZZY_THRESHOLD", "50")
	t.Setenv("ANIPLAY__CACHE__DURATION_HOURS", "9000")
	t.Setenv("ANIPLAY__SEARCH__PROGRESSIVE_SEARCH_MIN_WORDS", "0")
	t.Setenv("ANIPLAY__PLAYBACK__READAHEAD_SECS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 70, cfg.Search.FuzzyThreshold)
	assert.Equal(t, 720, cfg.Cache.DurationHours)
	assert.Equal(t, 1, cfg.Search.ProgressiveSearchMinWords)
	assert.Equal(t, 30, cfg.Playback.ReadaheadSecs)
}

func TestStateDirHonorsOverride(t *testing.T) {
	want := filepath.Join(t.TempDir(), "nested", "state")
	t.Setenv("ANIPLAY_STATE_DIR", want)

	got, err := StateDir()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	info, err := os.Stat(want)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alvarorichard/aniplay/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) (*Resolver, *cache.Store) {
	t.Helper()
	store, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	mappings := filepath.Join(t.TempDir(), "anilist_mappings.json")
	return New(nil, store, 90, mappings), store
}

func TestResolveServesPositiveFromCache(t *testing.T) {
	r, store := newTestResolver(t)
	store.Set(cache.AnilistIDKey("Sousou no Frieren"), 154587, cache.PositiveIdentityTTL)

	// The nil client proves no network round-trip happens on a cache hit.
	id, ok := r.Resolve(context.Background(), "sousou no frieren")
	require.True(t, ok)
	assert.Equal(t, 154587, id)
}

func TestResolveServesNegativeFromCache(t *testing.T) {
	r, store := newTestResolver(t)
	store.Set(cache.AnilistIDKey("definitely not an anime"), nil, cache.NegativeIdentityTTL)

	id, ok := r.Resolve(context.Background(), "Definitely Not An Anime")
	assert.False(t, ok)
	assert.Zero(t, id)
}

func TestConfirmMappingRoundTrip(t *testing.T) {
	r, _ := newTestResolver(t)

	require.NoError(t, r.ConfirmMapping(154587, "Sousou no Frieren (Dublado)", "frieren"))

	m, ok := r.MappingFor(154587)
	require.True(t, ok)
	assert.Equal(t, "Sousou no Frieren (Dublado)", m.ScraperTitle)
	assert.Equal(t, "frieren", m.SearchTitle)

	_, ok = r.MappingFor(1)
	assert.False(t, ok)
}

func TestConfirmMappingPreservesSearchTitle(t *testing.T) {
	r, _ := newTestResolver(t)

	require.NoError(t, r.ConfirmMapping(154587, "Sousou no Frieren", "frieren"))
	require.NoError(t, r.ConfirmMapping(154587, "Sousou no Frieren (Legendado)", ""))

	m, ok := r.MappingFor(154587)
	require.True(t, ok)
	assert.Equal(t, "Sousou no Frieren (Legendado)", m.ScraperTitle)
	assert.Equal(t, "frieren", m.SearchTitle)
}

func TestMappingsSurviveReopen(t *testing.T) {
	store, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "anilist_mappings.json")

	r := New(nil, store, 90, path)
	require.NoError(t, r.ConfirmMapping(21, "One Piece", "one piece"))

	r2 := New(nil, store, 90, path)
	m, ok := r2.MappingFor(21)
	require.True(t, ok)
	assert.Equal(t, "One Piece", m.ScraperTitle)
}

func TestCorruptMappingsStartEmpty(t *testing.T) {
	store, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "anilist_mappings.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0600))

	r := New(nil, store, 90, path)
	_, ok := r.MappingFor(21)
	assert.False(t, ok)
}

package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestSetGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	s.Set(SearchKey("Frieren"), map[string]int{"a": 1}, time.Hour)

	var got map[string]int
	require.True(t, s.Get(SearchKey("frieren"), &got))
	assert.Equal(t, 1, got["a"])
}

func TestGetMiss(t *testing.T) {
	s := openTestStore(t)
	var got string
	assert.False(t, s.Get("search:nothing", &got))
}

func TestExpiry(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	s.clock = func() time.Time { return now }

	s.Set(AnilistIDKey("Dandadan"), 171018, time.Hour)

	var id int
	require.True(t, s.Get(AnilistIDKey("Dandadan"), &id))
	assert.Equal(t, 171018, id)

	s.clock = func() time.Time { return now.Add(2 * time.Hour) }
	assert.False(t, s.Get(AnilistIDKey("Dandadan"), &id))
}

func TestNegativeIdentityIsCachedNull(t *testing.T) {
	s := openTestStore(t)
	s.Set(AnilistIDKey("not an anime"), nil, NegativeIdentityTTL)

	var id *int
	require.True(t, s.Get(AnilistIDKey("not an anime"), &id))
	assert.Nil(t, id)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	s.Set(AnilistMetaKey(42), "meta", time.Hour)

	s2, err := Open(dir)
	require.NoError(t, err)
	var got string
	require.True(t, s2.Get(AnilistMetaKey(42), &got))
	assert.Equal(t, "meta", got)
}

func TestCorruptShardReadsAsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	s.Set("search:x", "v", time.Hour)

	for i := 0; i < shardCount; i++ {
		path := filepath.Join(dir, "shard_"+string(rune('0'+i))+".json")
		if _, statErr := os.Stat(path); statErr == nil {
			require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
		}
	}

	s2, err := Open(dir)
	require.NoError(t, err)
	var got string
	assert.False(t, s2.Get("search:x", &got))
}

func TestSchemaDriftReadsAsMiss(t *testing.T) {
	s := openTestStore(t)
	s.Set("search:x", []string{"a", "b"}, time.Hour)

	var wrongShape map[string]int
	assert.False(t, s.Get("search:x", &wrongShape))

	// The bad entry is dropped, so the right shape misses too.
	var right []string
	assert.False(t, s.Get("search:x", &right))
}

func TestMigrateLegacy(t *testing.T) {
	dir := t.TempDir()
	legacy := filepath.Join(dir, "scraper_cache.json")
	require.NoError(t, os.WriteFile(legacy, []byte(`{"anilist_id:frieren":154587}`), 0600))

	s, err := Open(filepath.Join(dir, "cache"))
	require.NoError(t, err)
	s.MigrateLegacy(legacy, time.Hour)

	var id int
	require.True(t, s.Get("anilist_id:frieren", &id))
	assert.Equal(t, 154587, id)

	_, statErr := os.Stat(legacy)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(legacy + ".backup")
	assert.NoError(t, statErr)
}

func TestMigrateLegacySkipsWhenStoreNotEmpty(t *testing.T) {
	dir := t.TempDir()
	legacy := filepath.Join(dir, "scraper_cache.json")
	require.NoError(t, os.WriteFile(legacy, []byte(`{"k":"old"}`), 0600))

	s, err := Open(filepath.Join(dir, "cache"))
	require.NoError(t, err)
	s.Set("k", "new", time.Hour)
	s.MigrateLegacy(legacy, time.Hour)

	var got string
	require.True(t, s.Get("k", &got))
	assert.Equal(t, "new", got)
	_, statErr := os.Stat(legacy)
	assert.NoError(t, statErr)
}

// Package cache is a sharded on-disk key/value store with per-entry TTL.
// Values are opaque JSON; malformed or expired entries read as misses.
package cache

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/alvarorichard/aniplay/internal/util"
	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
)

const shardCount = 8

// TTLs for the identity namespaces. Search and episode entries use the
// configured cache duration instead.
const (
	PositiveIdentityTTL = 30 * 24 * time.Hour
	NegativeIdentityTTL = 24 * time.Hour
	MetadataTTL         = 30 * 24 * time.Hour
)

// Key namespace prefixes.
const (
	prefixSearch      = "search:"
	prefixEpisodes    = "episodes:"
	prefixAnilistID   = "anilist_id:"
	prefixAnilistMeta = "anilist_meta:"
)

// SearchKey returns the cache key for a catalog search snapshot.
func SearchKey(query string) string { return prefixSearch + strings.ToLower(query) }

// EpisodesKey returns the cache key for an episode list, keyed by AniList id
// when known and by title otherwise.
func EpisodesKey(ref string) string { return prefixEpisodes + ref }

// AnilistIDKey returns the cache key for a resolved identity lookup.
func AnilistIDKey(scraperTitle string) string {
	return prefixAnilistID + strings.ToLower(scraperTitle)
}

// AnilistMetaKey returns the cache key for a full AniList metadata object.
func AnilistMetaKey(id int) string { return fmt.Sprintf("%s%d", prefixAnilistMeta, id) }

type entry struct {
	Value    json.RawMessage `json:"value"`
	ExpireAt int64           `json:"expire_at"`
}

type shard struct {
	mu      sync.Mutex
	path    string
	loaded  bool
	entries map[string]entry
}

// Store is the sharded cache. Keys are hashed across shardCount JSON files
// so concurrent writers on different shards never contend.
type Store struct {
	dir    string
	shards [shardCount]*shard
	clock  func() time.Time
}

// Open prepares the cache directory and returns the store. Shard files are
// loaded lazily on first touch.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "failed to create cache directory")
	}

	s := &Store{dir: dir, clock: time.Now}
	for i := range s.shards {
		s.shards[i] = &shard{path: filepath.Join(dir, fmt.Sprintf("shard_%d.json", i))}
	}
	return s, nil
}

func (s *Store) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

// load reads the shard file into memory. Corrupt files are treated as empty.
func (sh *shard) load() {
	if sh.loaded {
		return
	}
	sh.loaded = true
	sh.entries = make(map[string]entry)

	data, err := os.ReadFile(sh.path)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &sh.entries); err != nil {
		util.Debug("cache shard corrupt, starting fresh", "path", sh.path)
		sh.entries = make(map[string]entry)
	}
}

func (sh *shard) flush() error {
	data, err := json.Marshal(sh.entries)
	if err != nil {
		return err
	}
	return renameio.WriteFile(sh.path, data, 0600)
}

// Get decodes the value stored at key into dest. It reports false on a miss,
// on expiry and on any decode failure.
func (s *Store) Get(key string, dest interface{}) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.load()
	e, ok := sh.entries[key]
	if !ok {
		return false
	}
	if s.clock().Unix() >= e.ExpireAt {
		delete(sh.entries, key)
		return false
	}
	if err := json.Unmarshal(e.Value, dest); err != nil {
		// Schema drift: treat as miss and drop the entry.
		delete(sh.entries, key)
		return false
	}
	return true
}

// Set stores value at key for ttl. A failed disk write degrades to an
// in-memory entry and is logged, never surfaced.
func (s *Store) Set(key string, value interface{}, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		util.Debug("cache value not serializable", "key", key, "error", err)
		return
	}

	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.load()
	sh.entries[key] = entry{Value: raw, ExpireAt: s.clock().Add(ttl).Unix()}
	if err := sh.flush(); err != nil {
		util.Warn("cache write failed", "key", key, "error", err)
	}
}

// Delete removes key from the store.
func (s *Store) Delete(key string) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.load()
	delete(sh.entries, key)
	if err := sh.flush(); err != nil {
		util.Warn("cache write failed", "key", key, "error", err)
	}
}

// empty reports whether no shard holds any entry.
func (s *Store) empty() bool {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.load()
		n := len(sh.entries)
		sh.mu.Unlock()
		if n > 0 {
			return false
		}
	}
	return true
}

// MigrateLegacy rehydrates entries from the old single-file JSON store into
// the sharded layout, then renames the legacy file with a .backup suffix.
// It only runs when the new store is still empty.
func (s *Store) MigrateLegacy(legacyPath string, ttl time.Duration) {
	data, err := os.ReadFile(legacyPath)
	if err != nil {
		return
	}
	if !s.empty() {
		return
	}

	legacy := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &legacy); err != nil {
		util.Warn("legacy cache unreadable, skipping migration", "path", legacyPath)
		return
	}

	for key, raw := range legacy {
		s.Set(key, raw, ttl)
	}
	if err := os.Rename(legacyPath, legacyPath+".backup"); err != nil {
		util.Warn("failed to rename legacy cache", "error", err)
		return
	}
	util.Info("Migrated legacy cache", "entries", len(legacy))
}

// Package history persists per-anime watch progress as a single JSON file
// mapping anime title to a positional record
// [timestamp, episode_index, anilist_id?, source?, total_episodes?].
package history

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/alvarorichard/aniplay/internal/models"
	"github.com/alvarorichard/aniplay/internal/util"
	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
)

// Store owns the history file. All writes are whole-file atomic rewrites.
type Store struct {
	path    string
	mu      sync.Mutex
	records map[string]models.HistoryRecord
	loaded  bool
}

// Entry pairs a title with its record for sorted listings.
type Entry struct {
	Title  string
	Record models.HistoryRecord
}

// New returns a store backed by path. The file is read lazily.
func New(path string) *Store {
	return &Store{path: path}
}

// load reads and, if needed, migrates the history file. Unreadable files
// start empty; history is not worth aborting the flow over.
func (s *Store) load() {
	if s.loaded {
		return
	}
	s.loaded = true
	s.records = make(map[string]models.HistoryRecord)

	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}

	raw := make(map[string][]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		util.Warn("History file unreadable, starting fresh", "error", err)
		return
	}

	fileTime := time.Now().Unix()
	if st, err := os.Stat(s.path); err == nil {
		fileTime = st.ModTime().Unix()
	}

	migrated := false
	for title, fields := range raw {
		rec, wasLegacy := decodeRecord(fields, fileTime)
		if rec == nil {
			continue
		}
		migrated = migrated || wasLegacy
		s.records[title] = *rec
	}

	if migrated {
		if err := s.flush(); err != nil {
			util.Warn("Failed to rewrite migrated history", "error", err)
		}
	}
}

// decodeRecord decodes one positional record. Legacy records start with an
// episode-URL list instead of a timestamp; those keep their episode index
// and take the file's mtime as timestamp.
func decodeRecord(fields []json.RawMessage, fileTime int64) (*models.HistoryRecord, bool) {
	if len(fields) == 0 {
		return nil, false
	}

	rec := &models.HistoryRecord{}
	legacy := false

	var ts int64
	if err := json.Unmarshal(fields[0], &ts); err != nil {
		var urls []string
		if err := json.Unmarshal(fields[0], &urls); err != nil {
			return nil, false
		}
		legacy = true
		ts = fileTime
	}
	rec.Timestamp = ts

	if len(fields) > 1 {
		if err := json.Unmarshal(fields[1], &rec.EpisodeIndex); err != nil {
			return nil, false
		}
	}
	if rec.EpisodeIndex < 0 {
		rec.EpisodeIndex = 0
	}
	if len(fields) > 2 {
		_ = json.Unmarshal(fields[2], &rec.AnilistID)
	}
	if len(fields) > 3 {
		_ = json.Unmarshal(fields[3], &rec.Source)
	}
	if len(fields) > 4 {
		_ = json.Unmarshal(fields[4], &rec.TotalEpisodes)
	}
	return rec, legacy
}

func encodeRecord(rec models.HistoryRecord) []interface{} {
	fields := []interface{}{rec.Timestamp, rec.EpisodeIndex}
	if rec.AnilistID != 0 || rec.Source != "" || rec.TotalEpisodes != 0 {
		fields = append(fields, rec.AnilistID)
	}
	if rec.Source != "" || rec.TotalEpisodes != 0 {
		fields = append(fields, rec.Source)
	}
	if rec.TotalEpisodes != 0 {
		fields = append(fields, rec.TotalEpisodes)
	}
	return fields
}

func (s *Store) flush() error {
	raw := make(map[string][]interface{}, len(s.records))
	for title, rec := range s.records {
		raw[title] = encodeRecord(rec)
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode history")
	}
	return renameio.WriteFile(s.path, data, 0600)
}

// Get returns the record stored for title.
func (s *Store) Get(title string) (models.HistoryRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	rec, ok := s.records[title]
	return rec, ok
}

// Set writes the record for title. Timestamps never move backwards for a
// given key.
func (s *Store) Set(title string, rec models.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	if prev, ok := s.records[title]; ok && rec.Timestamp < prev.Timestamp {
		rec.Timestamp = prev.Timestamp
	}
	if rec.EpisodeIndex < 0 {
		return errors.New("episode index must not be negative")
	}
	s.records[title] = rec
	return s.flush()
}

// Delete removes the record for title.
func (s *Store) Delete(title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	delete(s.records, title)
	return s.flush()
}

// SortedByTimestampDesc lists all records, most recently watched first.
func (s *Store) SortedByTimestampDesc() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	entries := make([]Entry, 0, len(s.records))
	for title, rec := range s.records {
		entries = append(entries, Entry{Title: title, Record: rec})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Record.Timestamp != entries[j].Record.Timestamp {
			return entries[i].Record.Timestamp > entries[j].Record.Timestamp
		}
		return entries[i].Title < entries[j].Title
	})
	return entries
}

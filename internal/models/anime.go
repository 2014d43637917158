// Package models contains the data structures shared across the aniplay core.
package models

import (
	"strings"
	"time"
)

// AnimeCandidate is one scraped hit for a catalog title. Immutable after it
// is added to the catalog.
type AnimeCandidate struct {
	Title  string            `json:"title"`
	URL    string            `json:"url"`
	Source string            `json:"source"`
	Params map[string]string `json:"params,omitempty"`
}

// EpisodeList is the ordered episode listing one source produced for an anime.
// Titles and URLs are parallel slices of equal length.
type EpisodeList struct {
	AnimeTitle string   `json:"anime_title"`
	Titles     []string `json:"titles"`
	URLs       []string `json:"urls"`
	Source     string   `json:"source"`
}

// VideoStream is a resolved playable stream. Headers, when present, must be
// forwarded to the player.
type VideoStream struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// knownStreamSuffixes are the URL endings we expect from extractors. Anything
// else still plays, but gets flagged by LooksPlayable.
var knownStreamSuffixes = []string{".m3u8", ".mp4", ".mkv", ".avi", ".webm"}

// LooksPlayable reports whether the stream URL has a recognized media suffix.
func (v *VideoStream) LooksPlayable() bool {
	lower := strings.ToLower(v.URL)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	for _, suffix := range knownStreamSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// HistoryRecord is one persisted watch record. EpisodeIndex is zero-based.
type HistoryRecord struct {
	Timestamp     int64  `json:"timestamp"`
	EpisodeIndex  int    `json:"episode_index"`
	AnilistID     int    `json:"anilist_id,omitempty"`
	Source        string `json:"source,omitempty"`
	TotalEpisodes int    `json:"total_episodes,omitempty"`
}

// WatchedAt returns the record timestamp as a time.Time.
func (r HistoryRecord) WatchedAt() time.Time {
	return time.Unix(r.Timestamp, 0)
}

// IdentityMapping is a user-confirmed link between an AniList id and the
// catalog entry the user picked for it. SearchTitle is the query that
// produced the entry and is what "switch source" re-runs.
type IdentityMapping struct {
	ScraperTitle string `json:"scraper_title"`
	SearchTitle  string `json:"search_title"`
}

// SearchOrigin tells whether the last search was served from cache or from
// live scrapers.
type SearchOrigin string

const (
	SearchFromCache   SearchOrigin = "cache"
	SearchFromScraper SearchOrigin = "scraper"
)

// SearchMetadata is the audit record of the last catalog search. It is
// overwritten on every search and read by the UI to annotate results.
// VariantIndex and TotalVariants are set only by variation-driven searches;
// both stay zero for plain queries.
type SearchMetadata struct {
	OriginalQuery string       `json:"original_query"`
	UsedQuery     string       `json:"used_query"`
	UsedWords     int          `json:"used_words"`
	TotalWords    int          `json:"total_words"`
	MinWords      int          `json:"min_words"`
	VariantIndex  int          `json:"variant_index,omitempty"`
	TotalVariants int          `json:"total_variants,omitempty"`
	Origin        SearchOrigin `json:"source"`
}

// Reduced reports whether the search had to drop words to find results.
func (m SearchMetadata) Reduced() bool {
	return m.UsedWords > 0 && m.UsedWords < m.TotalWords
}

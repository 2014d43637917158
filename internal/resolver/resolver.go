// Package resolver maps free-form scraper titles to stable AniList ids via
// fuzzy matching, with positive and negative caching and persisted
// user-confirmed mappings.
package resolver

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"sync"

	"github.com/alvarorichard/aniplay/internal/anilist"
	"github.com/alvarorichard/aniplay/internal/cache"
	"github.com/alvarorichard/aniplay/internal/models"
	"github.com/alvarorichard/aniplay/internal/title"
	"github.com/alvarorichard/aniplay/internal/util"
	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
)

// Resolver resolves scraper titles against AniList.
type Resolver struct {
	anilist   *anilist.Client
	store     *cache.Store
	threshold int

	mappingsPath string
	mu           sync.Mutex
	mappings     map[int]models.IdentityMapping
	loaded       bool
}

// New builds a resolver with the given acceptance threshold (70-100).
func New(client *anilist.Client, store *cache.Store, threshold int, mappingsPath string) *Resolver {
	return &Resolver{
		anilist:      client,
		store:        store,
		threshold:    threshold,
		mappingsPath: mappingsPath,
	}
}

// Resolve returns the AniList id for a scraper title, or false when no
// candidate clears the fuzzy threshold. Outcomes are cached either way:
// positives for a month, negatives for a day.
func (r *Resolver) Resolve(ctx context.Context, scraperTitle string) (int, bool) {
	key := cache.AnilistIDKey(scraperTitle)

	var cached *int
	if r.store.Get(key, &cached) {
		if cached == nil {
			return 0, false
		}
		return *cached, true
	}

	candidates := r.anilist.Search(ctx, scraperTitle)

	bestID, bestScore := 0, -1
	for _, candidate := range candidates {
		score := title.LevenshteinRatio(scraperTitle, candidate.Title.Romaji)
		if s := title.LevenshteinRatio(scraperTitle, candidate.Title.English); s > score {
			score = s
		}
		if score > bestScore {
			bestScore = score
			bestID = candidate.ID
		}
	}

	if bestScore >= r.threshold {
		util.Debug("Identity resolved", "title", scraperTitle, "anilist_id", bestID, "score", bestScore)
		r.store.Set(key, bestID, cache.PositiveIdentityTTL)
		return bestID, true
	}

	util.Debug("Identity unresolved", "title", scraperTitle, "best_score", bestScore)
	r.store.Set(key, nil, cache.NegativeIdentityTTL)
	return 0, false
}

// Metadata returns the full AniList record for id, served from the metadata
// cache when fresh.
func (r *Resolver) Metadata(ctx context.Context, id int) *models.AniListMedia {
	key := cache.AnilistMetaKey(id)

	var media models.AniListMedia
	if r.store.Get(key, &media) && media.ID != 0 {
		return &media
	}

	fetched := r.anilist.Media(ctx, id)
	if fetched == nil {
		return nil
	}
	r.store.Set(key, fetched, cache.MetadataTTL)
	return fetched
}

// load reads the mappings file once. Corrupt or missing files start empty.
func (r *Resolver) load() {
	if r.loaded {
		return
	}
	r.loaded = true
	r.mappings = make(map[int]models.IdentityMapping)

	data, err := os.ReadFile(r.mappingsPath)
	if err != nil {
		return
	}

	raw := make(map[string]models.IdentityMapping)
	if err := json.Unmarshal(data, &raw); err != nil {
		util.Warn("Identity mappings unreadable, starting fresh", "error", err)
		return
	}
	for idStr, m := range raw {
		if id, err := strconv.Atoi(idStr); err == nil {
			r.mappings[id] = m
		}
	}
}

// MappingFor returns the persisted user-confirmed mapping for an AniList id.
func (r *Resolver) MappingFor(id int) (models.IdentityMapping, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.load()
	m, ok := r.mappings[id]
	return m, ok
}

// ConfirmMapping persists the catalog entry the user selected for id. The
// original search title is preserved across rewrites so "switch source" can
// re-run the query that found the entry.
func (r *Resolver) ConfirmMapping(id int, scraperTitle, searchTitle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.load()

	if prev, ok := r.mappings[id]; ok && searchTitle == "" {
		searchTitle = prev.SearchTitle
	}
	r.mappings[id] = models.IdentityMapping{
		ScraperTitle: scraperTitle,
		SearchTitle:  searchTitle,
	}

	raw := make(map[string]models.IdentityMapping, len(r.mappings))
	for mid, m := range r.mappings {
		raw[strconv.Itoa(mid)] = m
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode identity mappings")
	}
	return renameio.WriteFile(r.mappingsPath, data, 0600)
}

// Package catalog aggregates search results from every registered plugin
// into a single deduplicated view and runs the progressive search loop.
package catalog

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alvarorichard/aniplay/internal/cache"
	"github.com/alvarorichard/aniplay/internal/models"
	"github.com/alvarorichard/aniplay/internal/plugin"
	"github.com/alvarorichard/aniplay/internal/title"
	"github.com/alvarorichard/aniplay/internal/util"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// IdentityResolver maps a scraper title to an AniList ID, if one matches.
type IdentityResolver interface {
	Resolve(ctx context.Context, scraperTitle string) (int, bool)
}

// Catalog holds the results of the most recent search. Plugin callbacks
// write through the sink methods; the UI reads through the accessors.
// One search runs at a time, but plugin tasks within a search call the
// sinks concurrently.
type Catalog struct {
	registry *plugin.Registry
	store    *cache.Store
	resolver IdentityResolver
	cacheTTL time.Duration
	minWords int

	searchMu sync.Mutex

	mu         sync.Mutex
	candidates map[string][]models.AnimeCandidate
	episodes   map[string][]models.EpisodeList
	normToKey  map[string]string
	anilistIDs map[string]int
	lastMeta   models.SearchMetadata
}

// New builds a catalog over the given registry. store and resolver may be
// nil, which disables caching and AniList auto-discovery respectively.
func New(registry *plugin.Registry, store *cache.Store, resolver IdentityResolver, cacheTTL time.Duration, minWords int) *Catalog {
	if minWords < 1 {
		minWords = 1
	}
	c := &Catalog{
		registry: registry,
		store:    store,
		resolver: resolver,
		cacheTTL: cacheTTL,
		minWords: minWords,
	}
	c.resetResults()
	return c
}

func (c *Catalog) resetResults() {
	c.candidates = make(map[string][]models.AnimeCandidate)
	c.episodes = make(map[string][]models.EpisodeList)
	c.normToKey = make(map[string]string)
	c.anilistIDs = make(map[string]int)
}

// AddAnime records a candidate, merging it under an existing title when the
// dedup-normalized forms collide. Existing candidates keep their order.
func (c *Catalog) AddAnime(animeTitle, url, source string, params map[string]string) {
	norm := title.NormalizeKey(animeTitle)
	cand := models.AnimeCandidate{Title: animeTitle, URL: url, Source: source, Params: params}

	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.normToKey[norm]
	if !ok {
		key = animeTitle
		c.normToKey[norm] = key
	}
	cand.Title = key
	c.candidates[key] = append(c.candidates[key], cand)
}

// AddEpisodeList records a per-source episode list for an anime already in
// the catalog. Titles and URLs must pair up and URLs must be absolute. An
// empty pair is vacuously valid and records nothing.
func (c *Catalog) AddEpisodeList(animeTitle string, titles, urls []string, source string) error {
	if len(titles) != len(urls) {
		return errors.Errorf("episode list for %q from %s is malformed: %d titles, %d urls",
			animeTitle, source, len(titles), len(urls))
	}
	for _, u := range urls {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return errors.Errorf("episode list for %q from %s has non-absolute url %q", animeTitle, source, u)
		}
	}
	if len(titles) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.episodes[animeTitle] = append(c.episodes[animeTitle], models.EpisodeList{
		AnimeTitle: animeTitle,
		Titles:     titles,
		URLs:       urls,
		Source:     source,
	})
	return nil
}

// adaptiveDeadline picks the per-attempt search timeout from the word count
// of the partial query. Short queries finish fast or not at all; long ones
// get more room because every plugin slugs through a bigger result page.
func adaptiveDeadline(words int) time.Duration {
	switch {
	case words <= 2:
		return 10 * time.Second
	case words <= 4:
		return 15 * time.Second
	default:
		return 20 * time.Second
	}
}

// Search runs the full search pipeline for query: cache lookup first, then
// the progressive word-reduction loop fanning out to every plugin. Returns
// true when the catalog ended up non-empty.
func (c *Catalog) Search(ctx context.Context, query string) bool {
	c.searchMu.Lock()
	defer c.searchMu.Unlock()

	c.mu.Lock()
	c.resetResults()
	c.mu.Unlock()

	words := strings.Fields(query)
	total := len(words)
	if total == 0 {
		return false
	}

	if c.restoreFromCache(query, total) {
		c.autoDiscover(ctx)
		return true
	}

	minWords := c.minWords
	if minWords > total {
		minWords = total
	}

	found := false
	for used := total; used >= minWords; used-- {
		partial := strings.Join(words[:used], " ")
		util.Debugf("searching %q (%d/%d words)", partial, used, total)

		c.mu.Lock()
		c.resetResults()
		c.mu.Unlock()

		c.fanOut(ctx, partial)

		c.mu.Lock()
		n := len(c.candidates)
		if n > 0 {
			c.lastMeta = models.SearchMetadata{
				OriginalQuery: query,
				UsedQuery:     partial,
				UsedWords:     used,
				TotalWords:    total,
				MinWords:      c.minWords,
				Origin:        models.SearchFromScraper,
			}
			found = true
		}
		c.mu.Unlock()
		if found {
			break
		}
	}

	if !found {
		return false
	}

	c.autoDiscover(ctx)
	c.writeCache(query)
	return true
}

// SearchVariations runs Search over the candidate queries in order and
// stops at the first that fills the catalog. The metadata records which
// variant matched (1-based) and how many there were, so the UI can annotate
// retried title variations.
func (c *Catalog) SearchVariations(ctx context.Context, variations []string) bool {
	for i, variation := range variations {
		if ctx.Err() != nil {
			return false
		}
		if !c.Search(ctx, variation) {
			continue
		}
		c.mu.Lock()
		c.lastMeta.VariantIndex = i + 1
		c.lastMeta.TotalVariants = len(variations)
		c.mu.Unlock()
		return true
	}
	return false
}

// fanOut runs every plugin's SearchAnime under one shared deadline. When the
// deadline fires we return without waiting; late AddAnime calls from tasks
// that have not yet noticed cancellation are still accepted.
func (c *Catalog) fanOut(ctx context.Context, partial string) {
	plugins := c.registry.All()
	if len(plugins) == 0 {
		return
	}

	tctx, cancel := context.WithTimeout(ctx, adaptiveDeadline(len(strings.Fields(partial))))
	defer cancel()

	var wg sync.WaitGroup
	done := make(chan struct{})
	for _, p := range plugins {
		wg.Add(1)
		go func(p plugin.Plugin) {
			defer wg.Done()
			if err := p.SearchAnime(tctx, partial, c); err != nil {
				util.Debugf("%s search failed: %v", p.Name(), err)
			}
		}(p)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-tctx.Done():
	}
}

func (c *Catalog) restoreFromCache(query string, totalWords int) bool {
	if c.store == nil {
		return false
	}
	var snapshot map[string][]models.AnimeCandidate
	if !c.store.Get(cache.SearchKey(query), &snapshot) || len(snapshot) == 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, cands := range snapshot {
		c.candidates[key] = cands
		c.normToKey[title.NormalizeKey(key)] = key
	}
	c.lastMeta = models.SearchMetadata{
		OriginalQuery: query,
		UsedQuery:     query,
		UsedWords:     totalWords,
		TotalWords:    totalWords,
		MinWords:      c.minWords,
		Origin:        models.SearchFromCache,
	}
	util.Debugf("restored %d titles from cache for %q", len(snapshot), query)
	return true
}

func (c *Catalog) writeCache(query string) {
	if c.store == nil {
		return
	}
	c.mu.Lock()
	snapshot := make(map[string][]models.AnimeCandidate, len(c.candidates))
	for k, v := range c.candidates {
		snapshot[k] = v
	}
	c.mu.Unlock()
	c.store.Set(cache.SearchKey(query), snapshot, c.cacheTTL)
}

// autoDiscover resolves AniList IDs for titles that do not have one yet.
func (c *Catalog) autoDiscover(ctx context.Context) {
	if c.resolver == nil {
		return
	}
	c.mu.Lock()
	pending := make([]string, 0, len(c.candidates))
	for t := range c.candidates {
		if _, ok := c.anilistIDs[t]; !ok {
			pending = append(pending, t)
		}
	}
	c.mu.Unlock()

	for _, t := range pending {
		if ctx.Err() != nil {
			return
		}
		if id, ok := c.resolver.Resolve(ctx, t); ok {
			c.mu.Lock()
			c.anilistIDs[t] = id
			c.mu.Unlock()
		}
	}
}

// AnilistIDFor returns the auto-discovered AniList ID for a catalog title.
func (c *Catalog) AnilistIDFor(animeTitle string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.anilistIDs[animeTitle]
	return id, ok
}

// SetAnilistID pins an AniList ID for a title, e.g. after a manual pick.
func (c *Catalog) SetAnilistID(animeTitle string, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.anilistIDs[animeTitle] = id
}

// TitleForAnilistID finds the catalog title mapped to an AniList ID.
func (c *Catalog) TitleForAnilistID(id int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for t, got := range c.anilistIDs {
		if got == id {
			return t, true
		}
	}
	return "", false
}

// TitlesWithSources lists catalog entries as "Title [src1, src2]". With an
// original query, entries are ranked by Levenshtein similarity to it,
// closest first, ties broken alphabetically by the decorated string.
func (c *Catalog) TitlesWithSources(filter, originalQuery string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	needle := title.NormalizeFilter(filter)
	type ranked struct {
		display string
		score   int
	}
	entries := make([]ranked, 0, len(c.candidates))
	for t, cands := range c.candidates {
		if needle != "" && !strings.Contains(title.NormalizeFilter(t), needle) {
			continue
		}
		seen := make(map[string]bool)
		sources := make([]string, 0, len(cands))
		for _, cand := range cands {
			if !seen[cand.Source] {
				seen[cand.Source] = true
				sources = append(sources, cand.Source)
			}
		}
		sort.Strings(sources)
		e := ranked{display: t + " [" + strings.Join(sources, ", ") + "]"}
		if originalQuery != "" {
			e.score = title.LevenshteinRatio(strings.ToLower(originalQuery), strings.ToLower(t))
		}
		entries = append(entries, e)
	}

	if originalQuery != "" {
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].score != entries[j].score {
				return entries[i].score > entries[j].score
			}
			return entries[i].display < entries[j].display
		})
	} else {
		sort.Slice(entries, func(i, j int) bool { return entries[i].display < entries[j].display })
	}

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.display
	}
	return out
}

// Titles lists catalog titles containing filter, sorted ascending.
func (c *Catalog) Titles(filter string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	needle := title.NormalizeFilter(filter)
	out := make([]string, 0, len(c.candidates))
	for t := range c.candidates {
		if needle == "" || strings.Contains(title.NormalizeFilter(t), needle) {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Candidates returns the candidate list recorded for a title.
func (c *Catalog) Candidates(animeTitle string) []models.AnimeCandidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.candidates[animeTitle]
}

// episodesCacheKey keys episode lists by AniList id when one is known and
// by title otherwise.
func (c *Catalog) episodesCacheKey(animeTitle string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.anilistIDs[animeTitle]; ok {
		return cache.EpisodesKey(strconv.Itoa(id))
	}
	return cache.EpisodesKey(animeTitle)
}

// SearchEpisodes asks every matching candidate's plugin for the episode
// list, concurrently, and joins all of them before returning. Unfiltered
// lookups are served from and written back to the cache.
func (c *Catalog) SearchEpisodes(ctx context.Context, animeTitle, sourceFilter string) error {
	if c.store != nil && sourceFilter == "" {
		var cached []models.EpisodeList
		if c.store.Get(c.episodesCacheKey(animeTitle), &cached) && len(cached) > 0 {
			c.mu.Lock()
			c.episodes[animeTitle] = cached
			c.mu.Unlock()
			util.Debugf("episode lists for %q served from cache", animeTitle)
			return nil
		}
	}

	c.mu.Lock()
	cands := append([]models.AnimeCandidate(nil), c.candidates[animeTitle]...)
	delete(c.episodes, animeTitle)
	c.mu.Unlock()

	var g errgroup.Group
	for _, cand := range cands {
		if sourceFilter != "" && cand.Source != sourceFilter {
			continue
		}
		p, ok := c.registry.Get(cand.Source)
		if !ok {
			continue
		}
		cand := cand
		g.Go(func() error {
			if err := p.SearchEpisodes(ctx, animeTitle, cand.URL, cand.Params, c); err != nil {
				util.Debugf("%s episode search failed for %q: %v", cand.Source, animeTitle, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.mu.Lock()
	lists := append([]models.EpisodeList(nil), c.episodes[animeTitle]...)
	c.mu.Unlock()
	if len(lists) == 0 {
		return errors.Errorf("no episodes found for %q", animeTitle)
	}
	if c.store != nil && sourceFilter == "" {
		c.store.Set(c.episodesCacheKey(animeTitle), lists, c.cacheTTL)
	}
	return nil
}

// EpisodeList returns the longest per-source episode list for the anime,
// in ascending episode order.
func (c *Catalog) EpisodeList(animeTitle string) (models.EpisodeList, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var best models.EpisodeList
	found := false
	for _, list := range c.episodes[animeTitle] {
		if !found || len(list.Titles) > len(best.Titles) {
			best = list
			found = true
		}
	}
	return best, found
}

// EpisodeSources lists every (url, source) pair covering the 1-based
// episode number, one per source.
func (c *Catalog) EpisodeSources(animeTitle string, episode int) []models.EpisodeList {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.EpisodeList, 0, 2)
	for _, list := range c.episodes[animeTitle] {
		if episode >= 1 && episode <= len(list.URLs) {
			out = append(out, list)
		}
	}
	return out
}

// EpisodeURLAndSource returns the first (url, source) carrying the 1-based
// episode number.
func (c *Catalog) EpisodeURLAndSource(animeTitle string, episode int) (string, string, bool) {
	for _, list := range c.EpisodeSources(animeTitle, episode) {
		return list.URLs[episode-1], list.Source, true
	}
	return "", "", false
}

// LastSearchMetadata reports how the most recent search was satisfied.
func (c *Catalog) LastSearchMetadata() models.SearchMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMeta
}

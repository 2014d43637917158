package catalog

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alvarorichard/aniplay/internal/cache"
	"github.com/alvarorichard/aniplay/internal/models"
	"github.com/alvarorichard/aniplay/internal/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlugin struct {
	name        string
	search      func(ctx context.Context, query string, sink plugin.Sink) error
	episodes    func(ctx context.Context, animeTitle, url string, params map[string]string, sink plugin.Sink) error
	searchCalls int32
}

func (f *fakePlugin) Name() string        { return f.name }
func (f *fakePlugin) Languages() []string { return nil }

func (f *fakePlugin) SearchAnime(ctx context.Context, query string, sink plugin.Sink) error {
	atomic.AddInt32(&f.searchCalls, 1)
	if f.search == nil {
		return nil
	}
	return f.search(ctx, query, sink)
}

func (f *fakePlugin) SearchEpisodes(ctx context.Context, animeTitle, url string, params map[string]string, sink plugin.Sink) error {
	if f.episodes == nil {
		return nil
	}
	return f.episodes(ctx, animeTitle, url, params, sink)
}

func (f *fakePlugin) ExtractStream(ctx context.Context, episodeURL string) (*models.VideoStream, error) {
	return nil, nil
}

func newTestCatalog(t *testing.T, store *cache.Store, plugins ...plugin.Plugin) *Catalog {
	t.Helper()
	reg := plugin.NewRegistry()
	for _, p := range plugins {
		reg.Register(p)
	}
	return New(reg, store, nil, time.Hour, 1)
}

func TestAddAnimeDeduplicatesNormalizedTitles(t *testing.T) {
	c := newTestCatalog(t, nil)
	c.AddAnime("Kimetsu no Yaiba: Hashira Geiko-hen", "https://a/1", "animefire", nil)
	c.AddAnime("Kimetsu no Yaiba Hashira Geiko-hen", "https://b/1", "allanime", nil)

	titles := c.Titles("")
	require.Len(t, titles, 1)

	cands := c.Candidates(titles[0])
	require.Len(t, cands, 2)
	assert.Equal(t, "animefire", cands[0].Source)
	assert.Equal(t, "allanime", cands[1].Source)
}

func TestAddAnimeKeepsSeasonsSeparate(t *testing.T) {
	c := newTestCatalog(t, nil)
	c.AddAnime("Spy x Family Season 1", "https://a/1", "animefire", nil)
	c.AddAnime("Spy x Family Season 2", "https://a/2", "animefire", nil)
	assert.Len(t, c.Titles(""), 2)
}

func TestSearchProgressivelyReducesQuery(t *testing.T) {
	p := &fakePlugin{
		name: "animefire",
		search: func(_ context.Context, query string, sink plugin.Sink) error {
			if query == "Spy x Family" {
				sink.AddAnime("Spy x Family", "https://a/1", "animefire", nil)
			}
			return nil
		},
	}
	c := newTestCatalog(t, nil, p)

	require.True(t, c.Search(context.Background(), "Spy x Family Season 2 Part 2"))

	meta := c.LastSearchMetadata()
	assert.Equal(t, "Spy x Family Season 2 Part 2", meta.OriginalQuery)
	assert.Equal(t, "Spy x Family", meta.UsedQuery)
	assert.Equal(t, 3, meta.UsedWords)
	assert.Equal(t, 6, meta.TotalWords)
	assert.Equal(t, models.SearchFromScraper, meta.Origin)
	assert.True(t, meta.Reduced())
}

func TestSearchStopsAtFirstNonEmptyPrefix(t *testing.T) {
	p := &fakePlugin{
		name: "animefire",
		search: func(_ context.Context, query string, sink plugin.Sink) error {
			sink.AddAnime("Dandadan", "https://a/1", "animefire", nil)
			return nil
		},
	}
	c := newTestCatalog(t, nil, p)

	require.True(t, c.Search(context.Background(), "Dandadan second season"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.searchCalls))
	assert.False(t, c.LastSearchMetadata().Reduced())
}

func TestSearchEmptyWhenNoPluginMatches(t *testing.T) {
	p := &fakePlugin{name: "animefire"}
	c := newTestCatalog(t, nil, p)

	assert.False(t, c.Search(context.Background(), "a b c"))
	// One call per prefix: "a b c", "a b", "a".
	assert.Equal(t, int32(3), atomic.LoadInt32(&p.searchCalls))
}

func TestSearchKeepsPartialWritesOnCancellation(t *testing.T) {
	p := &fakePlugin{
		name: "slow",
		search: func(ctx context.Context, query string, sink plugin.Sink) error {
			sink.AddAnime("Frieren", "https://a/1", "slow", nil)
			<-ctx.Done()
			return ctx.Err()
		},
	}
	c := newTestCatalog(t, nil, p)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	found := c.Search(ctx, "Frieren")
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, found)
	assert.Equal(t, []string{"Frieren"}, c.Titles(""))
}

func TestAdaptiveDeadline(t *testing.T) {
	assert.Equal(t, 10*time.Second, adaptiveDeadline(1))
	assert.Equal(t, 10*time.Second, adaptiveDeadline(2))
	assert.Equal(t, 15*time.Second, adaptiveDeadline(3))
	assert.Equal(t, 15*time.Second, adaptiveDeadline(4))
	assert.Equal(t, 20*time.Second, adaptiveDeadline(5))
	assert.Equal(t, 20*time.Second, adaptiveDeadline(9))
}

func TestSearchServesSecondCallFromCache(t *testing.T) {
	store, err := cache.Open(t.TempDir())
	require.NoError(t, err)

	p := &fakePlugin{
		name: "animefire",
		search: func(_ context.Context, query string, sink plugin.Sink) error {
			sink.AddAnime("Dandadan", "https://a/1", "animefire", nil)
			return nil
		},
	}
	c := newTestCatalog(t, store, p)
	require.True(t, c.Search(context.Background(), "Dandadan"))
	require.Equal(t, int32(1), atomic.LoadInt32(&p.searchCalls))

	c2 := newTestCatalog(t, store, p)
	require.True(t, c2.Search(context.Background(), "dandadan"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.searchCalls))
	assert.Equal(t, models.SearchFromCache, c2.LastSearchMetadata().Origin)
	assert.Equal(t, []string{"Dandadan"}, c2.Titles(""))
}

func TestTitlesWithSourcesRanking(t *testing.T) {
	c := newTestCatalog(t, nil)
	c.AddAnime("Dandadan", "https://a/1", "animefire", nil)
	c.AddAnime("Dandadan 2", "https://a/2", "allanime", nil)
	c.AddAnime("Dan Da Dan Dublado", "https://a/3", "animefire", nil)

	got := c.TitlesWithSources("", "Dandadan")
	require.Len(t, got, 3)
	assert.Equal(t, "Dandadan [animefire]", got[0])
	assert.Equal(t, "Dandadan 2 [allanime]", got[1])
}

func TestTitlesWithSourcesAlphabeticalWithoutQuery(t *testing.T) {
	c := newTestCatalog(t, nil)
	c.AddAnime("Berserk", "https://a/1", "allanime", nil)
	c.AddAnime("Akira", "https://a/2", "allanime", nil)

	got := c.TitlesWithSources("", "")
	assert.Equal(t, []string{"Akira [allanime]", "Berserk [allanime]"}, got)
}

func TestSearchVariationsStampsVariantMetadata(t *testing.T) {
	p := &fakePlugin{
		name: "animefire",
		search: func(_ context.Context, query string, sink plugin.Sink) error {
			if query == "Spy x Family" {
				sink.AddAnime("Spy x Family", "https://a/1", "animefire", nil)
			}
			return nil
		},
	}
	reg := plugin.NewRegistry()
	reg.Register(p)
	c := New(reg, nil, nil, time.Hour, 4)

	variations := []string{"Spy x Family Season 2", "Spy x Family", "Spy"}
	require.True(t, c.SearchVariations(context.Background(), variations))

	meta := c.LastSearchMetadata()
	assert.Equal(t, "Spy x Family", meta.OriginalQuery)
	assert.Equal(t, 2, meta.VariantIndex)
	assert.Equal(t, 3, meta.TotalVariants)
}

func TestPlainSearchLeavesVariantFieldsZero(t *testing.T) {
	p := &fakePlugin{
		name: "animefire",
		search: func(_ context.Context, query string, sink plugin.Sink) error {
			sink.AddAnime("Dandadan", "https://a/1", "animefire", nil)
			return nil
		},
	}
	c := newTestCatalog(t, nil, p)

	require.True(t, c.Search(context.Background(), "Dandadan"))
	meta := c.LastSearchMetadata()
	assert.Zero(t, meta.VariantIndex)
	assert.Zero(t, meta.TotalVariants)
}

func TestSearchClampsMinWordsToShortQueries(t *testing.T) {
	p := &fakePlugin{
		name: "animefire",
		search: func(_ context.Context, query string, sink plugin.Sink) error {
			sink.AddAnime("Frieren", "https://a/1", "animefire", nil)
			return nil
		},
	}
	reg := plugin.NewRegistry()
	reg.Register(p)
	c := New(reg, nil, nil, time.Hour, 3)

	assert.True(t, c.Search(context.Background(), "Frieren"))
}

func TestTitlesFilterIgnoresPunctuationAndCase(t *testing.T) {
	c := newTestCatalog(t, nil)
	c.AddAnime("Dr. STONE: New World!", "https://a/1", "animefire", nil)

	assert.Equal(t, []string{"Dr. STONE: New World!"}, c.Titles("dr stone"))

	got := c.TitlesWithSources("dr stone", "")
	require.Len(t, got, 1)
	assert.Equal(t, "Dr. STONE: New World! [animefire]", got[0])
}

func TestTitlesSubstringFilter(t *testing.T) {
	c := newTestCatalog(t, nil)
	c.AddAnime("One Piece", "https://a/1", "animefire", nil)
	c.AddAnime("One Punch Man", "https://a/2", "animefire", nil)
	c.AddAnime("Berserk", "https://a/3", "animefire", nil)

	assert.Equal(t, []string{"One Piece", "One Punch Man"}, c.Titles("one p"))
}

func TestAddEpisodeListValidation(t *testing.T) {
	c := newTestCatalog(t, nil)

	err := c.AddEpisodeList("x", []string{"Ep 1"}, []string{"https://a/1", "https://a/2"}, "animefire")
	assert.Error(t, err)

	err = c.AddEpisodeList("x", []string{"Ep 1"}, []string{"ftp://a/1"}, "animefire")
	assert.Error(t, err)

	err = c.AddEpisodeList("x", []string{"Ep 1"}, []string{"https://a/1"}, "animefire")
	assert.NoError(t, err)
}

func TestAddEpisodeListEmptyIsANoOp(t *testing.T) {
	c := newTestCatalog(t, nil)
	require.NoError(t, c.AddEpisodeList("x", nil, nil, "animefire"))

	_, ok := c.EpisodeList("x")
	assert.False(t, ok)
}

func TestEpisodeListReturnsLongestUnreversed(t *testing.T) {
	c := newTestCatalog(t, nil)
	require.NoError(t, c.AddEpisodeList("x",
		[]string{"Ep 1", "Ep 2"},
		[]string{"https://short/1", "https://short/2"}, "allanime"))
	require.NoError(t, c.AddEpisodeList("x",
		[]string{"Ep 1", "Ep 2", "Ep 3"},
		[]string{"https://long/1", "https://long/2", "https://long/3"}, "animefire"))

	list, ok := c.EpisodeList("x")
	require.True(t, ok)
	assert.Equal(t, "animefire", list.Source)
	assert.Equal(t, []string{"Ep 1", "Ep 2", "Ep 3"}, list.Titles)
}

func TestEpisodeURLAndSource(t *testing.T) {
	c := newTestCatalog(t, nil)
	require.NoError(t, c.AddEpisodeList("x",
		[]string{"Ep 1", "Ep 2"},
		[]string{"https://a/1", "https://a/2"}, "animefire"))

	url, source, ok := c.EpisodeURLAndSource("x", 2)
	require.True(t, ok)
	assert.Equal(t, "https://a/2", url)
	assert.Equal(t, "animefire", source)

	_, _, ok = c.EpisodeURLAndSource("x", 3)
	assert.False(t, ok)
}

func TestSearchEpisodesJoinsAllSources(t *testing.T) {
	mk := func(name string) *fakePlugin {
		return &fakePlugin{
			name: name,
			episodes: func(_ context.Context, animeTitle, url string, _ map[string]string, sink plugin.Sink) error {
				return sink.AddEpisodeList(animeTitle, []string{"Ep 1"}, []string{url}, name)
			},
		}
	}
	c := newTestCatalog(t, nil, mk("animefire"), mk("allanime"))
	c.AddAnime("x", "https://fire/x", "animefire", nil)
	c.AddAnime("x", "https://all/x", "allanime", nil)

	require.NoError(t, c.SearchEpisodes(context.Background(), "x", ""))
	assert.Len(t, c.EpisodeSources("x", 1), 2)

	require.NoError(t, c.SearchEpisodes(context.Background(), "x", "allanime"))
	sources := c.EpisodeSources("x", 1)
	require.Len(t, sources, 1)
	assert.Equal(t, "allanime", sources[0].Source)
}

func TestSearchEpisodesServedFromCache(t *testing.T) {
	store, err := cache.Open(t.TempDir())
	require.NoError(t, err)

	calls := 0
	p := &fakePlugin{
		name: "animefire",
		episodes: func(_ context.Context, animeTitle, url string, _ map[string]string, sink plugin.Sink) error {
			calls++
			return sink.AddEpisodeList(animeTitle, []string{"Ep 1"}, []string{url}, "animefire")
		},
	}
	c := newTestCatalog(t, store, p)
	c.AddAnime("x", "https://fire/x", "animefire", nil)
	require.NoError(t, c.SearchEpisodes(context.Background(), "x", ""))
	require.Equal(t, 1, calls)

	c2 := newTestCatalog(t, store, p)
	c2.AddAnime("x", "https://fire/x", "animefire", nil)
	require.NoError(t, c2.SearchEpisodes(context.Background(), "x", ""))
	assert.Equal(t, 1, calls)

	list, ok := c2.EpisodeList("x")
	require.True(t, ok)
	assert.Equal(t, []string{"https://fire/x"}, list.URLs)
}

func TestSearchEpisodesErrorsWhenNothingFound(t *testing.T) {
	c := newTestCatalog(t, nil, &fakePlugin{name: "animefire"})
	c.AddAnime("x", "https://fire/x", "animefire", nil)
	assert.Error(t, c.SearchEpisodes(context.Background(), "x", ""))
}

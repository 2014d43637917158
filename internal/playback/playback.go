// Package playback turns a chosen episode into a playable stream and keeps
// local history and the user's AniList list in sync after playback.
package playback

import (
	"context"
	"time"

	"github.com/alvarorichard/aniplay/internal/anilist"
	"github.com/alvarorichard/aniplay/internal/catalog"
	"github.com/alvarorichard/aniplay/internal/history"
	"github.com/alvarorichard/aniplay/internal/models"
	"github.com/alvarorichard/aniplay/internal/plugin"
	"github.com/alvarorichard/aniplay/internal/util"
)

// preferredDeadline bounds the first racing tier; extractors slower than
// this lose their head start to the remaining sources.
const preferredDeadline = 15 * time.Second

// Orchestrator resolves streams across sources and records progress.
type Orchestrator struct {
	registry  *plugin.Registry
	catalog   *catalog.Catalog
	history   *history.Store
	anilist   *anilist.Client
	preferred string
}

func New(registry *plugin.Registry, cat *catalog.Catalog, hist *history.Store, client *anilist.Client, preferredSource string) *Orchestrator {
	return &Orchestrator{
		registry:  registry,
		catalog:   cat,
		history:   hist,
		anilist:   client,
		preferred: preferredSource,
	}
}

type streamTask struct {
	source string
	url    string
}

type raceResult struct {
	stream *models.VideoStream
	source string
}

// ResolveStream finds a playable stream for the 1-based episode number.
// Extractors from the preferred source race first under a 15 s deadline;
// only if none of them delivers do the remaining sources race. Stream URLs
// are extracted fresh on every call since they embed short-lived tokens.
func (o *Orchestrator) ResolveStream(ctx context.Context, animeTitle string, episode int) (*models.VideoStream, string) {
	lists := o.catalog.EpisodeSources(animeTitle, episode)
	if len(lists) == 0 {
		util.SoftWarn("Episode not available in any active source")
		return nil, ""
	}

	var preferred, rest []streamTask
	for _, list := range lists {
		task := streamTask{source: list.Source, url: list.URLs[episode-1]}
		if o.preferred != "" && list.Source == o.preferred {
			preferred = append(preferred, task)
		} else {
			rest = append(rest, task)
		}
	}

	if len(preferred) > 0 {
		if stream, source := o.race(ctx, preferred, preferredDeadline); stream != nil {
			return stream, source
		}
		util.Debugf("preferred source %q yielded no stream, falling back", o.preferred)
	}
	if len(rest) > 0 {
		if stream, source := o.race(ctx, rest, 0); stream != nil {
			return stream, source
		}
	}
	return nil, ""
}

// race runs every task's extractor concurrently and returns the first
// stream produced, cancelling the rest. A zero deadline means the race is
// bounded only by ctx.
func (o *Orchestrator) race(ctx context.Context, tasks []streamTask, deadline time.Duration) (*models.VideoStream, string) {
	rctx := ctx
	cancel := context.CancelFunc(func() {})
	if deadline > 0 {
		rctx, cancel = context.WithTimeout(ctx, deadline)
	} else {
		rctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	results := make(chan raceResult, len(tasks))
	for _, task := range tasks {
		p, ok := o.registry.Get(task.source)
		if !ok {
			results <- raceResult{}
			continue
		}
		go func(p plugin.Plugin, task streamTask) {
			stream, err := p.ExtractStream(rctx, task.url)
			if err != nil {
				util.Debugf("%s extraction failed: %v", task.source, err)
				results <- raceResult{}
				return
			}
			results <- raceResult{stream: stream, source: task.source}
		}(p, task)
	}

	remaining := len(tasks)
	for remaining > 0 {
		select {
		case res := <-results:
			remaining--
			if res.stream != nil {
				if !res.stream.LooksPlayable() {
					util.Debugf("%s stream has no recognized media suffix, playing anyway: %s",
						res.source, res.stream.URL)
				}
				return res.stream, res.source
			}
		case <-rctx.Done():
			return nil, ""
		}
	}
	return nil, ""
}

// SyncProgress records a finished episode in local history and, when a
// token and an AniList ID are available, on the user's AniList list. Local
// history always wins; AniList failures degrade to a warning.
func (o *Orchestrator) SyncProgress(ctx context.Context, animeTitle string, episode int, anilistID int, source string, totalEpisodes int) {
	rec := models.HistoryRecord{
		Timestamp:     time.Now().Unix(),
		EpisodeIndex:  episode - 1,
		AnilistID:     anilistID,
		Source:        source,
		TotalEpisodes: totalEpisodes,
	}
	if err := o.history.Set(animeTitle, rec); err != nil {
		util.Warn("Failed to save watch history", "error", err)
	}

	if anilistID == 0 || !o.anilist.Authenticated() {
		return
	}

	ok := true
	entry := o.anilist.ListEntry(ctx, anilistID)
	switch {
	case entry == nil:
		ok = o.anilist.AddToList(ctx, anilistID)
	case entry.Status == models.StatusPlanning:
		ok = o.anilist.SetStatus(ctx, anilistID, models.StatusCurrent)
	case entry.Status == models.StatusCompleted:
		ok = o.anilist.SetStatus(ctx, anilistID, models.StatusRepeating)
	}
	if ok {
		ok = o.anilist.UpdateProgress(ctx, anilistID, episode)
	}
	if ok {
		util.Debugf("anilist progress updated: id=%d episode=%d", anilistID, episode)
		return
	}

	if o.anilist.Viewer(ctx) == nil {
		util.SoftWarn("AniList sync failed: token looks expired. Run 'aniplay anilist auth' to log in again.")
	} else {
		util.SoftWarn("AniList sync failed, progress saved locally only")
	}
}

// Sequel returns the first direct sequel of the anime, used to offer
// continuation after the last episode.
func (o *Orchestrator) Sequel(ctx context.Context, anilistID int) *models.AniListMedia {
	if anilistID == 0 {
		return nil
	}
	sequels := o.anilist.Sequels(ctx, anilistID)
	if len(sequels) == 0 {
		return nil
	}
	return &sequels[0]
}

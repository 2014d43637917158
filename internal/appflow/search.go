package appflow

import (
	"context"
	"fmt"

	"github.com/alvarorichard/aniplay/internal/models"
	"github.com/alvarorichard/aniplay/internal/player"
	"github.com/alvarorichard/aniplay/internal/title"
	"github.com/alvarorichard/aniplay/internal/util"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/ktr0731/go-fuzzyfinder"
)

// RunSearch runs the full search flow: query, progressive search, title
// selection, episode menu, playback.
func (c *Controller) RunSearch(ctx context.Context, query string) error {
	var err error
	if query == "" {
		query, err = util.PromptQuery("Search anime")
		if err != nil {
			return nil
		}
	}

	for {
		if c.searchWithSpinner(ctx, query) {
			return c.pickAndPlay(ctx)
		}
		if !confirm(fmt.Sprintf("No results for %q. Try a different query?", query), true) {
			return nil
		}
		query, err = util.PromptQuery("Search anime")
		if err != nil {
			return nil
		}
	}
}

func (c *Controller) searchWithSpinner(ctx context.Context, query string) bool {
	found := false
	_ = spinner.New().
		Title(fmt.Sprintf("Searching %q across %d sources...", query, len(c.registry.ActiveSources()))).
		Action(func() { found = c.catalog.Search(ctx, query) }).
		Run()
	return found
}

// searchForMedia searches the catalog for an AniList record, retrying with
// progressively shorter title variations until one of them matches.
func (c *Controller) searchForMedia(ctx context.Context, media models.AniListMedia) error {
	canonical := media.Title.Romaji
	if canonical == "" {
		canonical = media.Title.Display()
	}
	if media.Title.English != "" && media.Title.English != canonical {
		canonical = canonical + " / " + media.Title.English
	}

	variations := title.Variations(canonical)
	found := false
	_ = spinner.New().
		Title(fmt.Sprintf("Searching %q across %d sources...", canonical, len(c.registry.ActiveSources()))).
		Action(func() { found = c.catalog.SearchVariations(ctx, variations) }).
		Run()
	if !found {
		util.SoftWarn(fmt.Sprintf("None of the sources know %q", media.Title.Display()))
		return nil
	}
	return c.pickAndPlay(ctx)
}

// pickAndPlay handles everything after a successful search: selection,
// identity confirmation, episode fetch, and the playback loop.
func (c *Controller) pickAndPlay(ctx context.Context) error {
	meta := c.catalog.LastSearchMetadata()
	if meta.Reduced() {
		util.SoftWarn(fmt.Sprintf("Nothing matched the full query; showing results for %q (%d of %d words)",
			meta.UsedQuery, meta.UsedWords, meta.TotalWords))
	}
	if meta.VariantIndex > 1 {
		util.SoftWarn(fmt.Sprintf("Full title found nothing; matched variation %q (%d of %d)",
			meta.OriginalQuery, meta.VariantIndex, meta.TotalVariants))
	}

	selected, ok := c.selectTitle(meta.OriginalQuery)
	if !ok {
		return nil
	}

	for {
		anilistID := c.resolveSelection(ctx, &selected)
		if anilistID != 0 {
			if err := c.resolver.ConfirmMapping(anilistID, selected, meta.OriginalQuery); err != nil {
				util.Debugf("failed to persist identity mapping: %v", err)
			}
		}

		if !c.fetchEpisodes(ctx, selected) {
			return nil
		}

		switchSource := c.episodeLoop(ctx, selected, anilistID)
		if !switchSource {
			return nil
		}
		selected, ok = c.selectTitle(meta.OriginalQuery)
		if !ok {
			return nil
		}
	}
}

// resolveSelection finds the AniList ID for the picked title and, when a
// previous session mapped the same ID to a different catalog entry, offers
// that entry as the default.
func (c *Controller) resolveSelection(ctx context.Context, selected *string) int {
	anilistID, ok := c.catalog.AnilistIDFor(*selected)
	if !ok {
		anilistID, ok = c.resolver.Resolve(ctx, *selected)
	}

	if ok {
		if m, mapped := c.resolver.MappingFor(anilistID); mapped && m.ScraperTitle != *selected {
			if len(c.catalog.Candidates(m.ScraperTitle)) > 0 &&
				confirm(fmt.Sprintf("Last time you watched this as %q. Continue with it?", m.ScraperTitle), true) {
				*selected = m.ScraperTitle
			}
		}
		return anilistID
	}

	if !confirm("No AniList match found automatically. Pick one manually?", false) {
		return 0
	}
	query, err := util.PromptQuery("Search AniList")
	if err != nil {
		return 0
	}
	results := c.anilist.Search(ctx, query)
	if len(results) == 0 {
		util.SoftWarn("AniList returned nothing for that")
		return 0
	}
	idx, err := fuzzyfinder.Find(results, func(i int) string { return mediaLabel(results[i]) })
	if err != nil {
		return 0
	}
	c.catalog.SetAnilistID(*selected, results[idx].ID)
	return results[idx].ID
}

func (c *Controller) fetchEpisodes(ctx context.Context, animeTitle string) bool {
	var err error
	_ = spinner.New().
		Title(fmt.Sprintf("Fetching episodes for %q...", animeTitle)).
		Action(func() { err = c.catalog.SearchEpisodes(ctx, animeTitle, "") }).
		Run()
	if err != nil {
		util.SoftWarn(util.ErrorHandler(err))
		return false
	}
	return true
}

// episodeLoop drives the resume-aware episode menu until the user leaves.
// Returns true when the user asked to switch to another source entry.
func (c *Controller) episodeLoop(ctx context.Context, animeTitle string, anilistID int) bool {
	list, ok := c.catalog.EpisodeList(animeTitle)
	if !ok {
		util.SoftWarn("No episode list available")
		return false
	}
	total := len(list.Titles)
	if anilistID != 0 {
		if meta := c.resolver.Metadata(ctx, anilistID); meta != nil && meta.Episodes > total {
			total = meta.Episodes
		}
	}

	for {
		episode, action := c.chooseEpisode(animeTitle, len(list.Titles))
		switch action {
		case "back":
			return false
		case "switch":
			return true
		}
		c.playEpisode(ctx, animeTitle, episode, anilistID, total, len(list.Titles))
	}
}

// chooseEpisode shows the resume menu when history exists, or a plain
// episode picker otherwise. action is "play", "switch" or "back".
func (c *Controller) chooseEpisode(animeTitle string, available int) (episode int, action string) {
	rec, hasHistory := c.history.Get(animeTitle)
	current := rec.EpisodeIndex + 1

	if !hasHistory || current > available {
		return c.pickEpisode(animeTitle, available)
	}

	options := make([]huh.Option[string], 0, 7)
	if current < available {
		options = append(options, huh.NewOption(fmt.Sprintf("Next (episode %d)", current+1), "next"))
	}
	options = append(options, huh.NewOption(fmt.Sprintf("Rewatch current (episode %d)", current), "current"))
	if current > 1 {
		options = append(options, huh.NewOption(fmt.Sprintf("Previous (episode %d)", current-1), "previous"))
	}
	options = append(options,
		huh.NewOption("Other episode", "other"),
		huh.NewOption("Restart from episode 1", "restart"),
		huh.NewOption("Switch source", "switch"),
		huh.NewOption("Back", "back"),
	)

	var choice string
	form := huh.NewSelect[string]().
		Title(fmt.Sprintf("%s (watched %d/%d)", animeTitle, current, available)).
		Options(options...).
		Value(&choice)
	if err := form.Run(); err != nil {
		return 0, "back"
	}

	switch choice {
	case "next":
		return current + 1, "play"
	case "current":
		return current, "play"
	case "previous":
		return current - 1, "play"
	case "restart":
		return 1, "play"
	case "other":
		return c.pickEpisode(animeTitle, available)
	case "switch":
		return 0, "switch"
	default:
		return 0, "back"
	}
}

func (c *Controller) pickEpisode(animeTitle string, available int) (int, string) {
	list, ok := c.catalog.EpisodeList(animeTitle)
	if !ok || available == 0 {
		return 0, "back"
	}
	idx, err := fuzzyfinder.Find(list.Titles, func(i int) string { return list.Titles[i] })
	if err != nil {
		return 0, "back"
	}
	return idx + 1, "play"
}

// playEpisode resolves a stream, runs the player, and on user confirmation
// records progress. An aborted session skips confirmation and writes
// nothing.
func (c *Controller) playEpisode(ctx context.Context, animeTitle string, episode, anilistID, total, available int) {
	var stream *models.VideoStream
	var source string
	_ = spinner.New().
		Title(fmt.Sprintf("Extracting stream for episode %d...", episode)).
		Action(func() { stream, source = c.playback.ResolveStream(ctx, animeTitle, episode) }).
		Run()
	if stream == nil {
		util.SoftWarn("Could not resolve a playable stream from any source")
		return
	}

	util.Title(fmt.Sprintf("Playing %s, episode %d [%s]", animeTitle, episode, source))
	status := player.Play(ctx, stream, player.Options{
		Speed:         c.cfg.Playback.Speed,
		ReadaheadSecs: c.cfg.Playback.ReadaheadSecs,
		WindowTitle:   fmt.Sprintf("%s - Episode %d", animeTitle, episode),
	})

	switch status {
	case player.StatusAborted:
		return
	case player.StatusError:
		util.SoftWarn("Player exited with an error")
		return
	}

	if !confirm(fmt.Sprintf("Did you watch episode %d to the end?", episode), true) {
		return
	}
	c.playback.SyncProgress(ctx, animeTitle, episode, anilistID, source, total)
	util.Success(fmt.Sprintf("Episode %d saved", episode))

	if episode >= available && episode >= total {
		c.offerSequel(ctx, anilistID)
	}
}

// offerSequel proposes continuing into a sequel after the last episode.
func (c *Controller) offerSequel(ctx context.Context, anilistID int) {
	if anilistID == 0 {
		return
	}
	sequels := c.anilist.Sequels(ctx, anilistID)
	if len(sequels) == 0 {
		return
	}

	var chosen *models.AniListMedia
	if len(sequels) == 1 {
		if confirm(fmt.Sprintf("That was the last episode. Continue with %q?", sequels[0].Title.Display()), true) {
			chosen = &sequels[0]
		}
	} else {
		idx, err := fuzzyfinder.Find(sequels, func(i int) string { return mediaLabel(sequels[i]) })
		if err == nil {
			chosen = &sequels[idx]
		}
	}
	if chosen == nil {
		return
	}
	if err := c.searchForMedia(ctx, *chosen); err != nil {
		util.SoftWarn(util.ErrorHandler(err))
	}
}

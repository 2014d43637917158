// Package appflow drives the interactive terminal flow: menus, title and
// episode selection, playback, and the AniList sub-menu.
package appflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/alvarorichard/aniplay/internal/anilist"
	"github.com/alvarorichard/aniplay/internal/catalog"
	"github.com/alvarorichard/aniplay/internal/config"
	"github.com/alvarorichard/aniplay/internal/history"
	"github.com/alvarorichard/aniplay/internal/models"
	"github.com/alvarorichard/aniplay/internal/playback"
	"github.com/alvarorichard/aniplay/internal/plugin"
	"github.com/alvarorichard/aniplay/internal/resolver"
	"github.com/alvarorichard/aniplay/internal/util"
	"github.com/charmbracelet/huh"
	"github.com/ktr0731/go-fuzzyfinder"
)

// Controller wires the core subsystems together behind the menus.
type Controller struct {
	cfg      *config.Config
	registry *plugin.Registry
	catalog  *catalog.Catalog
	resolver *resolver.Resolver
	anilist  *anilist.Client
	history  *history.Store
	playback *playback.Orchestrator
}

func New(cfg *config.Config, registry *plugin.Registry, cat *catalog.Catalog, res *resolver.Resolver, client *anilist.Client, hist *history.Store, orch *playback.Orchestrator) *Controller {
	return &Controller{
		cfg:      cfg,
		registry: registry,
		catalog:  cat,
		resolver: res,
		anilist:  client,
		history:  hist,
		playback: orch,
	}
}

// Run shows the main menu in a loop until the user quits.
func (c *Controller) Run(ctx context.Context) error {
	for {
		var choice string
		form := huh.NewSelect[string]().
			Title("What do you want to do?").
			Options(
				huh.NewOption("Search anime", "search"),
				huh.NewOption("Continue watching", "continue"),
				huh.NewOption("AniList", "anilist"),
				huh.NewOption("Quit", "quit"),
			).
			Value(&choice)
		if err := form.Run(); err != nil {
			return nil
		}

		switch choice {
		case "search":
			if err := c.RunSearch(ctx, ""); err != nil {
				util.SoftWarn(util.ErrorHandler(err))
			}
		case "continue":
			if err := c.RunContinueWatching(ctx); err != nil {
				util.SoftWarn(util.ErrorHandler(err))
			}
		case "anilist":
			if err := c.RunAniListMenu(ctx); err != nil {
				util.SoftWarn(util.ErrorHandler(err))
			}
		default:
			return nil
		}
	}
}

// RunContinueWatching lists history entries, most recent first, and resumes
// the chosen anime through a fresh search.
func (c *Controller) RunContinueWatching(ctx context.Context) error {
	entries := c.history.SortedByTimestampDesc()
	if len(entries) == 0 {
		util.SoftWarn("Nothing in your watch history yet")
		return nil
	}

	idx, err := fuzzyfinder.Find(entries, func(i int) string {
		e := entries[i]
		label := fmt.Sprintf("%s (episode %d", e.Title, e.Record.EpisodeIndex+1)
		if e.Record.TotalEpisodes > 0 {
			label += fmt.Sprintf("/%d", e.Record.TotalEpisodes)
		}
		return label + ", " + e.Record.WatchedAt().Format("2006-01-02") + ")"
	})
	if err != nil {
		return nil
	}

	entry := entries[idx]
	query := entry.Title
	if entry.Record.AnilistID != 0 {
		if m, ok := c.resolver.MappingFor(entry.Record.AnilistID); ok && m.SearchTitle != "" {
			query = m.SearchTitle
		}
	}
	return c.RunSearch(ctx, query)
}

// selectTitle lets the user pick a catalog entry, ranked against the query.
// Returns the raw catalog title.
func (c *Controller) selectTitle(query string) (string, bool) {
	displays := c.catalog.TitlesWithSources("", query)
	if len(displays) == 0 {
		return "", false
	}

	idx, err := fuzzyfinder.Find(displays, func(i int) string { return displays[i] })
	if err != nil {
		return "", false
	}
	display := displays[idx]
	if cut := strings.LastIndex(display, " ["); cut > 0 {
		return display[:cut], true
	}
	return display, true
}

func confirm(title string, def bool) bool {
	ok := def
	if err := huh.NewConfirm().Title(title).Value(&ok).Run(); err != nil {
		return false
	}
	return ok
}

func mediaLabel(m models.AniListMedia) string {
	label := m.Title.Display()
	if m.SeasonYear > 0 {
		label += fmt.Sprintf(" (%d)", m.SeasonYear)
	}
	if m.Episodes > 0 {
		label += fmt.Sprintf(" · %d eps", m.Episodes)
	}
	if m.AverageScore > 0 {
		label += fmt.Sprintf(" · %d%%", m.AverageScore)
	}
	return label
}

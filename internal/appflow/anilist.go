package appflow

import (
	"context"
	"fmt"
	"time"

	"github.com/alvarorichard/aniplay/internal/anilist"
	"github.com/alvarorichard/aniplay/internal/models"
	"github.com/alvarorichard/aniplay/internal/util"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/ktr0731/go-fuzzyfinder"
)

// RunAniListAuth walks the OAuth implicit-grant flow in the browser and
// persists the validated token.
func (c *Controller) RunAniListAuth(ctx context.Context) error {
	auth := anilist.NewAuthenticator(c.cfg.AniList.ClientID)
	util.Title("Opening your browser for AniList login...")
	util.Infof("If nothing opens, visit: %s", auth.LoginURL())

	token, err := auth.Run(ctx)
	if err != nil {
		return err
	}

	viewer := c.anilist.SetToken(ctx, token)
	if viewer == nil {
		util.SoftWarn("AniList rejected the token, please try again")
		return nil
	}
	util.Success(fmt.Sprintf("Logged in as %s (%d anime watched)", viewer.Name, viewer.Statistics.Anime.Count))
	return nil
}

// RunAniListMenu shows the AniList sub-menu: account status, trending,
// the user's lists and recent activity.
func (c *Controller) RunAniListMenu(ctx context.Context) error {
	for {
		label := "Log in"
		if c.anilist.Authenticated() {
			label = "Account status"
		}

		var choice string
		form := huh.NewSelect[string]().
			Title("AniList").
			Options(
				huh.NewOption(label, "account"),
				huh.NewOption("Trending this season", "trending"),
				huh.NewOption("My lists", "lists"),
				huh.NewOption("Recent activity", "activity"),
				huh.NewOption("Back", "back"),
			).
			Value(&choice)
		if err := form.Run(); err != nil {
			return nil
		}

		switch choice {
		case "account":
			if err := c.showAccount(ctx); err != nil {
				return err
			}
		case "trending":
			c.browseTrending(ctx)
		case "lists":
			c.browseUserList(ctx)
		case "activity":
			c.showRecentActivity(ctx)
		default:
			return nil
		}
	}
}

func (c *Controller) showAccount(ctx context.Context) error {
	if !c.anilist.Authenticated() {
		return c.RunAniListAuth(ctx)
	}
	viewer := c.anilist.Viewer(ctx)
	if viewer == nil {
		util.SoftWarn("Token looks expired. Run 'aniplay anilist auth' to log in again.")
		return nil
	}
	util.Infof("Logged in as %s: %d anime, %d episodes watched",
		viewer.Name, viewer.Statistics.Anime.Count, viewer.Statistics.Anime.EpisodesWatched)
	return nil
}

// currentSeason maps the month to an AniList season constant.
func currentSeason(now time.Time) (string, int) {
	switch {
	case now.Month() <= time.March:
		return "WINTER", now.Year()
	case now.Month() <= time.June:
		return "SPRING", now.Year()
	case now.Month() <= time.September:
		return "SUMMER", now.Year()
	default:
		return "FALL", now.Year()
	}
}

func (c *Controller) browseTrending(ctx context.Context) {
	season, year := currentSeason(time.Now())
	var media []models.AniListMedia
	_ = spinner.New().
		Title(fmt.Sprintf("Loading trending anime for %s %d...", season, year)).
		Action(func() { media = c.anilist.Trending(ctx, 1, 20, year, season) }).
		Run()
	if len(media) == 0 {
		util.SoftWarn("AniList returned no trending anime")
		return
	}

	idx, err := fuzzyfinder.Find(media, func(i int) string { return mediaLabel(media[i]) })
	if err != nil {
		return
	}
	if err := c.searchForMedia(ctx, media[idx]); err != nil {
		util.SoftWarn(util.ErrorHandler(err))
	}
}

func (c *Controller) browseUserList(ctx context.Context) {
	if !c.anilist.Authenticated() {
		util.SoftWarn("Log in first to browse your lists")
		return
	}

	var status models.MediaListStatus
	form := huh.NewSelect[models.MediaListStatus]().
		Title("Which list?").
		Options(
			huh.NewOption("Watching", models.StatusCurrent),
			huh.NewOption("Planning", models.StatusPlanning),
			huh.NewOption("Completed", models.StatusCompleted),
			huh.NewOption("Paused", models.StatusPaused),
			huh.NewOption("Dropped", models.StatusDropped),
			huh.NewOption("Rewatching", models.StatusRepeating),
		).
		Value(&status)
	if err := form.Run(); err != nil {
		return
	}

	var entries []models.AniListEntry
	_ = spinner.New().
		Title("Loading your list...").
		Action(func() { entries = c.anilist.UserList(ctx, status) }).
		Run()
	if len(entries) == 0 {
		util.SoftWarn("That list is empty")
		return
	}

	idx, err := fuzzyfinder.Find(entries, func(i int) string {
		e := entries[i]
		label := mediaLabel(e.Media)
		if e.Progress > 0 {
			label += fmt.Sprintf(" [at episode %d]", e.Progress)
		}
		return label
	})
	if err != nil {
		return
	}
	if err := c.searchForMedia(ctx, entries[idx].Media); err != nil {
		util.SoftWarn(util.ErrorHandler(err))
	}
}

func (c *Controller) showRecentActivity(ctx context.Context) {
	var acts []models.AniListActivity
	_ = spinner.New().
		Title("Loading recent activity...").
		Action(func() { acts = c.anilist.RecentActivities(ctx, 15) }).
		Run()
	if len(acts) == 0 {
		util.SoftWarn("No recent activity (are you logged in?)")
		return
	}

	for _, act := range acts {
		when := time.Unix(int64(act.CreatedAt), 0).Format("Jan 02 15:04")
		line := fmt.Sprintf("%s  %s %s", when, act.Status, act.Media.Title.Display())
		if act.Progress != "" {
			line += " (" + act.Progress + ")"
		}
		fmt.Println(line)
	}
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alvarorichard/aniplay/internal/anilist"
	"github.com/alvarorichard/aniplay/internal/appflow"
	"github.com/alvarorichard/aniplay/internal/cache"
	"github.com/alvarorichard/aniplay/internal/catalog"
	"github.com/alvarorichard/aniplay/internal/config"
	"github.com/alvarorichard/aniplay/internal/history"
	"github.com/alvarorichard/aniplay/internal/playback"
	"github.com/alvarorichard/aniplay/internal/plugin"
	"github.com/alvarorichard/aniplay/internal/resolver"
	"github.com/alvarorichard/aniplay/internal/util"
	"github.com/alvarorichard/aniplay/internal/version"
)

func main() {
	if version.HasVersionArg() {
		version.ShowVersion()
		return
	}

	var (
		query            string
		continueWatching bool
		debug            bool
	)
	flag.StringVar(&query, "q", "", "search query")
	flag.StringVar(&query, "query", "", "search query")
	flag.BoolVar(&continueWatching, "c", false, "open the continue-watching selector")
	flag.BoolVar(&continueWatching, "continue_watching", false, "open the continue-watching selector")
	flag.BoolVar(&debug, "d", false, "debug mode")
	flag.BoolVar(&debug, "debug", false, "debug mode")
	flag.Usage = util.Helper
	flag.Parse()

	util.SetDebugMode(debug)
	util.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		util.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	stateDir, err := config.StateDir()
	if err != nil {
		util.Errorf("Cannot create state directory: %v", err)
		os.Exit(1)
	}

	cacheTTL := time.Duration(cfg.Cache.DurationHours) * time.Hour
	store, err := cache.Open(filepath.Join(stateDir, "cache"))
	if err != nil {
		util.Errorf("Cannot open cache: %v", err)
		os.Exit(1)
	}
	store.MigrateLegacy(filepath.Join(stateDir, "scraper_cache.json"), cacheTTL)

	prefs, err := plugin.LoadPreferences(filepath.Join(stateDir, "plugin_preferences.json"))
	if err != nil {
		util.Errorf("Cannot read plugin preferences: %v", err)
		os.Exit(1)
	}

	registry := plugin.NewRegistry()
	factories := plugin.Builtins()
	if debug {
		factories = plugin.DebugBuiltins()
	}
	registry.Load(factories, prefs.DisabledSet(), cfg.Plugins.Languages)
	if len(registry.ActiveSources()) == 0 {
		util.Errorf("No plugins active, check plugin_preferences.json and plugins.languages")
		os.Exit(1)
	}

	client := anilist.NewClient(filepath.Join(stateDir, "anilist_token.json"))
	res := resolver.New(client, store, cfg.Search.FuzzyThreshold, filepath.Join(stateDir, "anilist_mappings.json"))
	cat := catalog.New(registry, store, res, cacheTTL, cfg.Search.ProgressiveSearchMinWords)
	hist := history.New(filepath.Join(stateDir, "history.json"))
	orch := playback.New(registry, cat, hist, client, cfg.Playback.PreferredSource)
	ctrl := appflow.New(cfg, registry, cat, res, client, hist, orch)

	if err := dispatch(ctx, ctrl, query, continueWatching); err != nil {
		util.Errorf("%v", err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, ctrl *appflow.Controller, query string, continueWatching bool) error {
	args := flag.Args()
	if len(args) > 0 && args[0] == "anilist" {
		if len(args) > 1 && args[1] == "auth" {
			return ctrl.RunAniListAuth(ctx)
		}
		return ctrl.RunAniListMenu(ctx)
	}

	switch {
	case query != "":
		return ctrl.RunSearch(ctx, query)
	case continueWatching:
		return ctrl.RunContinueWatching(ctx)
	default:
		return ctrl.Run(ctx)
	}
}

// Package plugin defines the scraper plugin contract and the registry that
// loads and filters the built-in plugins.
package plugin

import (
	"context"

	"github.com/alvarorichard/aniplay/internal/models"
)

// Sink is the catalog surface plugins feed their results into. Both methods
// are safe for concurrent use from multiple plugin goroutines.
type Sink interface {
	AddAnime(title, url, source string, params map[string]string)
	AddEpisodeList(animeTitle string, titles, urls []string, source string) error
}

// Plugin is one scraper source. Implementations own their network access,
// must not mutate shared state beyond the sink callbacks, and must return
// promptly once ctx is cancelled.
type Plugin interface {
	// Name is the unique lowercase identifier of the source.
	Name() string

	// Languages lists the content languages this source serves, e.g. "pt-BR".
	Languages() []string

	// SearchAnime discovers candidates for query, reporting each hit through
	// sink.AddAnime.
	SearchAnime(ctx context.Context, query string, sink Sink) error

	// SearchEpisodes produces the ordered episode list for a previously
	// added anime, reporting it through sink.AddEpisodeList.
	SearchEpisodes(ctx context.Context, animeTitle, url string, params map[string]string, sink Sink) error

	// ExtractStream resolves an episode page into a playable stream. It is
	// invoked in racing mode and must tolerate cancellation.
	ExtractStream(ctx context.Context, episodeURL string) (*models.VideoStream, error)
}

package models

// AniListTitle contains an anime title in AniList's three spellings.
type AniListTitle struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

// Display returns the romaji title, falling back to english then native.
func (t AniListTitle) Display() string {
	switch {
	case t.Romaji != "":
		return t.Romaji
	case t.English != "":
		return t.English
	default:
		return t.Native
	}
}

// CoverImages contains anime cover image URLs.
type CoverImages struct {
	Large  string `json:"large"`
	Medium string `json:"medium"`
}

// AniListMedia is an anime record as returned by AniList.
type AniListMedia struct {
	ID           int          `json:"id"`
	IDMal        int          `json:"idMal,omitempty"`
	Title        AniListTitle `json:"title"`
	Description  string       `json:"description,omitempty"`
	Genres       []string     `json:"genres,omitempty"`
	AverageScore int          `json:"averageScore,omitempty"`
	Episodes     int          `json:"episodes,omitempty"`
	Status       string       `json:"status,omitempty"`
	Season       string       `json:"season,omitempty"`
	SeasonYear   int          `json:"seasonYear,omitempty"`
	CoverImage   CoverImages  `json:"coverImage,omitempty"`
	Synonyms     []string     `json:"synonyms,omitempty"`
}

// MediaListStatus is the watch status of a list entry on AniList.
type MediaListStatus string

const (
	StatusCurrent   MediaListStatus = "CURRENT"
	StatusPlanning  MediaListStatus = "PLANNING"
	StatusCompleted MediaListStatus = "COMPLETED"
	StatusPaused    MediaListStatus = "PAUSED"
	StatusDropped   MediaListStatus = "DROPPED"
	StatusRepeating MediaListStatus = "REPEATING"
)

// AniListEntry is the viewer's list entry for one anime.
type AniListEntry struct {
	ID       int             `json:"id"`
	Status   MediaListStatus `json:"status"`
	Progress int             `json:"progress"`
	Media    AniListMedia    `json:"media"`
}

// AniListViewer is the authenticated AniList user.
type AniListViewer struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Statistics struct {
		Anime struct {
			Count           int `json:"count"`
			EpisodesWatched int `json:"episodesWatched"`
		} `json:"anime"`
	} `json:"statistics"`
}

// AniListActivity is one entry of the viewer's recent activity feed.
type AniListActivity struct {
	ID        int    `json:"id"`
	Status    string `json:"status"`
	Progress  string `json:"progress"`
	CreatedAt int    `json:"createdAt"`
	Media     struct {
		Title AniListTitle `json:"title"`
	} `json:"media"`
}

// Package anilist is the typed GraphQL client for the AniList API. The
// client never surfaces errors across its boundary: unauthenticated or
// failed calls return nil, empty slices or false, and the failure is logged.
package anilist

import (
	"context"
	"time"

	"github.com/alvarorichard/aniplay/internal/models"
	"github.com/alvarorichard/aniplay/internal/util"
	"github.com/machinebox/graphql"
)

const graphQLEndpoint = "https://graphql.anilist.co"

const requestTimeout = 10 * time.Second

// Client wraps the AniList GraphQL endpoint with the operations the core
// needs. The token is read lazily at construction.
type Client struct {
	gql       *graphql.Client
	tokenPath string
	token     Token
}

// NewClient builds a client around the token persisted at tokenPath.
func NewClient(tokenPath string) *Client {
	return &Client{
		gql:       graphql.NewClient(graphQLEndpoint, graphql.WithHTTPClient(util.GetSharedClient())),
		tokenPath: tokenPath,
		token:     LoadToken(tokenPath),
	}
}

// Authenticated reports whether a token is present. It says nothing about
// the token still being accepted by AniList; Viewer answers that.
func (c *Client) Authenticated() bool {
	return c.token.Valid()
}

// UserID returns the persisted AniList user id, 0 when unauthenticated.
func (c *Client) UserID() int {
	return c.token.UserID
}

// SetToken validates token via Viewer and, on success, persists it
// atomically. Returns the viewer, or nil when the token is rejected.
func (c *Client) SetToken(ctx context.Context, accessToken string) *models.AniListViewer {
	c.token = Token{AccessToken: accessToken}
	viewer := c.Viewer(ctx)
	if viewer == nil {
		c.token = Token{}
		return nil
	}

	c.token.UserID = viewer.ID
	if err := c.token.Save(c.tokenPath); err != nil {
		util.Warn("Failed to persist AniList token", "error", err)
	}
	return viewer
}

// run executes one GraphQL operation, attaching the bearer token when
// present. Failures are logged and reported as false.
func (c *Client) run(ctx context.Context, req *graphql.Request, result interface{}) bool {
	if c.token.Valid() {
		req.Header.Set("Authorization", "Bearer "+c.token.AccessToken)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := c.gql.Run(ctx, req, result); err != nil {
		util.Debug("AniList request failed", "error", err)
		return false
	}
	return true
}

// Viewer fetches the authenticated user, or nil on auth failure.
func (c *Client) Viewer(ctx context.Context) *models.AniListViewer {
	if !c.token.Valid() {
		return nil
	}

	req := graphql.NewRequest(`
		query {
			Viewer {
				id
				name
				statistics {
					anime {
						count
						episodesWatched
					}
				}
			}
		}
	`)

	var response struct {
		Viewer models.AniListViewer `json:"Viewer"`
	}
	if !c.run(ctx, req, &response) || response.Viewer.ID == 0 {
		return nil
	}
	return &response.Viewer
}

// Trending returns the trending anime page, optionally scoped to a season.
func (c *Client) Trending(ctx context.Context, page, perPage int, year int, season string) []models.AniListMedia {
	req := graphql.NewRequest(`
		query ($page: Int, $perPage: Int, $year: Int, $season: MediaSeason) {
			Page(page: $page, perPage: $perPage) {
				media(type: ANIME, sort: TRENDING_DESC, seasonYear: $year, season: $season) {
					id
					title { romaji english native }
					episodes
					coverImage { large medium }
					averageScore
					seasonYear
					season
				}
			}
		}
	`)
	req.Var("page", page)
	req.Var("perPage", perPage)
	if year > 0 {
		req.Var("year", year)
	}
	if season != "" {
		req.Var("season", season)
	}

	var response struct {
		Page struct {
			Media []models.AniListMedia `json:"media"`
		} `json:"Page"`
	}
	if !c.run(ctx, req, &response) {
		return nil
	}
	return response.Page.Media
}

// UserList returns the viewer's list entries with the given status, newest
// first.
func (c *Client) UserList(ctx context.Context, status models.MediaListStatus) []models.AniListEntry {
	if !c.token.Valid() {
		return nil
	}

	req := graphql.NewRequest(`
		query ($userId: Int, $status: MediaListStatus) {
			Page(page: 1, perPage: 50) {
				mediaList(userId: $userId, type: ANIME, status: $status, sort: ADDED_TIME_DESC) {
					id
					status
					progress
					media {
						id
						title { romaji english native }
						episodes
						coverImage { large medium }
						averageScore
					}
				}
			}
		}
	`)
	req.Var("userId", c.token.UserID)
	req.Var("status", string(status))

	var response struct {
		Page struct {
			MediaList []models.AniListEntry `json:"mediaList"`
		} `json:"Page"`
	}
	if !c.run(ctx, req, &response) {
		return nil
	}
	return response.Page.MediaList
}

// Search returns up to ten candidate anime for query.
func (c *Client) Search(ctx context.Context, query string) []models.AniListMedia {
	req := graphql.NewRequest(`
		query ($search: String) {
			Page(page: 1, perPage: 10) {
				media(type: ANIME, search: $search) {
					id
					title { romaji english native }
					episodes
					synonyms
					coverImage { large medium }
					averageScore
				}
			}
		}
	`)
	req.Var("search", query)

	var response struct {
		Page struct {
			Media []models.AniListMedia `json:"media"`
		} `json:"Page"`
	}
	if !c.run(ctx, req, &response) {
		return nil
	}
	return response.Page.Media
}

// Media returns the full record for one anime, or nil.
func (c *Client) Media(ctx context.Context, id int) *models.AniListMedia {
	req := graphql.NewRequest(`
		query ($id: Int) {
			Media(id: $id, type: ANIME) {
				id
				idMal
				title { romaji english native }
				description
				genres
				averageScore
				episodes
				status
				season
				seasonYear
				coverImage { large medium }
				synonyms
			}
		}
	`)
	req.Var("id", id)

	var response struct {
		Media models.AniListMedia `json:"Media"`
	}
	if !c.run(ctx, req, &response) || response.Media.ID == 0 {
		return nil
	}
	return &response.Media
}

// ListEntry returns the viewer's list entry for mediaID, or nil when the
// anime is not on any list.
func (c *Client) ListEntry(ctx context.Context, mediaID int) *models.AniListEntry {
	if !c.token.Valid() {
		return nil
	}

	req := graphql.NewRequest(`
		query ($userId: Int, $mediaId: Int) {
			MediaList(userId: $userId, mediaId: $mediaId) {
				id
				status
				progress
				media {
					id
					title { romaji english native }
					episodes
				}
			}
		}
	`)
	req.Var("userId", c.token.UserID)
	req.Var("mediaId", mediaID)

	var response struct {
		MediaList *models.AniListEntry `json:"MediaList"`
	}
	if !c.run(ctx, req, &response) {
		return nil
	}
	return response.MediaList
}

// saveListEntry is the shared mutation behind the progress and status
// operations. Status is optional; AniList accepts both in one call.
func (c *Client) saveListEntry(ctx context.Context, mediaID int, progress int, status models.MediaListStatus) bool {
	if !c.token.Valid() {
		return false
	}

	req := graphql.NewRequest(`
		mutation ($mediaId: Int, $progress: Int, $status: MediaListStatus) {
			SaveMediaListEntry(mediaId: $mediaId, progress: $progress, status: $status) {
				id
				progress
				status
			}
		}
	`)
	req.Var("mediaId", mediaID)
	if progress >= 0 {
		req.Var("progress", progress)
	}
	if status != "" {
		req.Var("status", string(status))
	}

	var response struct {
		SaveMediaListEntry struct {
			ID int `json:"id"`
		} `json:"SaveMediaListEntry"`
	}
	return c.run(ctx, req, &response) && response.SaveMediaListEntry.ID != 0
}

// UpdateProgress records the watched episode number on the viewer's list.
func (c *Client) UpdateProgress(ctx context.Context, mediaID, episode int) bool {
	return c.saveListEntry(ctx, mediaID, episode, "")
}

// SetStatus moves the list entry to status without touching progress.
func (c *Client) SetStatus(ctx context.Context, mediaID int, status models.MediaListStatus) bool {
	return c.saveListEntry(ctx, mediaID, -1, status)
}

// AddToList puts the anime on the viewer's list as CURRENT.
func (c *Client) AddToList(ctx context.Context, mediaID int) bool {
	return c.saveListEntry(ctx, mediaID, -1, models.StatusCurrent)
}

// Sequels returns the SEQUEL relations of the given anime.
func (c *Client) Sequels(ctx context.Context, id int) []models.AniListMedia {
	req := graphql.NewRequest(`
		query ($id: Int) {
			Media(id: $id, type: ANIME) {
				relations {
					edges {
						relationType
						node {
							id
							title { romaji english native }
							episodes
							type
						}
					}
				}
			}
		}
	`)
	req.Var("id", id)

	var response struct {
		Media struct {
			Relations struct {
				Edges []struct {
					RelationType string `json:"relationType"`
					Node         struct {
						models.AniListMedia
						Type string `json:"type"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"relations"`
		} `json:"Media"`
	}
	if !c.run(ctx, req, &response) {
		return nil
	}

	var sequels []models.AniListMedia
	for _, edge := range response.Media.Relations.Edges {
		if edge.RelationType == "SEQUEL" && edge.Node.Type == "ANIME" {
			sequels = append(sequels, edge.Node.AniListMedia)
		}
	}
	return sequels
}

// RecentActivities returns the viewer's latest activity records.
func (c *Client) RecentActivities(ctx context.Context, limit int) []models.AniListActivity {
	if !c.token.Valid() {
		return nil
	}

	req := graphql.NewRequest(`
		query ($userId: Int, $perPage: Int) {
			Page(page: 1, perPage: $perPage) {
				activities(userId: $userId, type: ANIME_LIST, sort: ID_DESC) {
					... on ListActivity {
						id
						status
						progress
						createdAt
						media {
							title { romaji english native }
						}
					}
				}
			}
		}
	`)
	req.Var("userId", c.token.UserID)
	req.Var("perPage", limit)

	var response struct {
		Page struct {
			Activities []models.AniListActivity `json:"activities"`
		} `json:"Page"`
	}
	if !c.run(ctx, req, &response) {
		return nil
	}
	return response.Page.Activities
}

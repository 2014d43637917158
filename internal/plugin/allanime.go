package plugin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/alvarorichard/aniplay/internal/models"
	"github.com/alvarorichard/aniplay/internal/util"
	"github.com/machinebox/graphql"
	"github.com/pkg/errors"
)

const (
	allAnimeAPI       = "https://api.allanime.day/api"
	allAnimeBase      = "allanime.day"
	allAnimeReferer   = "https://allanime.to"
	allAnimeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// AllAnime talks to the AllAnime GraphQL API, an English-subbed source.
type AllAnime struct {
	gql         *graphql.Client
	client      *http.Client
	translation string
}

// NewAllAnime builds the allanime plugin.
func NewAllAnime() (Plugin, error) {
	httpClient := util.GetFastClient()
	return &AllAnime{
		gql:         graphql.NewClient(allAnimeAPI, graphql.WithHTTPClient(httpClient)),
		client:      httpClient,
		translation: "sub",
	}, nil
}

func (a *AllAnime) Name() string { return "allanime" }

func (a *AllAnime) Languages() []string { return []string{"en"} }

type allAnimeShow struct {
	ID                      string `json:"_id"`
	Name                    string `json:"name"`
	EnglishName             string `json:"englishName"`
	AvailableEpisodesDetail struct {
		Sub []string `json:"sub"`
		Dub []string `json:"dub"`
	} `json:"availableEpisodesDetail"`
}

type showSearchResponse struct {
	Shows struct {
		Edges []allAnimeShow `json:"edges"`
	} `json:"shows"`
}

// SearchAnime queries the shows search and feeds every edge into the sink.
// The show id rides along in the candidate params; the URL is the public
// show page so the catalog invariant (http scheme) holds.
func (a *AllAnime) SearchAnime(ctx context.Context, query string, sink Sink) error {
	req := graphql.NewRequest(`
		query ($search: SearchInput, $limit: Int, $page: Int, $translationType: VaildTranslationTypeEnumType, $countryOrigin: VaildCountryOriginEnumType) {
			shows(
				search: $search
				limit: $limit
				page: $page
				translationType: $translationType
				countryOrigin: $countryOrigin
			) {
				edges {
					_id
					name
					englishName
					availableEpisodesDetail
				}
			}
		}
	`)
	req.Var("search", map[string]interface{}{
		"allowAdult":   false,
		"allowUnknown": false,
		"query":        query,
	})
	req.Var("limit", 20)
	req.Var("page", 1)
	req.Var("translationType", a.translation)
	req.Var("countryOrigin", "ALL")
	req.Header.Set("User-Agent", allAnimeUserAgent)
	req.Header.Set("Referer", allAnimeReferer)

	var response showSearchResponse
	if err := a.gql.Run(ctx, req, &response); err != nil {
		return errors.Wrap(err, "allanime search failed")
	}

	for _, show := range response.Shows.Edges {
		name := show.Name
		if name == "" {
			name = show.EnglishName
		}
		if name == "" || show.ID == "" {
			continue
		}
		sink.AddAnime(name, fmt.Sprintf("%s/anime/%s", allAnimeReferer, show.ID), a.Name(), map[string]string{
			"id": show.ID,
		})
	}
	return nil
}

type showEpisodesResponse struct {
	Show allAnimeShow `json:"show"`
}

// SearchEpisodes lists the available sub episodes for a show. AllAnime
// returns episode strings newest first; the catalog wants ascending order.
func (a *AllAnime) SearchEpisodes(ctx context.Context, animeTitle, pageURL string, params map[string]string, sink Sink) error {
	showID := params["id"]
	if showID == "" {
		return errors.New("allanime candidate missing show id")
	}

	req := graphql.NewRequest(`
		query ($showId: String!) {
			show(_id: $showId) {
				_id
				availableEpisodesDetail
			}
		}
	`)
	req.Var("showId", showID)
	req.Header.Set("User-Agent", allAnimeUserAgent)
	req.Header.Set("Referer", allAnimeReferer)

	var response showEpisodesResponse
	if err := a.gql.Run(ctx, req, &response); err != nil {
		return errors.Wrap(err, "allanime episode listing failed")
	}

	episodes := response.Show.AvailableEpisodesDetail.Sub
	if len(episodes) == 0 {
		return errors.New("no sub episodes available")
	}

	sort.Slice(episodes, func(i, j int) bool {
		ni, erri := strconv.ParseFloat(episodes[i], 64)
		nj, errj := strconv.ParseFloat(episodes[j], 64)
		if erri != nil || errj != nil {
			return episodes[i] < episodes[j]
		}
		return ni < nj
	})

	titles := make([]string, 0, len(episodes))
	urls := make([]string, 0, len(episodes))
	for _, ep := range episodes {
		titles = append(titles, "Episode "+ep)
		urls = append(urls, fmt.Sprintf("%s/anime/%s/episodes/%s/%s", allAnimeReferer, showID, a.translation, ep))
	}
	return sink.AddEpisodeList(animeTitle, titles, urls, a.Name())
}

type episodeSourcesResponse struct {
	Episode struct {
		SourceUrls []struct {
			SourceURL  string  `json:"sourceUrl"`
			SourceName string  `json:"sourceName"`
			Priority   float64 `json:"priority"`
		} `json:"sourceUrls"`
	} `json:"episode"`
}

var allAnimeEpisodeURL = regexp.MustCompile(`/anime/([^/]+)/episodes/[^/]+/([^/?#]+)$`)

// ExtractStream resolves an episode URL of the form produced by
// SearchEpisodes into a direct video URL, preferring the highest-priority
// source and decoding AllAnime's obfuscated provider ids when needed.
func (a *AllAnime) ExtractStream(ctx context.Context, episodeURL string) (*models.VideoStream, error) {
	match := allAnimeEpisodeURL.FindStringSubmatch(episodeURL)
	if match == nil {
		return nil, errors.Errorf("unrecognized allanime episode URL: %s", episodeURL)
	}
	showID, epNo := match[1], match[2]

	req := graphql.NewRequest(`
		query ($showId: String!, $translationType: VaildTranslationTypeEnumType!, $episodeString: String!) {
			episode(
				showId: $showId
				translationType: $translationType
				episodeString: $episodeString
			) {
				episodeString
				sourceUrls
			}
		}
	`)
	req.Var("showId", showID)
	req.Var("translationType", a.translation)
	req.Var("episodeString", epNo)
	req.Header.Set("User-Agent", allAnimeUserAgent)
	req.Header.Set("Referer", allAnimeReferer)

	var response episodeSourcesResponse
	if err := a.gql.Run(ctx, req, &response); err != nil {
		return nil, errors.Wrap(err, "allanime episode sources failed")
	}

	sources := response.Episode.SourceUrls
	sort.Slice(sources, func(i, j int) bool { return sources[i].Priority > sources[j].Priority })

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch {
		case strings.HasPrefix(src.SourceURL, "http"):
			return &models.VideoStream{
				URL:     src.SourceURL,
				Headers: map[string]string{"Referer": allAnimeReferer},
			}, nil
		case strings.HasPrefix(src.SourceURL, "--"):
			stream, err := a.resolveProvider(ctx, strings.TrimPrefix(src.SourceURL, "--"))
			if err != nil {
				util.Debug("allanime provider failed", "source", src.SourceName, "error", err)
				continue
			}
			return stream, nil
		}
	}
	return nil, errors.New("no playable allanime source")
}

var providerLink = regexp.MustCompile(`"link":"([^"]+)"`)

// resolveProvider decodes an obfuscated provider id, fetches the provider
// endpoint and picks the first advertised link.
func (a *AllAnime) resolveProvider(ctx context.Context, encoded string) (*models.VideoStream, error) {
	providerPath := decodeProviderID(encoded)
	providerURL := fmt.Sprintf("https://%s%s", allAnimeBase, providerPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, providerURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", allAnimeUserAgent)
	req.Header.Set("Referer", allAnimeReferer)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("provider returned: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	match := providerLink.FindSubmatch(body)
	if match == nil {
		return nil, errors.New("no link in provider response")
	}
	link := strings.ReplaceAll(string(match[1]), `\/`, "/")
	return &models.VideoStream{
		URL:     link,
		Headers: map[string]string{"Referer": allAnimeReferer},
	}, nil
}

// providerHexTable maps AllAnime's two-character obfuscation codes back to
// plain characters.
var providerHexTable = map[string]string{
	"01": "9", "08": "0", "05": "=", "0a": "2", "0b": "3", "0c": "4",
	"07": "?", "00": "8", "5c": "d", "0f": "7", "5e": "f", "17": "/",
	"54": "l", "09": "1", "48": "p", "4f": "w", "0e": "6", "5b": "c",
	"5d": "e", "0d": "5", "53": "k", "1e": "&", "5a": "b", "59": "a",
	"4a": "r", "4c": "t", "4e": "v", "57": "o", "51": "i",
}

func decodeProviderID(encoded string) string {
	var decoded strings.Builder
	for i := 0; i+2 <= len(encoded); i += 2 {
		pair := encoded[i : i+2]
		if char, ok := providerHexTable[pair]; ok {
			decoded.WriteString(char)
		} else {
			decoded.WriteString(pair)
		}
	}
	return strings.ReplaceAll(decoded.String(), "/clock", "/clock.json")
}

package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/alvarorichard/aniplay/internal/models"
	"github.com/alvarorichard/aniplay/internal/util"
	"github.com/pkg/errors"
)

const (
	animefireBase      = "https://animefire.plus"
	animefireUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
)

// Animefire scrapes animefire.plus, a Brazilian Portuguese source.
type Animefire struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

// NewAnimefire builds the animefire plugin.
func NewAnimefire() (Plugin, error) {
	return &Animefire{
		client:    util.GetFastClient(),
		baseURL:   animefireBase,
		userAgent: animefireUserAgent,
	}, nil
}

func (a *Animefire) Name() string { return "animefire" }

func (a *Animefire) Languages() []string { return []string{"pt-BR"} }

// SearchAnime scrapes the search results page and feeds every hit into the
// catalog sink.
func (a *Animefire) SearchAnime(ctx context.Context, query string, sink Sink) error {
	slug := strings.ReplaceAll(strings.ToLower(query), " ", "-")
	searchURL := fmt.Sprintf("%s/pesquisar/%s", a.baseURL, url.PathEscape(slug))

	doc, err := a.fetchDocument(ctx, searchURL)
	if err != nil {
		return errors.Wrap(err, "animefire search failed")
	}

	doc.Find(".row.ml-1.mr-1 a").Each(func(i int, s *goquery.Selection) {
		urlPath, exists := s.Attr("href")
		if !exists {
			return
		}
		name := strings.TrimSpace(s.Text())
		if name == "" {
			return
		}
		sink.AddAnime(name, a.resolveURL(urlPath), a.Name(), nil)
	})

	// Card layout fallback shown on some result pages.
	doc.Find(".card_ani").Each(func(i int, s *goquery.Selection) {
		titleElem := s.Find(".ani_name a")
		name := strings.TrimSpace(titleElem.Text())
		link, exists := titleElem.Attr("href")
		if !exists || name == "" {
			return
		}
		sink.AddAnime(name, a.resolveURL(link), a.Name(), nil)
	})

	return nil
}

// SearchEpisodes scrapes the anime detail page episode listing. Animefire
// lists episodes in ascending order already.
func (a *Animefire) SearchEpisodes(ctx context.Context, animeTitle, pageURL string, params map[string]string, sink Sink) error {
	doc, err := a.fetchDocument(ctx, pageURL)
	if err != nil {
		return errors.Wrap(err, "animefire episode listing failed")
	}

	var titles, urls []string
	doc.Find("a.lEp.epT.divNumEp.smallbox.px-2.mx-1.text-left.d-flex").Each(func(i int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}
		titles = append(titles, strings.TrimSpace(s.Text()))
		urls = append(urls, a.resolveURL(href))
	})

	if len(titles) == 0 {
		return errors.New("no episodes found on page")
	}
	return sink.AddEpisodeList(animeTitle, titles, urls, a.Name())
}

// animefireVideoResponse is the JSON the player endpoint answers with.
type animefireVideoResponse struct {
	Data []struct {
		Src   string `json:"src"`
		Label string `json:"label"`
	} `json:"data"`
}

// ExtractStream resolves the episode page into a direct stream URL: the page
// embeds a data-video-src endpoint which returns a quality-labelled list.
func (a *Animefire) ExtractStream(ctx context.Context, episodeURL string) (*models.VideoStream, error) {
	doc, err := a.fetchDocument(ctx, episodeURL)
	if err != nil {
		return nil, errors.Wrap(err, "animefire episode page fetch failed")
	}

	videoSrc, exists := doc.Find("video").Attr("data-video-src")
	if !exists || videoSrc == "" {
		videoSrc, exists = doc.Find("div").Attr("data-video-src")
		if !exists || videoSrc == "" {
			return nil, errors.New("no data-video-src element on episode page")
		}
	}

	resp, err := a.get(ctx, videoSrc)
	if err != nil {
		return nil, errors.Wrap(err, "animefire video endpoint fetch failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("video endpoint returned: %s", resp.Status)
	}

	var video animefireVideoResponse
	if err := json.NewDecoder(resp.Body).Decode(&video); err != nil {
		return nil, errors.Wrap(err, "failed to decode video response")
	}
	if len(video.Data) == 0 {
		return nil, errors.New("no video data found")
	}

	// Entries are ordered lowest quality first; take the last one.
	best := video.Data[len(video.Data)-1]
	util.Debug("animefire stream resolved", "label", best.Label)
	return &models.VideoStream{URL: best.Src}, nil
}

func (a *Animefire) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	resp, err := a.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusForbidden {
			return nil, errors.New("access restricted: VPN may be required")
		}
		return nil, errors.Errorf("server returned: %s", resp.Status)
	}

	return goquery.NewDocumentFromReader(resp.Body)
}

func (a *Animefire) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", a.userAgent)
	return a.client.Do(req)
}

func (a *Animefire) resolveURL(ref string) string {
	if strings.HasPrefix(ref, "http") {
		return ref
	}
	if strings.HasPrefix(ref, "/") {
		return a.baseURL + ref
	}
	return a.baseURL + "/" + ref
}

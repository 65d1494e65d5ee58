package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/farsilandtv/farsihub/internal/models"
)

// dooplaySite holds DooPlay theme parsing shared by the sources built on it.
// The sites differ in domains and URL layout, not in markup.
type dooplaySite struct {
	fetcher *Fetcher
	source  models.SourceID
	baseURL string
}

var (
	yearPattern      = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	numerandoPattern = regexp.MustCompile(`(\d+)\s*-\s*(\d+(?:\.\d+)?)`)
	qualityPattern   = regexp.MustCompile(`(?i)\b(480|720|1080)p?\b`)
)

func (d *dooplaySite) scrapeMovie(ctx context.Context, pageURL string) (*Item, error) {
	doc, err := d.fetcher.Document(ctx, d.source, pageURL)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find(".sheader .data h1").First().Text())
	if title == "" {
		return nil, &NoDataError{Message: fmt.Sprintf("no title found at %s", pageURL)}
	}

	now := time.Now().Unix()
	names, terms := genreTerms(doc)
	movie := &models.Movie{
		ID:          StableID(SlugFromURL(pageURL)),
		Title:       title,
		SourceURL:   pageURL,
		PosterURL:   posterURL(doc),
		Description: strings.TrimSpace(doc.Find(".wp-content p").First().Text()),
		Genres:      models.JoinGenres(names),
		Year:        extractYear(doc),
		Rating:      extractRating(doc),
		DateAdded:   now,
		LastUpdated: now,
	}
	return &Item{Type: models.ContentTypeMovie, Movie: movie, Genres: terms}, nil
}

func (d *dooplaySite) scrapeSeries(ctx context.Context, pageURL string) (*Item, error) {
	doc, err := d.fetcher.Document(ctx, d.source, pageURL)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find(".sheader .data h1").First().Text())
	if title == "" {
		return nil, &NoDataError{Message: fmt.Sprintf("no title found at %s", pageURL)}
	}

	now := time.Now().Unix()
	names, terms := genreTerms(doc)
	series := &models.Series{
		ID:          StableID(SlugFromURL(pageURL)),
		Title:       title,
		SourceURL:   pageURL,
		PosterURL:   posterURL(doc),
		Description: strings.TrimSpace(doc.Find(".wp-content p").First().Text()),
		Genres:      models.JoinGenres(names),
		Year:        extractYear(doc),
		Rating:      extractRating(doc),
		DateAdded:   now,
		LastUpdated: now,
	}

	var episodes []models.Episode
	doc.Find("#seasons .se-c").Each(func(_ int, seasonSel *goquery.Selection) {
		seasonSel.Find("ul.episodios li").Each(func(_ int, li *goquery.Selection) {
			ep, ok := parseEpisodeRow(li, series.ID, series.Title, now)
			if ok {
				episodes = append(episodes, ep)
			}
		})
	})

	return &Item{Type: models.ContentTypeSeries, Series: series, Episodes: episodes, Genres: terms}, nil
}

var episodeSlugPattern = regexp.MustCompile(`^(.*?)-?(\d+)x(\d+(?:-\d+)?)$`)

// parseEpisodeSlug splits a DooPlay episode slug ("show-name-1x14"; WordPress
// slugifies a fractional special's dot to a hyphen, so 14.5 arrives as
// "1x14-5") into the series slug and the season/episode numbers.
func parseEpisodeSlug(slug string) (seriesSlug string, season int, episode float64, ok bool) {
	m := episodeSlugPattern.FindStringSubmatch(slug)
	if m == nil || m[1] == "" {
		return "", 0, 0, false
	}
	season, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, 0, false
	}
	episode, err = strconv.ParseFloat(strings.ReplaceAll(m[3], "-", "."), 64)
	if err != nil {
		return "", 0, 0, false
	}
	return m[1], season, episode, true
}

// scrapeEpisode parses a single-episode page discovered through the episode
// sitemap. The series linkage comes from the slug prefix so the derived
// SeriesID matches StableID of the series page's own slug.
func (d *dooplaySite) scrapeEpisode(ctx context.Context, pageURL string) (*Item, error) {
	slug := SlugFromURL(pageURL)
	seriesSlug, season, epNum, ok := parseEpisodeSlug(slug)
	if !ok {
		return nil, &ParseError{Message: fmt.Sprintf("no season/episode marker in slug %q", slug)}
	}

	doc, err := d.fetcher.Document(ctx, d.source, pageURL)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find(".sheader .data h1").First().Text())
	if title == "" {
		return nil, &NoDataError{Message: fmt.Sprintf("no title found at %s", pageURL)}
	}

	now := time.Now().Unix()
	ep := models.Episode{
		ID:           StableID(slug),
		SeriesID:     StableID(seriesSlug),
		SeriesTitle:  strings.TrimSpace(doc.Find("#dt_breadcrumb_tvshow a, .pag_episodes .item a").First().Text()),
		Season:       season,
		Episode:      models.EncodeEpisodeNumber(epNum),
		Title:        title,
		SourceURL:    pageURL,
		ThumbnailURL: posterURL(doc),
		AirDate:      strings.TrimSpace(doc.Find(".sheader .extra .date").First().Text()),
		DateAdded:    now,
		LastUpdated:  now,
	}
	return &Item{Type: models.ContentTypeEpisode, Episodes: []models.Episode{ep}}, nil
}

// parseEpisodeRow reads one episode list item: the ".numerando" span carries
// "season - episode" (the episode part may be fractional for specials), the
// title anchor carries the per-episode page URL.
func parseEpisodeRow(li *goquery.Selection, seriesID int64, seriesTitle string, now int64) (models.Episode, bool) {
	numerando := strings.TrimSpace(li.Find(".numerando").First().Text())
	m := numerandoPattern.FindStringSubmatch(numerando)
	if m == nil {
		return models.Episode{}, false
	}
	season, err := strconv.Atoi(m[1])
	if err != nil {
		return models.Episode{}, false
	}
	epNum, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return models.Episode{}, false
	}

	anchor := li.Find(".episodiotitle a").First()
	href, _ := anchor.Attr("href")
	if href == "" {
		return models.Episode{}, false
	}

	return models.Episode{
		ID:           StableID(SlugFromURL(href)),
		SeriesID:     seriesID,
		SeriesTitle:  seriesTitle,
		Season:       season,
		Episode:      models.EncodeEpisodeNumber(epNum),
		Title:        strings.TrimSpace(anchor.Text()),
		SourceURL:    href,
		ThumbnailURL: li.Find(".imagen img").First().AttrOr("src", ""),
		AirDate:      strings.TrimSpace(li.Find(".episodiotitle .date").First().Text()),
		DateAdded:    now,
		LastUpdated:  now,
	}, true
}

func (d *dooplaySite) search(ctx context.Context, query string) ([]SearchResult, error) {
	searchURL := fmt.Sprintf("%s/?s=%s", d.baseURL, url.QueryEscape(query))
	doc, err := d.fetcher.Document(ctx, d.source, searchURL)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	doc.Find(".search-page .result-item, .items article").Each(func(_ int, item *goquery.Selection) {
		anchor := item.Find(".title a, .data h3 a").First()
		href, _ := anchor.Attr("href")
		title := strings.TrimSpace(anchor.Text())
		if href == "" || title == "" {
			return
		}
		result := SearchResult{
			Title:     title,
			URL:       href,
			Type:      d.typeOfURL(href),
			PosterURL: item.Find("img").First().AttrOr("src", ""),
		}
		if m := yearPattern.FindString(item.Find(".year, .meta .year").First().Text()); m != "" {
			result.Year, _ = strconv.Atoi(m)
		}
		results = append(results, result)
	})
	return results, nil
}

// dooplayAjaxResponse is the JSON body admin-ajax.php returns for the
// doo_player_ajax action.
type dooplayAjaxResponse struct {
	EmbedURL string `json:"embed_url"`
	Type     string `json:"type"`
}

// resolveVideoSources asks the DooPlay player endpoint for each player
// option on the page and extracts direct video URLs from the embeds.
func (d *dooplaySite) resolveVideoSources(ctx context.Context, pageURL string, contentID int64, contentType models.ContentType) ([]models.VideoVariant, error) {
	doc, err := d.fetcher.Document(ctx, d.source, pageURL)
	if err != nil {
		return nil, err
	}

	ajaxType := "movie"
	if contentType != models.ContentTypeMovie {
		ajaxType = "tv"
	}

	now := time.Now().Unix()
	var variants []models.VideoVariant
	doc.Find("#playeroptionsul li").Each(func(_ int, li *goquery.Selection) {
		post, _ := li.Attr("data-post")
		nume, _ := li.Attr("data-nume")
		if post == "" || nume == "" || nume == "trailer" {
			return
		}

		body, err := d.fetcher.PostForm(ctx, d.source, d.baseURL+"/wp-admin/admin-ajax.php", url.Values{
			"action": {"doo_player_ajax"},
			"post":   {post},
			"nume":   {nume},
			"type":   {ajaxType},
		})
		if err != nil {
			return
		}

		var resp dooplayAjaxResponse
		if err := json.Unmarshal(body, &resp); err != nil || resp.EmbedURL == "" {
			return
		}

		videoURL := extractVideoURL(resp.EmbedURL)
		if videoURL == "" {
			return
		}
		variants = append(variants, models.VideoVariant{
			ContentID:   contentID,
			ContentType: contentType,
			Quality:     qualityFromURL(videoURL),
			MP4URL:      videoURL,
			CachedAt:    now,
		})
	})

	if len(variants) == 0 {
		return nil, &NoDataError{Message: fmt.Sprintf("no playable sources at %s", pageURL)}
	}
	return dedupVariants(variants), nil
}

// extractVideoURL pulls a direct media URL out of a player embed URL. Direct
// links pass through; iframe wrappers with a source parameter are unwrapped.
func extractVideoURL(embed string) string {
	if strings.Contains(embed, ".mp4") || strings.Contains(embed, ".m3u8") || strings.Contains(embed, ".mkv") {
		return embed
	}
	u, err := url.Parse(embed)
	if err != nil {
		return ""
	}
	for _, key := range []string{"source", "src", "url"} {
		if v := u.Query().Get(key); v != "" {
			return v
		}
	}
	return ""
}

func qualityFromURL(videoURL string) models.VideoQuality {
	if m := qualityPattern.FindString(videoURL); m != "" {
		switch strings.TrimSuffix(strings.ToLower(m), "p") {
		case "480":
			return models.Quality480p
		case "720":
			return models.Quality720p
		case "1080":
			return models.Quality1080p
		}
	}
	return models.QualityAuto
}

// dedupVariants keeps the first variant per quality. Player options often
// repeat the same file behind different hosts.
func dedupVariants(in []models.VideoVariant) []models.VideoVariant {
	seen := make(map[models.VideoQuality]bool, len(in))
	out := in[:0]
	for _, v := range in {
		if seen[v.Quality] {
			continue
		}
		seen[v.Quality] = true
		out = append(out, v)
	}
	return out
}

// typeOfURL classifies a page URL by its path segment.
func (d *dooplaySite) typeOfURL(pageURL string) models.ContentType {
	switch {
	case strings.Contains(pageURL, "/tvshows/") || strings.Contains(pageURL, "/series/"):
		return models.ContentTypeSeries
	case strings.Contains(pageURL, "/episodes/") || strings.Contains(pageURL, "/episode/"):
		return models.ContentTypeEpisode
	default:
		return models.ContentTypeMovie
	}
}

func posterURL(doc *goquery.Document) string {
	img := doc.Find(".sheader .poster img").First()
	if src := img.AttrOr("data-src", ""); src != "" {
		return src
	}
	return img.AttrOr("src", "")
}

// genreTerms reads the genre anchors: display names feed the item's
// denormalized string, href slugs feed the taxonomy rows.
func genreTerms(doc *goquery.Document) ([]string, []models.Genre) {
	var names []string
	var terms []models.Genre
	doc.Find(".sgeneros a").Each(func(_ int, a *goquery.Selection) {
		name := strings.TrimSpace(a.Text())
		if name == "" {
			return
		}
		names = append(names, name)
		terms = append(terms, genreTerm(name, a.AttrOr("href", "")))
	})
	return names, terms
}

// genreTerm builds a taxonomy row from a genre anchor. The archive URL's
// slug keys the row; anchors without a real path fall back to a slugified
// name so the row id stays deterministic either way.
func genreTerm(name, href string) models.Genre {
	slug := SlugFromURL(href)
	if slug == "" || !strings.Contains(href, "/") {
		slug = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
	}
	return models.Genre{ID: StableID(slug), Name: name, Slug: slug}
}

func extractYear(doc *goquery.Document) int {
	text := doc.Find(".sheader .extra .date").First().Text()
	if text == "" {
		text = doc.Find(".sheader .data .extra").First().Text()
	}
	if m := yearPattern.FindString(text); m != "" {
		y, _ := strconv.Atoi(m)
		return y
	}
	return 0
}

func extractRating(doc *goquery.Document) float64 {
	text := strings.TrimSpace(doc.Find(".dt_rating_vgs, .starstruck-rating .dt_rating_vgs").First().Text())
	if text == "" {
		return 0
	}
	r, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return r
}

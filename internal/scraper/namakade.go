package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/farsilandtv/farsihub/internal/models"
)

const namakadeBase = "https://namakade.com"

// Namakade runs a custom archive theme rather than DooPlay, so its selectors
// and video resolution differ from the other sources. It has no usable
// sitemaps; index discovery walks the archive listing pages instead.
type Namakade struct {
	fetcher *Fetcher
}

func NewNamakade(fetcher *Fetcher) *Namakade {
	return &Namakade{fetcher: fetcher}
}

func (s *Namakade) ID() models.SourceID { return models.SourceNamakade }

func (s *Namakade) Domains() []string {
	return []string{"namakade.com", "www.namakade.com"}
}

// archivePagesPerIndex bounds the listing walk per sync cycle.
const archivePagesPerIndex = 5

func (s *Namakade) FetchIndex(ctx context.Context, contentType models.ContentType, limit int) ([]IndexEntry, error) {
	archive := "/movies"
	if contentType == models.ContentTypeSeries {
		archive = "/series"
	}
	if contentType == models.ContentTypeEpisode {
		// Episodes only surface through their series pages.
		return nil, nil
	}

	var entries []IndexEntry
	for page := 1; page <= archivePagesPerIndex; page++ {
		pageURL := namakadeBase + archive
		if page > 1 {
			pageURL = fmt.Sprintf("%s/page/%d", pageURL, page)
		}

		doc, err := s.fetcher.Document(ctx, models.SourceNamakade, pageURL)
		if err != nil {
			// Later pages commonly 404 when the archive is short.
			if page > 1 {
				break
			}
			return nil, err
		}

		before := len(entries)
		doc.Find(".post-grid .post-item a.post-link").Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok || href == "" {
				return
			}
			entries = append(entries, IndexEntry{URL: href, Type: contentType})
		})
		if len(entries) == before {
			break
		}
		if limit > 0 && len(entries) >= limit {
			entries = entries[:limit]
			break
		}
	}

	if len(entries) == 0 {
		return nil, &NoDataError{Message: "empty archive listing at " + archive}
	}
	return entries, nil
}

func (s *Namakade) ScrapeItem(ctx context.Context, pageURL string) (*Item, error) {
	doc, err := s.fetcher.Document(ctx, models.SourceNamakade, pageURL)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find(".single-post .post-title h1").First().Text())
	if title == "" {
		return nil, &NoDataError{Message: fmt.Sprintf("no title found at %s", pageURL)}
	}

	now := time.Now().Unix()
	id := StableID(SlugFromURL(pageURL))
	description := strings.TrimSpace(doc.Find(".post-summary").First().Text())
	poster := doc.Find(".post-cover img").First().AttrOr("src", "")
	genreList, genreRows := namakadeGenres(doc)
	genres := models.JoinGenres(genreList)
	year := 0
	if m := yearPattern.FindString(doc.Find(".post-meta .year").First().Text()); m != "" {
		year, _ = strconv.Atoi(m)
	}

	if strings.Contains(pageURL, "/series/") {
		series := &models.Series{
			ID:          id,
			Title:       title,
			SourceURL:   pageURL,
			PosterURL:   poster,
			Description: description,
			Genres:      genres,
			Year:        year,
			DateAdded:   now,
			LastUpdated: now,
		}

		var episodes []models.Episode
		doc.Find(".episode-list .episode-row").Each(func(_ int, row *goquery.Selection) {
			ep, ok := parseNamakadeEpisode(row, series.ID, series.Title, now)
			if ok {
				episodes = append(episodes, ep)
			}
		})
		return &Item{Type: models.ContentTypeSeries, Series: series, Episodes: episodes, Genres: genreRows}, nil
	}

	movie := &models.Movie{
		ID:          id,
		Title:       title,
		SourceURL:   pageURL,
		PosterURL:   poster,
		Description: description,
		Genres:      genres,
		Year:        year,
		DateAdded:   now,
		LastUpdated: now,
	}
	return &Item{Type: models.ContentTypeMovie, Movie: movie, Genres: genreRows}, nil
}

// parseNamakadeEpisode reads one row of the episode table. Season and
// episode numbers sit in data attributes rather than display text.
func parseNamakadeEpisode(row *goquery.Selection, seriesID int64, seriesTitle string, now int64) (models.Episode, bool) {
	season, err := strconv.Atoi(row.AttrOr("data-season", ""))
	if err != nil {
		return models.Episode{}, false
	}
	epNum, err := strconv.ParseFloat(row.AttrOr("data-episode", ""), 64)
	if err != nil {
		return models.Episode{}, false
	}
	anchor := row.Find("a.episode-link").First()
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
		ThumbnailURL: row.Find("img").First().AttrOr("src", ""),
		DateAdded:    now,
		LastUpdated:  now,
	}, true
}

func (s *Namakade) Search(ctx context.Context, query string) ([]SearchResult, error) {
	searchURL := fmt.Sprintf("%s/search?q=%s", namakadeBase, url.QueryEscape(query))
	doc, err := s.fetcher.Document(ctx, models.SourceNamakade, searchURL)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	doc.Find(".search-results .post-item").Each(func(_ int, item *goquery.Selection) {
		anchor := item.Find("a.post-link").First()
		href, _ := anchor.Attr("href")
		title := strings.TrimSpace(item.Find(".post-title").First().Text())
		if href == "" || title == "" {
			return
		}
		contentType := models.ContentTypeMovie
		if strings.Contains(href, "/series/") {
			contentType = models.ContentTypeSeries
		}
		result := SearchResult{
			Title:     title,
			URL:       href,
			Type:      contentType,
			PosterURL: item.Find("img").First().AttrOr("src", ""),
		}
		if m := yearPattern.FindString(item.Find(".year").First().Text()); m != "" {
			result.Year, _ = strconv.Atoi(m)
		}
		results = append(results, result)
	})
	return results, nil
}

// ResolveVideoSources reads the download table on the detail page. Namakade
// publishes direct file links per quality instead of a player endpoint.
func (s *Namakade) ResolveVideoSources(ctx context.Context, pageURL string, contentID int64, contentType models.ContentType) ([]models.VideoVariant, error) {
	doc, err := s.fetcher.Document(ctx, models.SourceNamakade, pageURL)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	var variants []models.VideoVariant
	doc.Find(".download-box a.download-link").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}
		variants = append(variants, models.VideoVariant{
			ContentID:   contentID,
			ContentType: contentType,
			Quality:     qualityFromURL(href),
			MP4URL:      href,
			FileSizeMB:  parseFileSizeMB(a.AttrOr("data-size", "")),
			CachedAt:    now,
		})
	})

	if len(variants) == 0 {
		return nil, &NoDataError{Message: fmt.Sprintf("no download links at %s", pageURL)}
	}
	return dedupVariants(variants), nil
}

func parseFileSizeMB(raw string) float64 {
	raw = strings.TrimSpace(strings.ToUpper(raw))
	switch {
	case strings.HasSuffix(raw, "GB"):
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(raw, "GB")), 64)
		if err != nil {
			return 0
		}
		return v * 1024
	case strings.HasSuffix(raw, "MB"):
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(raw, "MB")), 64)
		if err != nil {
			return 0
		}
		return v
	default:
		return 0
	}
}

func namakadeGenres(doc *goquery.Document) ([]string, []models.Genre) {
	var names []string
	var terms []models.Genre
	doc.Find(".post-meta .genre a").Each(func(_ int, a *goquery.Selection) {
		name := strings.TrimSpace(a.Text())
		if name == "" {
			return
		}
		names = append(names, name)
		terms = append(terms, genreTerm(name, a.AttrOr("href", "")))
	})
	return names, terms
}

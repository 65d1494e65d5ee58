package scraper

import (
	"context"
	"strings"

	"github.com/farsilandtv/farsihub/internal/models"
)

const farsilandBase = "https://farsiland.com"

// Farsiland is the primary source, a DooPlay site with WordPress sitemaps.
type Farsiland struct {
	dooplaySite
}

func NewFarsiland(fetcher *Fetcher) *Farsiland {
	return &Farsiland{dooplaySite{fetcher: fetcher, source: models.SourceFarsiland, baseURL: farsilandBase}}
}

func (s *Farsiland) ID() models.SourceID { return models.SourceFarsiland }

func (s *Farsiland) Domains() []string {
	return []string{"farsiland.com", "www.farsiland.com"}
}

func (s *Farsiland) FetchIndex(ctx context.Context, contentType models.ContentType, limit int) ([]IndexEntry, error) {
	marker, pathSeg := sitemapMarkerFor(contentType)
	subs, err := fetchSitemapIndex(ctx, s.fetcher, s.source, farsilandBase+"/wp-sitemap.xml", marker)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, &NoDataError{Message: "no " + marker + " sitemaps listed"}
	}

	var entries []IndexEntry
	for _, sub := range subs {
		remaining := 0
		if limit > 0 {
			remaining = limit - len(entries)
			if remaining <= 0 {
				break
			}
		}
		batch, err := fetchSitemap(ctx, s.fetcher, s.source, sub, contentType, func(u string) bool {
			return strings.Contains(u, pathSeg)
		}, remaining)
		if err != nil {
			return entries, err
		}
		entries = append(entries, batch...)
	}
	return entries, nil
}

func (s *Farsiland) ScrapeItem(ctx context.Context, pageURL string) (*Item, error) {
	switch s.typeOfURL(pageURL) {
	case models.ContentTypeSeries:
		return s.scrapeSeries(ctx, pageURL)
	case models.ContentTypeEpisode:
		return s.scrapeEpisode(ctx, pageURL)
	default:
		return s.scrapeMovie(ctx, pageURL)
	}
}

func (s *Farsiland) Search(ctx context.Context, query string) ([]SearchResult, error) {
	return s.search(ctx, query)
}

func (s *Farsiland) ResolveVideoSources(ctx context.Context, pageURL string, contentID int64, contentType models.ContentType) ([]models.VideoVariant, error) {
	return s.resolveVideoSources(ctx, pageURL, contentID, contentType)
}

// sitemapMarkerFor maps a content type to the WordPress post-type sitemap
// marker and the detail-page path segment.
func sitemapMarkerFor(contentType models.ContentType) (marker, pathSeg string) {
	switch contentType {
	case models.ContentTypeSeries:
		return "tvshows", "/tvshows/"
	case models.ContentTypeEpisode:
		return "episodes", "/episodes/"
	default:
		return "movies", "/movies/"
	}
}

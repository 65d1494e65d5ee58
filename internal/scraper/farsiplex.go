package scraper

import (
	"context"
	"strings"

	"github.com/farsilandtv/farsihub/internal/models"
)

const farsiplexBase = "https://farsiplex.com"

// Farsiplex runs the same DooPlay theme as farsiland but publishes flat
// per-type sitemaps instead of a sitemap index.
type Farsiplex struct {
	dooplaySite
}

func NewFarsiplex(fetcher *Fetcher) *Farsiplex {
	return &Farsiplex{dooplaySite{fetcher: fetcher, source: models.SourceFarsiplex, baseURL: farsiplexBase}}
}

func (s *Farsiplex) ID() models.SourceID { return models.SourceFarsiplex }

func (s *Farsiplex) Domains() []string {
	return []string{"farsiplex.com", "www.farsiplex.com"}
}

func (s *Farsiplex) FetchIndex(ctx context.Context, contentType models.ContentType, limit int) ([]IndexEntry, error) {
	marker, pathSeg := sitemapMarkerFor(contentType)
	sitemapURL := farsiplexBase + "/" + marker + "-sitemap.xml"
	return fetchSitemap(ctx, s.fetcher, s.source, sitemapURL, contentType, func(u string) bool {
		return strings.Contains(u, pathSeg)
	}, limit)
}

func (s *Farsiplex) ScrapeItem(ctx context.Context, pageURL string) (*Item, error) {
	switch s.typeOfURL(pageURL) {
	case models.ContentTypeSeries:
		return s.scrapeSeries(ctx, pageURL)
	case models.ContentTypeEpisode:
		return s.scrapeEpisode(ctx, pageURL)
	default:
		return s.scrapeMovie(ctx, pageURL)
	}
}

func (s *Farsiplex) Search(ctx context.Context, query string) ([]SearchResult, error) {
	return s.search(ctx, query)
}

func (s *Farsiplex) ResolveVideoSources(ctx context.Context, pageURL string, contentID int64, contentType models.ContentType) ([]models.VideoVariant, error) {
	return s.resolveVideoSources(ctx, pageURL, contentID, contentType)
}

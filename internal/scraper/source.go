package scraper

import (
	"context"
	"crypto/md5"
	"strings"
	"time"

	"github.com/farsilandtv/farsihub/internal/models"
)

// IndexEntry is one URL discovered during index discovery, with the
// last-modified stamp the site reported for it.
type IndexEntry struct {
	URL          string
	Type         models.ContentType
	LastModified time.Time
}

// Item is the result of scraping one detail page. Movie pages set Movie,
// series pages set Series plus their Episodes, episode pages carry a single
// entry in Episodes. Genres holds the taxonomy rows seen on the page.
type Item struct {
	Type     models.ContentType
	Movie    *models.Movie
	Series   *models.Series
	Episodes []models.Episode
	Genres   []models.Genre
}

// SearchResult is one hit from a live site search.
type SearchResult struct {
	Title     string
	URL       string
	Type      models.ContentType
	PosterURL string
	Year      int
}

// Source is one scrape target. Implementations share the Fetcher (and with
// it the rate gate and allow-list) but own their site's selectors.
type Source interface {
	ID() models.SourceID
	Domains() []string
	FetchIndex(ctx context.Context, contentType models.ContentType, limit int) ([]IndexEntry, error)
	ScrapeItem(ctx context.Context, pageURL string) (*Item, error)
	Search(ctx context.Context, query string) ([]SearchResult, error)
	ResolveVideoSources(ctx context.Context, pageURL string, contentID int64, contentType models.ContentType) ([]models.VideoVariant, error)
}

// Registry holds the configured sources keyed by id and registers their
// domains with the fetcher.
type Registry struct {
	fetcher *Fetcher
	sources map[models.SourceID]Source
}

func NewRegistry(fetcher *Fetcher, sources ...Source) *Registry {
	r := &Registry{fetcher: fetcher, sources: make(map[models.SourceID]Source)}
	for _, s := range sources {
		r.sources[s.ID()] = s
		for _, domain := range s.Domains() {
			fetcher.AllowDomain(s.ID(), domain)
		}
	}
	return r
}

func (r *Registry) Get(id models.SourceID) (Source, bool) {
	s, ok := r.sources[id]
	return s, ok
}

func (r *Registry) All() []Source {
	out := make([]Source, 0, len(r.sources))
	for _, id := range []models.SourceID{models.SourceFarsiland, models.SourceFarsiplex, models.SourceNamakade} {
		if s, ok := r.sources[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// SourceOfURL resolves a URL to the source owning its domain.
func (r *Registry) SourceOfURL(rawURL string) (models.SourceID, bool) {
	return r.fetcher.SourceOfURL(rawURL)
}

const idSpace = 100000000

// StableID derives a deterministic numeric id from a page slug so the same
// title keeps its id across resyncs and database rebuilds.
func StableID(slug string) int64 {
	sum := md5.Sum([]byte(strings.ToLower(slug)))
	var id int64
	for _, b := range sum {
		id = (id*256 + int64(b)) % idSpace
	}
	return id
}

// SlugFromURL extracts the last non-empty path segment of a page URL.
func SlugFromURL(rawURL string) string {
	trimmed := strings.TrimSuffix(rawURL, "/")
	if i := strings.Index(trimmed, "?"); i >= 0 {
		trimmed = trimmed[:i]
	}
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

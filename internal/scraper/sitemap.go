package scraper

import (
	"context"
	"encoding/xml"
	"sort"
	"strings"
	"time"

	"github.com/farsilandtv/farsihub/internal/models"
)

// WordPress sitemap documents. A sitemap index points at per-type sub
// sitemaps; each sub sitemap lists page URLs with lastmod stamps.
type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapRef `xml:"sitemap"`
}

type sitemapRef struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapRef `xml:"url"`
}

// parseLastMod accepts the date formats WordPress sitemaps emit. A missing
// or unparseable stamp yields the zero time, which sync treats as "always
// newer" so the entry is never silently skipped.
func parseLastMod(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// fetchSitemap downloads and decodes one urlset sitemap into index entries,
// keeping only URLs the matcher claims (sitemaps mix posts, pages and tag
// archives).
func fetchSitemap(ctx context.Context, f *Fetcher, source models.SourceID, sitemapURL string, contentType models.ContentType, match func(url string) bool, limit int) ([]IndexEntry, error) {
	body, err := f.Bytes(ctx, source, sitemapURL)
	if err != nil {
		return nil, err
	}

	var set urlSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, &ParseError{Message: "failed to decode sitemap", Cause: err}
	}

	entries := make([]IndexEntry, 0, len(set.URLs))
	for _, u := range set.URLs {
		if !match(u.Loc) {
			continue
		}
		entries = append(entries, IndexEntry{
			URL:          u.Loc,
			Type:         contentType,
			LastModified: parseLastMod(u.LastMod),
		})
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries, nil
}

// fetchSitemapIndex downloads a sitemap index and returns the sub-sitemap
// URLs whose path contains the wanted marker (e.g. "movies" or "tvshows"),
// newest first so incremental sync hits fresh pages before stale ones.
func fetchSitemapIndex(ctx context.Context, f *Fetcher, source models.SourceID, indexURL, marker string) ([]string, error) {
	body, err := f.Bytes(ctx, source, indexURL)
	if err != nil {
		return nil, err
	}

	var idx sitemapIndex
	if err := xml.Unmarshal(body, &idx); err != nil {
		return nil, &ParseError{Message: "failed to decode sitemap index", Cause: err}
	}

	var refs []sitemapRef
	for _, s := range idx.Sitemaps {
		if !strings.Contains(s.Loc, marker) {
			continue
		}
		refs = append(refs, s)
	}
	return newestFirst(refs), nil
}

// newestFirst orders sub-sitemap references by lastmod descending, keeping
// the listed order for equal stamps.
func newestFirst(refs []sitemapRef) []string {
	sort.SliceStable(refs, func(i, j int) bool {
		return parseLastMod(refs[i].LastMod).After(parseLastMod(refs[j].LastMod))
	})
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Loc
	}
	return out
}

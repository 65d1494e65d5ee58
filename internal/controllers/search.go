package controllers

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/farsilandtv/farsihub/internal/scraper"
	"github.com/farsilandtv/farsihub/internal/store"
	"github.com/farsilandtv/farsihub/internal/utils"
	"github.com/sirupsen/logrus"
)

// SearchController answers two kinds of query: local full-text search over
// the active catalog, and aggregated live search fanned out to every source
// concurrently, deduplicated per source and ranked by edit distance to the
// query.
type SearchController struct {
	manager   *store.Manager
	registry  *scraper.Registry
	userState *store.UserStateStore
	logger    *logrus.Logger
}

func NewSearchController(manager *store.Manager, registry *scraper.Registry, userState *store.UserStateStore, logger *logrus.Logger) *SearchController {
	return &SearchController{manager: manager, registry: registry, userState: userState, logger: logger}
}

// Local searches the active catalog's full-text index.
func (c *SearchController) Local(query string, limit int) ([]store.SearchHit, error) {
	catalog, err := c.manager.Store()
	if err != nil {
		return nil, err
	}
	hits, err := catalog.Search(query, limit)
	if err != nil {
		return nil, err
	}
	c.recordQuery(query)
	return hits, nil
}

// Aggregated fans the query out to every configured source. A source that
// errors contributes nothing; the aggregate only fails when the query is
// cancelled.
func (c *SearchController) Aggregated(ctx context.Context, query string, limit int) ([]scraper.SearchResult, error) {
	sources := c.registry.All()

	type sourceResults struct {
		results []scraper.SearchResult
		err     error
	}
	perSource := make([]sourceResults, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src scraper.Source) {
			defer wg.Done()
			results, err := src.Search(ctx, query)
			perSource[i] = sourceResults{results: results, err: err}
		}(i, src)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deduper := utils.NewSearchDeduper(c.registry.SourceOfURL)
	var merged []scraper.SearchResult
	for i, sr := range perSource {
		if sr.err != nil {
			c.logger.WithFields(logrus.Fields{
				"source": sources[i].ID(),
				"error":  sr.err,
			}).Warn("Source search failed")
			continue
		}
		for _, r := range sr.results {
			if deduper.Admit(r.Title, r.URL) {
				merged = append(merged, r)
			}
		}
	}

	rankResults(merged, query)
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	c.recordQuery(query)
	return merged, nil
}

// rankResults orders by edit distance between normalized titles and the
// normalized query, closest first, with title as the tie-breaker so the
// order is stable.
func rankResults(results []scraper.SearchResult, query string) {
	normQuery := utils.NormalizeTitle(query)
	distance := func(title string) int {
		normTitle := utils.NormalizeTitle(title)
		if strings.Contains(normTitle, normQuery) {
			// Substring matches beat pure edit distance for short queries.
			return len(normTitle) - len(normQuery)
		}
		return levenshtein.ComputeDistance(normQuery, normTitle) + len(normQuery)
	}
	sort.SliceStable(results, func(i, j int) bool {
		di, dj := distance(results[i].Title), distance(results[j].Title)
		if di != dj {
			return di < dj
		}
		return results[i].Title < results[j].Title
	})
}

func (c *SearchController) recordQuery(query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}
	if err := c.userState.RecordSearch(query); err != nil {
		c.logger.WithField("error", err).Warn("Failed to record search history")
	}
}

// RecentSearches exposes the stored search history.
func (c *SearchController) RecentSearches(n int) ([]string, error) {
	rows, err := c.userState.RecentSearches(n)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Query
	}
	return out, nil
}

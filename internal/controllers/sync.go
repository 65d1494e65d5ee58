package controllers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/farsilandtv/farsihub/internal/config"
	"github.com/farsilandtv/farsihub/internal/feed"
	"github.com/farsilandtv/farsihub/internal/models"
	"github.com/farsilandtv/farsihub/internal/scraper"
	"github.com/farsilandtv/farsihub/internal/store"
	"github.com/farsilandtv/farsihub/internal/telemetry"
	"github.com/sirupsen/logrus"
)

// SyncController drives incremental catalog sync: discover URLs from the
// active source's index, compare their last-modified stamps against what the
// catalog already holds, scrape only what changed, and publish a feed
// update when anything was written.
type SyncController struct {
	cfg       *config.Config
	manager   *store.Manager
	registry  *scraper.Registry
	userState *store.UserStateStore
	feeds     *feed.Feeds
	tel       *telemetry.Telemetry
	logger    *logrus.Logger

	mu sync.Mutex // one cycle at a time
}

func NewSyncController(cfg *config.Config, manager *store.Manager, registry *scraper.Registry, userState *store.UserStateStore, feeds *feed.Feeds, tel *telemetry.Telemetry, logger *logrus.Logger) *SyncController {
	return &SyncController{
		cfg:       cfg,
		manager:   manager,
		registry:  registry,
		userState: userState,
		feeds:     feeds,
		tel:       tel,
		logger:    logger,
	}
}

// SyncActive runs one full cycle against the currently active source.
func (c *SyncController) SyncActive(ctx context.Context) error {
	return c.SyncSource(ctx, c.manager.Active())
}

// SyncSource runs one full cycle against the named source. Cycle-level
// failures (index unreachable) retry with exponential backoff up to the
// configured attempt ceiling; exhausting the ceiling records a sync-failed
// notification for the user.
func (c *SyncController) SyncSource(ctx context.Context, sourceID models.SourceID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	source, ok := c.registry.Get(sourceID)
	if !ok {
		return fmt.Errorf("unknown source %q", sourceID)
	}
	if sourceID != c.manager.Active() {
		return fmt.Errorf("source %q is not active", sourceID)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.cfg.SyncMaxRetries)),
		ctx,
	)

	start := time.Now()
	err := backoff.Retry(func() error {
		err := c.runCycle(ctx, source)
		if err == nil {
			return nil
		}
		if !scraper.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		c.logger.WithFields(logrus.Fields{
			"source": sourceID,
			"error":  err,
		}).Warn("Sync cycle failed, will retry")
		return err
	}, policy)

	if err != nil {
		c.tel.SyncCycles.WithLabelValues(string(sourceID), "failure").Inc()
		c.logger.WithFields(logrus.Fields{
			"source": sourceID,
			"error":  err,
		}).Error("Sync failed after all attempts")
		if nerr := c.userState.AddNotification(models.NotificationKindSyncFailed,
			fmt.Sprintf("Content sync for %s failed: %v", sourceID, err)); nerr != nil {
			c.logger.WithField("error", nerr).Warn("Failed to record sync notification")
		}
		return err
	}

	c.tel.SyncCycles.WithLabelValues(string(sourceID), "success").Inc()
	c.logger.WithFields(logrus.Fields{
		"source":   sourceID,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("Sync cycle complete")
	return nil
}

// runCycle performs one pass over movies, series and episodes. The episode
// index matters on its own: WordPress does not bump a series page's lastmod
// when a new episode post appears. Per-entry failures are classified and
// skipped so one broken page never aborts the rest of the cycle; only
// index-level failures propagate.
func (c *SyncController) runCycle(ctx context.Context, source scraper.Source) error {
	ctx, span := c.tel.Tracer.Start(ctx, "sync.cycle")
	defer span.End()

	catalog, err := c.manager.Store()
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}

	changed := 0
	touchedSeries := make(map[int64]bool)

	for _, contentType := range []models.ContentType{models.ContentTypeMovie, models.ContentTypeSeries, models.ContentTypeEpisode} {
		entries, err := source.FetchIndex(ctx, contentType, c.cfg.SyncRecentWindow)
		if err != nil {
			if scraper.IsNoData(err) {
				c.logger.WithFields(logrus.Fields{
					"source":      source.ID(),
					"contentType": contentType,
				}).Info("Index returned no entries")
				continue
			}
			return fmt.Errorf("fetching %s index: %w", contentType, err)
		}

		n, err := c.syncEntries(ctx, source, catalog, entries, touchedSeries)
		if err != nil {
			return err
		}
		changed += n
	}

	for seriesID := range touchedSeries {
		if err := catalog.RecomputeSeriesTotals(seriesID); err != nil {
			c.logger.WithFields(logrus.Fields{
				"seriesId": seriesID,
				"error":    err,
			}).Warn("Failed to recompute series totals")
		}
	}

	// Readers only see new rows after the stale pages are dropped, so the
	// cache purge has to land before the update signal.
	if changed > 0 {
		c.feeds.Invalidate()
	}
	return nil
}

func (c *SyncController) syncEntries(ctx context.Context, source scraper.Source, catalog *store.CatalogStore, entries []scraper.IndexEntry, touchedSeries map[int64]bool) (int, error) {
	changed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return changed, err
		}

		fresh, err := c.needsScrape(catalog, entry)
		if err != nil {
			return changed, err
		}
		if !fresh {
			continue
		}

		item, err := source.ScrapeItem(ctx, entry.URL)
		if err != nil {
			if ctx.Err() != nil {
				return changed, ctx.Err()
			}
			c.tel.ScrapeFailures.WithLabelValues(string(source.ID()), scraper.FailureClass(err)).Inc()
			c.logger.WithFields(logrus.Fields{
				"source": source.ID(),
				"url":    entry.URL,
				"class":  scraper.FailureClass(err),
				"error":  err,
			}).Warn("Skipping entry after scrape failure")
			continue
		}

		n, err := c.persistItem(catalog, entry, item, touchedSeries)
		if err != nil {
			return changed, fmt.Errorf("persisting %s: %w", entry.URL, err)
		}
		if n > 0 {
			c.tel.ItemsSynced.WithLabelValues(string(source.ID()), string(item.Type)).Add(float64(n))
		}
		changed += n
	}
	return changed, nil
}

// needsScrape compares the index entry's last-modified stamp against the
// stored row. A zero stamp means the site gave us nothing to compare, so
// the page is always scraped.
func (c *SyncController) needsScrape(catalog *store.CatalogStore, entry scraper.IndexEntry) (bool, error) {
	if entry.LastModified.IsZero() {
		return true, nil
	}

	var stored int64
	switch entry.Type {
	case models.ContentTypeMovie:
		existing, err := catalog.GetMovieByURL(entry.URL)
		if err != nil {
			return false, err
		}
		if existing == nil {
			return true, nil
		}
		stored = existing.LastUpdated
	case models.ContentTypeSeries:
		existing, err := catalog.GetSeriesByURL(entry.URL)
		if err != nil {
			return false, err
		}
		if existing == nil {
			return true, nil
		}
		stored = existing.LastUpdated
	default:
		existing, err := catalog.GetEpisodeByURL(entry.URL)
		if err != nil {
			return false, err
		}
		if existing == nil {
			return true, nil
		}
		stored = existing.LastUpdated
	}

	return entry.LastModified.Unix() > stored, nil
}

// persistItem writes one scraped item, stamping it with the index entry's
// last-modified time so the next cycle's comparison works, and returns how
// many rows actually changed.
func (c *SyncController) persistItem(catalog *store.CatalogStore, entry scraper.IndexEntry, item *scraper.Item, touchedSeries map[int64]bool) (int, error) {
	stamp := entry.LastModified.Unix()
	changed := 0

	switch item.Type {
	case models.ContentTypeMovie:
		if !entry.LastModified.IsZero() {
			item.Movie.LastUpdated = stamp
		}
		ok, err := catalog.UpsertMovie(item.Movie)
		if err != nil {
			return changed, err
		}
		if ok {
			changed++
		}

	case models.ContentTypeSeries:
		if !entry.LastModified.IsZero() {
			item.Series.LastUpdated = stamp
		}
		ok, err := catalog.UpsertSeries(item.Series)
		if err != nil {
			return changed, err
		}
		if ok {
			changed++
			touchedSeries[item.Series.ID] = true
		}

		for i := range item.Episodes {
			ok, err := catalog.UpsertEpisode(&item.Episodes[i])
			if err != nil {
				return changed, err
			}
			if ok {
				changed++
				touchedSeries[item.Episodes[i].SeriesID] = true
			}
		}

	case models.ContentTypeEpisode:
		for i := range item.Episodes {
			if !entry.LastModified.IsZero() {
				item.Episodes[i].LastUpdated = stamp
			}
			ok, err := catalog.UpsertEpisode(&item.Episodes[i])
			if err != nil {
				return changed, err
			}
			if ok {
				changed++
				touchedSeries[item.Episodes[i].SeriesID] = true
			}
		}
	}

	if err := catalog.UpsertGenres(item.Genres); err != nil {
		return changed, err
	}

	return changed, nil
}

// Package feed is the reactive query facade between the stores and the TV
// client. Every paged read is keyed by the active source and served
// cache-first; the Watch stream tells consumers to tear down and re-request
// their first page whenever the active source changes or a sync completes.
package feed

import (
	"context"

	"github.com/farsilandtv/farsihub/internal/cache"
	"github.com/farsilandtv/farsihub/internal/models"
	"github.com/farsilandtv/farsihub/internal/store"
	"github.com/farsilandtv/farsihub/internal/telemetry"
	"github.com/sirupsen/logrus"
)

// Update tells a consumer its current pages are stale.
type Update struct {
	Source models.SourceID `json:"source"`
	Mark   uint64          `json:"mark"`
}

// Feeds serves paged catalog listings.
type Feeds struct {
	manager *store.Manager
	caches  *cache.Caches
	signal  *Signal
	tel     *telemetry.Telemetry
	logger  *logrus.Logger
}

// NewFeeds creates the facade. The signal is shared with the sync engine
// (which publishes on completion) and the source-switch path.
func NewFeeds(manager *store.Manager, caches *cache.Caches, signal *Signal, tel *telemetry.Telemetry, logger *logrus.Logger) *Feeds {
	return &Feeds{manager: manager, caches: caches, signal: signal, tel: tel, logger: logger}
}

// Signal exposes the invalidation bus for publishers.
func (f *Feeds) Signal() *Signal { return f.signal }

// Movies returns one page of the "recent movies" feed for the active source.
// Cache-first with fall-through to the store; an invalidated-but-unfilled
// cache is a miss, never an error.
func (f *Feeds) Movies(page, pageSize int) ([]models.Movie, error) {
	active := f.manager.Active()
	key := cache.PageKey{Source: active, Page: page, PageSize: pageSize}

	if movies, ok := f.caches.Movies.Get(key, active); ok {
		f.tel.CacheHits.Inc()
		return movies, nil
	}
	f.tel.CacheMisses.Inc()

	st, err := f.manager.Store()
	if err != nil {
		return nil, err
	}
	movies, err := st.RecentMovies(page, pageSize)
	if err != nil {
		return nil, err
	}
	f.caches.Movies.Set(key, active, movies)
	return movies, nil
}

// Series returns one page of the "recent series" feed.
func (f *Feeds) Series(page, pageSize int) ([]models.Series, error) {
	active := f.manager.Active()
	key := cache.PageKey{Source: active, Page: page, PageSize: pageSize}

	if series, ok := f.caches.Series.Get(key, active); ok {
		f.tel.CacheHits.Inc()
		return series, nil
	}
	f.tel.CacheMisses.Inc()

	st, err := f.manager.Store()
	if err != nil {
		return nil, err
	}
	series, err := st.RecentSeries(page, pageSize)
	if err != nil {
		return nil, err
	}
	f.caches.Series.Set(key, active, series)
	return series, nil
}

// Episodes returns one page of the "recent episodes" feed.
func (f *Feeds) Episodes(page, pageSize int) ([]models.Episode, error) {
	active := f.manager.Active()
	key := cache.PageKey{Source: active, Page: page, PageSize: pageSize}

	if episodes, ok := f.caches.Episodes.Get(key, active); ok {
		f.tel.CacheHits.Inc()
		return episodes, nil
	}
	f.tel.CacheMisses.Inc()

	st, err := f.manager.Store()
	if err != nil {
		return nil, err
	}
	episodes, err := st.RecentEpisodes(page, pageSize)
	if err != nil {
		return nil, err
	}
	f.caches.Episodes.Set(key, active, episodes)
	return episodes, nil
}

// EpisodesBySeries returns a series' episodes in airing order, uncached
// (the per-series listing is cheap and rarely hammered by observers).
func (f *Feeds) EpisodesBySeries(seriesID int64) ([]models.Episode, error) {
	st, err := f.manager.Store()
	if err != nil {
		return nil, err
	}
	return st.EpisodesBySeries(seriesID)
}

// Invalidate evicts all cached pages and publishes a new mark. Called after
// catalog writes (write, then invalidate, then signal) and on source switch.
func (f *Feeds) Invalidate() {
	f.caches.PurgeAll()
	mark := f.signal.Publish()
	f.logger.WithField("mark", mark).Debug("Feeds invalidated")
}

// Watch streams updates until ctx is cancelled. Each update carries the
// source the consumer should now query against; the consumer reissues its
// first page on every update.
func (f *Feeds) Watch(ctx context.Context) <-chan Update {
	out := make(chan Update, 1)
	marks, cancel := f.signal.Subscribe()

	go func() {
		defer close(out)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case mark := <-marks:
				select {
				case out <- Update{Source: f.manager.Active(), Mark: mark}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Package cache provides the bounded in-memory page cache that sits in
// front of the catalog store. Entries are stamped with the source they were
// computed for and a timestamp; a hit requires both that the active source
// still matches and that the entry is younger than the TTL. Invalidation is
// always evict-all — correctness over cache efficiency.
package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/farsilandtv/farsihub/internal/models"
)

// PageKey identifies one cached page of one content listing.
type PageKey struct {
	Source   models.SourceID
	Page     int
	PageSize int
}

type entry[T any] struct {
	value    T
	source   models.SourceID
	storedAt time.Time
}

// PageCache is a bounded LRU of listing pages. The underlying LRU is
// thread-safe, so callers need no external locking.
type PageCache[T any] struct {
	storage *lru.Cache[PageKey, entry[T]]
	ttl     time.Duration
	now     func() time.Time
}

// NewPageCache creates a cache holding at most size pages, each valid for
// ttl.
func NewPageCache[T any](size int, ttl time.Duration) *PageCache[T] {
	c, _ := lru.New[PageKey, entry[T]](size)
	return &PageCache[T]{storage: c, ttl: ttl, now: time.Now}
}

// Get returns the cached page if it is still valid: recorded for the
// currently active source and younger than the TTL. Stale or
// mismatched-source entries are removed and reported as misses so the
// caller falls through to the store.
func (c *PageCache[T]) Get(key PageKey, activeSource models.SourceID) (T, bool) {
	var zero T

	e, ok := c.storage.Get(key)
	if !ok {
		return zero, false
	}
	if e.source != activeSource || c.now().Sub(e.storedAt) >= c.ttl {
		c.storage.Remove(key)
		return zero, false
	}
	return e.value, true
}

// Set stores a page computed for the given source.
func (c *PageCache[T]) Set(key PageKey, source models.SourceID, value T) {
	c.storage.Add(key, entry[T]{value: value, source: source, storedAt: c.now()})
}

// Purge drops every entry.
func (c *PageCache[T]) Purge() {
	c.storage.Purge()
}

// Len returns the current entry count.
func (c *PageCache[T]) Len() int {
	return c.storage.Len()
}

// Caches bundles the per-content-type page caches so sync completion and
// source switches can evict everything with one call.
type Caches struct {
	Movies   *PageCache[[]models.Movie]
	Series   *PageCache[[]models.Series]
	Episodes *PageCache[[]models.Episode]
}

// NewCaches creates the page-cache bundle.
func NewCaches(size int, ttl time.Duration) *Caches {
	return &Caches{
		Movies:   NewPageCache[[]models.Movie](size, ttl),
		Series:   NewPageCache[[]models.Series](size, ttl),
		Episodes: NewPageCache[[]models.Episode](size, ttl),
	}
}

// PurgeAll evicts every page from every cache. Used after catalog writes and
// on source switch; partial invalidation is deliberately not offered.
func (c *Caches) PurgeAll() {
	c.Movies.Purge()
	c.Series.Purge()
	c.Episodes.Purge()
}

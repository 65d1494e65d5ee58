package cache

import (
	"testing"
	"time"

	"github.com/farsilandtv/farsihub/internal/models"
)

func TestPageCacheHit(t *testing.T) {
	c := NewPageCache[[]string](10, 30*time.Second)
	key := PageKey{Source: models.SourceFarsiland, Page: 0, PageSize: 20}

	c.Set(key, models.SourceFarsiland, []string{"a", "b"})

	got, ok := c.Get(key, models.SourceFarsiland)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 2 {
		t.Errorf("expected 2 values, got %d", len(got))
	}
}

func TestPageCacheTTLExpiry(t *testing.T) {
	c := NewPageCache[int](10, 30*time.Second)
	key := PageKey{Source: models.SourceFarsiland, Page: 0, PageSize: 20}

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set(key, models.SourceFarsiland, 42)

	// One second before the TTL: still valid.
	c.now = func() time.Time { return base.Add(29 * time.Second) }
	if _, ok := c.Get(key, models.SourceFarsiland); !ok {
		t.Error("entry should still be valid before TTL")
	}

	// At the TTL boundary: expired.
	c.now = func() time.Time { return base.Add(30 * time.Second) }
	if _, ok := c.Get(key, models.SourceFarsiland); ok {
		t.Error("entry at TTL age must not be returned")
	}

	// Expired entries are evicted, not just masked.
	if c.Len() != 0 {
		t.Errorf("expired entry should be removed, cache has %d entries", c.Len())
	}
}

func TestPageCacheSourceMismatch(t *testing.T) {
	c := NewPageCache[int](10, time.Minute)
	key := PageKey{Source: models.SourceFarsiland, Page: 0, PageSize: 20}

	c.Set(key, models.SourceFarsiland, 7)

	if _, ok := c.Get(key, models.SourceFarsiplex); ok {
		t.Error("entry recorded for a different source must not be returned")
	}
}

func TestPurgeAll(t *testing.T) {
	caches := NewCaches(10, time.Minute)
	key := PageKey{Source: models.SourceFarsiland, Page: 0, PageSize: 20}

	caches.Movies.Set(key, models.SourceFarsiland, []models.Movie{{ID: 1}})
	caches.Series.Set(key, models.SourceFarsiland, []models.Series{{ID: 2}})
	caches.Episodes.Set(key, models.SourceFarsiland, []models.Episode{{ID: 3}})

	caches.PurgeAll()

	if caches.Movies.Len()+caches.Series.Len()+caches.Episodes.Len() != 0 {
		t.Error("PurgeAll must evict every entry from every cache")
	}
}

func TestLRUBound(t *testing.T) {
	c := NewPageCache[int](2, time.Minute)

	for i := 0; i < 5; i++ {
		c.Set(PageKey{Source: models.SourceFarsiland, Page: i, PageSize: 20}, models.SourceFarsiland, i)
	}

	if c.Len() > 2 {
		t.Errorf("cache must stay bounded, has %d entries", c.Len())
	}
}

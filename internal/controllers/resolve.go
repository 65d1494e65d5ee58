package controllers

import (
	"context"
	"fmt"
	"time"

	"github.com/farsilandtv/farsihub/internal/models"
	"github.com/farsilandtv/farsihub/internal/scraper"
	"github.com/farsilandtv/farsihub/internal/store"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// videoURLTTL bounds how long a resolved link is trusted. The sites rotate
// file hosts, so stale links go dead quickly.
const videoURLTTL = 30 * time.Minute

// ResolveController turns a content id into playable video URLs. Resolution
// is layered: an in-memory TTL cache, then the persisted variants in the
// catalog, then a live scrape of the player endpoint (which is also
// persisted for next time).
type ResolveController struct {
	manager  *store.Manager
	registry *scraper.Registry
	memory   *gocache.Cache
	logger   *logrus.Logger
}

func NewResolveController(manager *store.Manager, registry *scraper.Registry, logger *logrus.Logger) *ResolveController {
	return &ResolveController{
		manager:  manager,
		registry: registry,
		memory:   gocache.New(videoURLTTL, 10*time.Minute),
		logger:   logger,
	}
}

func memoryKey(contentID int64, contentType models.ContentType) string {
	return fmt.Sprintf("%s:%d", contentType, contentID)
}

// Resolve returns the video variants for a content item, freshest layer
// first.
func (c *ResolveController) Resolve(ctx context.Context, contentID int64, contentType models.ContentType) ([]models.VideoVariant, error) {
	key := memoryKey(contentID, contentType)
	if cached, ok := c.memory.Get(key); ok {
		return cached.([]models.VideoVariant), nil
	}

	catalog, err := c.manager.Store()
	if err != nil {
		return nil, err
	}

	persisted, err := catalog.VideoVariantsFor(contentID, contentType)
	if err != nil {
		return nil, err
	}
	if len(persisted) > 0 && !expired(persisted) {
		c.memory.Set(key, persisted, gocache.DefaultExpiration)
		return persisted, nil
	}

	variants, err := c.resolveLive(ctx, catalog, contentID, contentType)
	if err != nil {
		// A dead player endpoint should not strand the user when older
		// links are still on record.
		if len(persisted) > 0 {
			c.logger.WithFields(logrus.Fields{
				"contentId": contentID,
				"error":     err,
			}).Warn("Live resolution failed, serving stale variants")
			return persisted, nil
		}
		return nil, err
	}

	if err := catalog.ReplaceVideoVariants(contentID, contentType, variants); err != nil {
		c.logger.WithFields(logrus.Fields{
			"contentId": contentID,
			"error":     err,
		}).Warn("Failed to persist resolved variants")
	}
	c.memory.Set(key, variants, gocache.DefaultExpiration)
	return variants, nil
}

// resolveLive finds the content's page URL in the catalog and scrapes the
// player endpoint on its owning source.
func (c *ResolveController) resolveLive(ctx context.Context, catalog *store.CatalogStore, contentID int64, contentType models.ContentType) ([]models.VideoVariant, error) {
	pageURL, err := c.pageURLFor(catalog, contentID, contentType)
	if err != nil {
		return nil, err
	}

	sourceID, ok := c.registry.SourceOfURL(pageURL)
	if !ok {
		return nil, fmt.Errorf("no source owns URL %s", pageURL)
	}
	source, ok := c.registry.Get(sourceID)
	if !ok {
		return nil, fmt.Errorf("source %q not configured", sourceID)
	}

	return source.ResolveVideoSources(ctx, pageURL, contentID, contentType)
}

func (c *ResolveController) pageURLFor(catalog *store.CatalogStore, contentID int64, contentType models.ContentType) (string, error) {
	switch contentType {
	case models.ContentTypeMovie:
		movie, err := catalog.GetMovieByID(contentID)
		if err != nil {
			return "", err
		}
		if movie == nil {
			return "", fmt.Errorf("movie %d not in catalog", contentID)
		}
		return movie.SourceURL, nil
	case models.ContentTypeEpisode:
		episode, err := catalog.GetEpisodeByID(contentID)
		if err != nil {
			return "", err
		}
		if episode == nil {
			return "", fmt.Errorf("episode %d not in catalog", contentID)
		}
		return episode.SourceURL, nil
	default:
		return "", fmt.Errorf("cannot resolve video for content type %q", contentType)
	}
}

// Invalidate drops the in-memory layer, typically after a source switch.
func (c *ResolveController) Invalidate() {
	c.memory.Flush()
}

func expired(variants []models.VideoVariant) bool {
	cutoff := time.Now().Add(-videoURLTTL).Unix()
	for _, v := range variants {
		if v.CachedAt < cutoff {
			return true
		}
	}
	return false
}

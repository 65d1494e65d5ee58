package controllers

import (
	"context"
	"fmt"

	"github.com/farsilandtv/farsihub/internal/feed"
	"github.com/farsilandtv/farsihub/internal/models"
	"github.com/farsilandtv/farsihub/internal/store"
	"github.com/sirupsen/logrus"
)

// SourceController owns source switching and forced resync. Both operations
// follow the same shape: change the catalog handle, drop every cache layer,
// signal the feeds, then kick off a sync so the new catalog fills in the
// background.
type SourceController struct {
	manager   *store.Manager
	userState *store.UserStateStore
	feeds     *feed.Feeds
	sync      *SyncController
	resolve   *ResolveController
	logger    *logrus.Logger
}

func NewSourceController(manager *store.Manager, userState *store.UserStateStore, feeds *feed.Feeds, sync *SyncController, resolve *ResolveController, logger *logrus.Logger) *SourceController {
	return &SourceController{
		manager:   manager,
		userState: userState,
		feeds:     feeds,
		sync:      sync,
		resolve:   resolve,
		logger:    logger,
	}
}

// Active reports the currently selected source.
func (c *SourceController) Active() models.SourceID {
	return c.manager.Active()
}

// Switch changes the active source. The preference is persisted first so a
// crash mid-switch comes back up on the source the user picked.
func (c *SourceController) Switch(ctx context.Context, source models.SourceID) error {
	if !source.Valid() {
		return fmt.Errorf("unknown source %q", source)
	}
	if source == c.manager.Active() {
		return nil
	}

	if err := c.userState.SetPreference(models.PrefActiveSource, string(source)); err != nil {
		return fmt.Errorf("persisting source preference: %w", err)
	}
	if err := c.manager.Switch(source); err != nil {
		return fmt.Errorf("switching catalog: %w", err)
	}

	c.resolve.Invalidate()
	c.feeds.Invalidate()
	c.logger.WithField("source", source).Info("Active source switched")

	go c.backgroundSync(source)
	return nil
}

// ForceResync deletes the active source's catalog database and rebuilds it
// from a fresh sync. User state is untouched.
func (c *SourceController) ForceResync(ctx context.Context) error {
	source := c.manager.Active()
	if err := c.manager.ForceResync(); err != nil {
		return fmt.Errorf("dropping catalog: %w", err)
	}

	c.resolve.Invalidate()
	c.feeds.Invalidate()
	c.logger.WithField("source", source).Info("Catalog dropped for resync")

	go c.backgroundSync(source)
	return nil
}

// backgroundSync runs a one-shot sync detached from the caller's request
// lifetime.
func (c *SourceController) backgroundSync(source models.SourceID) {
	if err := c.sync.SyncSource(context.Background(), source); err != nil {
		c.logger.WithFields(logrus.Fields{
			"source": source,
			"error":  err,
		}).Error("Background sync after source change failed")
	}
}

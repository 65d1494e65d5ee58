package scheduler

import (
	"context"
	"fmt"

	"github.com/farsilandtv/farsihub/internal/config"
	"github.com/farsilandtv/farsihub/internal/controllers"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler manages the periodic sync job.
type Scheduler struct {
	cron     *cron.Cron
	syncCtrl *controllers.SyncController
	cfg      *config.Config
	logger   *logrus.Logger
}

// NewScheduler creates a new scheduler.
func NewScheduler(syncCtrl *controllers.SyncController, cfg *config.Config, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		syncCtrl: syncCtrl,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	// Incremental sync of the active source at the configured interval.
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.SyncInterval), func() {
		s.runSync()
	})
	if err != nil {
		return fmt.Errorf("failed to add sync job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")

	// Run an initial sync immediately so a fresh install has content
	// before the first tick.
	go s.runSync()

	return nil
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cron.Stop()
}

// runSync executes the sync job.
func (s *Scheduler) runSync() {
	s.logger.Info("Running scheduled sync")
	ctx := context.Background()

	if err := s.syncCtrl.SyncActive(ctx); err != nil {
		s.logger.WithError(err).Error("Sync job failed")
	} else {
		s.logger.Info("Sync job completed successfully")
	}
}

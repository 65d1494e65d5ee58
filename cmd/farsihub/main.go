package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/farsilandtv/farsihub/internal/api"
	"github.com/farsilandtv/farsihub/internal/cache"
	"github.com/farsilandtv/farsihub/internal/config"
	"github.com/farsilandtv/farsihub/internal/controllers"
	"github.com/farsilandtv/farsihub/internal/feed"
	"github.com/farsilandtv/farsihub/internal/scheduler"
	"github.com/farsilandtv/farsihub/internal/scraper"
	"github.com/farsilandtv/farsihub/internal/store"
	"github.com/farsilandtv/farsihub/internal/telemetry"
	"github.com/farsilandtv/farsihub/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "farsihub",
		Short: "Content sync daemon and API for Farsi streaming catalogs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the sync scheduler and HTTP API (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe()
			},
		},
		&cobra.Command{
			Use:   "sync",
			Short: "Run one sync cycle against the active source and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOnce(false)
			},
		},
		&cobra.Command{
			Use:   "resync",
			Short: "Drop the active catalog and rebuild it from scratch",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOnce(true)
			},
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles everything both the daemon and the one-shot commands need.
type app struct {
	cfg       *config.Config
	logger    *logrus.Logger
	userState *store.UserStateStore
	manager   *store.Manager
	tel       *telemetry.Telemetry
	registry  *scraper.Registry
	feeds     *feed.Feeds
	syncCtrl  *controllers.SyncController
}

func buildApp() (*app, error) {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("Starting Farsihub")
	logger.WithField("data_dir", cfg.DataDir).Info("Configuration loaded")

	// 3. Open user state (runs migrations). Migration failures are fatal:
	// the durable database is never silently recreated.
	userState, err := store.OpenUserState(cfg.UserStateDBPath(), cfg.LegacyDBFile, logger)
	if err != nil {
		var migErr *store.MigrationError
		if errors.As(err, &migErr) {
			return nil, fmt.Errorf("user-state migration failed, refusing to start: %w", err)
		}
		return nil, fmt.Errorf("failed to open user state: %w", err)
	}
	logger.Info("User state initialized")

	// 4. Restore the active source and open the catalog manager
	active := userState.ActiveSourcePreference(cfg.DefaultSource)
	manager := store.NewManager(cfg, active, logger)
	logger.WithField("source", active).Info("Catalog manager initialized")

	// 5. Telemetry
	tel := telemetry.New()

	// 6. Scraping stack: shared fetcher, one adapter per site
	fetcher := scraper.NewFetcher(cfg.ScrapeDelay, cfg.MaxResponseBytes, cfg.FetchTimeout, logger, tel.Tracer)
	registry := scraper.NewRegistry(fetcher,
		scraper.NewFarsiland(fetcher),
		scraper.NewFarsiplex(fetcher),
		scraper.NewNamakade(fetcher),
	)
	logger.Info("Sources initialized")

	// 7. Feeds over the page cache and update signal
	feeds := feed.NewFeeds(manager, cache.NewCaches(cfg.CacheSize, cfg.CacheTTL), feed.NewSignal(), tel, logger)

	// 8. Sync controller
	syncCtrl := controllers.NewSyncController(cfg, manager, registry, userState, feeds, tel, logger)
	logger.Info("Controllers initialized")

	return &app{
		cfg:       cfg,
		logger:    logger,
		userState: userState,
		manager:   manager,
		tel:       tel,
		registry:  registry,
		feeds:     feeds,
		syncCtrl:  syncCtrl,
	}, nil
}

func (a *app) close() {
	a.tel.Shutdown(context.Background())
	if err := a.manager.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close catalog manager")
	}
	if err := a.userState.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close user state")
	}
}

func runServe() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	resolveCtrl := controllers.NewResolveController(a.manager, a.registry, a.logger)
	searchCtrl := controllers.NewSearchController(a.manager, a.registry, a.userState, a.logger)
	sourceCtrl := controllers.NewSourceController(a.manager, a.userState, a.feeds, a.syncCtrl, resolveCtrl, a.logger)

	// Scheduler
	sched := scheduler.NewScheduler(a.syncCtrl, a.cfg, a.logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// HTTP server
	server := api.NewServer(a.cfg, a.manager, a.userState, a.feeds, searchCtrl, resolveCtrl, sourceCtrl, a.tel, a.logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	a.logger.Info("Farsihub is running")

	select {
	case sig := <-sigChan:
		a.logger.WithField("signal", sig.String()).Info("Shutdown signal received")
		cancel()
	case err := <-serverErrChan:
		return fmt.Errorf("server failed: %w", err)
	}

	if err := server.Shutdown(); err != nil {
		a.logger.WithError(err).Warn("Server shutdown failed")
	}
	a.logger.Info("Farsihub stopped")
	return nil
}

func runOnce(resync bool) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if resync {
		if err := a.manager.ForceResync(); err != nil {
			return fmt.Errorf("failed to drop catalog: %w", err)
		}
		a.logger.WithField("source", a.manager.Active()).Info("Catalog dropped")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return a.syncCtrl.SyncActive(ctx)
}

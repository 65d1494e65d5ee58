package api

import (
	"context"
	"fmt"
	"time"

	"github.com/farsilandtv/farsihub/internal/api/middleware"
	"github.com/farsilandtv/farsihub/internal/config"
	"github.com/farsilandtv/farsihub/internal/controllers"
	"github.com/farsilandtv/farsihub/internal/feed"
	"github.com/farsilandtv/farsihub/internal/store"
	"github.com/farsilandtv/farsihub/internal/telemetry"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP server.
type Server struct {
	app         *fiber.App
	cfg         *config.Config
	manager     *store.Manager
	userState   *store.UserStateStore
	feeds       *feed.Feeds
	searchCtrl  *controllers.SearchController
	resolveCtrl *controllers.ResolveController
	sourceCtrl  *controllers.SourceController
	tel         *telemetry.Telemetry
	logger      *logrus.Logger
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg *config.Config,
	manager *store.Manager,
	userState *store.UserStateStore,
	feeds *feed.Feeds,
	searchCtrl *controllers.SearchController,
	resolveCtrl *controllers.ResolveController,
	sourceCtrl *controllers.SourceController,
	tel *telemetry.Telemetry,
	logger *logrus.Logger,
) *Server {
	s := &Server{
		cfg:         cfg,
		manager:     manager,
		userState:   userState,
		feeds:       feeds,
		searchCtrl:  searchCtrl,
		resolveCtrl: resolveCtrl,
		sourceCtrl:  sourceCtrl,
		tel:         tel,
		logger:      logger,
	}

	s.app = fiber.New(fiber.Config{
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           60 * time.Second,
		DisableStartupMessage: true,
	})
	s.app.Use(middleware.Logging(logger))
	s.setupRoutes()

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/status", s.handleStatus)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.tel.Registry, promhttp.HandlerOpts{})))

	api := s.app.Group("/api")

	api.Get("/movies", s.handleMovies)
	api.Get("/series", s.handleSeries)
	api.Get("/episodes", s.handleEpisodes)
	api.Get("/series/:id/episodes", s.handleSeriesEpisodes)
	api.Get("/series/:id/progress", s.handleSeriesProgress)
	api.Get("/genres", s.handleGenres)

	api.Get("/search", s.handleSearch)
	api.Get("/search/history", s.handleSearchHistory)

	api.Get("/resolve/:type/:id", s.handleResolve)

	api.Post("/source", s.handleSwitchSource)
	api.Post("/resync", s.handleResync)
	api.Get("/updates", s.handleUpdates)

	api.Get("/watchlist", s.handleWatchlist)
	api.Post("/watchlist", s.handleWatchlistAdd)
	api.Delete("/watchlist/:id", s.handleWatchlistRemove)

	api.Get("/monitored", s.handleMonitored)
	api.Post("/monitored", s.handleMonitorAdd)
	api.Delete("/monitored/:id", s.handleMonitorRemove)

	api.Get("/favorites", s.handleFavorites)
	api.Post("/favorites/toggle", s.handleFavoriteToggle)

	api.Post("/progress", s.handleSaveProgress)
	api.Get("/progress/:type/:id", s.handleGetProgress)
	api.Post("/progress/episode", s.handleSaveEpisodeProgress)

	api.Get("/playlists", s.handlePlaylists)
	api.Post("/playlists", s.handlePlaylistCreate)
	api.Delete("/playlists/:id", s.handlePlaylistDelete)
	api.Get("/playlists/:id/items", s.handlePlaylistItems)
	api.Post("/playlists/:id/items", s.handlePlaylistAppend)

	api.Get("/notifications", s.handleNotifications)
	api.Post("/notifications/:id/read", s.handleNotificationRead)
}

// Start starts the HTTP server and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.cfg.ServerPort).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(":" + s.cfg.ServerPort); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down HTTP server")
	return s.app.ShutdownWithTimeout(10 * time.Second)
}

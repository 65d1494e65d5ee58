package api

import (
	"strings"
	"time"

	"github.com/farsilandtv/farsihub/internal/models"
	"github.com/farsilandtv/farsihub/internal/utils"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	searchLimit     = 50
)

// pageParams reads zero-based paging query parameters.
func pageParams(c *fiber.Ctx) (page, pageSize int) {
	page = c.QueryInt("page", 0)
	if page < 0 {
		page = 0
	}
	pageSize = c.QueryInt("pageSize", defaultPageSize)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// parseGenreFilter splits the comma-separated genres query parameter.
func parseGenreFilter(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	for _, g := range strings.Split(raw, ",") {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

// filterByGenre keeps the items matching any wanted genre. The filter applies
// within the requested page; cached slices are never mutated.
func filterByGenre[T any](items []T, wanted []string, genres func(T) string) []T {
	if len(wanted) == 0 {
		return items
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if utils.GenreMatches(genres(item), wanted) {
			out = append(out, item)
		}
	}
	return out
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	catalog, err := s.manager.Store()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	counts, err := catalog.Counts()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{
		"active_source": s.manager.Active(),
		"counts":        counts,
		"last_update":   s.feeds.Signal().Last(),
	})
}

func (s *Server) handleMovies(c *fiber.Ctx) error {
	page, pageSize := pageParams(c)
	movies, err := s.feeds.Movies(page, pageSize)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	movies = filterByGenre(movies, parseGenreFilter(c.Query("genres")),
		func(m models.Movie) string { return m.Genres })
	return c.JSON(movies)
}

func (s *Server) handleSeries(c *fiber.Ctx) error {
	page, pageSize := pageParams(c)
	series, err := s.feeds.Series(page, pageSize)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	series = filterByGenre(series, parseGenreFilter(c.Query("genres")),
		func(sr models.Series) string { return sr.Genres })
	return c.JSON(series)
}

func (s *Server) handleEpisodes(c *fiber.Ctx) error {
	page, pageSize := pageParams(c)
	episodes, err := s.feeds.Episodes(page, pageSize)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(episodes)
}

func (s *Server) handleSeriesEpisodes(c *fiber.Ctx) error {
	seriesID, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid series id")
	}
	episodes, err := s.feeds.EpisodesBySeries(int64(seriesID))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(episodes)
}

func (s *Server) handleGenres(c *fiber.Ctx) error {
	catalog, err := s.manager.Store()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	genres, err := catalog.Genres()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(genres)
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing query parameter q")
	}

	if c.Query("scope") == "all" {
		results, err := s.searchCtrl.Aggregated(c.Context(), query, searchLimit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(results)
	}

	hits, err := s.searchCtrl.Local(query, searchLimit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(hits)
}

func (s *Server) handleSearchHistory(c *fiber.Ctx) error {
	queries, err := s.searchCtrl.RecentSearches(c.QueryInt("n", 10))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(queries)
}

func contentTypeParam(c *fiber.Ctx) (models.ContentType, error) {
	switch c.Params("type") {
	case "movie":
		return models.ContentTypeMovie, nil
	case "series":
		return models.ContentTypeSeries, nil
	case "episode":
		return models.ContentTypeEpisode, nil
	default:
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid content type")
	}
}

func (s *Server) handleResolve(c *fiber.Ctx) error {
	contentType, err := contentTypeParam(c)
	if err != nil {
		return err
	}
	contentID, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid content id")
	}

	variants, err := s.resolveCtrl.Resolve(c.Context(), int64(contentID), contentType)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return c.JSON(variants)
}

func (s *Server) handleSwitchSource(c *fiber.Ctx) error {
	var body struct {
		Source models.SourceID `json:"source"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := s.sourceCtrl.Switch(c.Context(), body.Source); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{"active_source": s.sourceCtrl.Active()})
}

func (s *Server) handleResync(c *fiber.Ctx) error {
	if err := s.sourceCtrl.ForceResync(c.Context()); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) handleWatchlist(c *fiber.Ctx) error {
	items, err := s.userState.Watchlist()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(items)
}

type contentRef struct {
	ContentID int64  `json:"content_id"`
	Title     string `json:"title"`
}

func (s *Server) handleWatchlistAdd(c *fiber.Ctx) error {
	var body contentRef
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := s.userState.AddToWatchlist(body.ContentID, body.Title); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusCreated)
}

func (s *Server) handleWatchlistRemove(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid movie id")
	}
	if err := s.userState.RemoveFromWatchlist(int64(id)); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleMonitored(c *fiber.Ctx) error {
	items, err := s.userState.MonitoredSeries()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(items)
}

func (s *Server) handleMonitorAdd(c *fiber.Ctx) error {
	var body contentRef
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := s.userState.MonitorSeries(body.ContentID, body.Title); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusCreated)
}

func (s *Server) handleMonitorRemove(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid series id")
	}
	if err := s.userState.UnmonitorSeries(int64(id)); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleFavorites(c *fiber.Ctx) error {
	items, err := s.userState.Favorites()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(items)
}

func (s *Server) handleFavoriteToggle(c *fiber.Ctx) error {
	var body struct {
		ContentID   int64              `json:"content_id"`
		ContentType models.ContentType `json:"content_type"`
		Title       string             `json:"title"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	favorited, err := s.userState.ToggleFavorite(body.ContentID, body.ContentType, body.Title)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"favorited": favorited})
}

func (s *Server) handleSaveProgress(c *fiber.Ctx) error {
	var body struct {
		ContentID        int64              `json:"content_id"`
		ContentType      models.ContentType `json:"content_type"`
		PositionMs       int64              `json:"position_ms"`
		DurationMs       int64              `json:"duration_ms"`
		Quality          string             `json:"quality"`
		ExplicitComplete bool               `json:"explicit_complete"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	pos := models.PlaybackPosition{
		ContentID:     body.ContentID,
		ContentType:   body.ContentType,
		PositionMs:    body.PositionMs,
		DurationMs:    body.DurationMs,
		Quality:       models.VideoQuality(body.Quality),
		LastWatchedAt: time.Now(),
	}
	if err := s.userState.SavePlaybackPosition(pos, body.ExplicitComplete); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleGetProgress(c *fiber.Ctx) error {
	contentType, err := contentTypeParam(c)
	if err != nil {
		return err
	}
	contentID, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid content id")
	}
	pos, err := s.userState.GetPlaybackPosition(int64(contentID), contentType)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if pos == nil {
		return fiber.NewError(fiber.StatusNotFound, "no position recorded")
	}
	return c.JSON(pos)
}

func (s *Server) handleSaveEpisodeProgress(c *fiber.Ctx) error {
	var body struct {
		EpisodeID        int64 `json:"episode_id"`
		SeriesID         int64 `json:"series_id"`
		Season           int   `json:"season"`
		Episode          int   `json:"episode"`
		PositionMs       int64 `json:"position_ms"`
		DurationMs       int64 `json:"duration_ms"`
		ExplicitComplete bool  `json:"explicit_complete"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	progress := models.EpisodeProgress{
		EpisodeID:     body.EpisodeID,
		SeriesID:      body.SeriesID,
		Season:        body.Season,
		Episode:       body.Episode,
		PositionMs:    body.PositionMs,
		DurationMs:    body.DurationMs,
		LastWatchedAt: time.Now(),
	}
	if err := s.userState.SaveEpisodeProgress(progress, body.ExplicitComplete); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleSeriesProgress(c *fiber.Ctx) error {
	seriesID, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid series id")
	}
	rows, err := s.userState.SeriesProgress(int64(seriesID), c.QueryBool("completed", false))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(rows)
}

func (s *Server) handlePlaylists(c *fiber.Ctx) error {
	playlists, err := s.userState.Playlists()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(playlists)
}

func (s *Server) handlePlaylistCreate(c *fiber.Ctx) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing playlist name")
	}
	playlist, err := s.userState.CreatePlaylist(body.Name)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(playlist)
}

func (s *Server) handlePlaylistDelete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid playlist id")
	}
	if err := s.userState.DeletePlaylist(int64(id)); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handlePlaylistItems(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid playlist id")
	}
	items, err := s.userState.PlaylistItems(int64(id))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(items)
}

func (s *Server) handlePlaylistAppend(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid playlist id")
	}
	var body struct {
		ContentID   int64              `json:"content_id"`
		ContentType models.ContentType `json:"content_type"`
		Title       string             `json:"title"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := s.userState.AppendPlaylistItem(int64(id), body.ContentID, body.ContentType, body.Title); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusCreated)
}

func (s *Server) handleNotifications(c *fiber.Ctx) error {
	notifications, err := s.userState.Notifications(c.QueryBool("unread", false))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(notifications)
}

func (s *Server) handleNotificationRead(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid notification id")
	}
	if err := s.userState.MarkNotificationRead(int64(id)); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleUpdates long-polls for catalog changes. The client passes the mark
// it last saw; the response carries the newest mark, either immediately when
// the client is behind or once the next invalidation lands.
func (s *Server) handleUpdates(c *fiber.Ctx) error {
	since := uint64(c.QueryInt("since", 0))
	signal := s.feeds.Signal()

	if last := signal.Last(); last > since {
		return c.JSON(fiber.Map{"mark": last})
	}

	updates, cancel := signal.Subscribe()
	defer cancel()

	timer := time.NewTimer(25 * time.Second)
	defer timer.Stop()

	for {
		select {
		case mark := <-updates:
			if mark > since {
				return c.JSON(fiber.Map{"mark": mark})
			}
		case <-timer.C:
			return c.JSON(fiber.Map{"mark": signal.Last()})
		}
	}
}

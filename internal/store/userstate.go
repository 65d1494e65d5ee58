package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/farsilandtv/farsihub/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// UserStateStore is the durable user-owned database: watchlist, progress,
// favorites, playlists, preferences. It survives catalog resyncs and source
// switches, and its schema only ever moves forward through runMigrations.
type UserStateStore struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// OpenUserState opens the user-state database and applies pending
// migrations. A migration failure comes back as *MigrationError and must be
// treated as fatal; this function never falls back to recreating the file.
func OpenUserState(path, legacyDBFile string, logger *logrus.Logger) (*UserStateStore, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open user-state database: %w", err)
	}

	if err := runMigrations(db, migrationEnv{legacyDBFile: legacyDBFile, logger: logger}); err != nil {
		return nil, err
	}

	return &UserStateStore{db: db, logger: logger}, nil
}

// Close releases the underlying connection.
func (s *UserStateStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Watchlist

// AddToWatchlist upserts a watchlist entry.
func (s *UserStateStore) AddToWatchlist(movieID int64, title string) error {
	entry := models.WatchlistMovie{MovieID: movieID, Title: title, AddedAt: time.Now()}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "movieId"}},
		DoUpdates: clause.AssignmentColumns([]string{"title"}),
	}).Create(&entry).Error
}

// RemoveFromWatchlist deletes a watchlist entry; removing an absent entry is
// not an error.
func (s *UserStateStore) RemoveFromWatchlist(movieID int64) error {
	return s.db.Delete(&models.WatchlistMovie{}, "movieId = ?", movieID).Error
}

// Watchlist returns all entries, most recently added first.
func (s *UserStateStore) Watchlist() ([]models.WatchlistMovie, error) {
	var entries []models.WatchlistMovie
	err := s.db.Order("addedAt DESC").Find(&entries).Error
	return entries, err
}

// Monitored series

// MonitorSeries upserts a monitored-series entry.
func (s *UserStateStore) MonitorSeries(seriesID int64, title string) error {
	entry := models.MonitoredSeries{SeriesID: seriesID, Title: title, AddedAt: time.Now()}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "seriesId"}},
		DoUpdates: clause.AssignmentColumns([]string{"title"}),
	}).Create(&entry).Error
}

// UnmonitorSeries removes a monitored-series entry.
func (s *UserStateStore) UnmonitorSeries(seriesID int64) error {
	return s.db.Delete(&models.MonitoredSeries{}, "seriesId = ?", seriesID).Error
}

// MonitoredSeries returns all monitored series.
func (s *UserStateStore) MonitoredSeries() ([]models.MonitoredSeries, error) {
	var entries []models.MonitoredSeries
	err := s.db.Order("addedAt DESC").Find(&entries).Error
	return entries, err
}

// Favorites

// ToggleFavorite flips favorite state for a content item and reports the new
// state.
func (s *UserStateStore) ToggleFavorite(contentID int64, contentType models.ContentType, title string) (bool, error) {
	var existing models.Favorite
	err := s.db.Where("contentId = ? AND contentType = ?", contentID, contentType).First(&existing).Error
	if err == nil {
		if err := s.db.Delete(&existing).Error; err != nil {
			return false, err
		}
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	fav := models.Favorite{ContentID: contentID, ContentType: contentType, Title: title, AddedAt: time.Now()}
	if err := s.db.Create(&fav).Error; err != nil {
		return false, err
	}
	return true, nil
}

// Favorites returns all favorites, most recently added first.
func (s *UserStateStore) Favorites() ([]models.Favorite, error) {
	var favs []models.Favorite
	err := s.db.Order("addedAt DESC").Find(&favs).Error
	return favs, err
}

// Playback positions

// SavePlaybackPosition records resume state with last-write-wins semantics.
// Completion follows the unified policy (>=95% watched or explicit mark);
// CompletedAt is set only on the false-to-true transition and cleared when
// completion resets.
func (s *UserStateStore) SavePlaybackPosition(pos models.PlaybackPosition, explicitComplete bool) error {
	now := time.Now()
	pos.LastWatchedAt = now
	pos.IsCompleted = models.IsWatchedEnough(pos.PositionMs, pos.DurationMs, explicitComplete)

	var existing models.PlaybackPosition
	err := s.db.Where("contentId = ? AND contentType = ?", pos.ContentID, pos.ContentType).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if pos.IsCompleted {
			pos.CompletedAt = &now
		}
	case err != nil:
		return err
	default:
		switch {
		case pos.IsCompleted && !existing.IsCompleted:
			pos.CompletedAt = &now
		case pos.IsCompleted:
			pos.CompletedAt = existing.CompletedAt
		default:
			pos.CompletedAt = nil
		}
	}

	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contentId"}, {Name: "contentType"}},
		UpdateAll: true,
	}).Create(&pos).Error
}

// GetPlaybackPosition returns the stored position, or nil when none exists.
func (s *UserStateStore) GetPlaybackPosition(contentID int64, contentType models.ContentType) (*models.PlaybackPosition, error) {
	var pos models.PlaybackPosition
	err := s.db.Where("contentId = ? AND contentType = ?", contentID, contentType).First(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// Episode progress

// SaveEpisodeProgress records per-episode watch state, one row per episode
// (last write wins), with the same completion policy as playback positions.
func (s *UserStateStore) SaveEpisodeProgress(progress models.EpisodeProgress, explicitComplete bool) error {
	now := time.Now()
	progress.LastWatchedAt = now
	progress.IsCompleted = models.IsWatchedEnough(progress.PositionMs, progress.DurationMs, explicitComplete)

	var existing models.EpisodeProgress
	err := s.db.Where("episodeId = ?", progress.EpisodeID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if progress.IsCompleted {
			progress.CompletedAt = &now
		}
		return s.db.Create(&progress).Error
	case err != nil:
		return err
	}

	progress.ID = existing.ID
	switch {
	case progress.IsCompleted && !existing.IsCompleted:
		progress.CompletedAt = &now
	case progress.IsCompleted:
		progress.CompletedAt = existing.CompletedAt
	default:
		progress.CompletedAt = nil
	}
	return s.db.Save(&progress).Error
}

// SeriesProgress returns progress rows for one series, using the
// (seriesId, isCompleted) index when completedOnly is set.
func (s *UserStateStore) SeriesProgress(seriesID int64, completedOnly bool) ([]models.EpisodeProgress, error) {
	q := s.db.Where("seriesId = ?", seriesID)
	if completedOnly {
		q = q.Where("isCompleted = ?", true)
	}
	var rows []models.EpisodeProgress
	err := q.Order("season ASC, episode ASC").Find(&rows).Error
	return rows, err
}

// Playlists

// CreatePlaylist creates a named playlist.
func (s *UserStateStore) CreatePlaylist(name string) (*models.Playlist, error) {
	pl := models.Playlist{Name: name, CreatedAt: time.Now()}
	if err := s.db.Create(&pl).Error; err != nil {
		return nil, err
	}
	return &pl, nil
}

// DeletePlaylist removes a playlist and its items.
func (s *UserStateStore) DeletePlaylist(id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.PlaylistItem{}, "playlistId = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Playlist{}, "id = ?", id).Error
	})
}

// Playlists returns all playlists.
func (s *UserStateStore) Playlists() ([]models.Playlist, error) {
	var pls []models.Playlist
	err := s.db.Order("createdAt DESC").Find(&pls).Error
	return pls, err
}

// AppendPlaylistItem appends a content item to the end of a playlist.
func (s *UserStateStore) AppendPlaylistItem(playlistID, contentID int64, contentType models.ContentType, title string) error {
	var maxPos int
	err := s.db.Model(&models.PlaylistItem{}).
		Select("COALESCE(MAX(position), -1)").
		Where("playlistId = ?", playlistID).
		Scan(&maxPos).Error
	if err != nil {
		return err
	}

	item := models.PlaylistItem{
		PlaylistID:  playlistID,
		ContentID:   contentID,
		ContentType: contentType,
		Title:       title,
		Position:    maxPos + 1,
		AddedAt:     time.Now(),
	}
	return s.db.Create(&item).Error
}

// PlaylistItems returns a playlist's items in user order.
func (s *UserStateStore) PlaylistItems(playlistID int64) ([]models.PlaylistItem, error) {
	var items []models.PlaylistItem
	err := s.db.Where("playlistId = ?", playlistID).Order("position ASC").Find(&items).Error
	return items, err
}

// Search history

// RecordSearch appends one search-history row.
func (s *UserStateStore) RecordSearch(query string) error {
	return s.db.Create(&models.SearchHistory{Query: query, SearchedAt: time.Now()}).Error
}

// RecentSearches returns the latest n searches.
func (s *UserStateStore) RecentSearches(n int) ([]models.SearchHistory, error) {
	if n <= 0 {
		n = 20
	}
	var rows []models.SearchHistory
	err := s.db.Order("searchedAt DESC").Limit(n).Find(&rows).Error
	return rows, err
}

// Notifications

// AddNotification stores a user-visible notification unless the user has
// disabled them.
func (s *UserStateStore) AddNotification(kind, message string) error {
	if enabled, err := s.GetPreference(models.PrefNotificationsEnabled); err == nil && enabled == "false" {
		return nil
	}
	return s.db.Create(&models.Notification{
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now(),
	}).Error
}

// Notifications returns notifications, newest first.
func (s *UserStateStore) Notifications(unreadOnly bool) ([]models.Notification, error) {
	q := s.db.Order("createdAt DESC")
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	var rows []models.Notification
	err := q.Find(&rows).Error
	return rows, err
}

// MarkNotificationRead flags one notification as read.
func (s *UserStateStore) MarkNotificationRead(id int64) error {
	return s.db.Model(&models.Notification{}).Where("id = ?", id).Update("read", true).Error
}

// Preferences

// SetPreference upserts one key/value preference.
func (s *UserStateStore) SetPreference(key, value string) error {
	pref := models.Preference{Key: key, Value: value}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&pref).Error
}

// GetPreference returns a preference value, or "" when unset.
func (s *UserStateStore) GetPreference(key string) (string, error) {
	var pref models.Preference
	err := s.db.Where("key = ?", key).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return pref.Value, nil
}

// ActiveSourcePreference returns the persisted active source, falling back
// to the given default when unset or unknown.
func (s *UserStateStore) ActiveSourcePreference(fallback models.SourceID) models.SourceID {
	value, err := s.GetPreference(models.PrefActiveSource)
	if err != nil || value == "" {
		return fallback
	}
	source := models.SourceID(value)
	if !source.Valid() {
		return fallback
	}
	return source
}

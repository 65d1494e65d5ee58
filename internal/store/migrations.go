package store

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MigrationError is fatal: the user-state database holds watch history and
// watchlists, so a failed migration is surfaced to the user instead of being
// "recovered" by wiping the file. Manual intervention is the only recourse.
type MigrationError struct {
	Version int
	Name    string
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("user-state migration %d (%s) failed: %v", e.Version, e.Name, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

type migrationEnv struct {
	legacyDBFile string
	logger       *logrus.Logger
}

// Each migration is guarded with IF NOT EXISTS so re-running after a partial
// failure is safe, and none of them drops or rewrites user data.
type migration struct {
	version int
	name    string
	run     func(db *gorm.DB, env migrationEnv) error
}

var userStateMigrations = []migration{
	{1, "base tables", migrateBaseTables},
	{2, "playlists", migratePlaylists},
	{3, "notifications and playback quality", migrateNotifications},
	{4, "legacy transplant and progress dedup", migrateLegacyTransplant},
}

// runMigrations applies pending migrations in order, tracking the applied
// version in PRAGMA user_version.
func runMigrations(db *gorm.DB, env migrationEnv) error {
	var current int
	if err := db.Raw("PRAGMA user_version").Scan(&current).Error; err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range userStateMigrations {
		if m.version <= current {
			continue
		}

		env.logger.WithFields(logrus.Fields{
			"version": m.version,
			"name":    m.name,
		}).Info("Applying user-state migration")

		err := db.Transaction(func(tx *gorm.DB) error {
			return m.run(tx, env)
		})
		if err != nil {
			return &MigrationError{Version: m.version, Name: m.name, Err: err}
		}

		// user_version cannot be bound as a parameter.
		if err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)).Error; err != nil {
			return &MigrationError{Version: m.version, Name: m.name, Err: err}
		}
	}

	return nil
}

func migrateBaseTables(db *gorm.DB, _ migrationEnv) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS watchlist_movies (
			movieId INTEGER PRIMARY KEY NOT NULL,
			title TEXT,
			addedAt DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS monitored_series (
			seriesId INTEGER PRIMARY KEY NOT NULL,
			title TEXT,
			addedAt DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS favorites (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			contentId INTEGER NOT NULL,
			contentType TEXT NOT NULL,
			title TEXT,
			addedAt DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS index_favorites_content ON favorites(contentId, contentType)`,
		`CREATE TABLE IF NOT EXISTS playback_positions (
			contentId INTEGER NOT NULL,
			contentType TEXT NOT NULL,
			positionMs INTEGER NOT NULL,
			durationMs INTEGER NOT NULL,
			lastWatchedAt DATETIME NOT NULL,
			isCompleted NUMERIC NOT NULL DEFAULT 0,
			completedAt DATETIME,
			PRIMARY KEY (contentId, contentType)
		)`,
		`CREATE TABLE IF NOT EXISTS episode_progress (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			episodeId INTEGER NOT NULL,
			seriesId INTEGER NOT NULL,
			season INTEGER NOT NULL,
			episode INTEGER NOT NULL,
			positionMs INTEGER NOT NULL,
			durationMs INTEGER NOT NULL,
			lastWatchedAt DATETIME NOT NULL,
			isCompleted NUMERIC NOT NULL DEFAULT 0,
			completedAt DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS index_episode_progress_series_completed ON episode_progress(seriesId, isCompleted)`,
		`CREATE TABLE IF NOT EXISTS search_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			query TEXT NOT NULL,
			searchedAt DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS app_preferences (
			key TEXT PRIMARY KEY NOT NULL,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func migratePlaylists(db *gorm.DB, _ migrationEnv) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS playlists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			createdAt DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS playlist_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			playlistId INTEGER NOT NULL,
			contentId INTEGER NOT NULL,
			contentType TEXT NOT NULL,
			title TEXT,
			position INTEGER NOT NULL,
			addedAt DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS index_playlist_items_playlistId ON playlist_items(playlistId)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func migrateNotifications(db *gorm.DB, _ migrationEnv) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			message TEXT NOT NULL,
			createdAt DATETIME NOT NULL,
			read NUMERIC NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	if err := addColumnIfMissing(db, "playback_positions", "quality", "TEXT"); err != nil {
		return err
	}
	return nil
}

// migrateLegacyTransplant performs the one-time data transplant from the
// pre-split database file, then enforces the episode-progress uniqueness
// constraint. Ordering matters: duplicates (from the old schema, which never
// enforced uniqueness, or from the transplant itself) are collapsed to the
// most-recently-watched row per key BEFORE the unique index is created,
// otherwise index creation itself would fail.
func migrateLegacyTransplant(db *gorm.DB, env migrationEnv) error {
	if env.legacyDBFile != "" {
		if _, err := os.Stat(env.legacyDBFile); err == nil {
			if err := transplantLegacy(db, env); err != nil {
				return err
			}
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat legacy database: %w", err)
		}
		// A missing legacy file is the common case, not an error.
	}

	// Dedup before constraining: keep the row with the maximum
	// lastWatchedAt per episodeId, and per (contentId, contentType).
	dedup := []string{
		`DELETE FROM episode_progress WHERE id NOT IN (
			SELECT id FROM (
				SELECT id, MAX(lastWatchedAt) FROM episode_progress GROUP BY episodeId
			)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS index_episode_progress_episodeId ON episode_progress(episodeId)`,
	}
	for _, stmt := range dedup {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// transplantLegacy copies playback positions and episode progress out of the
// predecessor database. The old schema predates several columns, so every
// read substitutes defaults for columns the file does not have; rows sharing
// a key keep only the most recently watched copy.
func transplantLegacy(db *gorm.DB, env migrationEnv) error {
	legacy, err := gorm.Open(sqlite.Open(env.legacyDBFile+"?mode=ro"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open legacy database: %w", err)
	}
	defer func() {
		if sqlDB, err := legacy.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	if err := transplantPlaybackPositions(db, legacy, env.logger); err != nil {
		return err
	}
	if err := transplantEpisodeProgress(db, legacy, env.logger); err != nil {
		return err
	}
	return nil
}

type legacyPlayback struct {
	ContentID     int64     `gorm:"column:contentId"`
	ContentType   string    `gorm:"column:contentType"`
	PositionMs    int64     `gorm:"column:positionMs"`
	DurationMs    int64     `gorm:"column:durationMs"`
	Quality       string    `gorm:"column:quality"`
	LastWatchedAt time.Time `gorm:"column:lastWatchedAt"`
	IsCompleted   bool      `gorm:"column:isCompleted"`
}

func transplantPlaybackPositions(db, legacy *gorm.DB, logger *logrus.Logger) error {
	if !legacyTableExists(legacy, "playback_positions") {
		return nil
	}

	cols := legacyColumns(legacy, "playback_positions")
	sel := "contentId, contentType, positionMs, durationMs, lastWatchedAt"
	if cols["quality"] {
		sel += ", quality"
	} else {
		sel += ", '' AS quality"
	}
	if cols["isCompleted"] {
		sel += ", isCompleted"
	} else {
		sel += ", 0 AS isCompleted"
	}

	var rows []legacyPlayback
	if err := legacy.Raw("SELECT " + sel + " FROM playback_positions").Scan(&rows).Error; err != nil {
		return fmt.Errorf("failed to read legacy playback positions: %w", err)
	}

	// Collapse duplicate keys to the most recently watched row.
	type key struct {
		id int64
		ct string
	}
	best := make(map[key]legacyPlayback)
	for _, row := range rows {
		k := key{row.ContentID, row.ContentType}
		if prev, ok := best[k]; !ok || row.LastWatchedAt.After(prev.LastWatchedAt) {
			best[k] = row
		}
	}

	for _, row := range best {
		err := db.Exec(`INSERT OR REPLACE INTO playback_positions
			(contentId, contentType, positionMs, durationMs, quality, lastWatchedAt, isCompleted, completedAt)
			VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`,
			row.ContentID, row.ContentType, row.PositionMs, row.DurationMs,
			row.Quality, row.LastWatchedAt, row.IsCompleted).Error
		if err != nil {
			return fmt.Errorf("failed to transplant playback position: %w", err)
		}
	}

	logger.WithField("count", len(best)).Info("Transplanted legacy playback positions")
	return nil
}

type legacyProgress struct {
	EpisodeID     int64     `gorm:"column:episodeId"`
	SeriesID      int64     `gorm:"column:seriesId"`
	Season        int       `gorm:"column:season"`
	Episode       int       `gorm:"column:episode"`
	PositionMs    int64     `gorm:"column:positionMs"`
	DurationMs    int64     `gorm:"column:durationMs"`
	LastWatchedAt time.Time `gorm:"column:lastWatchedAt"`
	IsCompleted   bool      `gorm:"column:isCompleted"`
}

func transplantEpisodeProgress(db, legacy *gorm.DB, logger *logrus.Logger) error {
	if !legacyTableExists(legacy, "episode_progress") {
		return nil
	}

	cols := legacyColumns(legacy, "episode_progress")
	sel := "episodeId, seriesId, positionMs, durationMs, lastWatchedAt"
	if cols["season"] {
		sel += ", season"
	} else {
		sel += ", 0 AS season"
	}
	if cols["episode"] {
		sel += ", episode"
	} else {
		sel += ", 0 AS episode"
	}
	if cols["isCompleted"] {
		sel += ", isCompleted"
	} else {
		sel += ", 0 AS isCompleted"
	}

	var rows []legacyProgress
	if err := legacy.Raw("SELECT " + sel + " FROM episode_progress").Scan(&rows).Error; err != nil {
		return fmt.Errorf("failed to read legacy episode progress: %w", err)
	}

	best := make(map[int64]legacyProgress)
	for _, row := range rows {
		if prev, ok := best[row.EpisodeID]; !ok || row.LastWatchedAt.After(prev.LastWatchedAt) {
			best[row.EpisodeID] = row
		}
	}

	for _, row := range best {
		err := db.Exec(`INSERT INTO episode_progress
			(episodeId, seriesId, season, episode, positionMs, durationMs, lastWatchedAt, isCompleted, completedAt)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
			row.EpisodeID, row.SeriesID, row.Season, row.Episode,
			row.PositionMs, row.DurationMs, row.LastWatchedAt, row.IsCompleted).Error
		if err != nil {
			return fmt.Errorf("failed to transplant episode progress: %w", err)
		}
	}

	logger.WithField("count", len(best)).Info("Transplanted legacy episode progress")
	return nil
}

func legacyTableExists(db *gorm.DB, table string) bool {
	var n int
	db.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
	return n > 0
}

func legacyColumns(db *gorm.DB, table string) map[string]bool {
	type columnInfo struct {
		Name string `gorm:"column:name"`
	}
	var infos []columnInfo
	db.Raw(fmt.Sprintf("PRAGMA table_info(%s)", table)).Scan(&infos)

	cols := make(map[string]bool, len(infos))
	for _, info := range infos {
		cols[info.Name] = true
	}
	return cols
}

func addColumnIfMissing(db *gorm.DB, table, column, typ string) error {
	if legacyColumns(db, table)[column] {
		return nil
	}
	return db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, typ)).Error
}

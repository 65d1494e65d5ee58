package store

import (
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_state.db")

	s, err := OpenUserState(path, "", testLogger())
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	s.Close()

	// Reopening an already-migrated file must be a no-op.
	s, err = OpenUserState(path, "", testLogger())
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer s.Close()

	var version int
	if err := s.db.Raw("PRAGMA user_version").Scan(&version).Error; err != nil {
		t.Fatalf("reading version: %v", err)
	}
	want := userStateMigrations[len(userStateMigrations)-1].version
	if version != want {
		t.Errorf("schema version = %d, want %d", version, want)
	}
}

// buildLegacyDB writes a predecessor database: playback positions without
// the quality column, and episode progress with duplicate episodeId rows.
func buildLegacyDB(t *testing.T, path string) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("creating legacy db: %v", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	stmts := []string{
		`CREATE TABLE playback_positions (
			contentId INTEGER NOT NULL,
			contentType TEXT NOT NULL,
			positionMs INTEGER NOT NULL,
			durationMs INTEGER NOT NULL,
			lastWatchedAt DATETIME NOT NULL
		)`,
		`CREATE TABLE episode_progress (
			episodeId INTEGER NOT NULL,
			seriesId INTEGER NOT NULL,
			positionMs INTEGER NOT NULL,
			durationMs INTEGER NOT NULL,
			lastWatchedAt DATETIME NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("creating legacy schema: %v", err)
		}
	}

	older := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := db.Exec(`INSERT INTO playback_positions VALUES (1, 'movie', 5000, 100000, ?)`, older).Error; err != nil {
		t.Fatalf("seeding legacy playback: %v", err)
	}

	// Duplicate episode rows: the transplant must keep only the most
	// recently watched one.
	rows := []struct {
		pos  int64
		when time.Time
	}{
		{10_000, older},
		{90_000, newer},
	}
	for _, r := range rows {
		if err := db.Exec(`INSERT INTO episode_progress VALUES (42, 7, ?, 100000, ?)`, r.pos, r.when).Error; err != nil {
			t.Fatalf("seeding legacy progress: %v", err)
		}
	}
}

func TestLegacyTransplantDedupsKeepingNewest(t *testing.T) {
	dir := t.TempDir()
	legacyPath := filepath.Join(dir, "legacy.db")
	buildLegacyDB(t, legacyPath)

	s, err := OpenUserState(filepath.Join(dir, "user_state.db"), legacyPath, testLogger())
	if err != nil {
		t.Fatalf("open with legacy transplant failed: %v", err)
	}
	defer s.Close()

	rows, err := s.SeriesProgress(7, false)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("duplicates must collapse to one row, got %d", len(rows))
	}
	if rows[0].EpisodeID != 42 {
		t.Errorf("unexpected episode id %d", rows[0].EpisodeID)
	}
	if rows[0].PositionMs != 90_000 {
		t.Errorf("transplant should keep the most recently watched row, got position %d", rows[0].PositionMs)
	}
	// Columns the legacy schema lacked get defaults.
	if rows[0].Season != 0 || rows[0].Episode != 0 {
		t.Errorf("missing legacy columns should default to zero, got %d/%d", rows[0].Season, rows[0].Episode)
	}

	pos, err := s.GetPlaybackPosition(1, "movie")
	if err != nil {
		t.Fatalf("playback lookup failed: %v", err)
	}
	if pos == nil || pos.PositionMs != 5000 {
		t.Errorf("legacy playback position not transplanted: %+v", pos)
	}
}

func TestMissingLegacyFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenUserState(filepath.Join(dir, "user_state.db"), filepath.Join(dir, "never-existed.db"), testLogger())
	if err != nil {
		t.Fatalf("missing legacy file must not fail the open: %v", err)
	}
	s.Close()
}

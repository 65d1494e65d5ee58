package store

import (
	"path/filepath"
	"testing"

	"github.com/farsilandtv/farsihub/internal/models"
)

func openTestUserState(t *testing.T) *UserStateStore {
	t.Helper()
	s, err := OpenUserState(filepath.Join(t.TempDir(), "user_state.db"), "", testLogger())
	if err != nil {
		t.Fatalf("opening user state: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPlaybackCompletionPolicy(t *testing.T) {
	s := openTestUserState(t)

	// 50% watched: not complete.
	pos := models.PlaybackPosition{ContentID: 1, ContentType: models.ContentTypeMovie, PositionMs: 50_000, DurationMs: 100_000}
	if err := s.SavePlaybackPosition(pos, false); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, _ := s.GetPlaybackPosition(1, models.ContentTypeMovie)
	if got.IsCompleted || got.CompletedAt != nil {
		t.Error("50% watched must not be completed")
	}

	// 96% watched: complete, CompletedAt set.
	pos.PositionMs = 96_000
	if err := s.SavePlaybackPosition(pos, false); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, _ = s.GetPlaybackPosition(1, models.ContentTypeMovie)
	if !got.IsCompleted {
		t.Error("96% watched should be completed")
	}
	if got.CompletedAt == nil {
		t.Fatal("CompletedAt should be set on the completion transition")
	}
	firstCompleted := *got.CompletedAt

	// Rewatching the end keeps the original completion time.
	pos.PositionMs = 99_000
	if err := s.SavePlaybackPosition(pos, false); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, _ = s.GetPlaybackPosition(1, models.ContentTypeMovie)
	if got.CompletedAt == nil || !got.CompletedAt.Equal(firstCompleted) {
		t.Error("CompletedAt should be preserved while still completed")
	}

	// Restarting from the beginning resets completion.
	pos.PositionMs = 1_000
	if err := s.SavePlaybackPosition(pos, false); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, _ = s.GetPlaybackPosition(1, models.ContentTypeMovie)
	if got.IsCompleted || got.CompletedAt != nil {
		t.Error("restarting should clear completion")
	}

	// Explicit mark completes regardless of position.
	if err := s.SavePlaybackPosition(pos, true); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, _ = s.GetPlaybackPosition(1, models.ContentTypeMovie)
	if !got.IsCompleted {
		t.Error("explicit mark should complete at any position")
	}
}

func TestEpisodeProgressOneRowPerEpisode(t *testing.T) {
	s := openTestUserState(t)

	p := models.EpisodeProgress{EpisodeID: 10, SeriesID: 5, Season: 1, Episode: 10, PositionMs: 10_000, DurationMs: 100_000}
	if err := s.SaveEpisodeProgress(p, false); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	p.PositionMs = 97_000
	if err := s.SaveEpisodeProgress(p, false); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	rows, err := s.SeriesProgress(5, false)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row per episode, got %d", len(rows))
	}
	if !rows[0].IsCompleted {
		t.Error("97% watched should be completed")
	}

	completed, err := s.SeriesProgress(5, true)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(completed) != 1 {
		t.Errorf("completedOnly should include the completed row, got %d", len(completed))
	}
}

func TestToggleFavorite(t *testing.T) {
	s := openTestUserState(t)

	on, err := s.ToggleFavorite(1, models.ContentTypeMovie, "The Salesman")
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if !on {
		t.Error("first toggle should favorite")
	}

	off, err := s.ToggleFavorite(1, models.ContentTypeMovie, "The Salesman")
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if off {
		t.Error("second toggle should unfavorite")
	}

	favs, _ := s.Favorites()
	if len(favs) != 0 {
		t.Errorf("expected empty favorites, got %d", len(favs))
	}
}

func TestPlaylistAppendOrdering(t *testing.T) {
	s := openTestUserState(t)

	pl, err := s.CreatePlaylist("Weekend")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	for i, title := range []string{"first", "second", "third"} {
		if err := s.AppendPlaylistItem(pl.ID, int64(i+1), models.ContentTypeMovie, title); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	items, err := s.PlaylistItems(pl.ID)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, item := range items {
		if item.Position != i {
			t.Errorf("item %d has position %d", i, item.Position)
		}
	}

	if err := s.DeletePlaylist(pl.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	items, _ = s.PlaylistItems(pl.ID)
	if len(items) != 0 {
		t.Error("deleting a playlist should delete its items")
	}
}

func TestNotificationsRespectPreference(t *testing.T) {
	s := openTestUserState(t)

	if err := s.AddNotification(models.NotificationKindSyncFailed, "sync failed"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := s.SetPreference(models.PrefNotificationsEnabled, "false"); err != nil {
		t.Fatalf("set pref failed: %v", err)
	}
	if err := s.AddNotification(models.NotificationKindSyncFailed, "suppressed"); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	rows, err := s.Notifications(false)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("disabled notifications should be dropped, got %d rows", len(rows))
	}

	if err := s.MarkNotificationRead(rows[0].ID); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	unread, _ := s.Notifications(true)
	if len(unread) != 0 {
		t.Errorf("expected no unread notifications, got %d", len(unread))
	}
}

func TestActiveSourcePreferenceFallback(t *testing.T) {
	s := openTestUserState(t)

	if got := s.ActiveSourcePreference(models.SourceFarsiland); got != models.SourceFarsiland {
		t.Errorf("unset preference should fall back, got %s", got)
	}

	if err := s.SetPreference(models.PrefActiveSource, "namakade"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got := s.ActiveSourcePreference(models.SourceFarsiland); got != models.SourceNamakade {
		t.Errorf("expected namakade, got %s", got)
	}

	if err := s.SetPreference(models.PrefActiveSource, "bogus"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got := s.ActiveSourcePreference(models.SourceFarsiland); got != models.SourceFarsiland {
		t.Errorf("unknown stored source should fall back, got %s", got)
	}
}

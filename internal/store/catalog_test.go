package store

import (
	"path/filepath"
	"testing"

	"github.com/farsilandtv/farsihub/internal/models"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func openTestCatalog(t *testing.T) *CatalogStore {
	t.Helper()
	s, err := OpenCatalog(filepath.Join(t.TempDir(), "catalog.db"), models.SourceFarsiland, testLogger())
	if err != nil {
		t.Fatalf("opening catalog: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertMoviePreservesIdentity(t *testing.T) {
	s := openTestCatalog(t)

	original := &models.Movie{
		ID:          7,
		Title:       "The Salesman",
		SourceURL:   "https://farsiland.com/movies/the-salesman/",
		DateAdded:   100,
		LastUpdated: 100,
	}
	changed, err := s.UpsertMovie(original)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if !changed {
		t.Fatal("insert should report a change")
	}

	// Same URL, newer upstream stamp, different surrogate id.
	replacement := &models.Movie{
		ID:          999,
		Title:       "The Salesman (remastered)",
		SourceURL:   "https://farsiland.com/movies/the-salesman/",
		DateAdded:   500,
		LastUpdated: 200,
	}
	changed, err = s.UpsertMovie(replacement)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !changed {
		t.Fatal("newer LastUpdated should replace the row")
	}

	got, err := s.GetMovieByURL("https://farsiland.com/movies/the-salesman/")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got.ID != 7 {
		t.Errorf("surrogate id must survive replacement, got %d", got.ID)
	}
	if got.DateAdded != 100 {
		t.Errorf("dateAdded must survive replacement, got %d", got.DateAdded)
	}
	if got.Title != "The Salesman (remastered)" {
		t.Errorf("title should be replaced, got %q", got.Title)
	}
}

func TestUpsertMovieSkipsStaleUpdates(t *testing.T) {
	s := openTestCatalog(t)

	url := "https://farsiland.com/movies/a-separation/"
	if _, err := s.UpsertMovie(&models.Movie{ID: 1, Title: "A Separation", SourceURL: url, DateAdded: 100, LastUpdated: 300}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	stale := &models.Movie{ID: 1, Title: "A Separation (older copy)", SourceURL: url, LastUpdated: 200}
	changed, err := s.UpsertMovie(stale)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if changed {
		t.Error("stale LastUpdated must not replace the row")
	}

	got, _ := s.GetMovieByURL(url)
	if got.Title != "A Separation" {
		t.Errorf("row was replaced by stale data: %q", got.Title)
	}

	// Equal stamps are also a skip.
	equal := &models.Movie{ID: 1, Title: "equal stamp", SourceURL: url, LastUpdated: 300}
	if changed, _ = s.UpsertMovie(equal); changed {
		t.Error("equal LastUpdated must not replace the row")
	}
}

func TestRecentMoviesOrderedByFirstSeen(t *testing.T) {
	s := openTestCatalog(t)

	rows := []models.Movie{
		{ID: 1, Title: "old", SourceURL: "https://farsiland.com/movies/old/", DateAdded: 100, LastUpdated: 100},
		{ID: 2, Title: "new", SourceURL: "https://farsiland.com/movies/new/", DateAdded: 300, LastUpdated: 300},
		{ID: 3, Title: "mid", SourceURL: "https://farsiland.com/movies/mid/", DateAdded: 200, LastUpdated: 200},
	}
	for i := range rows {
		if _, err := s.UpsertMovie(&rows[i]); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	// A metadata refresh bumps lastUpdated but must not reorder the feed.
	refresh := &models.Movie{ID: 1, Title: "old (refreshed)", SourceURL: "https://farsiland.com/movies/old/", LastUpdated: 900}
	if _, err := s.UpsertMovie(refresh); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	got, err := s.RecentMovies(0, 10)
	if err != nil {
		t.Fatalf("paging failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 movies, got %d", len(got))
	}
	wantOrder := []int64{2, 3, 1}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Errorf("position %d: got id %d, want %d", i, got[i].ID, want)
		}
	}
}

func TestRecomputeSeriesTotals(t *testing.T) {
	s := openTestCatalog(t)

	series := &models.Series{ID: 50, Title: "Shahgoosh", SourceURL: "https://farsiland.com/tvshows/shahgoosh/", DateAdded: 1, LastUpdated: 1}
	if _, err := s.UpsertSeries(series); err != nil {
		t.Fatalf("insert series failed: %v", err)
	}

	eps := []models.Episode{
		{ID: 1, SeriesID: 50, Season: 1, Episode: 10, Title: "1x1", SourceURL: "https://farsiland.com/episodes/sh-1x1/", DateAdded: 1, LastUpdated: 1},
		{ID: 2, SeriesID: 50, Season: 1, Episode: 20, Title: "1x2", SourceURL: "https://farsiland.com/episodes/sh-1x2/", DateAdded: 1, LastUpdated: 1},
		{ID: 3, SeriesID: 50, Season: 2, Episode: 10, Title: "2x1", SourceURL: "https://farsiland.com/episodes/sh-2x1/", DateAdded: 1, LastUpdated: 1},
	}
	for i := range eps {
		if _, err := s.UpsertEpisode(&eps[i]); err != nil {
			t.Fatalf("insert episode failed: %v", err)
		}
	}

	if err := s.RecomputeSeriesTotals(50); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}

	got, _ := s.GetSeriesByID(50)
	if got.TotalSeasons != 2 {
		t.Errorf("expected 2 seasons, got %d", got.TotalSeasons)
	}
	if got.TotalEpisodes != 3 {
		t.Errorf("expected 3 episodes, got %d", got.TotalEpisodes)
	}
}

func TestReplaceVideoVariants(t *testing.T) {
	s := openTestCatalog(t)

	first := []models.VideoVariant{
		{Quality: models.Quality720p, MP4URL: "https://cdn.farsiland.com/a.720p.mp4"},
		{Quality: models.Quality1080p, MP4URL: "https://cdn.farsiland.com/a.1080p.mp4"},
	}
	if err := s.ReplaceVideoVariants(9, models.ContentTypeMovie, first); err != nil {
		t.Fatalf("first replace failed: %v", err)
	}

	second := []models.VideoVariant{
		{Quality: models.Quality480p, MP4URL: "https://cdn.farsiland.com/a.480p.mp4"},
	}
	if err := s.ReplaceVideoVariants(9, models.ContentTypeMovie, second); err != nil {
		t.Fatalf("second replace failed: %v", err)
	}

	got, err := s.VideoVariantsFor(9, models.ContentTypeMovie)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("replace should drop the previous set, got %d rows", len(got))
	}
	if got[0].Quality != models.Quality480p {
		t.Errorf("unexpected surviving quality %s", got[0].Quality)
	}
}

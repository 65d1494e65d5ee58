package store

import (
	"os"
	"testing"

	"github.com/farsilandtv/farsihub/internal/config"
	"github.com/farsilandtv/farsihub/internal/models"
)

func newTestManager(t *testing.T) (*Manager, *config.Config) {
	t.Helper()
	cfg := &config.Config{DataDir: t.TempDir()}
	m := NewManager(cfg, models.SourceFarsiland, testLogger())
	t.Cleanup(func() { m.Close() })
	return m, cfg
}

func TestManagerReusesOpenHandle(t *testing.T) {
	m, _ := newTestManager(t)

	first, err := m.Store()
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	second, err := m.Store()
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	if first != second {
		t.Error("repeated Store calls must return the same handle")
	}
}

func TestManagerSwitchChangesActiveSource(t *testing.T) {
	m, cfg := newTestManager(t)

	first, err := m.Store()
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	if err := m.Switch(models.SourceNamakade); err != nil {
		t.Fatalf("switch failed: %v", err)
	}
	if m.Active() != models.SourceNamakade {
		t.Errorf("active source should be namakade, got %s", m.Active())
	}

	second, err := m.Store()
	if err != nil {
		t.Fatalf("open after switch failed: %v", err)
	}
	if second == first {
		t.Error("switch must produce a fresh handle")
	}
	if second.Source() != models.SourceNamakade {
		t.Errorf("new handle bound to %s", second.Source())
	}

	// Both database files exist independently.
	for _, src := range []models.SourceID{models.SourceFarsiland, models.SourceNamakade} {
		if _, err := os.Stat(cfg.CatalogDBPath(src)); err != nil {
			t.Errorf("catalog file for %s missing: %v", src, err)
		}
	}

	if err := m.Switch("bogus"); err == nil {
		t.Error("switching to an unknown source must fail")
	}
}

func TestManagerForceResyncDeletesFile(t *testing.T) {
	m, cfg := newTestManager(t)

	catalog, err := m.Store()
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := catalog.UpsertMovie(&models.Movie{ID: 1, Title: "x", SourceURL: "https://farsiland.com/movies/x/", DateAdded: 1, LastUpdated: 1}); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	if err := m.ForceResync(); err != nil {
		t.Fatalf("resync failed: %v", err)
	}
	if _, err := os.Stat(cfg.CatalogDBPath(models.SourceFarsiland)); !os.IsNotExist(err) {
		t.Error("catalog file should be deleted")
	}

	// Next open recreates an empty catalog.
	fresh, err := m.Store()
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	counts, err := fresh.Counts()
	if err != nil {
		t.Fatalf("counts failed: %v", err)
	}
	if counts[models.ContentTypeMovie] != 0 {
		t.Errorf("rebuilt catalog should be empty, got %d movies", counts[models.ContentTypeMovie])
	}
}

func TestManagerSeedsFromBundledDatabase(t *testing.T) {
	seedDir := t.TempDir()
	cfg := &config.Config{DataDir: t.TempDir(), SeedDir: seedDir}

	// Build a seed catalog with one movie.
	seed, err := OpenCatalog(cfg.SeedDBPath(models.SourceFarsiland), models.SourceFarsiland, testLogger())
	if err != nil {
		t.Fatalf("building seed: %v", err)
	}
	if _, err := seed.UpsertMovie(&models.Movie{ID: 1, Title: "seeded", SourceURL: "https://farsiland.com/movies/seeded/", DateAdded: 1, LastUpdated: 1}); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	seed.Close()

	m := NewManager(cfg, models.SourceFarsiland, testLogger())
	defer m.Close()

	catalog, err := m.Store()
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	movie, err := catalog.GetMovieByID(1)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if movie == nil || movie.Title != "seeded" {
		t.Errorf("seed content should be present on first open, got %+v", movie)
	}
}

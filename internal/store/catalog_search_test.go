package store

import (
	"strings"
	"testing"

	"github.com/farsilandtv/farsihub/internal/models"
)

func TestSanitizeFTSQuery(t *testing.T) {
	cases := map[string]string{
		"salesman":        `"salesman"*`,
		"The Salesman":    `"the"* "salesman"*`,
		"spider-man 2":    `"spider"* "man"* "2"*`,
		`"evil" OR`:       `"evil"* "or"*`,
		"%":               "",
		"*":               "",
		`"`:               "",
		"  ()* NEAR/ %%^": `"near"*`,
		"":                "",
	}
	for in, want := range cases {
		if got := SanitizeFTSQuery(in); got != want {
			t.Errorf("SanitizeFTSQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSearchMatchesTitlesAndDescriptions(t *testing.T) {
	s := openTestCatalog(t)

	movies := []models.Movie{
		{ID: 1, Title: "The Salesman", Description: "A couple's life unravels", SourceURL: "https://farsiland.com/movies/the-salesman/", DateAdded: 1, LastUpdated: 1},
		{ID: 2, Title: "About Elly", Description: "A weekend by the Caspian sea", SourceURL: "https://farsiland.com/movies/about-elly/", DateAdded: 1, LastUpdated: 1},
	}
	for i := range movies {
		if _, err := s.UpsertMovie(&movies[i]); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
	series := &models.Series{ID: 3, Title: "Salesman Chronicles", SourceURL: "https://farsiland.com/tvshows/salesman-chronicles/", DateAdded: 1, LastUpdated: 1}
	if _, err := s.UpsertSeries(series); err != nil {
		t.Fatalf("insert series failed: %v", err)
	}

	hits, err := s.Search("sales", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("prefix search should hit movie and series, got %d", len(hits))
	}

	hits, err = s.Search("caspian", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ContentID != 2 {
		t.Errorf("description search should find About Elly, got %v", hits)
	}
}

func TestSearchOperatorInputMatchesNothing(t *testing.T) {
	s := openTestCatalog(t)

	if _, err := s.UpsertMovie(&models.Movie{ID: 1, Title: "Anything", SourceURL: "https://farsiland.com/movies/anything/", DateAdded: 1, LastUpdated: 1}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	for _, q := range []string{"%", "*", `"`, "()"} {
		hits, err := s.Search(q, 10)
		if err != nil {
			t.Fatalf("Search(%q) errored: %v", q, err)
		}
		if len(hits) != 0 {
			t.Errorf("Search(%q) must match nothing, got %d hits", q, len(hits))
		}
	}
}

func TestSearchIndexFollowsUpdatesAndDeletes(t *testing.T) {
	s := openTestCatalog(t)

	url := "https://farsiland.com/movies/renamed/"
	if _, err := s.UpsertMovie(&models.Movie{ID: 1, Title: "Original Title", SourceURL: url, DateAdded: 1, LastUpdated: 1}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := s.UpsertMovie(&models.Movie{ID: 1, Title: "Renamed Title", SourceURL: url, LastUpdated: 2}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	hits, err := s.Search("original", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("old title should have left the index, got %d hits", len(hits))
	}

	hits, err = s.Search("renamed", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("new title should be indexed, got %d hits", len(hits))
	}
}

func TestSplitStatementsHandlesTriggerBodies(t *testing.T) {
	stmts := splitStatements(searchSchema)
	if len(stmts) != 7 {
		t.Fatalf("expected 1 table + 6 triggers, got %d statements", len(stmts))
	}
	for _, stmt := range stmts[1:] {
		if !strings.Contains(stmt, "CREATE TRIGGER") {
			t.Errorf("statement is not a complete trigger:\n%s", stmt)
		}
		if !strings.Contains(stmt, "END;") {
			t.Errorf("trigger split before its END:\n%s", stmt)
		}
	}
}

package api

import (
	"testing"

	"github.com/farsilandtv/farsihub/internal/models"
)

func TestParseGenreFilter(t *testing.T) {
	got := parseGenreFilter(" Comedy, Drama ,,")
	if len(got) != 2 || got[0] != "Comedy" || got[1] != "Drama" {
		t.Errorf("unexpected filter terms: %v", got)
	}
	if parseGenreFilter("") != nil {
		t.Error("empty parameter should yield no filter")
	}
}

func TestFilterByGenreUsesORSemantics(t *testing.T) {
	movies := []models.Movie{
		{ID: 1, Title: "A", Genres: "Comedy|Family"},
		{ID: 2, Title: "B", Genres: "Drama"},
		{ID: 3, Title: "C", Genres: "Action"},
	}

	got := filterByGenre(movies, []string{"comedy", "drama"},
		func(m models.Movie) string { return m.Genres })
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Errorf("OR filter should keep A and B, got %v", got)
	}
	if len(movies) != 3 {
		t.Error("filtering must not mutate the input slice")
	}

	all := filterByGenre(movies, nil, func(m models.Movie) string { return m.Genres })
	if len(all) != 3 {
		t.Errorf("no filter should pass everything through, got %d", len(all))
	}
}

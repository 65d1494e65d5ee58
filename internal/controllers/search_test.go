package controllers

import (
	"testing"

	"github.com/farsilandtv/farsihub/internal/scraper"
)

func TestRankResultsPrefersCloserTitles(t *testing.T) {
	results := []scraper.SearchResult{
		{Title: "A Hero Among Us: The Complete Story"},
		{Title: "A Separation"},
		{Title: "Separation Anxiety"},
	}

	rankResults(results, "a separation")

	if results[0].Title != "A Separation" {
		t.Errorf("exact-ish match should rank first, got %q", results[0].Title)
	}
	if results[2].Title != "A Hero Among Us: The Complete Story" {
		t.Errorf("unrelated title should rank last, got %q", results[2].Title)
	}
}

func TestRankResultsIsStableOnTies(t *testing.T) {
	results := []scraper.SearchResult{
		{Title: "Tehran"},
		{Title: "Tehran"},
	}
	results[0].URL = "https://farsiland.com/movies/tehran/"
	results[1].URL = "https://farsiplex.com/movies/tehran/"

	rankResults(results, "tehran")

	if results[0].URL != "https://farsiland.com/movies/tehran/" {
		t.Error("equal titles should keep their input order")
	}
}

package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEpisodeNumberRoundTrip(t *testing.T) {
	cases := []struct {
		number  float64
		encoded int
	}{
		{14.5, 145},
		{1, 10},
		{0, 0},
		{23.5, 235},
		{100, 1000},
	}

	for _, c := range cases {
		got := EncodeEpisodeNumber(c.number)
		if got != c.encoded {
			t.Errorf("EncodeEpisodeNumber(%v) = %d, want %d", c.number, got, c.encoded)
		}
		back := DecodeEpisodeNumber(got)
		if back != c.number {
			t.Errorf("DecodeEpisodeNumber(%d) = %v, want %v", got, back, c.number)
		}
	}
}

func TestSplitGenres(t *testing.T) {
	got := SplitGenres("Drama|Comedy| Family |")
	want := []string{"Drama", "Comedy", "Family"}
	if len(got) != len(want) {
		t.Fatalf("expected %d genres, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("genre %d: got %q, want %q", i, got[i], want[i])
		}
	}

	if SplitGenres("") != nil {
		t.Error("empty genre string should explode to nil")
	}
}

func TestMovieJSONExplodesGenres(t *testing.T) {
	b, err := json.Marshal(Movie{ID: 1, Title: "Spider-Man", Genres: "Action|Drama"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(b), `"genres":["Action","Drama"]`) {
		t.Errorf("movie JSON should carry the genre list, got %s", b)
	}
	if strings.Contains(string(b), "Action|Drama") {
		t.Errorf("delimited genre form leaked into JSON: %s", b)
	}
}

func TestSeriesJSONExplodesGenres(t *testing.T) {
	b, err := json.Marshal(Series{ID: 2, Title: "Baba", Genres: "Comedy"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(b), `"genres":["Comedy"]`) {
		t.Errorf("series JSON should carry the genre list, got %s", b)
	}
}

func TestEpisodeJSONCarriesFractionalNumber(t *testing.T) {
	ep := Episode{ID: 3, SeriesID: 2, Season: 1, Episode: EncodeEpisodeNumber(14.5), Title: "Special"}
	b, err := json.Marshal(ep)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(b), `"episode":14.5`) {
		t.Errorf("episode JSON should carry the decoded number, got %s", b)
	}
	if strings.Contains(string(b), `"episode":145`) {
		t.Errorf("scaled storage form leaked into JSON: %s", b)
	}
}

func TestIsWatchedEnough(t *testing.T) {
	if !IsWatchedEnough(950, 1000, false) {
		t.Error("95% watched should count as completed")
	}
	if IsWatchedEnough(940, 1000, false) {
		t.Error("94% watched should not count as completed")
	}
	if !IsWatchedEnough(0, 1000, true) {
		t.Error("explicit mark should always complete")
	}
	if IsWatchedEnough(100, 0, false) {
		t.Error("unknown duration should not auto-complete")
	}
}

package scraper

import (
	"errors"
	"testing"
	"time"

	"github.com/farsilandtv/farsihub/internal/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace/noop"
)

func newTestFetcher(delay time.Duration) *Fetcher {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	f := NewFetcher(delay, 5*1024*1024, 10*time.Second, logger, noop.NewTracerProvider().Tracer("test"))
	f.AllowDomain(models.SourceFarsiland, "farsiland.com")
	return f
}

func TestValidateURLUpgradesHTTP(t *testing.T) {
	f := newTestFetcher(0)

	got, err := f.validateURL("http://farsiland.com/movies/the-salesman/")
	if err != nil {
		t.Fatalf("validateURL failed: %v", err)
	}
	if got != "https://farsiland.com/movies/the-salesman/" {
		t.Errorf("expected https upgrade, got %s", got)
	}
}

func TestValidateURLRejectsUnknownHost(t *testing.T) {
	f := newTestFetcher(0)

	if _, err := f.validateURL("https://evil.example.com/movies/x/"); err == nil {
		t.Fatal("expected error for host outside the allow-list")
	}
	if _, err := f.validateURL("ftp://farsiland.com/movies/x/"); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}

func TestValidateURLAllowsSubdomains(t *testing.T) {
	f := newTestFetcher(0)

	if _, err := f.validateURL("https://cdn.farsiland.com/poster.jpg"); err != nil {
		t.Errorf("subdomain of allowed host rejected: %v", err)
	}
	// Suffix tricks must not pass: notfarsiland.com is a different host.
	if _, err := f.validateURL("https://notfarsiland.com/movies/x/"); err == nil {
		t.Error("expected error for lookalike host")
	}
}

func TestRateGateSpacesReservations(t *testing.T) {
	g := newRateGate(100 * time.Millisecond)

	if d := g.reserve(models.SourceFarsiland); d > 0 {
		t.Errorf("first reservation should be immediate, got %v", d)
	}
	d2 := g.reserve(models.SourceFarsiland)
	if d2 <= 0 || d2 > 100*time.Millisecond {
		t.Errorf("second reservation should wait up to the interval, got %v", d2)
	}
	// A different source has its own slot.
	if d := g.reserve(models.SourceNamakade); d > 0 {
		t.Errorf("other source should be immediate, got %v", d)
	}
}

func TestStableIDDeterministicAndBounded(t *testing.T) {
	a := StableID("the-salesman")
	b := StableID("the-salesman")
	if a != b {
		t.Errorf("same slug produced different ids: %d vs %d", a, b)
	}
	if a < 0 || a >= idSpace {
		t.Errorf("id %d outside expected range", a)
	}
	if StableID("The-Salesman") != a {
		t.Error("id should be case-insensitive over the slug")
	}
	if StableID("a-separation") == a {
		t.Error("different slugs should produce different ids")
	}
}

func TestSlugFromURL(t *testing.T) {
	cases := map[string]string{
		"https://farsiland.com/movies/the-salesman/":      "the-salesman",
		"https://farsiland.com/movies/the-salesman":       "the-salesman",
		"https://farsiland.com/episodes/shahgoosh-1x4/?p": "shahgoosh-1x4",
	}
	for in, want := range cases {
		if got := SlugFromURL(in); got != want {
			t.Errorf("SlugFromURL(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestFailureClassification(t *testing.T) {
	netErr := &NetworkError{Message: "timeout"}
	parseErr := &ParseError{Message: "bad markup"}
	noData := &NoDataError{Message: "empty page"}

	if !IsRetryable(netErr) {
		t.Error("network errors should be retryable")
	}
	if IsRetryable(parseErr) || IsRetryable(noData) {
		t.Error("only network errors should be retryable")
	}
	if !IsNoData(noData) {
		t.Error("IsNoData should match NoDataError")
	}

	wrapped := errors.Join(errors.New("outer"), netErr)
	if !IsRetryable(wrapped) {
		t.Error("retryability should survive wrapping")
	}

	for err, want := range map[error]string{
		netErr:            "network",
		parseErr:          "parse",
		noData:            "no_data",
		errors.New("huh"): "unknown",
	} {
		if got := FailureClass(err); got != want {
			t.Errorf("FailureClass(%v) = %s, want %s", err, got, want)
		}
	}
}

func TestParseLastMod(t *testing.T) {
	if got := parseLastMod("2024-03-15T10:30:00+00:00"); got.IsZero() {
		t.Error("RFC3339 lastmod should parse")
	}
	if got := parseLastMod("2024-03-15"); got.IsZero() {
		t.Error("date-only lastmod should parse")
	}
	if got := parseLastMod("garbage"); !got.IsZero() {
		t.Errorf("unparseable lastmod should yield zero time, got %v", got)
	}
	if got := parseLastMod(""); !got.IsZero() {
		t.Errorf("empty lastmod should yield zero time, got %v", got)
	}
}

func TestNewestFirstIsStableOnEqualStamps(t *testing.T) {
	refs := []sitemapRef{
		{Loc: "a", LastMod: "2024-02-01"},
		{Loc: "b", LastMod: "2024-02-01"},
		{Loc: "c", LastMod: "2024-01-01"},
		{Loc: "d", LastMod: "2024-03-01"},
	}
	got := newestFirst(refs)
	want := []string{"d", "a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %d refs, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch at %d: got %v, want %v", i, got, want)
		}
	}
}

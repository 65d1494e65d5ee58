package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/farsilandtv/farsihub/internal/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

const userAgent = "Mozilla/5.0 (Linux; Android 12; AFTKA) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// rateGate enforces the per-source minimum interval between fetches. The
// check and the slot reservation happen under one lock so concurrent scrape
// tasks cannot both observe "free" and race past the limiter.
type rateGate struct {
	mu       sync.Mutex
	interval time.Duration
	next     map[models.SourceID]time.Time
}

func newRateGate(interval time.Duration) *rateGate {
	return &rateGate{interval: interval, next: make(map[models.SourceID]time.Time)}
}

// reserve atomically claims the next fetch slot for a source and returns
// how long the caller must wait before using it.
func (g *rateGate) reserve(source models.SourceID) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	at, ok := g.next[source]
	if !ok || at.Before(now) {
		at = now
	}
	g.next[source] = at.Add(g.interval)
	return at.Sub(now)
}

// Fetcher is the shared HTTP layer under every source adapter. It enforces
// the domain allow-list, the HTTPS requirement, the per-source rate gate and
// the response-size ceiling, and honors context cancellation on every
// suspension point (rate wait and in-flight request alike).
type Fetcher struct {
	client  *http.Client
	gate    *rateGate
	maxBody int64
	logger  *logrus.Logger
	tracer  trace.Tracer

	mu      sync.RWMutex
	allowed map[string]models.SourceID // host suffix -> owning source
}

// NewFetcher creates a fetcher. Domains are registered by the sources
// themselves via AllowDomain.
func NewFetcher(delay time.Duration, maxBody int64, timeout time.Duration, logger *logrus.Logger, tracer trace.Tracer) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		gate:    newRateGate(delay),
		maxBody: maxBody,
		logger:  logger,
		tracer:  tracer,
		allowed: make(map[string]models.SourceID),
	}
}

// AllowDomain adds a trusted domain (and its subdomains) for a source.
func (f *Fetcher) AllowDomain(source models.SourceID, domain string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowed[strings.ToLower(domain)] = source
}

// SourceOfURL reports which source's domain a URL belongs to.
func (f *Fetcher) SourceOfURL(rawURL string) (models.SourceID, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	return f.sourceOfHost(u.Hostname())
}

func (f *Fetcher) sourceOfHost(host string) (models.SourceID, bool) {
	host = strings.ToLower(host)
	f.mu.RLock()
	defer f.mu.RUnlock()
	for domain, source := range f.allowed {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return source, true
		}
	}
	return "", false
}

// validateURL enforces the outbound-URL policy: the host must belong to the
// allow-list, and plain HTTP is upgraded to HTTPS (the allow-list check
// already passed) rather than sent in the clear. Anything else is rejected.
func (f *Fetcher) validateURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &ParseError{Message: fmt.Sprintf("invalid URL %q", rawURL), Cause: err}
	}

	if _, ok := f.sourceOfHost(u.Hostname()); !ok {
		return "", &ParseError{Message: fmt.Sprintf("host %q is not on the allow-list", u.Hostname())}
	}

	switch u.Scheme {
	case "https":
	case "http":
		u.Scheme = "https"
	default:
		return "", &ParseError{Message: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	return u.String(), nil
}

// wait blocks for the rate-gate reservation, aborting early when the caller
// is cancelled.
func (f *Fetcher) wait(ctx context.Context, source models.SourceID) error {
	delay := f.gate.reserve(source)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (f *Fetcher) do(ctx context.Context, source models.SourceID, req *http.Request) ([]byte, error) {
	if err := f.wait(ctx, source); err != nil {
		return nil, err
	}

	ctx, span := f.tracer.Start(ctx, "fetch")
	defer span.End()

	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	f.logger.WithFields(logrus.Fields{
		"source": source,
		"method": req.Method,
		"url":    req.URL.String(),
	}).Debug("Fetching")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &NetworkError{Message: fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, req.URL.Host)}
	}

	// Reject oversized bodies before buffering: first by the declared
	// length, then by actually counting in case the declaration lies.
	if resp.ContentLength > f.maxBody {
		return nil, &NetworkError{Message: fmt.Sprintf("declared response size %d exceeds ceiling %d", resp.ContentLength, f.maxBody)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, &NetworkError{Message: "failed to read response body", Cause: err}
	}
	if int64(len(body)) > f.maxBody {
		return nil, &NetworkError{Message: fmt.Sprintf("response body exceeds ceiling %d", f.maxBody)}
	}

	return body, nil
}

// Bytes fetches a validated URL and returns the raw body (sitemaps, JSON).
func (f *Fetcher) Bytes(ctx context.Context, source models.SourceID, rawURL string) ([]byte, error) {
	validated, err := f.validateURL(rawURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodGet, validated, nil)
	if err != nil {
		return nil, &NetworkError{Message: "failed to build request", Cause: err}
	}
	return f.do(ctx, source, req)
}

// Document fetches a validated URL and parses it as HTML.
func (f *Fetcher) Document(ctx context.Context, source models.SourceID, rawURL string) (*goquery.Document, error) {
	body, err := f.Bytes(ctx, source, rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Message: "failed to parse HTML", Cause: err}
	}
	return doc, nil
}

// PostForm posts form data (the DooPlay player endpoint) and returns the
// raw body.
func (f *Fetcher) PostForm(ctx context.Context, source models.SourceID, rawURL string, data url.Values) ([]byte, error) {
	validated, err := f.validateURL(rawURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, validated, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, &NetworkError{Message: "failed to build request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	return f.do(ctx, source, req)
}

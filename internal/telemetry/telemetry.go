// Package telemetry owns the process-wide trace and metrics plumbing: an
// OpenTelemetry tracer for sync cycles and page fetches, and Prometheus
// counters served on /metrics.
package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles the tracer and the metric set.
type Telemetry struct {
	Registry *prometheus.Registry
	Tracer   trace.Tracer

	provider *sdktrace.TracerProvider

	SyncCycles     *prometheus.CounterVec // source, result
	ItemsSynced    *prometheus.CounterVec // source, content_type
	ScrapeFailures *prometheus.CounterVec // source, class
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
}

// New wires up the tracer provider and registers all collectors.
func New() *Telemetry {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	provider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(provider)

	return &Telemetry{
		Registry: registry,
		Tracer:   provider.Tracer("farsihub"),
		provider: provider,

		SyncCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "farsihub_sync_cycles_total",
			Help: "Sync cycles by source and result.",
		}, []string{"source", "result"}),
		ItemsSynced: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "farsihub_items_synced_total",
			Help: "Catalog items written by sync, by source and content type.",
		}, []string{"source", "content_type"}),
		ScrapeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "farsihub_scrape_failures_total",
			Help: "Per-entry scrape failures by source and failure class.",
		}, []string{"source", "class"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "farsihub_page_cache_hits_total",
			Help: "Page cache hits.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "farsihub_page_cache_misses_total",
			Help: "Page cache misses.",
		}),
	}
}

// Shutdown flushes the tracer provider.
func (t *Telemetry) Shutdown(ctx context.Context) {
	if t.provider != nil {
		_ = t.provider.Shutdown(ctx)
	}
}

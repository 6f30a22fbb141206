package cache

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("declindex.cache")
	meter  = otel.Meter("declindex.cache")
)

var (
	cacheHits        metric.Int64Counter
	cacheRebuilds    metric.Int64Counter
	persistFailures  metric.Int64Counter
	decodeFailures   metric.Int64Counter
	libraryEvictions metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// Hit tiers.
const (
	tierMemory    = "memory"
	tierPersisted = "persisted"
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		counters := []struct {
			dst         *metric.Int64Counter
			name        string
			description string
		}{
			{&cacheHits, "declindex_cache_hits_total", "Index requests answered without a rebuild"},
			{&cacheRebuilds, "declindex_cache_rebuilds_total", "Indexes rebuilt from declarations"},
			{&persistFailures, "declindex_cache_persist_failures_total", "Failed writes of rebuilt indexes"},
			{&decodeFailures, "declindex_cache_decode_failures_total", "Persisted indexes that could not be decoded"},
			{&libraryEvictions, "declindex_cache_library_evictions_total", "Library indexes dropped from memory"},
		}
		for _, c := range counters {
			counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.description))
			if err != nil {
				metricsErr = err
				return
			}
			*c.dst = counter
		}
	})
	return metricsErr
}

func recordHit(ctx context.Context, kind, tier string) {
	if initMetrics() != nil {
		return
	}
	cacheHits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("tier", tier),
	))
}

func recordRebuild(ctx context.Context, kind string) {
	if initMetrics() != nil {
		return
	}
	cacheRebuilds.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func recordPersistFailure(ctx context.Context, kind string) {
	if initMetrics() != nil {
		return
	}
	persistFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func recordDecodeFailure(ctx context.Context, reason string) {
	if initMetrics() != nil {
		return
	}
	decodeFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func recordLibraryEviction(ctx context.Context) {
	if initMetrics() != nil {
		return
	}
	libraryEvictions.Add(ctx, 1)
}

// startSpan creates a span for a cache operation.
func startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "cache."+operation, trace.WithAttributes(attrs...))
}

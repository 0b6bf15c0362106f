package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records query-layer measurements.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records one fetch, mutation or request with duration
	// and error status.
	RecordExecution(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// RecordCacheHit records a query answered from a fresh cache entry.
	RecordCacheHit(ctx context.Context, meta OpMeta)

	// RecordDedupJoin records a caller that joined an in-flight fetch.
	RecordDedupJoin(ctx context.Context, meta OpMeta)

	// RecordInvalidation records how many entries a tag invalidation marked stale.
	RecordInvalidation(ctx context.Context, tags []string, keys int)
}

type metricsImpl struct {
	queryTotal    metric.Int64Counter
	queryErrors   metric.Int64Counter
	queryDuration metric.Float64Histogram
	mutTotal      metric.Int64Counter
	mutErrors     metric.Int64Counter
	mutDuration   metric.Float64Histogram
	reqTotal      metric.Int64Counter
	reqErrors     metric.Int64Counter
	reqDuration   metric.Float64Histogram
	cacheHits     metric.Int64Counter
	dedupJoins    metric.Int64Counter
	invalidations metric.Int64Counter
}

// NewMetrics creates a Metrics instance backed by meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	m := &metricsImpl{}
	var err error

	if m.queryTotal, err = meter.Int64Counter("query.fetch.total",
		metric.WithDescription("Total number of network fetches issued by the cache"),
		metric.WithUnit("{call}")); err != nil {
		return nil, err
	}
	if m.queryErrors, err = meter.Int64Counter("query.fetch.errors",
		metric.WithDescription("Total number of failed fetches"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if m.queryDuration, err = meter.Float64Histogram("query.fetch.duration_ms",
		metric.WithDescription("Fetch duration in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.mutTotal, err = meter.Int64Counter("mutation.total",
		metric.WithDescription("Total number of dispatched mutations"),
		metric.WithUnit("{call}")); err != nil {
		return nil, err
	}
	if m.mutErrors, err = meter.Int64Counter("mutation.errors",
		metric.WithDescription("Total number of failed mutations"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if m.mutDuration, err = meter.Float64Histogram("mutation.duration_ms",
		metric.WithDescription("Mutation duration in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.reqTotal, err = meter.Int64Counter("api.request.total",
		metric.WithDescription("Total number of HTTP round trips to the API"),
		metric.WithUnit("{call}")); err != nil {
		return nil, err
	}
	if m.reqErrors, err = meter.Int64Counter("api.request.errors",
		metric.WithDescription("Total number of failed HTTP round trips"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if m.reqDuration, err = meter.Float64Histogram("api.request.duration_ms",
		metric.WithDescription("Round trip duration in milliseconds, retries included"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.cacheHits, err = meter.Int64Counter("query.cache.hits",
		metric.WithDescription("Queries answered from a fresh cache entry"),
		metric.WithUnit("{hit}")); err != nil {
		return nil, err
	}
	if m.dedupJoins, err = meter.Int64Counter("query.dedup.joins",
		metric.WithDescription("Callers that joined an in-flight fetch"),
		metric.WithUnit("{call}")); err != nil {
		return nil, err
	}
	if m.invalidations, err = meter.Int64Counter("query.invalidations",
		metric.WithDescription("Cache entries marked stale by tag invalidation"),
		metric.WithUnit("{entry}")); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordExecution(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.Attributes()...)
	ms := float64(duration.Microseconds()) / 1000

	total, errs, dur := m.queryTotal, m.queryErrors, m.queryDuration
	switch meta.Kind {
	case OpMutation:
		total, errs, dur = m.mutTotal, m.mutErrors, m.mutDuration
	case OpRequest:
		total, errs, dur = m.reqTotal, m.reqErrors, m.reqDuration
	}

	total.Add(ctx, 1, opt)
	if err != nil {
		errs.Add(ctx, 1, opt)
	}
	dur.Record(ctx, ms, opt)
}

func (m *metricsImpl) RecordCacheHit(ctx context.Context, meta OpMeta) {
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(meta.Attributes()...))
}

func (m *metricsImpl) RecordDedupJoin(ctx context.Context, meta OpMeta) {
	m.dedupJoins.Add(ctx, 1, metric.WithAttributes(meta.Attributes()...))
}

func (m *metricsImpl) RecordInvalidation(ctx context.Context, tags []string, keys int) {
	if keys == 0 {
		return
	}
	m.invalidations.Add(ctx, int64(keys), metric.WithAttributes(
		attribute.StringSlice("cache.tags", tags),
	))
}

type noopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordExecution(context.Context, OpMeta, time.Duration, error) {}
func (noopMetrics) RecordCacheHit(context.Context, OpMeta)                       {}
func (noopMetrics) RecordDedupJoin(context.Context, OpMeta)                      {}
func (noopMetrics) RecordInvalidation(context.Context, []string, int)            {}

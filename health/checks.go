package health

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/kyptronix/spectrum-admin/cache"
	"github.com/kyptronix/spectrum-admin/endpoint"
	"github.com/kyptronix/spectrum-admin/resilience"
)

// Doer sends one API request. *transport.HTTP implements it.
type Doer interface {
	Do(ctx context.Context, req endpoint.Request) (json.RawMessage, error)
}

// APIChecker fetches the moderation stats straight from the API, bypassing
// the cache. Responses slower than the threshold are degraded.
type APIChecker struct {
	api  Doer
	slow time.Duration
	now  func() time.Time
}

// NewAPIChecker creates an APIChecker. slow <= 0 disables the latency check.
func NewAPIChecker(api Doer, slow time.Duration) *APIChecker {
	return &APIChecker{api: api, slow: slow, now: time.Now}
}

func (c *APIChecker) Name() string { return "api" }

func (c *APIChecker) Check(ctx context.Context) Result {
	req, err := endpoint.Default().Resolve(endpoint.StatsGet, nil)
	if err != nil {
		return Unhealthy("stats endpoint unavailable", err)
	}

	start := c.now()
	_, err = c.api.Do(ctx, req)
	elapsed := c.now().Sub(start)
	details := map[string]any{"endpoint": req.Name, "latency_ms": elapsed.Milliseconds()}

	if err != nil {
		if kind, ok := cache.KindOf(err); ok {
			details["kind"] = kind.String()
		}
		return Unhealthy("admin API request failed", err).WithDetails(details)
	}
	if c.slow > 0 && elapsed > c.slow {
		return Degraded(fmt.Sprintf("admin API slow: %s", elapsed.Round(time.Millisecond))).WithDetails(details)
	}
	return Healthy("admin API reachable").WithDetails(details)
}

// BreakerChecker maps circuit breaker state to health: closed is healthy,
// half-open degraded, open unhealthy.
type BreakerChecker struct {
	breaker *resilience.CircuitBreaker
}

// NewBreakerChecker creates a BreakerChecker.
func NewBreakerChecker(b *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{breaker: b}
}

func (c *BreakerChecker) Name() string { return "breaker" }

func (c *BreakerChecker) Check(context.Context) Result {
	m := c.breaker.Metrics()
	details := map[string]any{
		"name":     m.Name,
		"state":    m.State.String(),
		"failures": m.Failures,
		"rejected": m.Rejected,
	}
	if !m.LastFailure.IsZero() {
		details["last_failure"] = m.LastFailure.UTC().Format(time.RFC3339)
	}

	switch m.State {
	case resilience.StateOpen:
		return Unhealthy("circuit open", resilience.ErrCircuitOpen).WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("circuit half-open").WithDetails(details)
	default:
		return Healthy("circuit closed").WithDetails(details)
	}
}

// StatsSource reports a summary of cached entries. *cache.Store
// implements it.
type StatsSource interface {
	Stats() cache.Stats
}

// CacheChecker is degraded when the share of entries holding an error
// reaches maxErrorRatio, and unhealthy when every settled entry failed.
type CacheChecker struct {
	store         StatsSource
	maxErrorRatio float64
}

// NewCacheChecker creates a CacheChecker. maxErrorRatio outside (0, 1]
// defaults to 0.5.
func NewCacheChecker(store StatsSource, maxErrorRatio float64) *CacheChecker {
	if maxErrorRatio <= 0 || maxErrorRatio > 1 {
		maxErrorRatio = 0.5
	}
	return &CacheChecker{store: store, maxErrorRatio: maxErrorRatio}
}

func (c *CacheChecker) Name() string { return "cache" }

func (c *CacheChecker) Check(context.Context) Result {
	st := c.store.Stats()
	details := map[string]any{
		"entries":     st.Entries,
		"success":     st.Success,
		"errors":      st.Errors,
		"loading":     st.Loading,
		"stale":       st.Stale,
		"subscribers": st.Subscribers,
		"in_flight":   st.InFlight,
	}

	settled := st.Success + st.Errors
	if settled == 0 {
		return Healthy("no settled entries").WithDetails(details)
	}
	ratio := float64(st.Errors) / float64(settled)
	details["error_ratio"] = ratio

	switch {
	case st.Errors == settled:
		return Unhealthy(fmt.Sprintf("all %d settled entries failed", settled), ErrCheckFailed).WithDetails(details)
	case ratio >= c.maxErrorRatio:
		return Degraded(fmt.Sprintf("%d of %d entries failed", st.Errors, settled)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("%d of %d entries failed", st.Errors, settled)).WithDetails(details)
	}
}

// HeapChecker compares the live heap with a budget. A long running
// dashboard keeps every watched page in memory.
type HeapChecker struct {
	maxBytes uint64
	warn     float64
	read     func(*runtime.MemStats)
}

// NewHeapChecker creates a HeapChecker that is degraded at 80% of
// maxBytes and unhealthy above it. maxBytes 0 reports without judging.
func NewHeapChecker(maxBytes uint64) *HeapChecker {
	return &HeapChecker{maxBytes: maxBytes, warn: 0.8, read: runtime.ReadMemStats}
}

func (c *HeapChecker) Name() string { return "heap" }

func (c *HeapChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	var ms runtime.MemStats
	c.read(&ms)
	details := map[string]any{
		"heap_alloc":   ms.HeapAlloc,
		"heap_objects": ms.HeapObjects,
		"num_gc":       ms.NumGC,
		"goroutines":   runtime.NumGoroutine(),
	}
	if c.maxBytes == 0 {
		return Healthy(fmt.Sprintf("heap %d MiB", ms.HeapAlloc>>20)).WithDetails(details)
	}

	ratio := float64(ms.HeapAlloc) / float64(c.maxBytes)
	details["usage_percent"] = ratio * 100
	switch {
	case ratio > 1:
		return Unhealthy(fmt.Sprintf("heap over budget: %.1f%%", ratio*100), ErrCheckFailed).WithDetails(details)
	case ratio >= c.warn:
		return Degraded(fmt.Sprintf("heap high: %.1f%%", ratio*100)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("heap normal: %.1f%%", ratio*100)).WithDetails(details)
	}
}

var (
	_ Checker = (*APIChecker)(nil)
	_ Checker = (*BreakerChecker)(nil)
	_ Checker = (*CacheChecker)(nil)
	_ Checker = (*HeapChecker)(nil)
)

package health

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/kyptronix/spectrum-admin/cache"
	"github.com/kyptronix/spectrum-admin/endpoint"
	"github.com/kyptronix/spectrum-admin/resilience"
)

type stubAPI struct {
	err   error
	delay time.Duration
	got   endpoint.Request
}

func (s *stubAPI) Do(ctx context.Context, req endpoint.Request) (json.RawMessage, error) {
	s.got = req
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return json.RawMessage(`{"stats":{}}`), s.err
}

type stubStats cache.Stats

func (s stubStats) Stats() cache.Stats { return cache.Stats(s) }

func TestAPIChecker(t *testing.T) {
	tests := []struct {
		name     string
		api      *stubAPI
		slow     time.Duration
		want     Status
		wantKind string
	}{
		{"reachable", &stubAPI{}, time.Second, StatusHealthy, ""},
		{"slow", &stubAPI{delay: 20 * time.Millisecond}, time.Millisecond, StatusDegraded, ""},
		{"server error", &stubAPI{err: cache.ServerError("stats.get", 503, "", "")}, 0, StatusUnhealthy, "server"},
		{"network error", &stubAPI{err: cache.NetworkError("stats.get", errors.New("dial"))}, 0, StatusUnhealthy, "network"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewAPIChecker(tt.api, tt.slow).Check(context.Background())
			if got.Status != tt.want {
				t.Fatalf("Status = %v, want %v (%s)", got.Status, tt.want, got.Message)
			}
			if tt.api.got.Name != endpoint.StatsGet || tt.api.got.Path != "/api/posts/admin/stats" {
				t.Errorf("request = %+v, want the stats endpoint", tt.api.got)
			}
			if tt.wantKind != "" && got.Details["kind"] != tt.wantKind {
				t.Errorf("kind = %v, want %s", got.Details["kind"], tt.wantKind)
			}
		})
	}
}

func TestBreakerChecker(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "admin-api",
		MaxFailures:  1,
		ResetTimeout: time.Minute,
		Now:          func() time.Time { return now },
	})
	check := NewBreakerChecker(cb)
	ctx := context.Background()

	if got := check.Check(ctx); got.Status != StatusHealthy {
		t.Fatalf("closed breaker Status = %v", got.Status)
	}

	_ = cb.Execute(ctx, func(context.Context) error { return errors.New("boom") })
	got := check.Check(ctx)
	if got.Status != StatusUnhealthy || !errors.Is(got.Error, resilience.ErrCircuitOpen) {
		t.Fatalf("open breaker = %v, %v", got.Status, got.Error)
	}
	if got.Details["state"] != "open" || got.Details["name"] != "admin-api" {
		t.Errorf("details = %v", got.Details)
	}

	now = now.Add(2 * time.Minute)
	if got := check.Check(ctx); got.Status != StatusDegraded {
		t.Fatalf("half-open breaker Status = %v", got.Status)
	}
}

func TestCacheChecker(t *testing.T) {
	tests := []struct {
		name  string
		stats cache.Stats
		want  Status
	}{
		{"empty", cache.Stats{}, StatusHealthy},
		{"only loading", cache.Stats{Entries: 2, Loading: 2}, StatusHealthy},
		{"few errors", cache.Stats{Entries: 4, Success: 3, Errors: 1}, StatusHealthy},
		{"half failed", cache.Stats{Entries: 4, Success: 2, Errors: 2}, StatusDegraded},
		{"all failed", cache.Stats{Entries: 2, Errors: 2}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewCacheChecker(stubStats(tt.stats), 0).Check(context.Background())
			if got.Status != tt.want {
				t.Errorf("Status = %v, want %v (%s)", got.Status, tt.want, got.Message)
			}
		})
	}
}

func TestHeapChecker(t *testing.T) {
	fake := func(alloc uint64) func(*runtime.MemStats) {
		return func(ms *runtime.MemStats) { ms.HeapAlloc = alloc }
	}

	tests := []struct {
		name  string
		max   uint64
		alloc uint64
		want  Status
	}{
		{"no budget", 0, 1 << 30, StatusHealthy},
		{"normal", 100, 50, StatusHealthy},
		{"high", 100, 85, StatusDegraded},
		{"over", 100, 120, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewHeapChecker(tt.max)
			c.read = fake(tt.alloc)
			if got := c.Check(context.Background()); got.Status != tt.want {
				t.Errorf("Status = %v, want %v (%s)", got.Status, tt.want, got.Message)
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := NewHeapChecker(0).Check(ctx); got.Status != StatusUnhealthy {
		t.Errorf("cancelled Status = %v, want unhealthy", got.Status)
	}
}

func fixed(status Status) Checker {
	return NewCheckerFunc(status.String(), func(context.Context) Result {
		return Result{Status: status, Message: status.String()}
	})
}

func TestAggregator(t *testing.T) {
	agg := NewAggregator()
	agg.Register("a", fixed(StatusHealthy))
	agg.Register("b", fixed(StatusDegraded))
	agg.Register("a", fixed(StatusHealthy))

	if names := agg.CheckerNames(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("CheckerNames() = %v", names)
	}
	if got := OverallStatus(agg.CheckAll(context.Background())); got != StatusDegraded {
		t.Errorf("OverallStatus() = %v, want degraded", got)
	}

	agg.Register("c", NewCheckerFunc("c", func(context.Context) Result {
		return Unhealthy("down", ErrCheckFailed)
	}))
	report := agg.Report(context.Background())
	if report.Status != "unhealthy" || len(report.Checks) != 3 {
		t.Fatalf("Report() = %+v", report)
	}
	if report.Checks["c"].Error != ErrCheckFailed.Error() {
		t.Errorf("c error = %q", report.Checks["c"].Error)
	}
	if _, err := json.Marshal(report); err != nil {
		t.Errorf("report does not encode: %v", err)
	}

	agg.Unregister("c")
	agg.Unregister("b")
	if got := agg.Checker().Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("aggregate Status = %v, want healthy", got.Status)
	}
	if _, err := agg.Check(context.Background(), "b"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("Check(removed) error = %v", err)
	}
}

func TestAggregator_Timeout(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 10 * time.Millisecond, Sequential: true})
	agg.Register("slow", NewCheckerFunc("slow", func(ctx context.Context) Result {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return Healthy("late")
	}))

	got, err := agg.Check(context.Background(), "slow")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusUnhealthy || !errors.Is(got.Error, ErrCheckTimeout) {
		t.Errorf("Check() = %v, %v; want timeout", got.Status, got.Error)
	}
	if OverallStatus(nil) != StatusHealthy {
		t.Error("no results must be healthy")
	}
}

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

type throttled struct{ after time.Duration }

func (e throttled) Error() string             { return "throttled" }
func (e throttled) RetryAfter() time.Duration { return e.after }

var errPermanent = errors.New("permanent")

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond})
	calls := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_ExhaustedWrapsLastError(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond})
	last := errors.New("still down")
	err := r.Execute(context.Background(), func(context.Context) error { return last })
	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Errorf("err = %v, want ErrMaxRetriesExceeded", err)
	}
	if !errors.Is(err, last) {
		t.Errorf("err = %v, want wrapped last error", err)
	}
}

func TestRetry_RetryIfStopsEarly(t *testing.T) {
	r := NewRetry(RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		RetryIf:      func(err error) bool { return !errors.Is(err, errPermanent) },
	})
	calls := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		calls++
		return errPermanent
	})
	if err != errPermanent {
		t.Errorf("err = %v, want errPermanent unchanged", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_HonorsRetryAfter(t *testing.T) {
	var delays []time.Duration
	r := NewRetry(RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     30 * time.Millisecond,
		OnRetry:      func(_ int, _ error, d time.Duration) { delays = append(delays, d) },
	})
	_ = r.Execute(context.Background(), func(context.Context) error {
		if len(delays) == 0 {
			return throttled{after: 5 * time.Millisecond}
		}
		return throttled{after: time.Hour}
	})
	if len(delays) != 2 {
		t.Fatalf("delays = %v, want 2 entries", delays)
	}
	if delays[0] != 5*time.Millisecond {
		t.Errorf("first delay = %v, want server-provided 5ms", delays[0])
	}
	if delays[1] != 30*time.Millisecond {
		t.Errorf("second delay = %v, want MaxDelay cap", delays[1])
	}
}

func TestRetry_ContextCancelDuringWait(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := r.Execute(ctx, func(context.Context) error { return errors.New("down") })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestRetry_BackoffStrategies(t *testing.T) {
	tests := []struct {
		strategy BackoffStrategy
		attempt  int
		want     time.Duration
	}{
		{BackoffConstant, 3, 10 * time.Millisecond},
		{BackoffLinear, 3, 30 * time.Millisecond},
		{BackoffExponential, 3, 40 * time.Millisecond},
		{BackoffExponential, 10, 100 * time.Millisecond},
	}
	for _, tt := range tests {
		r := NewRetry(RetryConfig{Strategy: tt.strategy, InitialDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond})
		if got := r.delay(tt.attempt, errors.New("x")); got != tt.want {
			t.Errorf("strategy %d attempt %d: delay = %v, want %v", tt.strategy, tt.attempt, got, tt.want)
		}
	}
}

func TestRetry_Defaults(t *testing.T) {
	cfg := NewRetry(RetryConfig{}).Config()
	if cfg.MaxAttempts != 3 || cfg.InitialDelay != 200*time.Millisecond || cfg.MaxDelay != 10*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTimeout_DeadlineReturnsErrTimeout(t *testing.T) {
	to := NewTimeout(TimeoutConfig{Timeout: 10 * time.Millisecond})
	err := to.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestTimeout_ParentCancelIsNotTimeout(t *testing.T) {
	to := NewTimeout(TimeoutConfig{Timeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := to.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestTimeout_PassesThroughErrors(t *testing.T) {
	want := errors.New("bad request")
	err := NewTimeout(TimeoutConfig{}).Execute(context.Background(), func(context.Context) error { return want })
	if err != want {
		t.Errorf("err = %v, want %v", err, want)
	}
	if got := NewTimeout(TimeoutConfig{}).Config().Timeout; got != 10*time.Second {
		t.Errorf("default timeout = %v, want 10s", got)
	}
}

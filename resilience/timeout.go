package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutConfig configures Timeout.
type TimeoutConfig struct {
	// Timeout bounds one attempt. Default: 10s
	Timeout time.Duration
}

// Timeout bounds how long an operation may run.
//
// Contract:
// - op receives a context that ends at the deadline and must honour it.
// - A deadline hit by this wrapper returns ErrTimeout; a deadline or
//   cancellation of the parent context is returned as ctx.Err().
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a Timeout with defaults applied.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &Timeout{config: config}
}

// Execute runs op with the configured deadline.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	tctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	err := op(tctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, t.config.Timeout, err)
	}
	return err
}

// Config returns the effective configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}

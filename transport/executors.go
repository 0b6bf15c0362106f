package transport

import (
	"time"

	"github.com/kyptronix/spectrum-admin/resilience"
)

// Config tunes the executors built by NewExecutors.
type Config struct {
	// Timeout bounds one attempt. Default: 10s
	Timeout time.Duration

	// RetryAttempts counts the first read attempt. Default: 3
	RetryAttempts int
	// RetryInitialDelay is the first backoff. Default: 200ms
	RetryInitialDelay time.Duration
	// RetryMaxDelay caps backoff and Retry-After delays. Default: 10s
	RetryMaxDelay time.Duration

	// BreakerFailures opens the circuit. Default: 5
	BreakerFailures int
	// BreakerReset is how long the circuit stays open. Default: 30s
	BreakerReset time.Duration

	// RateLimit is requests per second; zero disables the limiter.
	RateLimit float64
	// RateBurst defaults to 10.
	RateBurst int
}

// DefaultConfig returns the settings the dashboard ships with.
func DefaultConfig() Config {
	return Config{
		Timeout:           10 * time.Second,
		RetryAttempts:     3,
		RetryInitialDelay: 200 * time.Millisecond,
		RetryMaxDelay:     10 * time.Second,
		BreakerFailures:   5,
		BreakerReset:      30 * time.Second,
	}
}

// NewExecutors builds the read and write executors. They share one circuit
// breaker so a failing API stops both.
func NewExecutors(cfg Config) (reads, writes *resilience.Executor) {
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "admin-api",
		MaxFailures:  cfg.BreakerFailures,
		ResetTimeout: cfg.BreakerReset,
		IsFailure:    retryable,
	})
	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts:  cfg.RetryAttempts,
		InitialDelay: cfg.RetryInitialDelay,
		MaxDelay:     cfg.RetryMaxDelay,
		Jitter:       true,
		RetryIf:      retryable,
	})

	readOpts := []resilience.ExecutorOption{
		resilience.WithCircuitBreaker(breaker),
		resilience.WithRetry(retry),
		resilience.WithTimeout(cfg.Timeout),
	}
	writeOpts := []resilience.ExecutorOption{
		resilience.WithCircuitBreaker(breaker),
		resilience.WithTimeout(cfg.Timeout),
	}
	if cfg.RateLimit > 0 {
		limiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:        cfg.RateLimit,
			Burst:       cfg.RateBurst,
			WaitOnLimit: true,
		})
		readOpts = append(readOpts, resilience.WithRateLimiter(limiter))
		writeOpts = append(writeOpts, resilience.WithRateLimiter(limiter))
	}
	return resilience.NewExecutor(readOpts...), resilience.NewExecutor(writeOpts...)
}

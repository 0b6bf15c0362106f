package observe

import (
	"context"
	"time"
)

// ExecuteFunc is the signature of a fetch, mutation or request that
// Middleware wraps.
type ExecuteFunc func(ctx context.Context, meta OpMeta) (any, error)

// Middleware wraps an operation with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap returns a function safe for concurrent use.
//   - Context: the span context is propagated to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// MiddlewareFrom creates a Middleware from a set of Instruments.
func MiddlewareFrom(in Instruments) *Middleware {
	return NewMiddleware(in.Tracer, in.Metrics, in.Logger)
}

// Wrap wraps fn with a span, an execution measurement and one log line.
// Successful operations log at debug; failures log at warn, except
// unparseable responses which log at error.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, meta OpMeta) (any, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		result, err := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordExecution(ctx, meta, duration, err)

		fields := append(meta.Fields(), Field{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000})
		if err == nil {
			m.logger.Debug(ctx, string(meta.Kind)+" completed", fields...)
			return result, nil
		}

		fields = append(fields, Field{Key: "error", Value: err})
		if isParseFailure(err) {
			m.logger.Error(ctx, string(meta.Kind)+" failed", fields...)
		} else {
			m.logger.Warn(ctx, string(meta.Kind)+" failed", fields...)
		}
		return result, err
	}
}

// parseFailure is implemented by errors that can report whether a response
// body could not be decoded. It keeps observe free of a cache import.
type parseFailure interface {
	ParseFailure() bool
}

func isParseFailure(err error) bool {
	for err != nil {
		if pf, ok := err.(parseFailure); ok {
			return pf.ParseFailure()
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

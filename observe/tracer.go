package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// OpKind distinguishes reads from writes in telemetry.
type OpKind string

const (
	// OpQuery is a cached read against an endpoint.
	OpQuery OpKind = "query"
	// OpMutation is a write dispatched through the mutation dispatcher.
	OpMutation OpKind = "mutation"
	// OpRequest is a single transport round trip.
	OpRequest OpKind = "request"
)

// OpMeta describes one query, mutation or request for telemetry purposes.
type OpMeta struct {
	Kind     OpKind
	Endpoint string   // endpoint name, e.g. "reports.list"
	Key      string   // cache key (queries only)
	Target   string   // identity tag (mutations only)
	Tags     []string // tags provided or invalidated
}

// SpanName returns the deterministic span name for this operation.
// Format: query.fetch.<endpoint>, mutation.<endpoint> or request.<endpoint>.
func (m OpMeta) SpanName() string {
	switch m.Kind {
	case OpQuery:
		return "query.fetch." + m.Endpoint
	case OpMutation:
		return "mutation." + m.Endpoint
	default:
		return string(m.Kind) + "." + m.Endpoint
	}
}

// Attributes returns the span/metric attributes for this operation.
func (m OpMeta) Attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("op.kind", string(m.Kind)),
		attribute.String("op.endpoint", m.Endpoint),
	}
	if m.Target != "" {
		attrs = append(attrs, attribute.String("op.target", m.Target))
	}
	return attrs
}

// Fields returns the log fields for this operation.
func (m OpMeta) Fields() []Field {
	fields := []Field{
		{Key: "op.kind", Value: string(m.Kind)},
		{Key: "op.endpoint", Value: m.Endpoint},
	}
	if m.Key != "" {
		fields = append(fields, Field{Key: "cache.key", Value: m.Key})
	}
	if m.Target != "" {
		fields = append(fields, Field{Key: "op.target", Value: m.Target})
	}
	return fields
}

// Tracer wraps OpenTelemetry tracing with operation-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for the operation.
	StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	attrs := meta.Attributes()
	if meta.Key != "" {
		attrs = append(attrs, attribute.String("cache.key", meta.Key))
	}
	if len(meta.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice("cache.tags", meta.Tags))
	}

	kind := trace.SpanKindInternal
	if meta.Kind == OpRequest {
		kind = trace.SpanKindClient
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(kind),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a tracer that records nothing.
func NopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}

package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// OperationMeta describes a unit of work for telemetry purposes. Unlike a
// fixed taxonomy, the tag set is carried as free-form attributes so a
// "SnsPublish" span (message size, message id) and a "DatabaseQuery" span
// (page number, record count) can each carry their own vocabulary.
type OperationMeta struct {
	Name  string
	Attrs []Field
}

// tracerAttrs renders the operation's Attrs into OpenTelemetry attributes.
func (m OperationMeta) tracerAttrs() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(m.Attrs))
	for _, f := range m.Attrs {
		attrs = append(attrs, toAttribute(f))
	}
	return attrs
}

func toAttribute(f Field) attribute.KeyValue {
	switch v := f.Value.(type) {
	case string:
		return attribute.String(f.Key, v)
	case bool:
		return attribute.Bool(f.Key, v)
	case int:
		return attribute.Int(f.Key, v)
	case int64:
		return attribute.Int64(f.Key, v)
	case float64:
		return attribute.Float64(f.Key, v)
	case []string:
		return attribute.StringSlice(f.Key, v)
	default:
		return attribute.String(f.Key, fmtValue(v))
	}
}

func fmtValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return "unsupported"
}

// Tracer wraps OpenTelemetry tracing with span management for a named operation.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: StartSpan derives the returned context from ctx; it reports no error.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for the named operation.
	StartSpan(ctx context.Context, meta OperationMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// newTracer creates a new Tracer wrapping the given OpenTelemetry tracer.
func newTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer. It is
// exported so callers that need direct span control (rather than
// Middleware's generic any-based Wrap) can build one from Observer.Tracer().
func NewTracer(t trace.Tracer) Tracer {
	return newTracer(t)
}

// StartSpan starts a new span named after the operation, with its attributes attached.
func (t *tracerImpl) StartSpan(ctx context.Context, meta OperationMeta) (context.Context, trace.Span) {
	attrs := meta.tracerAttrs()
	attrs = append(attrs, attribute.Bool("operation.error", false))

	ctx, span := t.tracer.Start(ctx, meta.Name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	return ctx, span
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("operation.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// newNoopTracer creates a no-op tracer.
func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta OperationMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.Name)
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}

package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vinayprograms/automationkit/envelope"
)

// Tracer wraps OpenTelemetry tracing with automation-specific spans.
type Tracer struct {
	tracer trace.Tracer
	debug  bool // When true, include message bodies in span attributes
}

var (
	globalTracer *Tracer
	tracerMu     sync.RWMutex
)

// SetGlobalTracer sets the global tracer instance.
func SetGlobalTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer, or a no-op tracer if not set.
func GetTracer() *Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return &Tracer{tracer: noop.NewTracerProvider().Tracer("")}
	}
	return globalTracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer(name string, debug bool) *Tracer {
	return &Tracer{
		tracer: otel.Tracer(name),
		debug:  debug,
	}
}

// NewTracerFromProvider creates a tracer from a specific provider.
func NewTracerFromProvider(tp trace.TracerProvider, name string, debug bool) *Tracer {
	return &Tracer{
		tracer: tp.Tracer(name),
		debug:  debug,
	}
}

// Debug returns whether message bodies are recorded.
func (t *Tracer) Debug() bool {
	return t.debug
}

// --- Send Spans ---

// StartSendSpan starts a span for delivering one envelope.
func (t *Tracer) StartSendSpan(ctx context.Context, req envelope.RequestContext) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "automation.send", trace.WithSpanKind(trace.SpanKindProducer))
	span.SetAttributes(
		attribute.String("automation.correlation_id", req.CorrelationID),
		attribute.String("automation.team_id", req.Team.ID),
	)
	return ctx, span
}

// EndSendSpan ends a send span. env may be nil when building failed.
func (t *Tracer) EndSendSpan(span trace.Span, env *envelope.Envelope, err error) {
	if env != nil {
		attrs := []attribute.KeyValue{
			attribute.String("automation.content_type", env.ContentType),
			attribute.Int("automation.destinations", len(env.Destinations)),
			attribute.Int("automation.actions", len(env.Actions)),
		}
		if env.ID != "" {
			attrs = append(attrs, attribute.String("automation.message_id", env.ID))
		}
		if t.debug {
			attrs = append(attrs, attribute.String("automation.body", truncate(env.Body, 4000)))
		}
		span.SetAttributes(attrs...)
	}
	end(span, err)
}

// --- Handler Spans ---

// StartHandlerSpan starts a span for a command or event handler.
func (t *Tracer) StartHandlerSpan(ctx context.Context, kind, name string, req envelope.RequestContext) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, kind+"."+name, trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("automation.operation", name),
		attribute.String("automation.operation_type", kind),
		attribute.String("automation.correlation_id", req.CorrelationID),
		attribute.String("automation.team_id", req.Team.ID),
	)
	return ctx, span
}

// EndHandlerSpan ends a handler span.
func (t *Tracer) EndHandlerSpan(span trace.Span, err error) {
	end(span, err)
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

package monitoring

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span kinds understood by the Phoenix UI. They land on every span as the
// "openinference.span.kind" attribute.
const (
	SpanKindLLM       = "LLM"
	SpanKindRetriever = "RETRIEVER"
	SpanKindEmbedding = "EMBEDDING"
	SpanKindReranker  = "RERANKER"
	SpanKindChain     = "CHAIN"
)

// ISpanEmitter is the sink for observability spans produced by the session
// tracker. Implementations must be safe for concurrent use.
type ISpanEmitter interface {
	EmitSpan(ctx context.Context, name, kind string, attrs map[string]interface{})
}

type otelSpanEmitter struct {
	tracer trace.Tracer
}

// NewOtelSpanEmitter emits spans through the globally registered OTLP tracer
// provider. Spans are point-in-time records: any duration worth reporting
// travels as a regular attribute.
func NewOtelSpanEmitter() ISpanEmitter {
	return &otelSpanEmitter{
		tracer: otel.Tracer("lus-laboris-api/internal/monitoring"),
	}
}

func (e *otelSpanEmitter) EmitSpan(ctx context.Context, name, kind string, attrs map[string]interface{}) {
	_, span := e.tracer.Start(ctx, name)
	defer span.End()

	span.SetAttributes(attribute.String("openinference.span.kind", kind))
	span.SetAttributes(SerializeAttributes(attrs)...)
}

type nopSpanEmitter struct{}

// NewNopSpanEmitter returns an emitter that drops every span. Used when
// monitoring is disabled so callers never need to branch.
func NewNopSpanEmitter() ISpanEmitter {
	return nopSpanEmitter{}
}

func (nopSpanEmitter) EmitSpan(ctx context.Context, name, kind string, attrs map[string]interface{}) {
}

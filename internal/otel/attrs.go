package otel

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GenAI semantic convention attributes used on classification spans.
const (
	GenAISystem               = attribute.Key("gen_ai.system")
	GenAIRequestModel         = attribute.Key("gen_ai.request.model")
	GenAIRequestMaxTokens     = attribute.Key("gen_ai.request.max_tokens")
	GenAIUsageInputTokens     = attribute.Key("gen_ai.usage.input_tokens")
	GenAIUsageOutputTokens    = attribute.Key("gen_ai.usage.output_tokens")
	GenAIResponseFinishReason = attribute.Key("gen_ai.response.finish_reason")
)

// Attention pipeline attributes.
const (
	EventSource   = attribute.Key("attention.event.source")
	EventKind     = attribute.Key("attention.event.kind")
	UrgencyScore  = attribute.Key("attention.urgency_score")
	DecisionRule  = attribute.Key("attention.decision.rule_id")
	PipelineStage = attribute.Key("attention.stage")
)

// LogTraceFields returns a zerolog Func hook that adds trace_id and span_id
// when a valid span exists in ctx, so logs correlate with traces. Fields are
// omitted entirely when OTel is disabled.
func LogTraceFields(ctx context.Context) func(e *zerolog.Event) {
	return func(e *zerolog.Event) {
		span := trace.SpanFromContext(ctx)
		if !span.SpanContext().IsValid() {
			return
		}
		e.Str("trace_id", span.SpanContext().TraceID().String())
		e.Str("span_id", span.SpanContext().SpanID().String())
	}
}

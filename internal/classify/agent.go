// Package classify scores attention events with an external reasoning
// backend. The agent is fail-soft by contract: backend or parse trouble is
// logged and surfaces as a nil classification, never as an error — the
// pipeline substitutes its own conservative default.
package classify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/jayminwest/kota-gateway/internal/attention"
	"github.com/jayminwest/kota-gateway/internal/config"
	"github.com/jayminwest/kota-gateway/internal/llm"
	kotaotel "github.com/jayminwest/kota-gateway/internal/otel"
)

var tracer = kotaotel.Tracer("github.com/jayminwest/kota-gateway/internal/classify")

const (
	scoreMin = 0
	scoreMax = 10

	defaultMaxTokens = 1024
)

// classificationSchema constrains structured-protocol replies to the wire
// shape parseClassification expects.
var classificationSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "urgency_score": {"type": "number", "minimum": 0, "maximum": 10},
    "relevance": {"type": "string", "enum": ["none", "low", "medium", "high"]},
    "filtered": {"type": "boolean"},
    "reasons": {"type": "array", "items": {"type": "string"}},
    "context": {"type": "object"},
    "tags": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["urgency_score", "relevance", "filtered"],
  "additionalProperties": false
}`)

// Agent scores events through one llm.Provider, selected once at
// construction from the guardrails.
type Agent struct {
	provider   llm.Provider
	model      string
	maxTokens  int
	version    string
	structured bool
	// unavailable is set when the guardrails require an API key and none was
	// supplied. Classify then skips without attempting a network call.
	unavailable bool
}

// New builds a classification agent from the guardrails. apiKey comes from
// operator config and may be empty; when the guardrails require one and it
// is missing, the agent is marked unavailable rather than failing.
func New(g config.Guardrails, apiKey string) (*Agent, error) {
	a := &Agent{
		model:     g.Model,
		maxTokens: g.MaxOutputTokens,
		version:   g.Provider + "-" + g.Model,
	}
	if a.maxTokens <= 0 {
		a.maxTokens = defaultMaxTokens
	}

	// Reject unknown providers before anything else; a misconfigured name
	// must surface at wiring time, not hide behind a missing key.
	switch g.Provider {
	case "openai", "anthropic", "ollama":
	default:
		return nil, fmt.Errorf("%w: %q", llm.ErrUnknownProvider, g.Provider)
	}

	// The hosted protocols always need a key; guardrails can also force one
	// for providers that would otherwise run keyless. A required-but-missing
	// key marks the agent unavailable: classification is skipped, never
	// attempted, and the pipeline degrades to discard.
	needsKey := g.Provider == "openai" || g.Provider == "anthropic" || g.RequireAPIKey
	if needsKey && apiKey == "" {
		a.unavailable = true
		log.Warn().Str("provider", g.Provider).Msg("classifier_api_key_missing")
		return a, nil
	}

	switch g.Provider {
	case "openai":
		a.structured = true
		if g.BaseURL != "" {
			a.provider = llm.NewOpenAIProviderWithBaseURL(apiKey, g.BaseURL)
		} else {
			a.provider = llm.NewOpenAIProvider(apiKey)
		}
	case "anthropic":
		a.provider = llm.NewAnthropicProvider(apiKey, g.BaseURL)
	case "ollama":
		// Local chat protocol, usable without a key.
		a.provider = llm.NewOllamaProvider(g.BaseURL)
	}

	return a, nil
}

// NewWithProvider builds an agent around an existing provider. Used in tests
// and by callers that construct providers themselves.
func NewWithProvider(p llm.Provider, model string, maxTokens int, structured bool) *Agent {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Agent{
		provider:   p,
		model:      model,
		maxTokens:  maxTokens,
		version:    p.Name() + "-" + model,
		structured: structured,
	}
}

// Version identifies the backend stamped onto results, e.g. "openai-o4-mini".
func (a *Agent) Version() string {
	return a.version
}

// Classify scores one event. Returns nil when the backend is unconfigured,
// unreachable, or its reply unusable; it never returns an error and never
// panics, so the pipeline can call it unguarded.
func (a *Agent) Classify(ctx context.Context, ev *attention.Event) *attention.Classification {
	if a.unavailable || a.provider == nil {
		log.Debug().Str("source", ev.Source).Msg("classification_skipped_unconfigured")
		return nil
	}

	ctx, span := tracer.Start(ctx, "classify.event",
		trace.WithAttributes(
			kotaotel.EventSource.String(ev.Source),
			kotaotel.EventKind.String(ev.Kind),
			kotaotel.GenAISystem.String(a.provider.Name()),
			kotaotel.GenAIRequestModel.String(a.model),
		))
	defer span.End()

	req, err := a.buildRequest(ev)
	if err != nil {
		log.Error().Err(err).Str("source", ev.Source).Msg("classification_request_build_failed")
		return nil
	}

	resp, err := a.provider.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		log.Warn().Err(err).
			Str("provider", a.provider.Name()).
			Str("source", ev.Source).
			Str("correlation_id", ev.CorrelationID).
			Msg("classification_backend_failed")
		return nil
	}

	raw, ok := ExtractJSON(resp.Content)
	if !ok {
		log.Warn().
			Str("provider", a.provider.Name()).
			Str("source", ev.Source).
			Msg("classification_response_no_json")
		return nil
	}

	cls, err := parseClassification(raw, a.version)
	if err != nil {
		log.Warn().Err(err).
			Str("provider", a.provider.Name()).
			Str("source", ev.Source).
			Msg("classification_response_invalid")
		return nil
	}

	span.SetAttributes(kotaotel.UrgencyScore.Float64(cls.UrgencyScore))
	return cls
}

func (a *Agent) buildRequest(ev *attention.Event) (*llm.Request, error) {
	eventJSON, err := json.MarshalIndent(map[string]interface{}{
		"source":      ev.Source,
		"kind":        ev.Kind,
		"received_at": ev.ReceivedAt,
		"normalized":  ev.Normalized,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling event: %w", err)
	}

	system := "You triage inbound events for a personal attention system. " +
		"Score each event's urgency from 0 (ignore) to 10 (drop everything) and its relevance " +
		"(none, low, medium, high). Set filtered=true when the event should be silently discarded " +
		"regardless of score. Give short reasons."
	user := fmt.Sprintf("Classify this event:\n\n%s", eventJSON)

	req := &llm.Request{
		Model: a.model,
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens: a.maxTokens,
	}

	if a.structured {
		req.ResponseFormat = &llm.ResponseFormat{
			Name:   "attention_classification",
			Schema: classificationSchema,
			Strict: true,
		}
	} else {
		req.Messages[1].Content += "\n\nRespond with exactly one JSON object with keys " +
			"urgency_score (number 0-10), relevance (none|low|medium|high), filtered (boolean), " +
			"reasons (array of strings), context (object), tags (array of strings). No prose."
	}

	return req, nil
}

// parseClassification normalizes a backend reply into a Classification:
// the score is clamped into [0,10], relevance defaults to low, filtered to
// false, reasons/tags to empty lists when absent or not arrays, context to
// an empty map. Only a missing or non-numeric score is a hard parse failure.
func parseClassification(raw, version string) (*attention.Classification, error) {
	var body map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil, fmt.Errorf("decoding classification JSON: %w", err)
	}

	score, ok := body["urgency_score"].(float64)
	if !ok {
		return nil, fmt.Errorf("urgency_score missing or not numeric")
	}
	if score < scoreMin {
		score = scoreMin
	}
	if score > scoreMax {
		score = scoreMax
	}

	relevance := attention.RelevanceLow
	if s, ok := body["relevance"].(string); ok {
		relevance = attention.NormalizeRelevance(s)
	}

	filtered, _ := body["filtered"].(bool)

	ctxMap, ok := body["context"].(map[string]interface{})
	if !ok {
		ctxMap = map[string]interface{}{}
	}

	return &attention.Classification{
		UrgencyScore: score,
		Relevance:    relevance,
		Filtered:     filtered,
		Reasons:      stringList(body["reasons"]),
		Context:      ctxMap,
		Tags:         stringList(body["tags"]),
		Version:      version,
	}, nil
}

// stringList coerces a decoded JSON value into a string slice. Anything that
// isn't an array of strings collapses to an empty list.
func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

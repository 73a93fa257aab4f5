package trigger

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jayminwest/kota-gateway/internal/attention"
)

// TimeoutProcess bounds one webhook-triggered pipeline run: one
// classification call plus dispatch fan-out, with headroom.
const TimeoutProcess = 2 * time.Minute

// Headers the ingress understands.
const (
	HeaderEvent  = "X-Kota-Event"
	HeaderDedupe = "X-Kota-Dedupe"
	HeaderSecret = "X-Kota-Secret"
)

// Processor runs one raw event through the attention pipeline.
type Processor interface {
	Process(ctx context.Context, raw *attention.RawEvent) *attention.PipelineResult
}

// WebhookHandler turns inbound provider webhooks into pipeline runs.
type WebhookHandler struct {
	processor Processor
	// sources restricts and configures accepted providers. nil accepts any
	// source with no secret check (development mode).
	sources map[string]Source
	limiter *RateLimiter
}

// NewWebhookHandler creates a handler. limiter may be nil to disable rate
// limiting (tests).
func NewWebhookHandler(processor Processor, sources map[string]Source, limiter *RateLimiter) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		sources:   sources,
		limiter:   limiter,
	}
}

// webhookResponse is the JSON reply for a webhook invocation.
type webhookResponse struct {
	Status        string `json:"status"`
	Outcome       string `json:"outcome,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

// HandleWebhook processes POST /webhooks/{source}.
func (wh *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	sourceName := chi.URLParam(r, "source")

	if wh.limiter != nil && !wh.limiter.Allow(sourceName) {
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusTooManyRequests, webhookResponse{Status: "error", Error: "rate_limited"})
		return
	}

	src, known := wh.lookupSource(sourceName)
	if !known {
		writeJSON(w, http.StatusNotFound, webhookResponse{Status: "error", Error: fmt.Sprintf("source %q not configured", sourceName)})
		return
	}

	if src.Secret != "" {
		got := r.Header.Get(HeaderSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(src.Secret)) != 1 {
			writeJSON(w, http.StatusUnauthorized, webhookResponse{Status: "error", Error: "invalid source secret"})
			return
		}
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, webhookResponse{Status: "error", Error: "invalid JSON body"})
		return
	}

	raw := &attention.RawEvent{
		Source:        sourceName,
		Kind:          eventKind(r, src, payload),
		Payload:       payload,
		DedupeKey:     dedupeKey(r, payload),
		CorrelationID: "corr_" + uuid.New().String()[:12],
	}

	log.Info().
		Str("source", raw.Source).
		Str("kind", raw.Kind).
		Str("correlation_id", raw.CorrelationID).
		Msg("attention_event_received")

	ctx, cancel := context.WithTimeout(r.Context(), TimeoutProcess)
	defer cancel()

	result := wh.processor.Process(ctx, raw)

	writeJSON(w, http.StatusOK, webhookResponse{
		Status:        "ok",
		Outcome:       string(result.Outcome),
		CorrelationID: raw.CorrelationID,
	})
}

// lookupSource resolves the source definition. With no sources file every
// source is accepted with defaults.
func (wh *WebhookHandler) lookupSource(name string) (Source, bool) {
	if wh.sources == nil {
		return Source{Name: name, KindField: "type"}, true
	}
	src, ok := wh.sources[name]
	return src, ok
}

// eventKind resolves the event kind: header first, then the source's
// configured body field, then "event".
func eventKind(r *http.Request, src Source, payload map[string]interface{}) string {
	if kind := r.Header.Get(HeaderEvent); kind != "" {
		return kind
	}
	field := src.KindField
	if field == "" {
		field = "type"
	}
	if kind, ok := payload[field].(string); ok && kind != "" {
		return kind
	}
	return "event"
}

// dedupeKey passes the provider's idempotency key through; dedupe itself is
// enforced upstream of the pipeline.
func dedupeKey(r *http.Request, payload map[string]interface{}) string {
	if key := r.Header.Get(HeaderDedupe); key != "" {
		return key
	}
	if id, ok := payload["id"].(string); ok {
		return id
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

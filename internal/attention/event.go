// Package attention implements the event attention pipeline: ingest a raw
// external event, score it with a classification backend, apply the
// threshold policy, optionally plan a directive, and dispatch notifications.
//
// Every stage fails soft. Classification failure degrades to discard,
// enricher and transport failures are isolated, and Process always returns
// a complete result.
package attention

import "time"

// Relevance buckets a classification's subject-matter fit.
type Relevance string

const (
	RelevanceNone   Relevance = "none"
	RelevanceLow    Relevance = "low"
	RelevanceMedium Relevance = "medium"
	RelevanceHigh   Relevance = "high"
)

// NormalizeRelevance maps a backend-reported relevance string onto the four
// known buckets. Absent or unrecognized values become "low", mirroring the
// parse-time defaulting applied to the other classification fields.
func NormalizeRelevance(s string) Relevance {
	switch Relevance(s) {
	case RelevanceNone, RelevanceLow, RelevanceMedium, RelevanceHigh:
		return Relevance(s)
	}
	return RelevanceLow
}

// RawEvent is an inbound external event as the webhook boundary hands it
// over. Immutable; consumed once per pipeline run.
type RawEvent struct {
	Source        string                 `json:"source"`
	Kind          string                 `json:"kind"`
	Payload       map[string]interface{} `json:"payload"`
	ReceivedAt    time.Time              `json:"received_at,omitempty"`
	DedupeKey     string                 `json:"dedupe_key,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Metadata      map[string]string      `json:"metadata,omitempty"`
}

// Event is a RawEvent after ingestion: receipt time is always set and
// Normalized carries the payload plus whatever the enrichers derived.
type Event struct {
	Source        string                 `json:"source"`
	Kind          string                 `json:"kind"`
	Payload       map[string]interface{} `json:"payload"`
	ReceivedAt    time.Time              `json:"received_at"`
	DedupeKey     string                 `json:"dedupe_key,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Metadata      map[string]string      `json:"metadata,omitempty"`
	// Normalized always contains at least {"payload": <original payload>}.
	// Later enrichers overwrite earlier keys.
	Normalized map[string]interface{} `json:"normalized"`
}

// Classification is the backend's urgency/relevance verdict for one event.
type Classification struct {
	// UrgencyScore is clamped to [0, 10] at parse time, never rejected.
	UrgencyScore float64                `json:"urgency_score"`
	Relevance    Relevance              `json:"relevance"`
	Filtered     bool                   `json:"filtered"`
	Reasons      []string               `json:"reasons"`
	Context      map[string]interface{} `json:"context"`
	Tags         []string               `json:"tags"`
	// Version identifies the producing backend, e.g. "openai-o4-mini".
	Version string `json:"version"`
}

// Action is the threshold verdict.
type Action string

const (
	ActionDiscard  Action = "discard"
	ActionEscalate Action = "escalate"
)

// Rule identifiers recorded on decisions for auditability.
const (
	RuleClassifierFiltered = "classifier_filtered"
	RuleSourceThreshold    = "source_threshold"
	RuleDefaultThreshold   = "default_threshold"
)

// Decision records which policy rule fired and the numbers it compared.
type Decision struct {
	Action    Action  `json:"action"`
	Threshold float64 `json:"threshold"`
	Score     float64 `json:"score"`
	RuleID    string  `json:"rule_id"`
	Notes     string  `json:"notes,omitempty"`
}

// EscalationLevel grades an escalated event's urgency for rendering.
type EscalationLevel string

const (
	EscalationMonitor EscalationLevel = "monitor"
	EscalationNotify  EscalationLevel = "notify"
	EscalationUrgent  EscalationLevel = "urgent"
)

// FollowUpAction is a suggested next step attached to a directive. Tool and
// Args reference external collaborators and are opaque here.
type FollowUpAction struct {
	Label string                 `json:"label"`
	Tool  string                 `json:"tool,omitempty"`
	Args  map[string]interface{} `json:"args,omitempty"`
}

// Directive is the primary agent's structured plan for an escalated event.
type Directive struct {
	ShouldNotify        bool                   `json:"should_notify"`
	EscalationLevel     EscalationLevel        `json:"escalation_level"`
	Summary             string                 `json:"summary"`
	RecommendedChannels []string               `json:"recommended_channels"`
	ContextInjections   map[string]interface{} `json:"context_injections,omitempty"`
	FollowUpActions     []FollowUpAction       `json:"follow_up_actions,omitempty"`
}

// EventDescriptor identifies the originating event inside a dispatch payload.
type EventDescriptor struct {
	Source        string    `json:"source"`
	Kind          string    `json:"kind"`
	ReceivedAt    time.Time `json:"received_at"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// DispatchPayload is the renderable content of one notification.
type DispatchPayload struct {
	Summary         string                 `json:"summary"`
	EscalationLevel EscalationLevel        `json:"escalation_level"`
	Event           EventDescriptor        `json:"event"`
	Context         map[string]interface{} `json:"context,omitempty"`
	FollowUpActions []FollowUpAction       `json:"follow_up_actions,omitempty"`
}

// DispatchRequest asks one named channel to deliver one notification.
type DispatchRequest struct {
	Channel  string            `json:"channel"`
	Audience string            `json:"audience,omitempty"`
	Payload  DispatchPayload   `json:"payload"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// DispatchResult is the delivery outcome for exactly one request.
type DispatchResult struct {
	Channel   string     `json:"channel"`
	Delivered bool       `json:"delivered"`
	MessageID string     `json:"message_id,omitempty"`
	Error     string     `json:"error,omitempty"`
	RetryAt   *time.Time `json:"retry_at,omitempty"`
}

// Outcome is the pipeline's terminal state for one event.
type Outcome string

const (
	OutcomeDiscarded  Outcome = "discarded"
	OutcomeEscalated  Outcome = "escalated"
	OutcomeDispatched Outcome = "dispatched"
)

// PipelineResult is the complete record of one pipeline run.
type PipelineResult struct {
	Outcome          Outcome          `json:"outcome"`
	Classification   *Classification  `json:"classification"`
	Decision         *Decision        `json:"decision"`
	PrimaryDirective *Directive       `json:"primary_directive,omitempty"`
	DispatchResults  []DispatchResult `json:"dispatch_results,omitempty"`
}

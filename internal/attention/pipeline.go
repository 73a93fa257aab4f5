package attention

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/jayminwest/kota-gateway/internal/config"
	kotaotel "github.com/jayminwest/kota-gateway/internal/otel"
)

var tracer = kotaotel.Tracer("github.com/jayminwest/kota-gateway/internal/attention")

// Classifier scores an event's urgency and relevance. A nil result means the
// backend was unavailable or its reply unusable; implementations never
// return errors — failure is logged at the source and degrades to nil.
type Classifier interface {
	Classify(ctx context.Context, ev *Event) *Classification
}

// Dispatcher delivers notification requests, one result per request, in
// order, never failing as a whole.
type Dispatcher interface {
	Dispatch(ctx context.Context, reqs []DispatchRequest) []DispatchResult
}

// Journal records the terminal result of a pipeline run into the daily log.
type Journal interface {
	RecordResult(ctx context.Context, ev *Event, res *PipelineResult) error
}

// Pipeline sequences ingest → classify → decide → plan → dispatch. All
// collaborators honour fail-soft contracts, so Process needs no recovery of
// its own and always returns a complete result.
type Pipeline struct {
	ingestor    *Ingestor
	classifier  Classifier
	coordinator *Coordinator
	dispatcher  Dispatcher
	store       *config.Store
	journal     Journal // optional
}

// PipelineConfig holds the dependencies for constructing a Pipeline.
type PipelineConfig struct {
	Ingestor    *Ingestor
	Classifier  Classifier
	Coordinator *Coordinator
	Dispatcher  Dispatcher
	Store       *config.Store
	Journal     Journal // optional; nil disables the daily log
}

// NewPipeline creates a pipeline with the given collaborators.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		ingestor:    cfg.Ingestor,
		classifier:  cfg.Classifier,
		coordinator: cfg.Coordinator,
		dispatcher:  cfg.Dispatcher,
		store:       cfg.Store,
		journal:     cfg.Journal,
	}
}

// unavailableClassification is the conservative substitute used when the
// classifier returns nothing: zero urgency and a filter verdict, so backend
// unavailability always degrades to discard, never to escalation.
func unavailableClassification() *Classification {
	return &Classification{
		UrgencyScore: 0,
		Relevance:    RelevanceNone,
		Filtered:     true,
		Reasons:      []string{"classification_unavailable"},
		Context:      map[string]interface{}{},
		Tags:         []string{},
		Version:      "unavailable",
	}
}

// Process runs one raw event through the full pipeline and returns the
// terminal result. It never returns an error; every failure mode downgrades
// to a defined result state.
func (p *Pipeline) Process(ctx context.Context, raw *RawEvent) *PipelineResult {
	ctx, span := tracer.Start(ctx, "attention.process",
		trace.WithAttributes(
			kotaotel.EventSource.String(raw.Source),
			kotaotel.EventKind.String(raw.Kind),
		))
	defer span.End()

	cfg := p.store.Current()

	ev := p.ingestor.Ingest(ctx, raw)

	cls := p.classifier.Classify(ctx, ev)
	if cls == nil {
		cls = unavailableClassification()
	}
	span.SetAttributes(kotaotel.UrgencyScore.Float64(cls.UrgencyScore))

	decision := Decide(ev, cls, cfg)
	span.SetAttributes(kotaotel.DecisionRule.String(decision.RuleID))

	result := &PipelineResult{
		Outcome:        OutcomeDiscarded,
		Classification: cls,
		Decision:       decision,
	}

	if decision.Action == ActionEscalate {
		directive := p.coordinator.Run(ctx, ev, cls, cfg)
		result.PrimaryDirective = directive

		if len(directive.RecommendedChannels) == 0 {
			// Escalated but nothing to deliver to.
			result.Outcome = OutcomeEscalated
		} else {
			reqs := buildDispatchRequests(ev, directive)
			result.DispatchResults = p.dispatcher.Dispatch(ctx, reqs)
			result.Outcome = OutcomeDispatched
		}
	}

	log.Info().
		Str("source", ev.Source).
		Str("kind", ev.Kind).
		Str("correlation_id", ev.CorrelationID).
		Str("outcome", string(result.Outcome)).
		Str("rule_id", decision.RuleID).
		Float64("urgency_score", cls.UrgencyScore).
		Func(kotaotel.LogTraceFields(ctx)).
		Msg("attention_event_processed")

	p.record(ctx, ev, result)

	return result
}

// record writes the run into the daily journal. Journal failure is an
// observability loss, not a pipeline failure.
func (p *Pipeline) record(ctx context.Context, ev *Event, res *PipelineResult) {
	if p.journal == nil {
		return
	}
	if err := p.journal.RecordResult(ctx, ev, res); err != nil {
		log.Warn().Err(err).
			Str("source", ev.Source).
			Str("correlation_id", ev.CorrelationID).
			Msg("journal_record_failed")
	}
}

// buildDispatchRequests fans a directive out to one request per recommended
// channel, each carrying the summary, level, originating-event descriptor,
// planner context and follow-ups.
func buildDispatchRequests(ev *Event, d *Directive) []DispatchRequest {
	reqs := make([]DispatchRequest, 0, len(d.RecommendedChannels))
	for _, channel := range d.RecommendedChannels {
		reqs = append(reqs, DispatchRequest{
			Channel: channel,
			Payload: DispatchPayload{
				Summary:         d.Summary,
				EscalationLevel: d.EscalationLevel,
				Event: EventDescriptor{
					Source:        ev.Source,
					Kind:          ev.Kind,
					ReceivedAt:    ev.ReceivedAt,
					CorrelationID: ev.CorrelationID,
				},
				Context:         d.ContextInjections,
				FollowUpActions: d.FollowUpActions,
			},
			Metadata: ev.Metadata,
		})
	}
	return reqs
}

package attention

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// EnrichFunc derives extra context for a raw event. Each enricher sees the
// original raw event, not the progressively-enriched state; its returned map
// is shallow-merged into Event.Normalized, later enrichers winning on key
// collisions.
type EnrichFunc func(ctx context.Context, raw *RawEvent) (map[string]interface{}, error)

// Enricher is a named enrichment step. The name only exists for logging.
type Enricher struct {
	Name   string
	Enrich EnrichFunc
}

// Ingestor normalizes raw events: it stamps the receipt time and runs the
// registered enrichers in order. A failing enricher is logged and skipped;
// it can never abort ingestion or starve the enrichers after it.
type Ingestor struct {
	enrichers []Enricher
}

// NewIngestor creates an ingestor with the given enrichers. Order matters:
// later enrichers overwrite earlier keys.
func NewIngestor(enrichers ...Enricher) *Ingestor {
	return &Ingestor{enrichers: enrichers}
}

// Ingest turns a raw event into an attention event. receivedAt comes from
// the raw event when set, otherwise from the clock.
func (i *Ingestor) Ingest(ctx context.Context, raw *RawEvent) *Event {
	receivedAt := raw.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	ev := &Event{
		Source:        raw.Source,
		Kind:          raw.Kind,
		Payload:       raw.Payload,
		ReceivedAt:    receivedAt,
		DedupeKey:     raw.DedupeKey,
		CorrelationID: raw.CorrelationID,
		Metadata:      raw.Metadata,
		Normalized:    map[string]interface{}{"payload": raw.Payload},
	}

	for _, e := range i.enrichers {
		extra, err := runEnricher(ctx, e, raw)
		if err != nil {
			log.Warn().Err(err).
				Str("enricher", e.Name).
				Str("source", raw.Source).
				Str("kind", raw.Kind).
				Msg("enricher_failed")
			continue
		}
		for k, v := range extra {
			ev.Normalized[k] = v
		}
	}

	log.Debug().
		Str("source", ev.Source).
		Str("kind", ev.Kind).
		Str("dedupe_key", ev.DedupeKey).
		Str("correlation_id", ev.CorrelationID).
		Msg("attention_event_ingested")

	return ev
}

// runEnricher isolates one enrichment step. A panicking enricher is treated
// the same as one returning an error.
func runEnricher(ctx context.Context, e Enricher, raw *RawEvent) (extra map[string]interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			extra = nil
			err = panicError(r)
		}
	}()
	return e.Enrich(ctx, raw)
}

// MetadataEnricher copies the raw event's metadata map into Normalized under
// the "metadata" key, making priority hints visible to the classifier prompt.
func MetadataEnricher() Enricher {
	return Enricher{
		Name: "metadata",
		Enrich: func(ctx context.Context, raw *RawEvent) (map[string]interface{}, error) {
			if len(raw.Metadata) == 0 {
				return nil, nil
			}
			return map[string]interface{}{"metadata": raw.Metadata}, nil
		},
	}
}

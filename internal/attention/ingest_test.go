package attention

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngest(t *testing.T) {
	t.Run("stamps receipt time when absent", func(t *testing.T) {
		before := time.Now().UTC()
		ev := NewIngestor().Ingest(context.Background(), &RawEvent{Source: "gmail", Kind: "message"})
		after := time.Now().UTC()

		assert.False(t, ev.ReceivedAt.Before(before))
		assert.False(t, ev.ReceivedAt.After(after))
	})

	t.Run("preserves an upstream receipt time", func(t *testing.T) {
		ts := time.Date(2026, 8, 20, 7, 0, 0, 0, time.UTC)
		ev := NewIngestor().Ingest(context.Background(), &RawEvent{Source: "gmail", ReceivedAt: ts})
		assert.Equal(t, ts, ev.ReceivedAt)
	})

	t.Run("normalized always carries the payload", func(t *testing.T) {
		payload := map[string]interface{}{"subject": "hello"}
		ev := NewIngestor().Ingest(context.Background(), &RawEvent{Source: "gmail", Payload: payload})

		require.Contains(t, ev.Normalized, "payload")
		assert.Equal(t, payload, ev.Normalized["payload"])
	})

	t.Run("later enrichers overwrite earlier keys", func(t *testing.T) {
		first := Enricher{Name: "first", Enrich: func(ctx context.Context, raw *RawEvent) (map[string]interface{}, error) {
			return map[string]interface{}{"priority": "low", "only_first": true}, nil
		}}
		second := Enricher{Name: "second", Enrich: func(ctx context.Context, raw *RawEvent) (map[string]interface{}, error) {
			return map[string]interface{}{"priority": "high"}, nil
		}}

		ev := NewIngestor(first, second).Ingest(context.Background(), &RawEvent{Source: "gmail"})
		assert.Equal(t, "high", ev.Normalized["priority"])
		assert.Equal(t, true, ev.Normalized["only_first"])
	})

	t.Run("enrichers see the original raw event", func(t *testing.T) {
		var seen *RawEvent
		spy := Enricher{Name: "spy", Enrich: func(ctx context.Context, raw *RawEvent) (map[string]interface{}, error) {
			seen = raw
			return map[string]interface{}{"payload": "mutated"}, nil
		}}
		after := Enricher{Name: "after", Enrich: func(ctx context.Context, raw *RawEvent) (map[string]interface{}, error) {
			assert.Same(t, seen, raw)
			return nil, nil
		}}

		raw := &RawEvent{Source: "gmail", Payload: map[string]interface{}{"a": 1}}
		NewIngestor(spy, after).Ingest(context.Background(), raw)
		assert.Same(t, raw, seen)
	})

	t.Run("failing enricher is skipped and later enrichers still run", func(t *testing.T) {
		failing := Enricher{Name: "failing", Enrich: func(ctx context.Context, raw *RawEvent) (map[string]interface{}, error) {
			return nil, fmt.Errorf("upstream lookup failed")
		}}
		ok := Enricher{Name: "ok", Enrich: func(ctx context.Context, raw *RawEvent) (map[string]interface{}, error) {
			return map[string]interface{}{"survived": true}, nil
		}}

		ev := NewIngestor(failing, ok).Ingest(context.Background(), &RawEvent{Source: "gmail"})
		assert.Equal(t, true, ev.Normalized["survived"])
	})

	t.Run("panicking enricher is isolated", func(t *testing.T) {
		panicking := Enricher{Name: "boom", Enrich: func(ctx context.Context, raw *RawEvent) (map[string]interface{}, error) {
			panic("enricher exploded")
		}}
		ok := Enricher{Name: "ok", Enrich: func(ctx context.Context, raw *RawEvent) (map[string]interface{}, error) {
			return map[string]interface{}{"survived": true}, nil
		}}

		var ev *Event
		assert.NotPanics(t, func() {
			ev = NewIngestor(panicking, ok).Ingest(context.Background(), &RawEvent{Source: "gmail"})
		})
		assert.Equal(t, true, ev.Normalized["survived"])
	})

	t.Run("identity fields carry through", func(t *testing.T) {
		raw := &RawEvent{
			Source:        "github",
			Kind:          "pull_request",
			DedupeKey:     "evt_123",
			CorrelationID: "corr_abc",
			Metadata:      map[string]string{"priority": "high"},
		}
		ev := NewIngestor().Ingest(context.Background(), raw)
		assert.Equal(t, "github", ev.Source)
		assert.Equal(t, "pull_request", ev.Kind)
		assert.Equal(t, "evt_123", ev.DedupeKey)
		assert.Equal(t, "corr_abc", ev.CorrelationID)
		assert.Equal(t, map[string]string{"priority": "high"}, ev.Metadata)
	})
}

func TestMetadataEnricher(t *testing.T) {
	t.Run("copies metadata into normalized", func(t *testing.T) {
		raw := &RawEvent{Source: "gmail", Metadata: map[string]string{"priority": "high"}}
		ev := NewIngestor(MetadataEnricher()).Ingest(context.Background(), raw)
		assert.Equal(t, map[string]string{"priority": "high"}, ev.Normalized["metadata"])
	})

	t.Run("no metadata adds nothing", func(t *testing.T) {
		ev := NewIngestor(MetadataEnricher()).Ingest(context.Background(), &RawEvent{Source: "gmail"})
		assert.NotContains(t, ev.Normalized, "metadata")
	})
}

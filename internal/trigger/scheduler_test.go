package trigger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayminwest/kota-gateway/internal/attention"
	"github.com/jayminwest/kota-gateway/internal/config"
	"github.com/jayminwest/kota-gateway/internal/journal"
)

type captureDispatcher struct {
	requests []attention.DispatchRequest
}

func (d *captureDispatcher) Dispatch(ctx context.Context, reqs []attention.DispatchRequest) []attention.DispatchResult {
	d.requests = append(d.requests, reqs...)
	results := make([]attention.DispatchResult, 0, len(reqs))
	for _, req := range reqs {
		results = append(results, attention.DispatchResult{Channel: req.Channel, Delivered: true})
	}
	return results
}

func newSchedulerFixture(t *testing.T) (*DigestScheduler, *journal.Store, *captureDispatcher, *config.Store) {
	t.Helper()
	j, err := journal.NewStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	dispatcher := &captureDispatcher{}
	store := config.NewStore(filepath.Join(t.TempDir(), "attention.json"))
	require.NoError(t, store.Load())

	return NewDigestScheduler(j, dispatcher, store), j, dispatcher, store
}

func seedYesterday(t *testing.T, j *journal.Store, outcome attention.Outcome) {
	t.Helper()
	ev := &attention.Event{
		Source:     "whoop",
		Kind:       "recovery.updated",
		ReceivedAt: time.Now().UTC().AddDate(0, 0, -1),
	}
	res := &attention.PipelineResult{
		Outcome:        outcome,
		Classification: &attention.Classification{UrgencyScore: 5, Relevance: attention.RelevanceMedium},
		Decision:       &attention.Decision{Action: attention.ActionDiscard, RuleID: attention.RuleDefaultThreshold},
	}
	require.NoError(t, j.RecordResult(context.Background(), ev, res))
}

func TestDigestScheduler(t *testing.T) {
	t.Run("register accepts a five-field cron spec", func(t *testing.T) {
		s, _, _, _ := newSchedulerFixture(t)
		require.NoError(t, s.Register("0 9 * * *"))
		assert.Equal(t, 1, s.Entries())
	})

	t.Run("empty spec disables the digest", func(t *testing.T) {
		s, _, _, _ := newSchedulerFixture(t)
		require.NoError(t, s.Register(""))
		assert.Zero(t, s.Entries())
	})

	t.Run("invalid spec is rejected", func(t *testing.T) {
		s, _, _, _ := newSchedulerFixture(t)
		assert.Error(t, s.Register("not a cron spec"))
	})

	t.Run("digest summarizes yesterday to the digest channels", func(t *testing.T) {
		s, j, dispatcher, _ := newSchedulerFixture(t)
		seedYesterday(t, j, attention.OutcomeDispatched)
		seedYesterday(t, j, attention.OutcomeDiscarded)
		seedYesterday(t, j, attention.OutcomeDiscarded)

		s.runDigest(context.Background())

		require.Len(t, dispatcher.requests, 1)
		req := dispatcher.requests[0]
		assert.Equal(t, "slack", req.Channel) // default digest preference
		assert.Equal(t, "digest", req.Payload.Event.Source)
		assert.Equal(t, "daily_summary", req.Payload.Event.Kind)
		assert.Equal(t, attention.EscalationMonitor, req.Payload.EscalationLevel)
		assert.Contains(t, req.Payload.Summary, "3 events")
		assert.Contains(t, req.Payload.Summary, "1 dispatched")
		assert.Contains(t, req.Payload.Summary, "2 discarded")
	})

	t.Run("digest channels follow the policy preferences", func(t *testing.T) {
		s, j, dispatcher, store := newSchedulerFixture(t)
		seedYesterday(t, j, attention.OutcomeDiscarded)

		cfg := config.DefaultAttention()
		cfg.ChannelPreferences = map[string][]string{"digest": {"console", "slack"}}
		require.NoError(t, store.Save(cfg))

		s.runDigest(context.Background())

		require.Len(t, dispatcher.requests, 2)
		assert.Equal(t, "console", dispatcher.requests[0].Channel)
		assert.Equal(t, "slack", dispatcher.requests[1].Channel)
	})

	t.Run("quiet day still produces a digest", func(t *testing.T) {
		s, _, dispatcher, _ := newSchedulerFixture(t)
		s.runDigest(context.Background())

		require.Len(t, dispatcher.requests, 1)
		assert.Contains(t, dispatcher.requests[0].Payload.Summary, "no events")
	})
}

func TestRenderDigest(t *testing.T) {
	t.Run("zero total", func(t *testing.T) {
		text := renderDigest(&journal.DaySummary{Day: "2026-08-20"})
		assert.Equal(t, "Attention digest for 2026-08-20: no events", text)
	})

	t.Run("outcome breakdown in fixed order", func(t *testing.T) {
		text := renderDigest(&journal.DaySummary{
			Day:       "2026-08-20",
			Total:     6,
			ByOutcome: map[string]int{"discarded": 3, "dispatched": 2, "escalated": 1},
		})
		assert.Equal(t, "Attention digest for 2026-08-20: 6 events, 2 dispatched, 1 escalated, 3 discarded", text)
	})
}

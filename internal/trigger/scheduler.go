package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/jayminwest/kota-gateway/internal/attention"
	"github.com/jayminwest/kota-gateway/internal/config"
	"github.com/jayminwest/kota-gateway/internal/journal"
)

// digestSource is the channel-preference key and event source name used for
// scheduled digests.
const digestSource = "digest"

// DigestScheduler posts a summary of yesterday's journal on a cron schedule.
type DigestScheduler struct {
	cron       *cron.Cron
	journal    *journal.Store
	dispatcher attention.Dispatcher
	store      *config.Store
}

// NewDigestScheduler creates the scheduler. Cron expressions use the
// standard 5-field format (e.g. "0 9 * * *" for 09:00 daily).
func NewDigestScheduler(j *journal.Store, d attention.Dispatcher, store *config.Store) *DigestScheduler {
	return &DigestScheduler{
		cron:       cron.New(),
		journal:    j,
		dispatcher: d,
		store:      store,
	}
}

// Register adds the digest cron entry. An empty spec disables the digest.
func (s *DigestScheduler) Register(spec string) error {
	if spec == "" {
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.runDigest(ctx)
	})
	if err != nil {
		return fmt.Errorf("registering digest cron %q: %w", spec, err)
	}
	return nil
}

func (s *DigestScheduler) runDigest(ctx context.Context) {
	day := time.Now().UTC().AddDate(0, 0, -1).Format(journal.DayFormat)

	summary, err := s.journal.Summarize(ctx, day)
	if err != nil {
		log.Error().Err(err).Str("day", day).Msg("digest_summarize_failed")
		return
	}

	log.Info().Str("day", day).Int("total", summary.Total).Msg("digest_triggered")

	channels := s.store.Current().ChannelPreferences[digestSource]
	if len(channels) == 0 {
		channels = []string{attention.DefaultChannel}
	}

	reqs := make([]attention.DispatchRequest, 0, len(channels))
	for _, channel := range channels {
		reqs = append(reqs, attention.DispatchRequest{
			Channel: channel,
			Payload: attention.DispatchPayload{
				Summary:         renderDigest(summary),
				EscalationLevel: attention.EscalationMonitor,
				Event: attention.EventDescriptor{
					Source:     digestSource,
					Kind:       "daily_summary",
					ReceivedAt: time.Now().UTC(),
				},
			},
		})
	}

	for _, res := range s.dispatcher.Dispatch(ctx, reqs) {
		if !res.Delivered {
			log.Warn().Str("channel", res.Channel).Str("error", res.Error).Msg("digest_dispatch_failed")
		}
	}
}

// renderDigest flattens a day summary into one notification line set.
func renderDigest(sum *journal.DaySummary) string {
	if sum.Total == 0 {
		return fmt.Sprintf("Attention digest for %s: no events", sum.Day)
	}
	text := fmt.Sprintf("Attention digest for %s: %d events", sum.Day, sum.Total)
	for _, outcome := range []string{"dispatched", "escalated", "discarded"} {
		if n := sum.ByOutcome[outcome]; n > 0 {
			text += fmt.Sprintf(", %d %s", n, outcome)
		}
	}
	return text
}

// Start begins executing the cron entries.
func (s *DigestScheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running digest to finish.
func (s *DigestScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Entries returns the number of registered cron entries (for testing).
func (s *DigestScheduler) Entries() int {
	return len(s.cron.Entries())
}

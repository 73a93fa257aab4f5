package attention

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jayminwest/kota-gateway/internal/config"
)

// Urgency cutoffs for the deterministic fallback directive.
const (
	urgentScore = 9
	notifyScore = 7
)

// DefaultChannel is recommended when a source has no channel preferences.
const DefaultChannel = "slack"

// Planner replaces the coordinator's deterministic fallback with external
// policy logic. Its directive is returned verbatim; the coordinator does not
// re-validate it.
type Planner interface {
	Plan(ctx context.Context, ev *Event, cls *Classification, cfg *config.Attention, extra map[string]interface{}) (*Directive, error)
}

// PlannerFunc adapts a function to the Planner interface.
type PlannerFunc func(ctx context.Context, ev *Event, cls *Classification, cfg *config.Attention, extra map[string]interface{}) (*Directive, error)

// Plan implements Planner.
func (f PlannerFunc) Plan(ctx context.Context, ev *Event, cls *Classification, cfg *config.Attention, extra map[string]interface{}) (*Directive, error) {
	return f(ctx, ev, cls, cfg, extra)
}

// ContextFetcher gathers supplementary data about an event before planning.
type ContextFetcher struct {
	Name  string
	Fetch func(ctx context.Context, ev *Event) (map[string]interface{}, error)
}

// Coordinator produces the directive for an escalated event. With a planner
// configured it delegates; without one it applies a deterministic rule.
type Coordinator struct {
	planner  Planner
	fetchers []ContextFetcher
}

// NewCoordinator creates a coordinator. planner may be nil, in which case
// the deterministic fallback applies.
func NewCoordinator(planner Planner, fetchers ...ContextFetcher) *Coordinator {
	return &Coordinator{planner: planner, fetchers: fetchers}
}

// Run builds the directive for an escalated event. It never returns an
// error: a failing or panicking planner is logged and the deterministic
// fallback takes over, with the same discipline applied everywhere else in
// the pipeline.
func (c *Coordinator) Run(ctx context.Context, ev *Event, cls *Classification, cfg *config.Attention) *Directive {
	extra := c.fetchContext(ctx, ev)

	if c.planner != nil {
		directive, err := runPlanner(ctx, c.planner, ev, cls, cfg, extra)
		if err != nil {
			log.Warn().Err(err).
				Str("source", ev.Source).
				Str("correlation_id", ev.CorrelationID).
				Msg("planner_failed_using_fallback")
		} else if directive != nil {
			return directive
		}
	}

	return c.fallback(ev, cls, cfg, extra)
}

func (c *Coordinator) fetchContext(ctx context.Context, ev *Event) map[string]interface{} {
	if len(c.fetchers) == 0 {
		return nil
	}
	extra := make(map[string]interface{})
	for _, f := range c.fetchers {
		data, err := f.Fetch(ctx, ev)
		if err != nil {
			log.Warn().Err(err).
				Str("fetcher", f.Name).
				Str("source", ev.Source).
				Msg("context_fetch_failed")
			continue
		}
		for k, v := range data {
			extra[k] = v
		}
	}
	return extra
}

// fallback is the deterministic directive rule: notify only on high
// relevance, grade the level off the urgency score, and take channels from
// the per-source preferences.
func (c *Coordinator) fallback(ev *Event, cls *Classification, cfg *config.Attention, extra map[string]interface{}) *Directive {
	level := EscalationMonitor
	switch {
	case cls.UrgencyScore >= urgentScore:
		level = EscalationUrgent
	case cls.UrgencyScore >= notifyScore:
		level = EscalationNotify
	}

	channels := cfg.ChannelPreferences[ev.Source]
	if len(channels) == 0 {
		channels = []string{DefaultChannel}
	}

	summary := fmt.Sprintf("%s %s event scored %.1f (%s relevance)", ev.Source, ev.Kind, cls.UrgencyScore, cls.Relevance)
	if len(cls.Reasons) > 0 {
		summary = fmt.Sprintf("%s: %s", summary, cls.Reasons[0])
	}

	return &Directive{
		ShouldNotify:        cls.Relevance == RelevanceHigh,
		EscalationLevel:     level,
		Summary:             summary,
		RecommendedChannels: channels,
		ContextInjections:   extra,
		FollowUpActions:     nil,
	}
}

func runPlanner(ctx context.Context, p Planner, ev *Event, cls *Classification, cfg *config.Attention, extra map[string]interface{}) (d *Directive, err error) {
	defer func() {
		if r := recover(); r != nil {
			d = nil
			err = panicError(r)
		}
	}()
	return p.Plan(ctx, ev, cls, cfg, extra)
}

package attention

import (
	"fmt"

	"github.com/jayminwest/kota-gateway/internal/config"
)

// Decide applies the threshold policy to a classified event. A classifier
// filter verdict always discards, regardless of score; otherwise the event
// escalates when its score meets the source's threshold (or the default
// threshold when the source has none). The decision records the cutoff and
// score actually compared, for auditability.
func Decide(ev *Event, cls *Classification, cfg *config.Attention) *Decision {
	threshold, ok := cfg.Thresholds[ev.Source]
	ruleID := RuleSourceThreshold
	if !ok {
		threshold = cfg.DefaultThreshold
		ruleID = RuleDefaultThreshold
	}

	if cls.Filtered {
		return &Decision{
			Action:    ActionDiscard,
			Threshold: threshold,
			Score:     cls.UrgencyScore,
			RuleID:    RuleClassifierFiltered,
			Notes:     "classifier recommended silent discard",
		}
	}

	action := ActionDiscard
	if cls.UrgencyScore >= threshold {
		action = ActionEscalate
	}

	return &Decision{
		Action:    action,
		Threshold: threshold,
		Score:     cls.UrgencyScore,
		RuleID:    ruleID,
		Notes:     fmt.Sprintf("score %.1f vs threshold %.1f for source %q", cls.UrgencyScore, threshold, ev.Source),
	}
}

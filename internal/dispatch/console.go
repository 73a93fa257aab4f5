package dispatch

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jayminwest/kota-gateway/internal/attention"
)

// ConsoleTransport logs notifications instead of delivering them. Used as a
// development stand-in and as the digest fallback when Slack is unconfigured.
type ConsoleTransport struct{}

// NewConsoleTransport creates a console transport.
func NewConsoleTransport() *ConsoleTransport {
	return &ConsoleTransport{}
}

// Name returns the transport identifier.
func (t *ConsoleTransport) Name() string {
	return "console"
}

// Send logs the notification and reports it delivered.
func (t *ConsoleTransport) Send(ctx context.Context, req attention.DispatchRequest) (attention.DispatchResult, error) {
	log.Info().
		Str("channel", req.Channel).
		Str("level", string(req.Payload.EscalationLevel)).
		Str("source", req.Payload.Event.Source).
		Str("kind", req.Payload.Event.Kind).
		Str("summary", req.Payload.Summary).
		Msg("notification")
	return attention.DispatchResult{
		Delivered: true,
		MessageID: "console_" + uuid.New().String()[:12],
	}, nil
}

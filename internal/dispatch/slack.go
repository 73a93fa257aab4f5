package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jayminwest/kota-gateway/internal/attention"
	"github.com/jayminwest/kota-gateway/internal/config"
)

// TimeoutSend bounds one transport delivery.
const TimeoutSend = 15 * time.Second

var levelEmoji = map[attention.EscalationLevel]string{
	attention.EscalationMonitor: ":eyes:",
	attention.EscalationNotify:  ":bell:",
	attention.EscalationUrgent:  ":rotating_light:",
}

// SlackTransport delivers dispatch requests to a Slack incoming webhook.
// Channel override, thread and mention behaviour come from the dispatch
// target configured for the channel.
type SlackTransport struct {
	webhookURL string
	target     config.DispatchTarget
	httpClient *http.Client
}

// NewSlackTransport creates a Slack transport posting to webhookURL.
func NewSlackTransport(webhookURL string, target config.DispatchTarget) *SlackTransport {
	return &SlackTransport{
		webhookURL: webhookURL,
		target:     target,
		httpClient: &http.Client{},
	}
}

// Name returns the transport identifier.
func (t *SlackTransport) Name() string {
	return "slack"
}

type slackMessage struct {
	Text     string `json:"text"`
	Channel  string `json:"channel,omitempty"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// Send posts the rendered notification. A non-2xx reply or transport error
// surfaces as an error; the manager turns it into an undelivered result.
func (t *SlackTransport) Send(ctx context.Context, req attention.DispatchRequest) (attention.DispatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, TimeoutSend)
	defer cancel()

	body, err := json.Marshal(slackMessage{
		Text:     renderSlackText(req.Payload, t.target.Mention),
		Channel:  t.target.ChannelID,
		ThreadTS: t.target.ThreadTS,
	})
	if err != nil {
		return attention.DispatchResult{}, fmt.Errorf("marshalling slack message: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.webhookURL, bytes.NewReader(body))
	if err != nil {
		return attention.DispatchResult{}, fmt.Errorf("creating slack request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return attention.DispatchResult{}, fmt.Errorf("slack api call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return attention.DispatchResult{}, fmt.Errorf("slack api error %d: %s", resp.StatusCode, string(respBody))
	}

	// Incoming webhooks don't return a message id; mint one locally so the
	// journal can reference the delivery.
	return attention.DispatchResult{
		Delivered: true,
		MessageID: "slack_" + uuid.New().String()[:12],
	}, nil
}

// renderSlackText flattens a dispatch payload into Slack mrkdwn.
func renderSlackText(p attention.DispatchPayload, mention string) string {
	var sb strings.Builder
	if emoji, ok := levelEmoji[p.EscalationLevel]; ok {
		sb.WriteString(emoji)
		sb.WriteString(" ")
	}
	if mention != "" {
		sb.WriteString(mention)
		sb.WriteString(" ")
	}
	sb.WriteString(fmt.Sprintf("*[%s]* %s", strings.ToUpper(string(p.EscalationLevel)), p.Summary))
	sb.WriteString(fmt.Sprintf("\n_%s/%s_ at %s", p.Event.Source, p.Event.Kind, p.Event.ReceivedAt.Format(time.RFC3339)))
	for _, action := range p.FollowUpActions {
		sb.WriteString("\n• ")
		sb.WriteString(action.Label)
	}
	return sb.String()
}

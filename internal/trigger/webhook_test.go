package trigger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayminwest/kota-gateway/internal/attention"
)

type stubProcessor struct {
	raw     *attention.RawEvent
	outcome attention.Outcome
}

func (p *stubProcessor) Process(ctx context.Context, raw *attention.RawEvent) *attention.PipelineResult {
	p.raw = raw
	outcome := p.outcome
	if outcome == "" {
		outcome = attention.OutcomeDiscarded
	}
	return &attention.PipelineResult{Outcome: outcome}
}

func webhookServer(wh *WebhookHandler) *httptest.Server {
	r := chi.NewRouter()
	r.Post("/webhooks/{source}", wh.HandleWebhook)
	return httptest.NewServer(r)
}

func postWebhook(t *testing.T, srv *httptest.Server, source, body string, headers map[string]string) (*http.Response, webhookResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhooks/"+source, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded webhookResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestHandleWebhook(t *testing.T) {
	t.Run("known source runs the pipeline", func(t *testing.T) {
		processor := &stubProcessor{outcome: attention.OutcomeDispatched}
		wh := NewWebhookHandler(processor, map[string]Source{"whoop": {Name: "whoop", KindField: "type"}}, nil)
		srv := webhookServer(wh)
		defer srv.Close()

		resp, body := postWebhook(t, srv, "whoop", `{"type": "recovery.updated", "recovery_score": 21}`, nil)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, "dispatched", body.Outcome)
		assert.Contains(t, body.CorrelationID, "corr_")

		require.NotNil(t, processor.raw)
		assert.Equal(t, "whoop", processor.raw.Source)
		assert.Equal(t, "recovery.updated", processor.raw.Kind)
		assert.Equal(t, float64(21), processor.raw.Payload["recovery_score"])
	})

	t.Run("unknown source is rejected", func(t *testing.T) {
		wh := NewWebhookHandler(&stubProcessor{}, map[string]Source{"whoop": {Name: "whoop"}}, nil)
		srv := webhookServer(wh)
		defer srv.Close()

		resp, body := postWebhook(t, srv, "rss", `{}`, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "error", body.Status)
	})

	t.Run("nil sources accepts any source", func(t *testing.T) {
		processor := &stubProcessor{}
		wh := NewWebhookHandler(processor, nil, nil)
		srv := webhookServer(wh)
		defer srv.Close()

		resp, _ := postWebhook(t, srv, "anything", `{"type": "ping"}`, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ping", processor.raw.Kind)
	})

	t.Run("wrong secret is unauthorized", func(t *testing.T) {
		wh := NewWebhookHandler(&stubProcessor{}, map[string]Source{"whoop": {Name: "whoop", Secret: "s3cret"}}, nil)
		srv := webhookServer(wh)
		defer srv.Close()

		resp, _ := postWebhook(t, srv, "whoop", `{}`, map[string]string{HeaderSecret: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp, _ = postWebhook(t, srv, "whoop", `{}`, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("correct secret is accepted", func(t *testing.T) {
		wh := NewWebhookHandler(&stubProcessor{}, map[string]Source{"whoop": {Name: "whoop", Secret: "s3cret"}}, nil)
		srv := webhookServer(wh)
		defer srv.Close()

		resp, _ := postWebhook(t, srv, "whoop", `{}`, map[string]string{HeaderSecret: "s3cret"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("invalid JSON body is a bad request", func(t *testing.T) {
		wh := NewWebhookHandler(&stubProcessor{}, nil, nil)
		srv := webhookServer(wh)
		defer srv.Close()

		resp, body := postWebhook(t, srv, "whoop", `{not json`, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "error", body.Status)
	})

	t.Run("event header wins over the body field", func(t *testing.T) {
		processor := &stubProcessor{}
		wh := NewWebhookHandler(processor, nil, nil)
		srv := webhookServer(wh)
		defer srv.Close()

		postWebhook(t, srv, "whoop", `{"type": "from_body"}`, map[string]string{HeaderEvent: "from_header"})
		assert.Equal(t, "from_header", processor.raw.Kind)
	})

	t.Run("kind defaults when nothing declares it", func(t *testing.T) {
		processor := &stubProcessor{}
		wh := NewWebhookHandler(processor, nil, nil)
		srv := webhookServer(wh)
		defer srv.Close()

		postWebhook(t, srv, "whoop", `{"payload": 1}`, nil)
		assert.Equal(t, "event", processor.raw.Kind)
	})

	t.Run("custom kind field is honoured", func(t *testing.T) {
		processor := &stubProcessor{}
		wh := NewWebhookHandler(processor, map[string]Source{"github": {Name: "github", KindField: "action"}}, nil)
		srv := webhookServer(wh)
		defer srv.Close()

		postWebhook(t, srv, "github", `{"action": "opened"}`, nil)
		assert.Equal(t, "opened", processor.raw.Kind)
	})

	t.Run("dedupe key comes from the header or the body id", func(t *testing.T) {
		processor := &stubProcessor{}
		wh := NewWebhookHandler(processor, nil, nil)
		srv := webhookServer(wh)
		defer srv.Close()

		postWebhook(t, srv, "whoop", `{"id": "evt_1"}`, map[string]string{HeaderDedupe: "hdr_1"})
		assert.Equal(t, "hdr_1", processor.raw.DedupeKey)

		postWebhook(t, srv, "whoop", `{"id": "evt_1"}`, nil)
		assert.Equal(t, "evt_1", processor.raw.DedupeKey)
	})

	t.Run("exhausted rate limit returns 429", func(t *testing.T) {
		wh := NewWebhookHandler(&stubProcessor{}, nil, NewRateLimiter(1, 1))
		srv := webhookServer(wh)
		defer srv.Close()

		resp, _ := postWebhook(t, srv, "whoop", `{}`, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body := postWebhook(t, srv, "whoop", `{}`, nil)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "rate_limited", body.Error)
		assert.Equal(t, "1", resp.Header.Get("Retry-After"))
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("per-source buckets are independent", func(t *testing.T) {
		rl := NewRateLimiter(100, 1)
		assert.True(t, rl.Allow("a"))
		assert.False(t, rl.Allow("a"))
		assert.True(t, rl.Allow("b"))
	})

	t.Run("global bucket caps all sources", func(t *testing.T) {
		rl := NewRateLimiter(2, 100)
		assert.True(t, rl.Allow("a"))
		assert.True(t, rl.Allow("b"))
		assert.False(t, rl.Allow("c"))
	})
}

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatRequest() *Request {
	return &Request{
		Model: "test-model",
		Messages: []Message{
			{Role: "system", Content: "You triage events."},
			{Role: "user", Content: "Classify this event."},
		},
		MaxTokens: 256,
	}
}

func TestOllamaProvider(t *testing.T) {
	t.Run("sends a non-streaming chat request", func(t *testing.T) {
		var got map[string]interface{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/chat", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"message": map[string]string{"role": "assistant", "content": `{"urgency_score": 5}`},
			})
		}))
		defer srv.Close()

		resp, err := NewOllamaProvider(srv.URL).Generate(context.Background(), chatRequest())
		require.NoError(t, err)

		assert.Equal(t, "test-model", got["model"])
		assert.Equal(t, false, got["stream"])
		msgs, ok := got["messages"].([]interface{})
		require.True(t, ok)
		assert.Len(t, msgs, 2)

		assert.Equal(t, `{"urgency_score": 5}`, resp.Content)
		assert.Equal(t, "stop", resp.FinishReason)
	})

	t.Run("non-OK status is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": "model not found"}`, http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := NewOllamaProvider(srv.URL).Generate(context.Background(), chatRequest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ollama api error 404")
	})

	t.Run("defaults to localhost", func(t *testing.T) {
		p := NewOllamaProvider("")
		assert.Equal(t, "http://localhost:11434", p.baseURL)
		assert.Equal(t, "ollama", p.Name())
	})
}

func TestAnthropicProvider(t *testing.T) {
	t.Run("hoists system messages and joins text blocks", func(t *testing.T) {
		var got anthropicRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/messages", r.URL.Path)
			assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
			assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id": "msg_1",
				"content": []map[string]string{
					{"type": "text", "text": `{"urgency`},
					{"type": "text", "text": `_score": 5}`},
				},
				"stop_reason": "end_turn",
				"usage":       map[string]int{"input_tokens": 42, "output_tokens": 7},
			})
		}))
		defer srv.Close()

		p := NewAnthropicProvider("sk-ant-test", srv.URL)
		resp, err := p.Generate(context.Background(), chatRequest())
		require.NoError(t, err)

		assert.Equal(t, "You triage events.", got.System)
		require.Len(t, got.Messages, 1)
		assert.Equal(t, "user", got.Messages[0].Role)
		assert.Equal(t, 256, got.MaxTokens)

		assert.Equal(t, `{"urgency_score": 5}`, resp.Content)
		assert.Equal(t, "end_turn", resp.FinishReason)
		assert.Equal(t, 42, resp.InputTokens)
		assert.Equal(t, 7, resp.OutputTokens)
	})

	t.Run("non-OK status is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": {"type": "authentication_error"}}`, http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, err := NewAnthropicProvider("bad", srv.URL).Generate(context.Background(), chatRequest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "anthropic api error 401")
	})
}

func TestOpenAIProvider(t *testing.T) {
	t.Run("carries the JSON schema response format", func(t *testing.T) {
		var got map[string]interface{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/chat/completions", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id":    "chatcmpl-1",
				"model": "test-model",
				"choices": []map[string]interface{}{
					{
						"index":         0,
						"message":       map[string]string{"role": "assistant", "content": `{"urgency_score": 5}`},
						"finish_reason": "stop",
					},
				},
				"usage": map[string]int{"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49},
			})
		}))
		defer srv.Close()

		p := NewOpenAIProviderWithBaseURL("sk-test", srv.URL)
		req := chatRequest()
		req.ResponseFormat = &ResponseFormat{
			Name:   "attention_classification",
			Schema: json.RawMessage(`{"type": "object"}`),
			Strict: true,
		}

		resp, err := p.Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, `{"urgency_score": 5}`, resp.Content)
		assert.Equal(t, 42, resp.InputTokens)

		rf, ok := got["response_format"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "json_schema", rf["type"])
		schema, ok := rf["json_schema"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "attention_classification", schema["name"])
		assert.Equal(t, true, schema["strict"])
	})

	t.Run("empty choices is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id":      "chatcmpl-1",
				"model":   "test-model",
				"choices": []interface{}{},
			})
		}))
		defer srv.Close()

		p := NewOpenAIProviderWithBaseURL("sk-test", srv.URL)
		_, err := p.Generate(context.Background(), chatRequest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no choices")
	})
}

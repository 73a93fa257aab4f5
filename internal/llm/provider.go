// Package llm abstracts the reasoning backends the classification agent can
// talk to. Providers share a single Generate contract; which one is used is
// decided once, at construction, from the attention guardrails.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// TimeoutCall bounds every backend request. A hung classification call must
// not hang the pipeline run indefinitely.
const TimeoutCall = 60 * time.Second

// Domain errors for the llm package.
var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrNoAPIKey        = errors.New("provider requires an API key")
)

// Provider is the interface all reasoning backends implement.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "ollama").
	Name() string
	// Generate sends a completion request to the backend.
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Request is a provider-agnostic generation request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// ResponseFormat constrains the reply to a JSON schema. Only honoured by
	// providers with a structured-response protocol; chat-style providers
	// ignore it and rely on prompt instructions instead.
	ResponseFormat *ResponseFormat
}

// Message is a chat message.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// ResponseFormat names a JSON schema the reply must conform to.
type ResponseFormat struct {
	Name   string
	Schema json.RawMessage
	Strict bool
}

// Response is a provider-agnostic generation response.
type Response struct {
	Content      string
	FinishReason string
	InputTokens  int
	OutputTokens int
	Model        string
}

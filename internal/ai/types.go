package ai

import (
	"context"
	"encoding/json"
	"time"
)

// ModelConfig describes one model adapter. It is copied into the adapter at
// construction and never mutated afterwards.
type ModelConfig struct {
	Name         string        `json:"name"`
	Provider     string        `json:"provider"`
	APIKey       string        `json:"-"`
	BaseURL      string        `json:"base_url,omitempty"`
	Model        string        `json:"model"`
	Temperature  float64       `json:"temperature"`
	MaxTokens    int           `json:"max_tokens"`
	MaxRetries   int           `json:"max_retries"`
	Timeout      time.Duration `json:"timeout"`
	Enabled      bool          `json:"enabled"`
	Priority     int           `json:"priority"`
	RateLimitRPM int           `json:"rate_limit_rpm,omitempty"`
}

// Message is one turn of a chat-completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseSchema asks the provider for output matching a JSON schema.
type ResponseSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
}

// Request is a provider-neutral completion request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Schema      *ResponseSchema
}

// Usage reports token consumption for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a provider-neutral completion response.
type Response struct {
	Content      string
	Model        string
	FinishReason string
	Usage        Usage
}

// Provider is the transport to one model endpoint.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request, onChunk func(string) error) (*Response, error)
}

// CallOptions tune a single generation call.
type CallOptions struct {
	// Model overrides the service's primary model for this call.
	Model        string        `json:"model,omitempty"`
	SystemPrompt string        `json:"system,omitempty"`
	Temperature  *float64      `json:"temperature,omitempty"`
	MaxTokens    int           `json:"max_tokens,omitempty"`
	Timeout      time.Duration `json:"-"`
	// NoCache bypasses the response cache for this call.
	NoCache bool `json:"-"`
}

// Float returns a pointer to f, for CallOptions.Temperature.
func Float(f float64) *float64 {
	return &f
}

package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChainProvider adapts a langchaingo model to Provider. Structured
// requests use JSON mode with the schema spelled out in the system turn.
type LangChainProvider struct {
	name string
	llm  llms.Model
}

// NewLangChainProvider wraps an existing langchaingo model.
func NewLangChainProvider(name string, llm llms.Model) *LangChainProvider {
	return &LangChainProvider{name: name, llm: llm}
}

// newLangChainModel builds the langchaingo client for cfg.Provider.
func newLangChainModel(cfg ModelConfig, client *http.Client) (llms.Model, error) {
	switch cfg.Provider {
	case "anthropic":
		opts := []anthropic.Option{anthropic.WithModel(cfg.Model), anthropic.WithToken(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		if client != nil {
			opts = append(opts, anthropic.WithHTTPClient(client))
		}
		return anthropic.New(opts...)
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		if client != nil {
			opts = append(opts, ollama.WithHTTPClient(client))
		}
		return ollama.New(opts...)
	case "langchain-openai":
		opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithToken(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		if client != nil {
			opts = append(opts, openai.WithHTTPClient(client))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("provider %q is not served by langchaingo", cfg.Provider)
	}
}

// Complete implements Provider.
func (p *LangChainProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	return p.generate(ctx, req, nil)
}

// Stream implements Provider.
func (p *LangChainProvider) Stream(ctx context.Context, req Request, onChunk func(string) error) (*Response, error) {
	return p.generate(ctx, req, onChunk)
}

func (p *LangChainProvider) generate(ctx context.Context, req Request, onChunk func(string) error) (*Response, error) {
	messages := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.Schema != nil {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem,
			"Respond with a single JSON object and nothing else. It must validate against this JSON schema:\n"+
				string(req.Schema.Schema)))
	}
	for _, m := range req.Messages {
		messages = append(messages, llms.TextParts(chatRole(m.Role), m.Content))
	}

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Schema != nil {
		opts = append(opts, llms.WithJSONMode())
	}
	if onChunk != nil {
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			return onChunk(string(chunk))
		}))
	}

	out, err := p.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", p.name)
	}

	choice := out.Choices[0]
	resp := &Response{
		Content:      choice.Content,
		Model:        req.Model,
		FinishReason: choice.StopReason,
		Usage:        usageFromInfo(choice.GenerationInfo),
	}
	return resp, nil
}

func chatRole(role string) llms.ChatMessageType {
	switch strings.ToLower(role) {
	case "system":
		return llms.ChatMessageTypeSystem
	case "assistant":
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// usageFromInfo reads token counts from the provider-specific generation
// info keys langchaingo exposes.
func usageFromInfo(info map[string]any) Usage {
	var u Usage
	u.PromptTokens = firstInt(info, "PromptTokens", "InputTokens", "input_tokens", "prompt_tokens")
	u.CompletionTokens = firstInt(info, "CompletionTokens", "OutputTokens", "output_tokens", "completion_tokens")
	u.TotalTokens = firstInt(info, "TotalTokens", "total_tokens")
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

func firstInt(info map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}

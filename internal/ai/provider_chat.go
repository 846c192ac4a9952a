package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	maxResponseSize      = 10 << 20
)

// ChatCompletionsProvider speaks the OpenAI chat-completions wire format,
// which OpenAI, DeepSeek, OpenRouter and most gateways accept.
type ChatCompletionsProvider struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewChatCompletionsProvider creates a provider for the endpoint at baseURL.
func NewChatCompletionsProvider(name, baseURL, apiKey string, client *http.Client) *ChatCompletionsProvider {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &ChatCompletionsProvider{name: name, baseURL: baseURL, apiKey: apiKey, client: client}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string          `json:"type"`
	JSONSchema *jsonSchemaSpec `json:"json_schema,omitempty"`
}

type jsonSchemaSpec struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage,omitempty"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete implements Provider.
func (p *ChatCompletionsProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	httpResp, err := p.do(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, core.ErrAdapter(p.name, "reading response body", true).WithCause(err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, core.ErrAdapter(p.name, "decoding response body", true).WithCause(err)
	}
	if len(parsed.Choices) == 0 {
		return nil, core.ErrAdapter(p.name, "response has no choices", true)
	}

	resp := &Response{
		Content:      parsed.Choices[0].Message.Content,
		Model:        parsed.Model,
		FinishReason: parsed.Choices[0].FinishReason,
	}
	if parsed.Usage != nil {
		resp.Usage = *parsed.Usage
	}
	return resp, nil
}

// Stream implements Provider by reading server-sent events until [DONE].
func (p *ChatCompletionsProvider) Stream(ctx context.Context, req Request, onChunk func(string) error) (*Response, error) {
	httpResp, err := p.do(ctx, req, true)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var full strings.Builder
	resp := &Response{}
	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			break
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, core.ErrAdapter(p.name, "decoding stream chunk", false).WithCause(err)
		}
		if chunk.Model != "" {
			resp.Model = chunk.Model
		}
		if chunk.Usage != nil {
			resp.Usage = *chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if fr := chunk.Choices[0].FinishReason; fr != "" {
			resp.FinishReason = fr
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			full.WriteString(text)
			if onChunk != nil {
				if err := onChunk(text); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, core.ErrAdapter(p.name, "reading stream", false).WithCause(err)
	}

	resp.Content = full.String()
	return resp, nil
}

func (p *ChatCompletionsProvider) do(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	body := chatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	if req.Schema != nil {
		body.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchemaSpec{Name: req.Schema.Name, Schema: req.Schema.Schema},
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, core.ErrAdapter(p.name, "encoding request", false).WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, core.ErrAdapter(p.name, "creating request", false).WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, core.ErrAdapter(p.name, "HTTP request failed", true).WithCause(err)
	}
	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64*1024))
		return nil, p.classifyHTTPError(httpResp.StatusCode, errBody)
	}
	return httpResp, nil
}

func (p *ChatCompletionsProvider) endpoint() string {
	base := strings.TrimSuffix(p.baseURL, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

// classifyHTTPError treats throttling and server faults as retryable and
// every other status as fatal for this model.
func (p *ChatCompletionsProvider) classifyHTTPError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var parsed apiError
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
	}
	detail := fmt.Sprintf("HTTP %d: %s", status, msg)

	switch {
	case status == http.StatusTooManyRequests:
		return core.ErrRateLimit(p.name).WithDetail("status", status).WithCause(errors.New(detail))
	case status >= 500, status == http.StatusRequestTimeout:
		return core.ErrAdapter(p.name, detail, true).WithDetail("status", status)
	default:
		return core.ErrAdapter(p.name, detail, false).WithDetail("status", status)
	}
}

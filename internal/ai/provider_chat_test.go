package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

func TestChatCompletionsProvider_Complete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"model":"gpt-test","choices":[{"message":{"content":"{\"title\":\"x\",\"score\":1}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":7,"completion_tokens":3,"total_tokens":10}}`)
	}))
	defer srv.Close()

	p := NewChatCompletionsProvider("gpt", srv.URL+"/v1", "sk-test", srv.Client())
	resp, err := p.Complete(context.Background(), Request{
		Model:    "gpt-test",
		Messages: []Message{{Role: "user", Content: "hi"}},
		Schema:   SchemaFor[sampleReply]().ResponseFormat(),
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Usage.TotalTokens != 10 || resp.FinishReason != "stop" || resp.Model != "gpt-test" {
		t.Fatalf("response = %+v", resp)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_schema" || got.ResponseFormat.JSONSchema.Name != "sample_reply" {
		t.Fatalf("response_format not sent: %+v", got.ResponseFormat)
	}
}

func TestChatCompletionsProvider_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range []string{"Hel", "lo"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", c)
		}
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewChatCompletionsProvider("gpt", srv.URL, "", srv.Client())
	var chunks []string
	resp, err := p.Stream(context.Background(), Request{Model: "m"}, func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if resp.Content != "Hello" || len(chunks) != 2 || resp.FinishReason != "stop" {
		t.Fatalf("resp = %+v, chunks = %v", resp, chunks)
	}
}

func TestChatCompletionsProvider_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"error":{"message":"nope"}}`)
			}))
			defer srv.Close()

			p := NewChatCompletionsProvider("gpt", srv.URL, "", srv.Client())
			_, err := p.Complete(context.Background(), Request{Model: "m"})
			if core.IsRetryable(err) != tt.retryable {
				t.Fatalf("retryable = %v for %v", core.IsRetryable(err), err)
			}
		})
	}
}

func TestNewProvider(t *testing.T) {
	if _, err := NewProvider(ModelConfig{Name: "x", Provider: "openai-compatible"}, nil); err == nil {
		t.Fatalf("openai-compatible without base_url should fail")
	}
	if _, err := NewProvider(ModelConfig{Name: "x", Provider: "smoke-signals"}, nil); err == nil {
		t.Fatalf("unknown provider should fail")
	}
	p, err := NewProvider(ModelConfig{Name: "x", Provider: "openai"}, nil)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if _, ok := p.(*ChatCompletionsProvider); !ok {
		t.Fatalf("openai should use the chat-completions transport, got %T", p)
	}
	lp, err := NewProvider(ModelConfig{Name: "local", Provider: "ollama", Model: "llama3"}, nil)
	if err != nil {
		t.Fatalf("ollama provider error = %v", err)
	}
	if _, ok := lp.(*LangChainProvider); !ok {
		t.Fatalf("ollama should use langchaingo, got %T", lp)
	}
}

func TestUsageFromInfo(t *testing.T) {
	u := usageFromInfo(map[string]any{"InputTokens": 4, "OutputTokens": 6})
	if u.PromptTokens != 4 || u.CompletionTokens != 6 || u.TotalTokens != 10 {
		t.Fatalf("usage = %+v", u)
	}
}

package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

func fastRetry() AdapterOption {
	return WithRetryOptions(WithBaseDelay(time.Millisecond), WithJitter(0))
}

func TestAdapter_RetriesTransientErrorsAndRecordsOnce(t *testing.T) {
	p := &fakeProvider{replies: []fakeReply{
		{err: errors.New("connection reset")},
		{content: "hello"},
	}}
	cfg := testModel("m")
	cfg.MaxRetries = 2
	a := NewAdapter(cfg, p, fastRetry())

	got, err := a.GenerateText(context.Background(), "hi", CallOptions{})
	if err != nil || got != "hello" {
		t.Fatalf("GenerateText() = %q, %v", got, err)
	}
	if p.calls() != 2 {
		t.Fatalf("provider calls = %d, want 2", p.calls())
	}
	m := a.Metrics()
	if m.TotalCalls != 1 || m.SuccessCalls != 1 || m.TotalTokens == 0 {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestAdapter_GenerateObjectParseErrorNotRetried(t *testing.T) {
	p := &fakeProvider{replies: []fakeReply{{content: "I cannot answer that"}}}
	cfg := testModel("m")
	cfg.MaxRetries = 3
	a := NewAdapter(cfg, p, fastRetry())

	_, err := a.GenerateObject(context.Background(), "p", SchemaFor[sampleReply](), CallOptions{})
	if !core.IsCategory(err, core.ErrCatParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if p.calls() != 1 {
		t.Fatalf("parse errors must not be retried, calls = %d", p.calls())
	}
	if m := a.Metrics(); m.FailedCalls != 1 || m.TotalCalls != 1 {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestAdapter_GenerateObjectSendsSchema(t *testing.T) {
	p := &fakeProvider{replies: []fakeReply{{content: "```json\n{\"title\":\"t\",\"score\":5}\n```"}}}
	a := NewAdapter(testModel("m"), p)

	raw, err := a.GenerateObject(context.Background(), "p", SchemaFor[sampleReply](),
		CallOptions{SystemPrompt: "sys", Temperature: Float(0.2)})
	if err != nil {
		t.Fatalf("GenerateObject() error = %v", err)
	}
	if string(raw) != `{"title":"t","score":5}` {
		t.Fatalf("raw = %s", raw)
	}
	req := p.requests[0]
	if req.Schema == nil || req.Schema.Name != "sample_reply" {
		t.Fatalf("schema not sent: %+v", req.Schema)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Temperature != 0.2 {
		t.Fatalf("request = %+v", req)
	}
}

func TestAdapter_AuthErrorsAreFatal(t *testing.T) {
	p := &fakeProvider{replies: []fakeReply{{err: errors.New("status 401: invalid api key")}}}
	cfg := testModel("m")
	cfg.MaxRetries = 3
	a := NewAdapter(cfg, p, fastRetry())

	_, err := a.GenerateText(context.Background(), "p", CallOptions{})
	if core.IsRetryable(err) || p.calls() != 1 {
		t.Fatalf("err = %v, calls = %d", err, p.calls())
	}
}

func TestAdapter_Timeout(t *testing.T) {
	a := NewAdapter(testModel("m"), blockingProvider{})
	_, err := a.GenerateText(context.Background(), "p", CallOptions{Timeout: 20 * time.Millisecond})
	if !core.IsCategory(err, core.ErrCatTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestAdapter_IsAvailableNotCounted(t *testing.T) {
	p := &fakeProvider{}
	a := NewAdapter(testModel("m"), p)
	if !a.IsAvailable(context.Background()) {
		t.Fatalf("expected available")
	}
	if a.Metrics().TotalCalls != 0 {
		t.Fatalf("probe was counted")
	}

	down := NewAdapter(testModel("d"), &fakeProvider{replies: []fakeReply{{err: errors.New("down")}}})
	if down.IsAvailable(context.Background()) {
		t.Fatalf("expected unavailable")
	}
}

func TestAdapter_StreamText(t *testing.T) {
	p := &fakeProvider{chunks: []string{"Hel", "lo"}}
	a := NewAdapter(testModel("m"), p)

	var got []string
	full, err := a.StreamText(context.Background(), "p", func(c string) error {
		got = append(got, c)
		return nil
	}, CallOptions{})
	if err != nil || full != "Hello" || len(got) != 2 {
		t.Fatalf("StreamText() = %q, %v, chunks %v", full, err, got)
	}
	if a.Metrics().TotalCalls != 1 {
		t.Fatalf("stream call not recorded")
	}
}

type blockingProvider struct{}

func (blockingProvider) Complete(ctx context.Context, _ Request) (*Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingProvider) Stream(ctx context.Context, _ Request, _ func(string) error) (*Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

package ai

import (
	"context"
	"sync"
)

// fakeProvider replays scripted replies and records every request.
type fakeProvider struct {
	mu       sync.Mutex
	replies  []fakeReply
	requests []Request
	chunks   []string
}

type fakeReply struct {
	content string
	err     error
}

func (f *fakeProvider) next(req Request) (fakeReply, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	n := len(f.requests)
	if len(f.replies) == 0 {
		return fakeReply{content: "ok"}, n
	}
	if n-1 < len(f.replies) {
		return f.replies[n-1], n
	}
	return f.replies[len(f.replies)-1], n
}

func (f *fakeProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, _ := f.next(req)
	if r.err != nil {
		return nil, r.err
	}
	return &Response{Content: r.content, Model: req.Model}, nil
}

func (f *fakeProvider) Stream(ctx context.Context, req Request, onChunk func(string) error) (*Response, error) {
	r, _ := f.next(req)
	if r.err != nil {
		return nil, r.err
	}
	full := ""
	for _, c := range f.chunks {
		if err := onChunk(c); err != nil {
			return nil, err
		}
		full += c
	}
	return &Response{Content: full, Model: req.Model}, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func testModel(name string) ModelConfig {
	return ModelConfig{Name: name, Provider: "fake", Model: name, Enabled: true}
}

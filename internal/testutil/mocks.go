package testutil

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/lumia-zhu/aiplanner-sub000/internal/ai"
)

// MockResponse is one scripted provider reply.
type MockResponse struct {
	Content string
	Err     error
}

type mockRule struct {
	match    string
	response MockResponse
}

// MockCall records a call to the mock.
type MockCall struct {
	Method    string
	Request   ai.Request
	Timestamp time.Time
}

// MockProvider implements ai.Provider with scripted replies. Resolution
// order: custom func, queued replies, first matching rule, default reply.
type MockProvider struct {
	mu        sync.Mutex
	fn        func(context.Context, ai.Request) (*ai.Response, error)
	queue     []MockResponse
	rules     []mockRule
	fallback  MockResponse
	delay     time.Duration
	chunkSize int
	calls     []MockCall
}

// NewMockProvider creates a mock replying "OK" to everything.
func NewMockProvider() *MockProvider {
	return &MockProvider{fallback: MockResponse{Content: "OK"}, chunkSize: 4}
}

// On replies content to requests whose messages contain substr.
func (m *MockProvider) On(substr, content string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{match: substr, response: MockResponse{Content: content}})
	return m
}

// OnError fails requests whose messages contain substr.
func (m *MockProvider) OnError(substr string, err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{match: substr, response: MockResponse{Err: err}})
	return m
}

// Enqueue adds replies consumed one per call before rules apply.
func (m *MockProvider) Enqueue(responses ...MockResponse) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, responses...)
	return m
}

// WithResponse sets the default reply.
func (m *MockProvider) WithResponse(content string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = MockResponse{Content: content}
	return m
}

// WithError makes the default reply fail.
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = MockResponse{Err: err}
	return m
}

// WithFunc replaces all scripting with fn.
func (m *MockProvider) WithFunc(fn func(context.Context, ai.Request) (*ai.Response, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// WithDelay makes every call wait d, or until the context ends.
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// Complete implements ai.Provider.
func (m *MockProvider) Complete(ctx context.Context, req ai.Request) (*ai.Response, error) {
	return m.reply(ctx, "Complete", req)
}

// Stream implements ai.Provider by splitting the reply into small chunks.
func (m *MockProvider) Stream(ctx context.Context, req ai.Request, onChunk func(string) error) (*ai.Response, error) {
	resp, err := m.reply(ctx, "Stream", req)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	size := m.chunkSize
	m.mu.Unlock()

	rest := resp.Content
	for rest != "" {
		n, i := 0, 0
		for i < len(rest) && n < size {
			_, w := utf8.DecodeRuneInString(rest[i:])
			i += w
			n++
		}
		if err := onChunk(rest[:i]); err != nil {
			return nil, err
		}
		rest = rest[i:]
	}
	return resp, nil
}

func (m *MockProvider) reply(ctx context.Context, method string, req ai.Request) (*ai.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: method, Request: req, Timestamp: time.Now()})
	fn, delay := m.fn, m.delay
	r := m.pick(req)
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, req)
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return &ai.Response{Content: r.Content, Model: req.Model, FinishReason: "stop"}, nil
}

// pick must be called with m.mu held.
func (m *MockProvider) pick(req ai.Request) MockResponse {
	if len(m.queue) > 0 {
		r := m.queue[0]
		m.queue = m.queue[1:]
		return r
	}
	var text strings.Builder
	for _, msg := range req.Messages {
		text.WriteString(msg.Content)
		text.WriteByte('\n')
	}
	for _, rule := range m.rules {
		if strings.Contains(text.String(), rule.match) {
			return rule.response
		}
	}
	return m.fallback
}

// Calls returns recorded calls.
func (m *MockProvider) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall{}, m.calls...)
}

// CallCount returns the number of calls to a method, or all calls when
// method is empty.
func (m *MockProvider) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if method == "" {
		return len(m.calls)
	}
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears call history.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// NewService returns an uncached AI service whose only model is backed by p.
func NewService(p ai.Provider) *ai.Service {
	svc := ai.NewService(ai.ServiceConfig{PrimaryModel: "mock"})
	svc.RegisterAdapter(ai.NewAdapter(ai.ModelConfig{
		Name:    "mock",
		Model:   "mock-model",
		Enabled: true,
	}, p))
	return svc
}

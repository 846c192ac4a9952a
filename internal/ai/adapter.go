package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/logging"
)

// Adapter wraps one provider with timeouts, retries, rate limiting and
// per-model metrics. Every Generate/Stream call records its outcome once.
type Adapter struct {
	cfg       ModelConfig
	provider  Provider
	metrics   *metricsTracker
	limiter   *RateLimiter
	tokens    TokenCounter
	recorder  *Recorder
	logger    *logging.Logger
	retryOpts []RetryPolicyOption
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(l *logging.Logger) AdapterOption {
	return func(a *Adapter) { a.logger = l }
}

// WithRecorder exports adapter calls to Prometheus.
func WithRecorder(r *Recorder) AdapterOption {
	return func(a *Adapter) { a.recorder = r }
}

// WithTokenCounter sets the estimator used when providers omit usage.
func WithTokenCounter(c TokenCounter) AdapterOption {
	return func(a *Adapter) { a.tokens = c }
}

// WithRetryOptions tunes the backoff between transport retries.
func WithRetryOptions(opts ...RetryPolicyOption) AdapterOption {
	return func(a *Adapter) { a.retryOpts = append(a.retryOpts, opts...) }
}

// NewAdapter creates an adapter for cfg backed by provider.
func NewAdapter(cfg ModelConfig, provider Provider, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		cfg:      cfg,
		provider: provider,
		metrics:  &metricsTracker{model: cfg.Name},
		tokens:   ApproxCounter{},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.OrNop(a.logger).WithModel(cfg.Name)
	if cfg.RateLimitRPM > 0 {
		a.limiter = NewRateLimiter(cfg.RateLimitRPM, max(1, cfg.RateLimitRPM/10))
	}
	return a
}

// Name returns the registry name of the adapter.
func (a *Adapter) Name() string {
	return a.cfg.Name
}

// Config returns a copy of the adapter configuration.
func (a *Adapter) Config() ModelConfig {
	return a.cfg
}

// Metrics returns a snapshot of the adapter's call statistics.
func (a *Adapter) Metrics() ModelMetrics {
	return a.metrics.snapshot()
}

// ResetMetrics clears the adapter's call statistics.
func (a *Adapter) ResetMetrics() {
	a.metrics.reset()
}

// GenerateText returns the model's free-text reply to prompt.
func (a *Adapter) GenerateText(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	req := a.buildRequest(prompt, opts, nil)
	resp, err := a.call(ctx, "generate_text", req, opts, nil)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// GenerateObject returns the model's JSON reply to prompt validated
// against schema. Invalid JSON or schema mismatch is a ParseError and is
// not retried.
func (a *Adapter) GenerateObject(ctx context.Context, prompt string, schema *Schema, opts CallOptions) (json.RawMessage, error) {
	req := a.buildRequest(prompt, opts, schema)
	var raw json.RawMessage
	_, err := a.call(ctx, "generate_object", req, opts, func(resp *Response) error {
		extracted, err := ExtractJSON(resp.Content)
		if err != nil {
			return err
		}
		if err := schema.Validate(extracted); err != nil {
			return err
		}
		raw = extracted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// StreamText delivers the reply incrementally to onChunk and returns the
// full text. Streams are not retried once started.
func (a *Adapter) StreamText(ctx context.Context, prompt string, onChunk func(string) error, opts CallOptions) (string, error) {
	req := a.buildRequest(prompt, opts, nil)
	ctx, cancel := a.withTimeout(ctx, opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := a.invoke(ctx, func(ctx context.Context) (*Response, error) {
		return a.provider.Stream(ctx, req, onChunk)
	})
	a.observe("stream_text", req, resp, time.Since(start), err)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// IsAvailable makes a minimal real call and reports whether it succeeded.
// Probe calls are not counted in the adapter metrics.
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	if !a.cfg.Enabled {
		return false
	}
	ctx, cancel := a.withTimeout(ctx, 0)
	defer cancel()

	req := Request{
		Model:     a.cfg.Model,
		Messages:  []Message{{Role: "user", Content: "Reply with OK."}},
		MaxTokens: 5,
	}
	if _, err := a.provider.Complete(ctx, req); err != nil {
		a.logger.Debug("availability probe failed", "error", err)
		return false
	}
	return true
}

func (a *Adapter) buildRequest(prompt string, opts CallOptions, schema *Schema) Request {
	req := Request{
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
		Schema:      schema.ResponseFormat(),
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.SystemPrompt != "" {
		req.Messages = append(req.Messages, Message{Role: "system", Content: opts.SystemPrompt})
	}
	req.Messages = append(req.Messages, Message{Role: "user", Content: prompt})
	return req
}

// call runs a non-streaming request with retries, then post-processes the
// response. Metrics are recorded once for the whole call.
func (a *Adapter) call(ctx context.Context, method string, req Request, opts CallOptions, post func(*Response) error) (*Response, error) {
	ctx, cancel := a.withTimeout(ctx, opts.Timeout)
	defer cancel()

	start := time.Now()
	var resp *Response
	policy := NewRetryPolicy(a.cfg.MaxRetries, a.retryOpts...)
	err := policy.Do(ctx, func(ctx context.Context) error {
		r, err := a.invoke(ctx, func(ctx context.Context) (*Response, error) {
			return a.provider.Complete(ctx, req)
		})
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, func(attempt int, err error, delay time.Duration) {
		a.logger.Warn("retrying model call", "method", method, "attempt", attempt, "delay", delay, "error", err)
	})
	if err == nil && post != nil {
		err = post(resp)
	}
	a.observe(method, req, resp, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (a *Adapter) invoke(ctx context.Context, fn func(context.Context) (*Response, error)) (*Response, error) {
	if a.limiter != nil {
		if err := a.limiter.Acquire(ctx); err != nil {
			return nil, a.classify(ctx, err)
		}
	}
	resp, err := fn(ctx)
	if err != nil {
		return nil, a.classify(ctx, err)
	}
	if resp == nil {
		return nil, core.ErrAdapter(a.cfg.Name, "provider returned no response", true)
	}
	return resp, nil
}

// classify maps transport failures onto the error taxonomy.
func (a *Adapter) classify(ctx context.Context, err error) error {
	var de *core.DomainError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.ErrTimeout("model call to " + a.cfg.Name + " timed out").WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	msg := err.Error()
	retryable := !strings.Contains(strings.ToLower(msg), "invalid api key") &&
		!strings.Contains(msg, "401") && !strings.Contains(msg, "403")
	return core.ErrAdapter(a.cfg.Name, msg, retryable).WithCause(err)
}

func (a *Adapter) observe(method string, req Request, resp *Response, latency time.Duration, err error) {
	tokens := 0
	if resp != nil {
		tokens = resp.Usage.TotalTokens
		if tokens == 0 {
			for _, m := range req.Messages {
				tokens += a.tokens.Count(a.cfg.Model, m.Content)
			}
			tokens += a.tokens.Count(a.cfg.Model, resp.Content)
		}
	}
	a.metrics.record(latency, tokens, err)
	a.recorder.ObserveCall(a.cfg.Name, method, latency, tokens, err)
	if err != nil {
		a.logger.Debug("model call failed", "method", method, "latency", latency, "error", err)
	} else {
		a.logger.Debug("model call finished", "method", method, "latency", latency, "tokens", tokens)
	}
}

func (a *Adapter) withTimeout(ctx context.Context, override time.Duration) (context.Context, context.CancelFunc) {
	timeout := override
	if timeout <= 0 {
		timeout = a.cfg.Timeout
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

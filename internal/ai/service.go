package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/events"
	"github.com/lumia-zhu/aiplanner-sub000/internal/logging"
)

// Fallback strategies.
const (
	FallbackNext = "next"
	FallbackNone = "none"
)

// ServiceConfig configures model selection and caching.
type ServiceConfig struct {
	PrimaryModel     string
	FallbackModels   []string
	FallbackStrategy string
	Timeout          time.Duration
	CacheEnabled     bool
	CacheTTL         time.Duration
	CacheSize        int
}

// Service routes generation calls to registered adapters with caching and
// primary/fallback selection.
type Service struct {
	mu        sync.RWMutex
	adapters  map[string]*Adapter
	primary   string
	fallbacks []string
	strategy  string
	timeout   time.Duration

	textCache   *Cache[string]
	objectCache *Cache[json.RawMessage]

	recorder *Recorder
	bus      *events.EventBus
	logger   *logging.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the service logger.
func WithServiceLogger(l *logging.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithServiceRecorder exports cache lookups to Prometheus.
func WithServiceRecorder(r *Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// WithEventBus publishes fallback events.
func WithEventBus(b *events.EventBus) ServiceOption {
	return func(s *Service) { s.bus = b }
}

// NewService creates a service. Adapters are registered afterwards and the
// primary model is checked by SetPrimaryModel or Validate.
func NewService(cfg ServiceConfig, opts ...ServiceOption) *Service {
	s := &Service{
		adapters:  make(map[string]*Adapter),
		primary:   cfg.PrimaryModel,
		fallbacks: append([]string(nil), cfg.FallbackModels...),
		strategy:  cfg.FallbackStrategy,
		timeout:   cfg.Timeout,
	}
	if s.strategy == "" {
		s.strategy = FallbackNext
	}
	if cfg.CacheEnabled {
		s.textCache = NewCache[string](cfg.CacheSize, cfg.CacheTTL)
		s.objectCache = NewCache[json.RawMessage](cfg.CacheSize, cfg.CacheTTL)
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger)
	return s
}

// RegisterAdapter adds or replaces an adapter under its name.
func (s *Service) RegisterAdapter(a *Adapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapters[a.Name()] = a
}

// UnregisterAdapter removes an adapter.
func (s *Service) UnregisterAdapter(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.adapters, name)
}

// Adapter returns the named adapter.
func (s *Service) Adapter(name string) (*Adapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.adapters[name]
	if !ok {
		return nil, core.ErrConfig(core.CodeUnknownModel, fmt.Sprintf("model %q is not registered", name))
	}
	return a, nil
}

// Adapters returns registered adapters sorted by priority, highest first.
func (s *Service) Adapters() []*Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Adapter, 0, len(s.adapters))
	for _, a := range s.adapters {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].cfg.Priority != out[j].cfg.Priority {
			return out[i].cfg.Priority > out[j].cfg.Priority
		}
		return out[i].Name() < out[j].Name()
	})
	return out
}

// PrimaryModel returns the name of the primary model.
func (s *Service) PrimaryModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primary
}

// SetPrimaryModel selects the primary model. An unregistered name is a
// configuration error.
func (s *Service) SetPrimaryModel(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.adapters[name]; !ok {
		return core.ErrConfig(core.CodeUnknownModel, fmt.Sprintf("primary model %q is not registered", name))
	}
	s.primary = name
	return nil
}

// SetFallbackModels replaces the fallback chain.
func (s *Service) SetFallbackModels(names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		if _, ok := s.adapters[n]; !ok {
			return core.ErrConfig(core.CodeUnknownModel, fmt.Sprintf("fallback model %q is not registered", n))
		}
	}
	s.fallbacks = append([]string(nil), names...)
	return nil
}

// Validate checks that the configured primary and fallbacks are registered.
func (s *Service) Validate() error {
	s.mu.RLock()
	primary, fallbacks := s.primary, append([]string(nil), s.fallbacks...)
	s.mu.RUnlock()
	if err := s.SetPrimaryModel(primary); err != nil {
		return err
	}
	return s.SetFallbackModels(fallbacks)
}

// Metrics returns a snapshot per registered adapter.
func (s *Service) Metrics() map[string]ModelMetrics {
	out := make(map[string]ModelMetrics)
	for _, a := range s.Adapters() {
		out[a.Name()] = a.Metrics()
	}
	return out
}

// IsAvailable probes the named adapter. Unknown names are unavailable.
func (s *Service) IsAvailable(ctx context.Context, name string) bool {
	a, err := s.Adapter(name)
	if err != nil {
		return false
	}
	return a.IsAvailable(ctx)
}

// ClearCache drops every cached response.
func (s *Service) ClearCache() {
	if s.textCache != nil {
		s.textCache.Purge()
		s.objectCache.Purge()
	}
}

// StartCacheSweeper removes expired entries every interval until ctx ends.
func (s *Service) StartCacheSweeper(ctx context.Context, interval time.Duration) {
	if s.textCache == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n := s.textCache.Sweep() + s.objectCache.Sweep()
				if n > 0 {
					s.logger.Debug("swept expired cache entries", "count", n)
				}
			}
		}
	}()
}

// GenerateText returns a free-text reply, served from cache when possible.
func (s *Service) GenerateText(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	key := CacheKey("generate_text", prompt, opts)
	if v, ok := s.lookupText(key, opts); ok {
		return v, nil
	}

	var out string
	err := s.withFallback(ctx, opts, func(ctx context.Context, a *Adapter, callOpts CallOptions) error {
		text, err := a.GenerateText(ctx, prompt, callOpts)
		out = text
		return err
	})
	if err != nil {
		return "", err
	}
	if s.textCache != nil && !opts.NoCache {
		s.textCache.Set(key, out)
	}
	return out, nil
}

// GenerateObjectRaw returns a JSON reply validated against schema, served
// from cache when possible.
func (s *Service) GenerateObjectRaw(ctx context.Context, prompt string, schema *Schema, opts CallOptions) (json.RawMessage, error) {
	key := CacheKey("generate_object:"+schema.Name, prompt, opts)
	if s.objectCache != nil && !opts.NoCache {
		v, ok := s.objectCache.Get(key)
		s.recorder.ObserveCache(ok)
		if ok {
			return bytes.Clone(v), nil
		}
	}

	var out json.RawMessage
	err := s.withFallback(ctx, opts, func(ctx context.Context, a *Adapter, callOpts CallOptions) error {
		raw, err := a.GenerateObject(ctx, prompt, schema, callOpts)
		out = raw
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.objectCache != nil && !opts.NoCache {
		s.objectCache.Set(key, bytes.Clone(out))
	}
	return out, nil
}

// GenerateObject asks for a reply matching T's schema and decodes it.
func GenerateObject[T any](ctx context.Context, s *Service, prompt string, opts CallOptions) (T, error) {
	raw, err := s.GenerateObjectRaw(ctx, prompt, SchemaFor[T](), opts)
	if err != nil {
		var zero T
		return zero, err
	}
	return DecodeObject[T](raw)
}

// StreamText streams a reply from the primary model. Streams are never
// cached and never fall back.
func (s *Service) StreamText(ctx context.Context, prompt string, onChunk func(string) error, opts CallOptions) (string, error) {
	name := opts.Model
	if name == "" {
		name = s.PrimaryModel()
	}
	a, err := s.Adapter(name)
	if err != nil {
		return "", err
	}
	return a.StreamText(ctx, prompt, onChunk, s.optsFor(a, opts))
}

func (s *Service) lookupText(key string, opts CallOptions) (string, bool) {
	if s.textCache == nil || opts.NoCache {
		return "", false
	}
	v, ok := s.textCache.Get(key)
	s.recorder.ObserveCache(ok)
	return v, ok
}

// chain returns the adapters to try in order: the primary (or the per-call
// override), then the fallbacks when the strategy allows it.
func (s *Service) chain(override string) ([]*Adapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	primary := s.primary
	if override != "" {
		primary = override
	}
	first, ok := s.adapters[primary]
	if !ok {
		return nil, core.ErrConfig(core.CodeUnknownModel, fmt.Sprintf("model %q is not registered", primary))
	}

	out := []*Adapter{first}
	if s.strategy != FallbackNext {
		return out, nil
	}
	seen := map[string]bool{primary: true}
	for _, name := range s.fallbacks {
		a, ok := s.adapters[name]
		if !ok || seen[name] || !a.cfg.Enabled {
			continue
		}
		seen[name] = true
		out = append(out, a)
	}
	return out, nil
}

// optsFor applies the service timeout to adapters configured without one.
func (s *Service) optsFor(a *Adapter, opts CallOptions) CallOptions {
	if opts.Timeout <= 0 && a.cfg.Timeout <= 0 {
		opts.Timeout = s.timeout
	}
	return opts
}

func (s *Service) withFallback(ctx context.Context, opts CallOptions, fn func(context.Context, *Adapter, CallOptions) error) error {
	chain, err := s.chain(opts.Model)
	if err != nil {
		return err
	}

	var original error
	attempted := make([]string, 0, len(chain))
	for i, a := range chain {
		if i > 0 {
			s.logger.Warn("falling back to next model", "from", chain[i-1].Name(), "to", a.Name(), "error", original)
			if s.bus != nil {
				s.bus.Publish(events.NewModelFallbackEvent(chain[i-1].Name(), a.Name(), original))
			}
		}
		attempted = append(attempted, a.Name())

		err := fn(ctx, a, s.optsFor(a, opts))
		if err == nil {
			return nil
		}
		if original == nil {
			original = err
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return err
		}
	}

	if len(chain) == 1 {
		return original
	}
	return core.ErrFallbackExhausted(attempted, original)
}

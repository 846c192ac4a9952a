package tools

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"
	"golang.org/x/sync/errgroup"

	"github.com/lumia-zhu/aiplanner-sub000/internal/config"
	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/logging"
)

// DefaultBatchConcurrency bounds BatchExecute when no limit is configured.
const DefaultBatchConcurrency = 4

// Filter selects tools in Query. Zero fields match everything.
type Filter struct {
	Type        ToolType
	Name        string
	Enabled     *bool
	MinPriority int
	Tag         string
}

// BatchRequest is one execution of a batch.
type BatchRequest struct {
	Type    ToolType         `json:"type"`
	Input   any              `json:"input"`
	Context ExecutionContext `json:"context"`
}

// Registry holds one tool per type.
type Registry struct {
	mu          sync.RWMutex
	tools       map[ToolType]Tool
	concurrency int
	logger      *logging.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithConcurrency bounds concurrent executions in BatchExecute.
func WithConcurrency(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(l *logging.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{tools: make(map[ToolType]Tool), concurrency: DefaultBatchConcurrency}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrNop(r.logger)
	return r
}

// Register adds t, replacing any tool of the same type.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	typ := t.Config().Type
	if _, ok := r.tools[typ]; ok {
		r.logger.Debug("replacing registered tool", "tool", string(typ))
	}
	r.tools[typ] = t
}

// Unregister removes the tool of type typ.
func (r *Registry) Unregister(typ ToolType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, typ)
}

// Get returns the tool of type typ.
func (r *Registry) Get(typ ToolType) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[typ]
	return t, ok
}

// Has reports whether a tool of type typ is registered.
func (r *Registry) Has(typ ToolType) bool {
	_, ok := r.Get(typ)
	return ok
}

// Types returns the registered types in sorted order.
func (r *Registry) Types() []ToolType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolType, 0, len(r.tools))
	for t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Query returns the tools matching f, highest priority first.
func (r *Registry) Query(f Filter) []Tool {
	r.mu.RLock()
	all := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		all = append(all, t)
	}
	r.mu.RUnlock()

	out := all[:0]
	for _, t := range all {
		cfg := t.Config()
		switch {
		case f.Type != "" && cfg.Type != f.Type:
		case f.Name != "" && !strings.EqualFold(cfg.Name, f.Name):
		case f.Enabled != nil && cfg.Enabled != *f.Enabled:
		case cfg.Priority < f.MinPriority:
		case f.Tag != "" && !cfg.HasTag(f.Tag):
		default:
			out = append(out, t)
		}
	}
	sortByPriority(out)
	return out
}

// FindByName returns the tools whose name or type fuzzily matches query,
// best match first.
func (r *Registry) FindByName(query string) []Tool {
	r.mu.RLock()
	all := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		all = append(all, t)
	}
	r.mu.RUnlock()
	sortByPriority(all)

	names := make([]string, len(all))
	for i, t := range all {
		cfg := t.Config()
		names[i] = cfg.Name + " " + string(cfg.Type)
	}
	matches := fuzzy.Find(query, names)
	out := make([]Tool, 0, len(matches))
	for _, m := range matches {
		out = append(out, all[m.Index])
	}
	return out
}

// Execute runs the tool of type typ. An unregistered type yields a failed
// result with a not-found error.
func (r *Registry) Execute(ctx context.Context, typ ToolType, input any, ectx ExecutionContext) *Result {
	t, ok := r.Get(typ)
	if !ok {
		err := core.ErrNotFound("tool", string(typ))
		return &Result{ToolType: typ, Err: err, Error: err.Error()}
	}
	if ectx.Timestamp.IsZero() {
		ectx.Timestamp = time.Now()
	}
	return t.Execute(ctx, input, ectx)
}

// BatchExecute runs reqs concurrently and returns results in request order.
func (r *Registry) BatchExecute(ctx context.Context, reqs []BatchRequest) []*Result {
	results := make([]*Result, len(reqs))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = r.Execute(ctx, req.Type, req.Input, req.Context)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Statistics returns a snapshot per registered tool.
func (r *Registry) Statistics() map[ToolType]Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[ToolType]Statistics, len(r.tools))
	for typ, t := range r.tools {
		out[typ] = t.Statistics()
	}
	return out
}

// ResetStatistics zeroes every tool's counters.
func (r *Registry) ResetStatistics() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tools {
		t.ResetStatistics()
	}
}

func sortByPriority(ts []Tool) {
	sort.SliceStable(ts, func(i, j int) bool {
		ci, cj := ts[i].Config(), ts[j].Config()
		if ci.Priority != cj.Priority {
			return ci.Priority > cj.Priority
		}
		return ci.Type < cj.Type
	})
}

// DefaultConfigs returns the built-in configuration of every tool.
func DefaultConfigs() map[ToolType]Config {
	return map[ToolType]Config{
		TypeClarify: {
			Type: TypeClarify, Name: "Clarify",
			Description: "Asks the questions a vague task needs answered",
			Enabled:     true, Retry: true, MaxRetries: 1, Timeout: 60 * time.Second, Priority: 9,
			Tags: []string{"understanding"},
		},
		TypeDecompose: {
			Type: TypeDecompose, Name: "Decompose",
			Description: "Breaks a task into actionable subtasks",
			Enabled:     true, Retry: true, MaxRetries: 1, Timeout: 90 * time.Second, Priority: 10,
			Tags: []string{"planning"},
		},
		TypeEstimate: {
			Type: TypeEstimate, Name: "Estimate",
			Description: "Estimates how long a task takes",
			Enabled:     true, Retry: true, MaxRetries: 1, Timeout: 60 * time.Second, Priority: 8,
			Tags: []string{"planning", "time"},
		},
		TypePrioritize: {
			Type: TypePrioritize, Name: "Prioritize",
			Description: "Places tasks on the urgency/importance matrix",
			Enabled:     true, Retry: true, MaxRetries: 1, Timeout: 90 * time.Second, Priority: 7,
			Tags: []string{"time"},
		},
		TypeChecklist: {
			Type: TypeChecklist, Name: "Checklist",
			Description: "Writes an execution checklist",
			Enabled:     true, Retry: false, Timeout: 60 * time.Second, Priority: 5,
			Tags: []string{"execution"},
		},
	}
}

// ConfigsFrom overlays the configured tools section on the defaults.
func ConfigsFrom(section map[string]config.ToolConfig) map[ToolType]Config {
	cfgs := DefaultConfigs()
	for name, tc := range section {
		typ := ToolType(name)
		c, ok := cfgs[typ]
		if !ok {
			continue
		}
		c.Enabled = tc.Enabled
		c.Retry = tc.Retry
		c.MaxRetries = tc.MaxRetries
		if tc.Timeout > 0 {
			c.Timeout = tc.Timeout
		}
		if tc.Priority != 0 {
			c.Priority = tc.Priority
		}
		cfgs[typ] = c
	}
	return cfgs
}

// NewDefaultRegistry registers all five tools with cfgs (DefaultConfigs
// when nil).
func NewDefaultRegistry(deps Deps, cfgs map[ToolType]Config, opts ...RegistryOption) *Registry {
	if cfgs == nil {
		cfgs = DefaultConfigs()
	}
	defaults := DefaultConfigs()
	pick := func(t ToolType) Config {
		if c, ok := cfgs[t]; ok {
			return c
		}
		return defaults[t]
	}

	r := NewRegistry(append([]RegistryOption{WithRegistryLogger(deps.Logger)}, opts...)...)
	r.Register(NewClarifyTool(pick(TypeClarify), deps))
	r.Register(NewDecomposeTool(pick(TypeDecompose), deps))
	r.Register(NewEstimateTool(pick(TypeEstimate), deps))
	r.Register(NewPrioritizeTool(pick(TypePrioritize), deps))
	r.Register(NewChecklistTool(pick(TypeChecklist), deps))
	return r
}

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lumia-zhu/aiplanner-sub000/internal/ai"
	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/events"
	"github.com/lumia-zhu/aiplanner-sub000/internal/logging"
	"github.com/lumia-zhu/aiplanner-sub000/internal/prompts"
)

var inputValidator = validator.New(validator.WithRequiredStructEnabled())

// Deps are the collaborators shared by all tools.
type Deps struct {
	AI       *ai.Service
	Prompts  *prompts.Renderer
	Logger   *logging.Logger
	Bus      *events.EventBus
	Recorder *ai.Recorder
}

// Hooks are the per-tool steps plugged into the fixed execution sequence.
type Hooks[In, Out any] struct {
	// System is sent as the system prompt of every call.
	System string
	// Validate runs before struct tag validation and may return a domain error.
	Validate func(in *In) error
	// BeforeExecute may enrich the input before the prompt is rendered.
	BeforeExecute func(ctx context.Context, in *In, ectx ExecutionContext) error
	// Prompt renders the user prompt.
	Prompt func(in *In) (string, error)
	// AfterExecute normalizes the model output.
	AfterExecute func(in *In, out *Out) error
}

// Base runs the fixed sequence shared by every tool: enabled check, input
// decoding and validation, hooks, the model call and statistics.
type Base[In, Out any] struct {
	mu    sync.RWMutex
	cfg   Config
	stats Statistics

	deps  Deps
	hooks Hooks[In, Out]
	log   *logging.Logger
}

// NewBase creates a base for a concrete tool.
func NewBase[In, Out any](cfg Config, deps Deps, hooks Hooks[In, Out]) *Base[In, Out] {
	return &Base[In, Out]{
		cfg:   cfg,
		deps:  deps,
		hooks: hooks,
		log:   logging.OrNop(deps.Logger).WithTool(string(cfg.Type)),
	}
}

// Config returns a copy of the tool configuration.
func (b *Base[In, Out]) Config() Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cfg := b.cfg
	cfg.Tags = append([]string(nil), b.cfg.Tags...)
	return cfg
}

// SetEnabled toggles the tool.
func (b *Base[In, Out]) SetEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg.Enabled = enabled
}

// Statistics returns a snapshot of the execution counters.
func (b *Base[In, Out]) Statistics() Statistics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats
}

// ResetStatistics zeroes the execution counters.
func (b *Base[In, Out]) ResetStatistics() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats = Statistics{}
}

// Execute implements Tool. The returned Data is an Out value.
func (b *Base[In, Out]) Execute(ctx context.Context, input any, ectx ExecutionContext) *Result {
	out, res := b.Run(ctx, input, ectx)
	if res.Success {
		res.Data = out
	}
	return res
}

// Run is Execute with typed output.
func (b *Base[In, Out]) Run(ctx context.Context, input any, ectx ExecutionContext) (Out, *Result) {
	var zero Out
	cfg := b.Config()
	res := &Result{ToolType: cfg.Type}

	if !cfg.Enabled {
		res.Err = core.ErrToolDisabled(string(cfg.Type))
		res.Error = res.Err.Error()
		return zero, res
	}

	start := time.Now()
	out, err := b.run(ctx, cfg, input, ectx)
	res.ExecutionTime = time.Since(start)
	b.record(res.ExecutionTime, err)
	b.report(ectx, res.ExecutionTime, err)

	if err != nil {
		res.Err = err
		res.Error = err.Error()
		return zero, res
	}
	res.Success = true
	return out, res
}

func (b *Base[In, Out]) run(ctx context.Context, cfg Config, input any, ectx ExecutionContext) (out Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.ErrInternal(fmt.Sprintf("%s tool panicked", cfg.Type), fmt.Errorf("%v", r))
		}
	}()

	in, err := decodeInput[In](input)
	if err != nil {
		return out, err
	}
	if err := b.validate(in); err != nil {
		return out, err
	}
	if b.hooks.BeforeExecute != nil {
		if err := b.hooks.BeforeExecute(ctx, in, ectx); err != nil {
			return out, err
		}
	}
	out, err = b.executeInternal(ctx, cfg, in, ectx)
	if err != nil {
		return out, err
	}
	if b.hooks.AfterExecute != nil {
		if err := b.hooks.AfterExecute(in, &out); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (b *Base[In, Out]) validate(in *In) error {
	if b.hooks.Validate != nil {
		if err := b.hooks.Validate(in); err != nil {
			var de *core.DomainError
			if errors.As(err, &de) {
				return err
			}
			return core.ErrValidation(core.CodeInvalidInput, err.Error())
		}
	}
	if err := inputValidator.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return core.ErrValidation(core.CodeInvalidInput, err.Error())
		}
		problems := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			problems = append(problems, describeField(fe))
		}
		return core.ErrValidationList(problems)
	}
	return nil
}

func (b *Base[In, Out]) executeInternal(ctx context.Context, cfg Config, in *In, ectx ExecutionContext) (Out, error) {
	var out Out
	if b.deps.AI == nil {
		return out, core.ErrConfig("NO_AI_SERVICE", "tool has no AI service")
	}
	prompt, err := b.hooks.Prompt(in)
	if err != nil {
		return out, core.ErrInternal("rendering prompt", err)
	}

	opts := ai.CallOptions{Model: ectx.Model, SystemPrompt: b.hooks.System}
	attempt := func(ctx context.Context) error {
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}
		o, err := ai.GenerateObject[Out](ctx, b.deps.AI, prompt, opts)
		if err != nil {
			return err
		}
		out = o
		return nil
	}

	if !cfg.Retry || cfg.MaxRetries <= 0 {
		return out, attempt(ctx)
	}
	policy := ai.NewRetryPolicy(cfg.MaxRetries, ai.WithBaseDelay(200*time.Millisecond))
	err = policy.Do(ctx, attempt, func(n int, err error, delay time.Duration) {
		b.log.Warn("retrying tool", "attempt", n, "delay", delay, "error", err)
	})
	return out, err
}

// record updates the counters; total always equals success plus failed.
func (b *Base[In, Out]) record(d time.Duration, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.TotalExecutions++
	if err != nil {
		b.stats.FailedExecutions++
		b.stats.LastError = err.Error()
	} else {
		b.stats.SuccessfulExecutions++
	}
	n := b.stats.TotalExecutions
	b.stats.AverageExecutionTime = (b.stats.AverageExecutionTime*time.Duration(n-1) + d) / time.Duration(n)
	b.stats.LastExecutionTime = time.Now()
}

func (b *Base[In, Out]) report(ectx ExecutionContext, d time.Duration, err error) {
	name := string(b.cfg.Type)
	b.deps.Recorder.ObserveTool(name, d, err)

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		b.log.Warn("tool execution failed", "session_id", ectx.SessionID, "duration", d, "error", err)
	} else {
		b.log.Debug("tool execution finished", "session_id", ectx.SessionID, "duration", d)
	}
	if b.deps.Bus != nil {
		b.deps.Bus.Publish(events.NewToolExecutedEvent(ectx.SessionID, name, err == nil, d, errMsg))
	}
}

// decodeInput accepts a typed value, a pointer, raw JSON or any value that
// marshals to the input's JSON shape (typically a map from an API body).
func decodeInput[In any](input any) (*In, error) {
	switch v := input.(type) {
	case In:
		return &v, nil
	case *In:
		if v == nil {
			return nil, core.ErrValidation(core.CodeInvalidInput, "input is nil")
		}
		c := *v
		return &c, nil
	case nil:
		return nil, core.ErrValidation(core.CodeInvalidInput, "input is nil")
	}

	var raw []byte
	switch v := input.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, core.ErrValidation(core.CodeInvalidInput, "input is not serializable").WithCause(err)
		}
		raw = b
	}

	var in In
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, core.ErrValidation(core.CodeInvalidInput, "input does not match the tool's shape").WithCause(err)
	}
	return &in, nil
}

func describeField(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

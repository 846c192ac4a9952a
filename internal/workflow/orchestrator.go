package workflow

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lumia-zhu/aiplanner-sub000/internal/ai"
	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/events"
	"github.com/lumia-zhu/aiplanner-sub000/internal/logging"
	"github.com/lumia-zhu/aiplanner-sub000/internal/tools"
)

// DefaultMaxSteps bounds one Execute call when the caller sets no limit.
const DefaultMaxSteps = 20

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Registry *tools.Registry
	AI       *ai.Service
	Bus      *events.EventBus
	Logger   *logging.Logger
	// Steps replaces DefaultSteps when non-nil.
	Steps          []Step
	MaxSteps       int
	ChecklistLimit int
	Now            func() time.Time
}

// ExecuteOptions tune one Execute call.
type ExecuteOptions struct {
	// MaxSteps caps executed steps; <= 0 uses the orchestrator default.
	MaxSteps   int
	SkipPhases []core.WorkflowPhase
	// Model overrides the primary model for every tool call.
	Model string
}

// ExecuteResult summarizes one Execute call.
type ExecuteResult struct {
	Success       bool               `json:"success"`
	Completed     bool               `json:"completed"`
	Phase         core.WorkflowPhase `json:"phase"`
	ExecutedSteps []string           `json:"executed_steps"`
	Error         string             `json:"error,omitempty"`
	Err           error              `json:"-"`
	Duration      time.Duration      `json:"duration"`
}

// Orchestrator walks the phase table, running the step bound to each phase.
type Orchestrator struct {
	cm             *ContextManager
	registry       *tools.Registry
	ai             *ai.Service
	bus            *events.EventBus
	logger         *logging.Logger
	steps          map[core.WorkflowPhase]Step
	maxSteps       int
	checklistLimit int
	now            func() time.Time
	executing      atomic.Bool
}

// New creates an orchestrator over cm.
func New(cm *ContextManager, deps Deps) *Orchestrator {
	steps := deps.Steps
	if steps == nil {
		steps = DefaultSteps()
	}
	o := &Orchestrator{
		cm:             cm,
		registry:       deps.Registry,
		ai:             deps.AI,
		bus:            deps.Bus,
		logger:         logging.OrNop(deps.Logger),
		steps:          make(map[core.WorkflowPhase]Step, len(steps)),
		maxSteps:       deps.MaxSteps,
		checklistLimit: deps.ChecklistLimit,
		now:            deps.Now,
	}
	if o.maxSteps <= 0 {
		o.maxSteps = DefaultMaxSteps
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.registry == nil {
		o.registry = tools.NewRegistry()
	}
	for _, s := range steps {
		o.steps[s.Phase] = s
	}
	return o
}

// Context returns the context manager.
func (o *Orchestrator) Context() *ContextManager {
	return o.cm
}

// Executing reports whether an Execute call is in progress.
func (o *Orchestrator) Executing() bool {
	return o.executing.Load()
}

// Reset discards the workflow context and starts over with tasks.
func (o *Orchestrator) Reset(userID, sessionID string, tasks []*core.Task) error {
	if o.executing.Load() {
		return core.ErrOrchestratorBusy()
	}
	o.cm.Reset(userID, sessionID, tasks)
	return nil
}

// Execute runs steps until the workflow completes, MaxSteps steps have run,
// or a step fails. A concurrent call returns a busy failure and leaves the
// context untouched.
func (o *Orchestrator) Execute(ctx context.Context, opts ExecuteOptions) *ExecuteResult {
	if !o.executing.CompareAndSwap(false, true) {
		err := core.ErrOrchestratorBusy()
		return &ExecuteResult{Phase: o.cm.Phase(), Error: err.Error(), Err: err}
	}
	defer o.executing.Store(false)

	start := o.now()
	sessionID := o.cm.SessionID()
	logger := o.logger.WithSession(sessionID)

	limit := opts.MaxSteps
	if limit <= 0 {
		limit = o.maxSteps
	}
	skip := make(map[core.WorkflowPhase]bool, len(opts.SkipPhases))
	for _, p := range opts.SkipPhases {
		skip[p] = true
	}
	env := StepEnv{
		Context:  o.cm,
		Registry: o.registry,
		AI:       o.ai,
		Logger:   logger,
		Exec: tools.ExecutionContext{
			UserID:    o.cm.UserID(),
			SessionID: sessionID,
			Model:     opts.Model,
		},
		ChecklistLimit: o.checklistLimit,
		Now:            o.now,
	}

	result := &ExecuteResult{ExecutedSteps: []string{}}
	fail := func(phase core.WorkflowPhase, err error) *ExecuteResult {
		result.Phase = phase
		result.Error = err.Error()
		result.Err = err
		result.Duration = o.now().Sub(start)
		logger.Warn("workflow failed", "phase", string(phase), "error", err, "steps", len(result.ExecutedSteps))
		o.publish(events.NewWorkflowFailedEvent(sessionID, string(phase), err))
		return result
	}

	for {
		phase := o.cm.Phase()
		if phase.Terminal() || len(result.ExecutedSteps) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return fail(phase, err)
		}

		step, ok := o.steps[phase]
		if !ok || skip[phase] {
			next, ok := DefaultNext(phase)
			if !ok {
				return fail(phase, core.ErrInvalidTransition(string(phase), "advance"))
			}
			logger.Debug("advancing without step", "phase", string(phase), "next", string(next), "skipped", skip[phase])
			o.cm.SetPhase(next)
			continue
		}

		for _, typ := range step.RequiredTools {
			if !o.registry.Has(typ) {
				return fail(phase, core.ErrMissingTool(step.ID, string(typ)))
			}
		}

		o.publish(events.NewPhaseStartedEvent(sessionID, string(phase), step.ID))
		stepStart := o.now()
		env.Exec.Timestamp = stepStart
		res, err := step.Execute(ctx, env)
		if err != nil {
			return fail(phase, err)
		}
		result.ExecutedSteps = append(result.ExecutedSteps, step.ID)

		next := res.NextPhase
		if next == "" {
			var ok bool
			if next, ok = DefaultNext(phase); !ok {
				return fail(phase, core.ErrInvalidTransition(string(phase), "advance"))
			}
		} else if !CanTransition(phase, next) {
			return fail(phase, core.ErrInvalidTransition(string(phase), string(next)))
		}

		o.cm.SetPhase(next)
		elapsed := o.now().Sub(stepStart)
		logger.Info("step completed", "phase", string(phase), "step", step.ID, "next", string(next), "duration", elapsed, "message", res.Message)
		o.publish(events.NewPhaseCompletedEvent(sessionID, string(phase), string(next), elapsed))
	}

	result.Success = true
	result.Phase = o.cm.Phase()
	result.Completed = result.Phase.Terminal()
	result.Duration = o.now().Sub(start)
	o.publish(events.NewWorkflowCompletedEvent(sessionID, string(result.Phase), result.ExecutedSteps))
	return result
}

func (o *Orchestrator) publish(e events.Event) {
	if o.bus != nil {
		o.bus.Publish(e)
	}
}

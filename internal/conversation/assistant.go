package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/lumia-zhu/aiplanner-sub000/internal/ai"
	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/prompts"
	"github.com/lumia-zhu/aiplanner-sub000/internal/tools"
)

// Assistant performs the AI work behind conversation effects.
type Assistant interface {
	Clarify(ctx context.Context, task *core.Task) ([]string, error)
	StructureAnswer(ctx context.Context, task *core.Task, questions []string, answer string) (*core.StructuredContext, error)
	Decompose(ctx context.Context, task *core.Task, extra string) (*tools.DecomposeOutput, error)
	ReflectOnEstimate(ctx context.Context, task *core.Task, minutes int) (string, error)
	Prioritize(ctx context.Context, tasks []*core.Task, feeling string) (*tools.PrioritizeOutput, error)
}

// AIAssistant implements Assistant with the tool registry for tool-shaped
// work and the AI service for the conversation-only prompts.
type AIAssistant struct {
	Registry *tools.Registry
	AI       *ai.Service
	Prompts  *prompts.Renderer
	// Model overrides the primary model.
	Model string
	Now   func() time.Time
}

var _ Assistant = (*AIAssistant)(nil)

const (
	structureSystem  = "You extract structured facts from what people say about their tasks. You reply with JSON only."
	reflectionSystem = "You are a friendly planning coach."
)

// Clarify returns the clarifying questions for task.
func (a *AIAssistant) Clarify(ctx context.Context, task *core.Task) ([]string, error) {
	r := a.Registry.Execute(ctx, tools.TypeClarify, tools.ClarifyInput{
		Title:       task.Title,
		Description: task.Description,
		Context:     task.StructuredContext.Describe(),
	}, a.execFor(task))
	out, ok := tools.Output[tools.ClarifyOutput](r)
	if !ok {
		return nil, toolErr(r)
	}
	qs := make([]string, len(out.Questions))
	for i, q := range out.Questions {
		qs[i] = q.Question
	}
	return qs, nil
}

// StructureAnswer turns a free-form answer into a StructuredContext.
func (a *AIAssistant) StructureAnswer(ctx context.Context, task *core.Task, questions []string, answer string) (*core.StructuredContext, error) {
	prompt, err := a.Prompts.Render(prompts.StructureAnswer, prompts.StructureAnswerParams{
		Title:     task.Title,
		Questions: questions,
		Answer:    answer,
	})
	if err != nil {
		return nil, core.ErrInternal("rendering prompt", err)
	}
	sc, err := ai.GenerateObject[core.StructuredContext](ctx, a.AI, prompt, ai.CallOptions{
		Model:        a.Model,
		SystemPrompt: structureSystem,
	})
	if err != nil {
		return nil, err
	}
	sc.RawAnswer = answer
	return &sc, nil
}

// Decompose proposes subtasks for task.
func (a *AIAssistant) Decompose(ctx context.Context, task *core.Task, extra string) (*tools.DecomposeOutput, error) {
	notes := task.StructuredContext.Describe()
	if extra != "" {
		notes = joinNonEmpty(notes, "User notes: "+extra)
	}
	r := a.Registry.Execute(ctx, tools.TypeDecompose, tools.DecomposeInput{
		Title:       task.Title,
		Description: task.Description,
		Context:     notes,
	}, a.execFor(task))
	out, ok := tools.Output[tools.DecomposeOutput](r)
	if !ok {
		return nil, toolErr(r)
	}
	return &out, nil
}

// ReflectOnEstimate asks the model for a short sanity check of minutes.
func (a *AIAssistant) ReflectOnEstimate(ctx context.Context, task *core.Task, minutes int) (string, error) {
	prompt, err := a.Prompts.Render(prompts.EstimateReflection, prompts.ReflectionParams{
		Title:       task.Title,
		Minutes:     minutes,
		Description: task.Description,
		Context:     task.StructuredContext.Describe(),
	})
	if err != nil {
		return "", core.ErrInternal("rendering prompt", err)
	}
	return a.AI.GenerateText(ctx, prompt, ai.CallOptions{Model: a.Model, SystemPrompt: reflectionSystem})
}

// Prioritize places tasks on the urgency/importance matrix.
func (a *AIAssistant) Prioritize(ctx context.Context, tasks []*core.Task, feeling string) (*tools.PrioritizeOutput, error) {
	in := tools.PrioritizeInput{Context: feeling, Today: core.DateKey(a.now())}
	for _, t := range tasks {
		if t.Completed {
			continue
		}
		// One request holds at most MaxPrioritizeTasks; the rest keep their quadrant.
		if len(in.Tasks) == tools.MaxPrioritizeTasks {
			break
		}
		pt := tools.PrioritizeTask{ID: t.ID, Title: t.Title, Description: t.Description, EstimatedMinutes: t.EstimatedMinutes}
		if t.Deadline != nil {
			pt.Deadline = core.DateKey(*t.Deadline)
		}
		in.Tasks = append(in.Tasks, pt)
	}
	if len(in.Tasks) == 0 {
		return nil, core.ErrValidation(core.CodeInvalidInput, "no open tasks to prioritize")
	}
	var ectx tools.ExecutionContext
	if len(tasks) > 0 {
		ectx = a.execFor(tasks[0])
	}
	r := a.Registry.Execute(ctx, tools.TypePrioritize, in, ectx)
	out, ok := tools.Output[tools.PrioritizeOutput](r)
	if !ok {
		return nil, toolErr(r)
	}
	return &out, nil
}

func (a *AIAssistant) execFor(task *core.Task) tools.ExecutionContext {
	return tools.ExecutionContext{UserID: task.UserID, Model: a.Model}
}

func (a *AIAssistant) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func toolErr(r *tools.Result) error {
	if r.Err != nil {
		return r.Err
	}
	return core.ErrInternal(fmt.Sprintf("%s returned no usable output", r.ToolType), nil)
}

func joinNonEmpty(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += p
	}
	return out
}

package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumia-zhu/aiplanner-sub000/internal/ai"
	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/logging"
	"github.com/lumia-zhu/aiplanner-sub000/internal/tools"
)

const (
	// DecomposeThresholdMinutes is the estimate above which a task is split.
	DecomposeThresholdMinutes = 90
	// DefaultChecklistLimit is how many top tasks get a checklist.
	DefaultChecklistLimit = 3

	vagueWordCount = 6
)

// StepEnv is what a step executor works with.
type StepEnv struct {
	Context        *ContextManager
	Registry       *tools.Registry
	AI             *ai.Service
	Logger         *logging.Logger
	Exec           tools.ExecutionContext
	ChecklistLimit int
	Now            func() time.Time
}

// StepResult tells the orchestrator where to go next. An empty NextPhase
// takes the first transition of the current phase.
type StepResult struct {
	NextPhase core.WorkflowPhase
	Message   string
}

// Step is the work bound to one phase.
type Step struct {
	ID            string
	Name          string
	Phase         core.WorkflowPhase
	RequiredTools []tools.ToolType
	Execute       func(ctx context.Context, env StepEnv) (StepResult, error)
}

// DefaultSteps returns the built-in refinement steps.
func DefaultSteps() []Step {
	return []Step{
		{ID: "analyze", Name: "Analyze tasks", Phase: core.PhaseAnalyzing, Execute: analyzeStep},
		{ID: "clarify", Name: "Clarify vague tasks", Phase: core.PhaseClarifying,
			RequiredTools: []tools.ToolType{tools.TypeClarify}, Execute: clarifyStep},
		{ID: "decompose", Name: "Decompose large tasks", Phase: core.PhaseDecomposing,
			RequiredTools: []tools.ToolType{tools.TypeDecompose}, Execute: decomposeStep},
		{ID: "estimate", Name: "Estimate durations", Phase: core.PhaseEstimating,
			RequiredTools: []tools.ToolType{tools.TypeEstimate}, Execute: estimateStep},
		{ID: "prioritize", Name: "Prioritize", Phase: core.PhasePrioritizing,
			RequiredTools: []tools.ToolType{tools.TypePrioritize}, Execute: prioritizeStep},
		{ID: "check", Name: "Build checklists", Phase: core.PhaseChecking,
			RequiredTools: []tools.ToolType{tools.TypeChecklist}, Execute: checkStep},
	}
}

// Analyze inspects tasks and records which refinements they need.
func Analyze(tasks []*core.Task) *Analysis {
	a := &Analysis{}
	open := 0
	for _, t := range tasks {
		if t.Completed {
			continue
		}
		open++
		if t.StructuredContext == nil && len(strings.Fields(t.Title+" "+t.Description)) < vagueWordCount {
			a.NeedsClarification = append(a.NeedsClarification, t.ID)
		}
		if t.ParentID == "" && !hasChildren(tasks, t.ID) &&
			(t.EstimatedMinutes == 0 || t.EstimatedMinutes > DecomposeThresholdMinutes) {
			a.NeedsDecomposition = append(a.NeedsDecomposition, t.ID)
		}
		if t.EstimatedMinutes == 0 {
			a.NeedsEstimation = append(a.NeedsEstimation, t.ID)
		}
		if t.Quadrant == "" {
			a.NeedsPrioritization = true
		}
	}
	a.Summary = fmt.Sprintf("%d open tasks: %d vague, %d large, %d unestimated",
		open, len(a.NeedsClarification), len(a.NeedsDecomposition), len(a.NeedsEstimation))
	return a
}

func analyzeStep(_ context.Context, env StepEnv) (StepResult, error) {
	snap := env.Context.Snapshot()
	a := Analyze(snap.Tasks)
	env.Context.SetAnalysis(a)
	env.Context.SetSuggestions(suggestionsFor(a))

	next := core.PhasePrioritizing
	switch {
	case len(a.NeedsClarification) > 0:
		next = core.PhaseClarifying
	case len(a.NeedsDecomposition) > 0:
		next = core.PhaseDecomposing
	case len(a.NeedsEstimation) > 0:
		next = core.PhaseEstimating
	}
	return StepResult{NextPhase: next, Message: a.Summary}, nil
}

func suggestionsFor(a *Analysis) []Suggestion {
	var out []Suggestion
	add := func(label string, phase core.WorkflowPhase, ids []string) {
		for _, id := range ids {
			out = append(out, Suggestion{ID: uuid.NewString(), Label: label, Phase: phase, TaskID: id})
		}
	}
	add("Clarify", core.PhaseClarifying, a.NeedsClarification)
	add("Break down", core.PhaseDecomposing, a.NeedsDecomposition)
	add("Estimate", core.PhaseEstimating, a.NeedsEstimation)
	if a.NeedsPrioritization {
		out = append(out, Suggestion{ID: uuid.NewString(), Label: "Prioritize my day", Phase: core.PhasePrioritizing})
	}
	return out
}

func clarifyStep(ctx context.Context, env StepEnv) (StepResult, error) {
	snap := env.Context.Snapshot()

	var ids []string
	var reqs []tools.BatchRequest
	for _, id := range analysisOf(snap).NeedsClarification {
		t := snap.Task(id)
		if t == nil {
			continue
		}
		ids = append(ids, id)
		reqs = append(reqs, tools.BatchRequest{
			Type:    tools.TypeClarify,
			Input:   tools.ClarifyInput{Title: t.Title, Description: t.Description, Context: taskContext(snap, t)},
			Context: env.Exec,
		})
	}
	for i, r := range env.Registry.BatchExecute(ctx, reqs) {
		out, ok := tools.Output[tools.ClarifyOutput](r)
		if !ok {
			return StepResult{}, resultErr(r)
		}
		env.Context.SetClarification(ids[i], out)
	}

	a := analysisOf(snap)
	next := core.PhasePrioritizing
	switch {
	case len(a.NeedsDecomposition) > 0:
		next = core.PhaseDecomposing
	case len(a.NeedsEstimation) > 0:
		next = core.PhaseEstimating
	}
	return StepResult{NextPhase: next, Message: fmt.Sprintf("clarified %d tasks", len(ids))}, nil
}

func decomposeStep(ctx context.Context, env StepEnv) (StepResult, error) {
	snap := env.Context.Snapshot()

	var parents []*core.Task
	var reqs []tools.BatchRequest
	for _, id := range analysisOf(snap).NeedsDecomposition {
		t := snap.Task(id)
		if t == nil {
			continue
		}
		parents = append(parents, t)
		reqs = append(reqs, tools.BatchRequest{
			Type:    tools.TypeDecompose,
			Input:   tools.DecomposeInput{Title: t.Title, Description: t.Description, Context: taskContext(snap, t)},
			Context: env.Exec,
		})
	}

	now := env.now()
	added := 0
	for i, r := range env.Registry.BatchExecute(ctx, reqs) {
		out, ok := tools.Output[tools.DecomposeOutput](r)
		if !ok {
			return StepResult{}, resultErr(r)
		}
		parent := parents[i]
		subtasks := make([]*core.Task, 0, len(out.Subtasks))
		for _, st := range out.Subtasks {
			subtasks = append(subtasks, &core.Task{
				ID:               uuid.NewString(),
				UserID:           parent.UserID,
				Date:             parent.Date,
				Title:            st.Title,
				Description:      st.Description,
				EstimatedMinutes: st.EstimatedMinutes,
				Priority:         st.Priority,
				ParentID:         parent.ID,
				CreatedAt:        now,
				UpdatedAt:        now,
			})
		}
		env.Context.AddTasks(subtasks...)
		added += len(subtasks)
		if parent.EstimatedMinutes == 0 && out.TotalEstimatedMinutes > 0 {
			total := out.TotalEstimatedMinutes
			if err := env.Context.UpdateTask(parent.ID, func(t *core.Task) { t.EstimatedMinutes = total }); err != nil {
				return StepResult{}, err
			}
		}
	}
	if added > 0 {
		env.Context.SavePlanVersion(fmt.Sprintf("decomposed %d tasks into %d subtasks", len(parents), added))
	}

	next := core.PhasePrioritizing
	if len(unestimated(env.Context.Snapshot().Tasks)) > 0 {
		next = core.PhaseEstimating
	}
	return StepResult{NextPhase: next, Message: fmt.Sprintf("added %d subtasks", added)}, nil
}

func estimateStep(ctx context.Context, env StepEnv) (StepResult, error) {
	snap := env.Context.Snapshot()
	pending := unestimated(snap.Tasks)

	reqs := make([]tools.BatchRequest, len(pending))
	for i, t := range pending {
		reqs[i] = tools.BatchRequest{
			Type: tools.TypeEstimate,
			Input: tools.EstimateInput{
				Title:       t.Title,
				Description: t.Description,
				Context:     taskContext(snap, t),
				Subtasks:    childTitles(snap.Tasks, t.ID),
			},
			Context: env.Exec,
		}
	}
	for i, r := range env.Registry.BatchExecute(ctx, reqs) {
		out, ok := tools.Output[tools.EstimateOutput](r)
		if !ok {
			return StepResult{}, resultErr(r)
		}
		minutes := out.EstimatedMinutes
		if err := env.Context.UpdateTask(pending[i].ID, func(t *core.Task) { t.EstimatedMinutes = minutes }); err != nil {
			return StepResult{}, err
		}
	}
	if len(pending) > 0 {
		env.Context.SavePlanVersion(fmt.Sprintf("estimated %d tasks", len(pending)))
	}
	return StepResult{NextPhase: core.PhasePrioritizing, Message: fmt.Sprintf("estimated %d tasks", len(pending))}, nil
}

func prioritizeStep(ctx context.Context, env StepEnv) (StepResult, error) {
	snap := env.Context.Snapshot()
	open := openTasks(snap.Tasks)
	if len(open) > tools.MaxPrioritizeTasks {
		open = open[:tools.MaxPrioritizeTasks]
	}
	if len(open) == 0 {
		return StepResult{NextPhase: core.PhaseChecking, Message: "nothing to prioritize"}, nil
	}

	in := tools.PrioritizeInput{Today: core.DateKey(env.now())}
	if feeling, ok := snap.Metadata[MetaFeeling]; ok {
		in.Context = feeling
	}
	for _, t := range open {
		pt := tools.PrioritizeTask{
			ID:               t.ID,
			Title:            t.Title,
			Description:      t.Description,
			EstimatedMinutes: t.EstimatedMinutes,
		}
		if t.Deadline != nil {
			pt.Deadline = core.DateKey(*t.Deadline)
		}
		in.Tasks = append(in.Tasks, pt)
	}

	r := env.Registry.Execute(ctx, tools.TypePrioritize, in, env.Exec)
	out, ok := tools.Output[tools.PrioritizeOutput](r)
	if !ok {
		return StepResult{}, resultErr(r)
	}
	order := make([]string, 0, len(out.Priorities))
	for _, p := range out.Priorities {
		quadrant := p.Quadrant
		if err := env.Context.UpdateTask(p.TaskID, func(t *core.Task) {
			t.Quadrant = quadrant
			t.Priority = quadrant.Priority()
		}); err != nil {
			return StepResult{}, err
		}
		order = append(order, p.TaskID)
	}
	env.Context.SetMetadata(MetaPriorityOrder, strings.Join(order, ","))
	if out.Strategy != "" {
		env.Context.SetMetadata(MetaStrategy, out.Strategy)
	}
	env.Context.SavePlanVersion("prioritized")
	return StepResult{NextPhase: core.PhaseChecking, Message: out.Strategy}, nil
}

func checkStep(ctx context.Context, env StepEnv) (StepResult, error) {
	snap := env.Context.Snapshot()
	limit := env.ChecklistLimit
	if limit <= 0 {
		limit = DefaultChecklistLimit
	}
	top := topTasks(snap, limit)

	reqs := make([]tools.BatchRequest, len(top))
	for i, t := range top {
		reqs[i] = tools.BatchRequest{
			Type: tools.TypeChecklist,
			Input: tools.ChecklistInput{
				Title:       t.Title,
				Description: t.Description,
				Context:     taskContext(snap, t),
				Subtasks:    childTitles(snap.Tasks, t.ID),
			},
			Context: env.Exec,
		}
	}
	for i, r := range env.Registry.BatchExecute(ctx, reqs) {
		out, ok := tools.Output[tools.ChecklistOutput](r)
		if !ok {
			return StepResult{}, resultErr(r)
		}
		env.Context.SetChecklist(top[i].ID, out)
	}
	return StepResult{NextPhase: core.PhaseCompleted, Message: fmt.Sprintf("built %d checklists", len(top))}, nil
}

// Metadata keys written by the default steps.
const (
	MetaFeeling       = "feeling"
	MetaPriorityOrder = "priority_order"
	MetaStrategy      = "strategy"
)

func (e StepEnv) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func analysisOf(c *Context) *Analysis {
	if c.Analysis != nil {
		return c.Analysis
	}
	return Analyze(c.Tasks)
}

func resultErr(r *tools.Result) error {
	if r.Err != nil {
		return r.Err
	}
	return core.ErrInternal(fmt.Sprintf("%s returned no usable output: %s", r.ToolType, r.Error), nil)
}

func taskContext(c *Context, t *core.Task) string {
	var parts []string
	if d := t.StructuredContext.Describe(); d != "" {
		parts = append(parts, d)
	}
	if clar, ok := c.Clarifications[t.ID]; ok && len(clar.Ambiguities) > 0 {
		parts = append(parts, "Open ambiguities: "+strings.Join(clar.Ambiguities, "; "))
	}
	if t.ParentID != "" {
		if parent := c.Task(t.ParentID); parent != nil {
			parts = append(parts, "Part of: "+parent.Title)
		}
	}
	return strings.Join(parts, "\n")
}

func hasChildren(tasks []*core.Task, id string) bool {
	for _, t := range tasks {
		if t.ParentID == id {
			return true
		}
	}
	return false
}

func childTitles(tasks []*core.Task, id string) []string {
	var out []string
	for _, t := range tasks {
		if t.ParentID == id {
			out = append(out, t.Title)
		}
	}
	return out
}

func openTasks(tasks []*core.Task) []*core.Task {
	var out []*core.Task
	for _, t := range tasks {
		if !t.Completed {
			out = append(out, t)
		}
	}
	return out
}

func unestimated(tasks []*core.Task) []*core.Task {
	var out []*core.Task
	for _, t := range openTasks(tasks) {
		if t.EstimatedMinutes == 0 {
			out = append(out, t)
		}
	}
	return out
}

var quadrantRank = map[core.Quadrant]int{
	core.QuadrantUrgentImportant:       0,
	core.QuadrantImportantNotUrgent:    1,
	core.QuadrantUrgentNotImportant:    2,
	core.QuadrantNotUrgentNotImportant: 3,
	"":                                 4,
}

// topTasks orders open top-level tasks by the prioritizer's order, falling
// back to quadrant rank, and returns the first n.
func topTasks(c *Context, n int) []*core.Task {
	position := make(map[string]int)
	if order, ok := c.Metadata[MetaPriorityOrder]; ok && order != "" {
		for i, id := range strings.Split(order, ",") {
			position[id] = i
		}
	}
	var roots []*core.Task
	for _, t := range openTasks(c.Tasks) {
		if t.ParentID == "" {
			roots = append(roots, t)
		}
	}
	sort.SliceStable(roots, func(i, j int) bool {
		pi, iok := position[roots[i].ID]
		pj, jok := position[roots[j].ID]
		if iok && jok {
			return pi < pj
		}
		if iok != jok {
			return iok
		}
		return quadrantRank[roots[i].Quadrant] < quadrantRank[roots[j].Quadrant]
	})
	if len(roots) > n {
		roots = roots[:n]
	}
	return roots
}

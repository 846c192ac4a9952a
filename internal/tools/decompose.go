package tools

import (
	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/prompts"
)

// DefaultMaxSubtasks caps a decomposition when the input sets no limit.
const DefaultMaxSubtasks = 8

// DecomposeInput is the task to break down.
type DecomposeInput struct {
	Title           string   `json:"title" validate:"required,max=200"`
	Description     string   `json:"description,omitempty"`
	Context         string   `json:"context,omitempty"`
	CurrentSubtasks []string `json:"current_subtasks,omitempty"`
	MaxSubtasks     int      `json:"max_subtasks,omitempty" validate:"omitempty,min=1,max=10"`
}

// Subtask is one proposed step.
type Subtask struct {
	Title            string        `json:"title" validate:"required"`
	Description      string        `json:"description,omitempty"`
	EstimatedMinutes int           `json:"estimated_minutes" validate:"min=1" jsonschema:"minimum=1"`
	Priority         core.Priority `json:"priority" validate:"oneof=high medium low" jsonschema:"enum=high,enum=medium,enum=low"`
	Dependencies     []int         `json:"dependencies,omitempty"`
}

// DecomposeOutput is the proposed breakdown.
type DecomposeOutput struct {
	Subtasks              []Subtask `json:"subtasks" validate:"required,min=1,dive"`
	Reasoning             string    `json:"reasoning"`
	TotalEstimatedMinutes int       `json:"total_estimated_minutes"`
	Complexity            string    `json:"complexity" validate:"oneof=simple medium complex" jsonschema:"enum=simple,enum=medium,enum=complex"`
}

// DecomposeTool splits a task into subtasks.
type DecomposeTool struct {
	*Base[DecomposeInput, DecomposeOutput]
}

// NewDecomposeTool creates the decompose tool.
func NewDecomposeTool(cfg Config, deps Deps) *DecomposeTool {
	cfg.Type = TypeDecompose
	return &DecomposeTool{NewBase(cfg, deps, Hooks[DecomposeInput, DecomposeOutput]{
		System: "You are a pragmatic planning assistant. You reply with JSON only.",
		Prompt: func(in *DecomposeInput) (string, error) {
			return deps.Prompts.Render(prompts.Decompose, prompts.DecomposeParams{
				Title:           in.Title,
				Description:     in.Description,
				Context:         in.Context,
				CurrentSubtasks: in.CurrentSubtasks,
				MaxSubtasks:     maxSubtasks(in),
			})
		},
		AfterExecute: normalizeDecomposition,
	})}
}

func maxSubtasks(in *DecomposeInput) int {
	if in.MaxSubtasks > 0 {
		return in.MaxSubtasks
	}
	return DefaultMaxSubtasks
}

// normalizeDecomposition truncates to the limit, drops out-of-range, self
// and duplicate dependency indexes, and fills a missing total.
func normalizeDecomposition(in *DecomposeInput, out *DecomposeOutput) error {
	if limit := maxSubtasks(in); len(out.Subtasks) > limit {
		out.Subtasks = out.Subtasks[:limit]
	}

	sum := 0
	for i := range out.Subtasks {
		st := &out.Subtasks[i]
		deps := st.Dependencies[:0]
		seen := make(map[int]bool)
		for _, d := range st.Dependencies {
			if d < 0 || d >= len(out.Subtasks) || d == i || seen[d] {
				continue
			}
			seen[d] = true
			deps = append(deps, d)
		}
		st.Dependencies = deps
		sum += st.EstimatedMinutes
	}
	if out.TotalEstimatedMinutes <= 0 {
		out.TotalEstimatedMinutes = sum
	}
	return nil
}

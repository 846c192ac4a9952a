package tools

import (
	"sort"

	"github.com/lumia-zhu/aiplanner-sub000/internal/prompts"
)

// ChecklistInput is the task to build a checklist for.
type ChecklistInput struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description,omitempty"`
	Context     string   `json:"context,omitempty"`
	Subtasks    []string `json:"subtasks,omitempty"`
}

// ChecklistItem is one line of the checklist.
type ChecklistItem struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category" validate:"oneof=preparation execution validation completion" jsonschema:"enum=preparation,enum=execution,enum=validation,enum=completion"`
	Mandatory   bool   `json:"mandatory"`
}

// ChecklistOutput is the checklist with advice.
type ChecklistOutput struct {
	Items           []ChecklistItem `json:"items" validate:"required,min=1,dive"`
	Tips            []string        `json:"tips,omitempty"`
	CommonPitfalls  []string        `json:"common_pitfalls,omitempty"`
	SuccessCriteria []string        `json:"success_criteria,omitempty"`
}

var categoryRank = map[string]int{"preparation": 0, "execution": 1, "validation": 2, "completion": 3}

// ChecklistTool produces an execution checklist.
type ChecklistTool struct {
	*Base[ChecklistInput, ChecklistOutput]
}

// NewChecklistTool creates the checklist tool.
func NewChecklistTool(cfg Config, deps Deps) *ChecklistTool {
	cfg.Type = TypeChecklist
	return &ChecklistTool{NewBase(cfg, deps, Hooks[ChecklistInput, ChecklistOutput]{
		System: "You write short, practical checklists. You reply with JSON only.",
		Prompt: func(in *ChecklistInput) (string, error) {
			return deps.Prompts.Render(prompts.Checklist, prompts.ChecklistParams{
				Title:       in.Title,
				Description: in.Description,
				Context:     in.Context,
				Subtasks:    in.Subtasks,
			})
		},
		AfterExecute: func(_ *ChecklistInput, out *ChecklistOutput) error {
			sort.SliceStable(out.Items, func(i, j int) bool {
				return categoryRank[out.Items[i].Category] < categoryRank[out.Items[j].Category]
			})
			return nil
		},
	})}
}

package tools

import (
	"fmt"
	"sort"
	"time"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/prompts"
)

// MaxPrioritizeTasks bounds one prioritization request.
const MaxPrioritizeTasks = 50

// PrioritizeTask is one task to place on the matrix.
type PrioritizeTask struct {
	ID               string `json:"id" validate:"required"`
	Title            string `json:"title" validate:"required"`
	Description      string `json:"description,omitempty"`
	Deadline         string `json:"deadline,omitempty"`
	EstimatedMinutes int    `json:"estimated_minutes,omitempty"`
}

// PrioritizeInput is the set of tasks to prioritize.
type PrioritizeInput struct {
	Tasks []PrioritizeTask `json:"tasks" validate:"required,min=1,dive"`
	// Context carries the user's stated feeling about the day.
	Context string `json:"context,omitempty"`
	// Today is YYYY-MM-DD; empty means the current date.
	Today string `json:"today,omitempty"`
}

// TaskPriority places one task on the matrix.
type TaskPriority struct {
	TaskID         string        `json:"task_id" validate:"required"`
	Quadrant       core.Quadrant `json:"quadrant" validate:"oneof=urgent-important important-not-urgent urgent-not-important not-urgent-not-important" jsonschema:"enum=urgent-important,enum=important-not-urgent,enum=urgent-not-important,enum=not-urgent-not-important"`
	Urgency        int           `json:"urgency" validate:"min=0,max=10" jsonschema:"minimum=0,maximum=10"`
	Importance     int           `json:"importance" validate:"min=0,max=10" jsonschema:"minimum=0,maximum=10"`
	Reasoning      string        `json:"reasoning"`
	SuggestedOrder int           `json:"suggested_order" validate:"min=1" jsonschema:"minimum=1"`
}

// PrioritizeOutput is the ordered placement of every task.
type PrioritizeOutput struct {
	Priorities []TaskPriority `json:"priorities" validate:"required,dive"`
	Strategy   string         `json:"strategy"`
}

// PrioritizeTool sorts tasks by urgency and importance.
type PrioritizeTool struct {
	*Base[PrioritizeInput, PrioritizeOutput]
}

// NewPrioritizeTool creates the prioritize tool.
func NewPrioritizeTool(cfg Config, deps Deps) *PrioritizeTool {
	cfg.Type = TypePrioritize
	return &PrioritizeTool{NewBase(cfg, deps, Hooks[PrioritizeInput, PrioritizeOutput]{
		System: "You are a time-management coach using the Eisenhower matrix. You reply with JSON only.",
		Validate: func(in *PrioritizeInput) error {
			if len(in.Tasks) > MaxPrioritizeTasks {
				return core.ErrValidation(core.CodeTooManyTasks,
					fmt.Sprintf("at most %d tasks can be prioritized at once, got %d", MaxPrioritizeTasks, len(in.Tasks)))
			}
			return nil
		},
		Prompt: func(in *PrioritizeInput) (string, error) {
			today := in.Today
			if today == "" {
				today = time.Now().Format(core.DateLayout)
			}
			lines := make([]prompts.PrioritizeTask, len(in.Tasks))
			for i, t := range in.Tasks {
				lines[i] = prompts.PrioritizeTask{
					Index:            i + 1,
					ID:               t.ID,
					Title:            t.Title,
					Description:      t.Description,
					Deadline:         t.Deadline,
					EstimatedMinutes: t.EstimatedMinutes,
				}
			}
			return deps.Prompts.Render(prompts.Prioritize, prompts.PrioritizeParams{
				Today:   today,
				Tasks:   lines,
				Context: in.Context,
			})
		},
		AfterExecute: normalizePriorities,
	})}
}

// normalizePriorities drops unknown and duplicate task ids, sorts by the
// suggested order and renumbers it from 1.
func normalizePriorities(in *PrioritizeInput, out *PrioritizeOutput) error {
	known := make(map[string]bool, len(in.Tasks))
	for _, t := range in.Tasks {
		known[t.ID] = true
	}

	kept := out.Priorities[:0]
	seen := make(map[string]bool)
	for _, p := range out.Priorities {
		if !known[p.TaskID] || seen[p.TaskID] {
			continue
		}
		seen[p.TaskID] = true
		kept = append(kept, p)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].SuggestedOrder < kept[j].SuggestedOrder
	})
	for i := range kept {
		kept[i].SuggestedOrder = i + 1
	}
	out.Priorities = kept
	return nil
}

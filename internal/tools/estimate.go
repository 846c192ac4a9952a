package tools

import (
	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/prompts"
)

// EstimateInput is the task to size.
type EstimateInput struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description,omitempty"`
	Context     string   `json:"context,omitempty"`
	Subtasks    []string `json:"subtasks,omitempty"`
}

// EstimateOutput is a duration estimate with its range.
type EstimateOutput struct {
	EstimatedMinutes int             `json:"estimated_minutes" validate:"min=1" jsonschema:"minimum=1"`
	MinMinutes       int             `json:"min_minutes" validate:"min=0"`
	MaxMinutes       int             `json:"max_minutes" validate:"min=0"`
	Confidence       core.Confidence `json:"confidence" validate:"oneof=high medium low" jsonschema:"enum=high,enum=medium,enum=low"`
	Reasoning        string          `json:"reasoning"`
	Assumptions      []string        `json:"assumptions,omitempty"`
	Risks            []string        `json:"risks,omitempty"`
}

// EstimateTool predicts how long a task takes.
type EstimateTool struct {
	*Base[EstimateInput, EstimateOutput]
}

// NewEstimateTool creates the estimate tool.
func NewEstimateTool(cfg Config, deps Deps) *EstimateTool {
	cfg.Type = TypeEstimate
	return &EstimateTool{NewBase(cfg, deps, Hooks[EstimateInput, EstimateOutput]{
		System: "You are an experienced planner who gives realistic time estimates. You reply with JSON only.",
		Prompt: func(in *EstimateInput) (string, error) {
			return deps.Prompts.Render(prompts.Estimate, prompts.EstimateParams{
				Title:       in.Title,
				Description: in.Description,
				Context:     in.Context,
				Subtasks:    in.Subtasks,
			})
		},
		AfterExecute: func(_ *EstimateInput, out *EstimateOutput) error {
			if out.MinMinutes <= 0 || out.MinMinutes > out.EstimatedMinutes {
				out.MinMinutes = out.EstimatedMinutes
			}
			if out.MaxMinutes < out.EstimatedMinutes {
				out.MaxMinutes = out.EstimatedMinutes
			}
			return nil
		},
	})}
}

package tools

import (
	"sort"

	"github.com/lumia-zhu/aiplanner-sub000/internal/prompts"
)

// DefaultMaxQuestions bounds a clarification round.
const DefaultMaxQuestions = 5

// ClarifyInput is the task to clarify.
type ClarifyInput struct {
	Title        string `json:"title" validate:"required,max=200"`
	Description  string `json:"description,omitempty"`
	Context      string `json:"context,omitempty"`
	MaxQuestions int    `json:"max_questions,omitempty" validate:"omitempty,min=1,max=10"`
}

// Question is one clarifying question.
type Question struct {
	Question         string   `json:"question" validate:"required"`
	Category         string   `json:"category"`
	Importance       string   `json:"importance" validate:"oneof=critical important optional" jsonschema:"enum=critical,enum=important,enum=optional"`
	Reasoning        string   `json:"reasoning,omitempty"`
	SuggestedAnswers []string `json:"suggested_answers,omitempty"`
}

// ClarifyOutput lists the questions that would make the task actionable.
type ClarifyOutput struct {
	Questions       []Question `json:"questions" validate:"dive"`
	Ambiguities     []string   `json:"ambiguities,omitempty"`
	Recommendations []string   `json:"recommendations,omitempty"`
	Summary         string     `json:"summary"`
}

var importanceRank = map[string]int{"critical": 0, "important": 1, "optional": 2}

// ClarifyTool asks the questions a vague task needs answered.
type ClarifyTool struct {
	*Base[ClarifyInput, ClarifyOutput]
}

// NewClarifyTool creates the clarify tool.
func NewClarifyTool(cfg Config, deps Deps) *ClarifyTool {
	cfg.Type = TypeClarify
	return &ClarifyTool{NewBase(cfg, deps, Hooks[ClarifyInput, ClarifyOutput]{
		System: "You help people turn vague tasks into actionable ones by asking few, sharp questions. You reply with JSON only.",
		Prompt: func(in *ClarifyInput) (string, error) {
			return deps.Prompts.Render(prompts.Clarify, prompts.ClarifyParams{
				Title:        in.Title,
				Description:  in.Description,
				Context:      in.Context,
				MaxQuestions: maxQuestions(in),
			})
		},
		AfterExecute: func(in *ClarifyInput, out *ClarifyOutput) error {
			sort.SliceStable(out.Questions, func(i, j int) bool {
				return importanceRank[out.Questions[i].Importance] < importanceRank[out.Questions[j].Importance]
			})
			if limit := maxQuestions(in); len(out.Questions) > limit {
				out.Questions = out.Questions[:limit]
			}
			return nil
		},
	})}
}

func maxQuestions(in *ClarifyInput) int {
	if in.MaxQuestions > 0 {
		return in.MaxQuestions
	}
	return DefaultMaxQuestions
}

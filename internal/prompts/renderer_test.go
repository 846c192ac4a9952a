package prompts

import (
	"strings"
	"testing"
)

func TestNewRenderer_LoadsAllTemplates(t *testing.T) {
	r := MustNewRenderer()
	want := []string{Checklist, Clarify, Decompose, Estimate, EstimateReflection, Prioritize, StructureAnswer}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v", got)
	}
	for _, name := range want {
		if _, ok := r.templates[name]; !ok {
			t.Errorf("template %s not loaded", name)
		}
	}
}

func TestRender(t *testing.T) {
	r := MustNewRenderer()

	tests := []struct {
		name     string
		template string
		data     any
		contains []string
	}{
		{
			name:     "decompose",
			template: Decompose,
			data: DecomposeParams{
				Title:           "Plan conference talk",
				CurrentSubtasks: []string{"Pick a topic"},
				MaxSubtasks:     8,
			},
			contains: []string{"Plan conference talk", "- Pick a topic", "up to 8"},
		},
		{
			name:     "prioritize",
			template: Prioritize,
			data: PrioritizeParams{
				Today: "2026-03-01",
				Tasks: []PrioritizeTask{{Index: 1, ID: "t1", Title: "Tax return", Deadline: "2026-03-02", EstimatedMinutes: 90}},
			},
			contains: []string{"Today is 2026-03-01", "1. [t1] Tax return (deadline 2026-03-02) (~90 min)"},
		},
		{
			name:     "structure answer numbers questions",
			template: StructureAnswer,
			data:     StructureAnswerParams{Title: "Move", Questions: []string{"When?", "Budget?"}, Answer: "next week"},
			contains: []string{"1. When?", "2. Budget?", "next week"},
		},
		{
			name:     "reflection",
			template: EstimateReflection,
			data:     ReflectionParams{Title: "Write report", Minutes: 60},
			contains: []string{`"Write report" will take 60 minutes`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Render(tt.template, tt.data)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			for _, s := range tt.contains {
				if !strings.Contains(out, s) {
					t.Errorf("output missing %q:\n%s", s, out)
				}
			}
		})
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	if _, err := MustNewRenderer().Render("nope", nil); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}

package core

import (
	"testing"
	"time"
)

func TestQuadrantFor(t *testing.T) {
	tests := []struct {
		urgency, importance int
		want                Quadrant
	}{
		{9, 9, QuadrantUrgentImportant},
		{2, 8, QuadrantImportantNotUrgent},
		{8, 2, QuadrantUrgentNotImportant},
		{1, 1, QuadrantNotUrgentNotImportant},
		{6, 6, QuadrantUrgentImportant},
	}
	for _, tt := range tests {
		if got := QuadrantFor(tt.urgency, tt.importance); got != tt.want {
			t.Errorf("QuadrantFor(%d,%d) = %s, want %s", tt.urgency, tt.importance, got, tt.want)
		}
	}
}

func TestQuadrant_Priority(t *testing.T) {
	if QuadrantUrgentImportant.Priority() != PriorityHigh {
		t.Fatalf("urgent-important should be high")
	}
	if QuadrantNotUrgentNotImportant.Priority() != PriorityLow {
		t.Fatalf("neither should be low")
	}
}

func TestTask_CloneIsDeep(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	orig := &Task{
		ID:       "t1",
		Tags:     []string{"work"},
		Deadline: &deadline,
		StructuredContext: &StructuredContext{
			Summary:     "s",
			Constraints: []string{"budget"},
		},
	}
	c := orig.Clone()
	c.Tags[0] = "home"
	c.StructuredContext.Constraints[0] = "none"
	*c.Deadline = deadline.Add(time.Hour)

	if orig.Tags[0] != "work" || orig.StructuredContext.Constraints[0] != "budget" {
		t.Fatalf("clone shares slices with original")
	}
	if !orig.Deadline.Equal(deadline) {
		t.Fatalf("clone shares deadline with original")
	}
}

func TestTask_AddTag(t *testing.T) {
	task := &Task{}
	task.AddTag("Urgent")
	task.AddTag("urgent")
	task.AddTag("")
	if len(task.Tags) != 1 || !task.HasTag("URGENT") {
		t.Fatalf("unexpected tags %v", task.Tags)
	}
}

func TestParsePhase(t *testing.T) {
	for _, p := range AllPhases() {
		got, err := ParsePhase(string(p))
		if err != nil || got != p {
			t.Fatalf("ParsePhase(%s) = %s, %v", p, got, err)
		}
	}
	if _, err := ParsePhase("executing"); err == nil {
		t.Fatalf("expected error for unknown phase")
	}
	if !PhaseCompleted.Terminal() || PhaseChecking.Terminal() {
		t.Fatalf("only completed is terminal")
	}
}

func TestChatMessage_Accessors(t *testing.T) {
	msg := ChatMessage{Content: []ContentPart{
		TextPart("hello "),
		TextPart("world"),
		InteractivePart(InteractiveWorkflowOptions, nil),
	}}
	if msg.Text() != "hello world" {
		t.Fatalf("unexpected text %q", msg.Text())
	}
	in := msg.Interactive()
	if in == nil || !in.IsActive || in.Type != InteractiveWorkflowOptions {
		t.Fatalf("unexpected interactive %+v", in)
	}
}

func TestStructuredContext_Describe(t *testing.T) {
	var nilCtx *StructuredContext
	if nilCtx.Describe() != "" {
		t.Fatalf("nil context should render empty")
	}
	sc := &StructuredContext{
		Summary:            "Talk at GoDays",
		Deadline:           "2026-05-01",
		DeadlineConfidence: ConfidenceHigh,
		Constraints:        []string{"20 minutes", "no live demo"},
	}
	want := "Summary: Talk at GoDays\nDeadline: 2026-05-01 (high confidence)\nConstraints: 20 minutes; no live demo"
	if got := sc.Describe(); got != want {
		t.Fatalf("Describe() = %q", got)
	}
}

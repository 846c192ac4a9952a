package core

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-day key used to scope tasks and chat history.
const DateLayout = "2006-01-02"

// Priority is the coarse priority label stored on a task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Quadrant is a cell of the urgency/importance matrix.
type Quadrant string

const (
	QuadrantUrgentImportant       Quadrant = "urgent-important"
	QuadrantImportantNotUrgent    Quadrant = "important-not-urgent"
	QuadrantUrgentNotImportant    Quadrant = "urgent-not-important"
	QuadrantNotUrgentNotImportant Quadrant = "not-urgent-not-important"
)

// AllQuadrants returns the four quadrants in matrix order.
func AllQuadrants() []Quadrant {
	return []Quadrant{
		QuadrantUrgentImportant,
		QuadrantImportantNotUrgent,
		QuadrantUrgentNotImportant,
		QuadrantNotUrgentNotImportant,
	}
}

// QuadrantFor places urgency and importance scores (0-10) on the matrix.
func QuadrantFor(urgency, importance int) Quadrant {
	urgent := urgency >= 6
	important := importance >= 6
	switch {
	case urgent && important:
		return QuadrantUrgentImportant
	case important:
		return QuadrantImportantNotUrgent
	case urgent:
		return QuadrantUrgentNotImportant
	default:
		return QuadrantNotUrgentNotImportant
	}
}

// Priority maps a quadrant to the priority label stored on tasks.
func (q Quadrant) Priority() Priority {
	switch q {
	case QuadrantUrgentImportant:
		return PriorityHigh
	case QuadrantImportantNotUrgent, QuadrantUrgentNotImportant:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Confidence is a coarse confidence level reported by the model.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// StructuredContext holds the fields extracted from a user's clarification
// answer once the user confirmed them.
type StructuredContext struct {
	Summary            string     `json:"summary" validate:"required"`
	Goal               string     `json:"goal,omitempty"`
	Deadline           string     `json:"deadline,omitempty"`
	DeadlineConfidence Confidence `json:"deadline_confidence,omitempty" validate:"omitempty,oneof=high medium low"`
	Constraints        []string   `json:"constraints,omitempty"`
	Resources          []string   `json:"resources,omitempty"`
	SuccessCriteria    []string   `json:"success_criteria,omitempty"`
	RawAnswer          string     `json:"raw_answer,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
}

// Describe renders the context as prompt text. A nil context renders empty.
func (c *StructuredContext) Describe() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	line("Summary", c.Summary)
	line("Goal", c.Goal)
	if c.Deadline != "" {
		d := c.Deadline
		if c.DeadlineConfidence != "" {
			d += " (" + string(c.DeadlineConfidence) + " confidence)"
		}
		line("Deadline", d)
	}
	line("Constraints", strings.Join(c.Constraints, "; "))
	line("Resources", strings.Join(c.Resources, "; "))
	line("Success criteria", strings.Join(c.SuccessCriteria, "; "))
	return strings.TrimSpace(b.String())
}

// Task is a user's to-do item as persisted by the task store.
type Task struct {
	ID                string             `json:"id"`
	UserID            string             `json:"user_id"`
	Date              string             `json:"date"`
	Title             string             `json:"title"`
	Description       string             `json:"description,omitempty"`
	EstimatedMinutes  int                `json:"estimated_minutes,omitempty"`
	Deadline          *time.Time         `json:"deadline,omitempty"`
	Priority          Priority           `json:"priority,omitempty"`
	Quadrant          Quadrant           `json:"quadrant,omitempty"`
	Completed         bool               `json:"completed"`
	ParentID          string             `json:"parent_id,omitempty"`
	Tags              []string           `json:"tags,omitempty"`
	StructuredContext *StructuredContext `json:"structured_context,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// HasTag reports whether the task carries tag (case-insensitive).
func (t *Task) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if strings.EqualFold(existing, tag) {
			return true
		}
	}
	return false
}

// AddTag appends tag unless already present.
func (t *Task) AddTag(tag string) {
	if tag == "" || t.HasTag(tag) {
		return
	}
	t.Tags = append(t.Tags, tag)
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	if t.Deadline != nil {
		d := *t.Deadline
		c.Deadline = &d
	}
	if t.StructuredContext != nil {
		sc := *t.StructuredContext
		sc.Constraints = append([]string(nil), t.StructuredContext.Constraints...)
		sc.Resources = append([]string(nil), t.StructuredContext.Resources...)
		sc.SuccessCriteria = append([]string(nil), t.StructuredContext.SuccessCriteria...)
		c.StructuredContext = &sc
	}
	return &c
}

// DateKey formats a day the way stores key tasks and messages.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

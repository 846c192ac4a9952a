// Package workflow runs the phase-based refinement workflow over a user's
// tasks: analyze, clarify, decompose, estimate, prioritize and check.
package workflow

import (
	"maps"
	"sync"
	"time"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/tools"
)

// Analysis records which refinements each task needs.
type Analysis struct {
	NeedsClarification  []string `json:"needs_clarification,omitempty"`
	NeedsDecomposition  []string `json:"needs_decomposition,omitempty"`
	NeedsEstimation     []string `json:"needs_estimation,omitempty"`
	NeedsPrioritization bool     `json:"needs_prioritization"`
	Summary             string   `json:"summary"`
}

func (a *Analysis) clone() *Analysis {
	if a == nil {
		return nil
	}
	c := *a
	c.NeedsClarification = append([]string(nil), a.NeedsClarification...)
	c.NeedsDecomposition = append([]string(nil), a.NeedsDecomposition...)
	c.NeedsEstimation = append([]string(nil), a.NeedsEstimation...)
	return &c
}

// Suggestion is an action chip offered to the user.
type Suggestion struct {
	ID     string             `json:"id"`
	Label  string             `json:"label"`
	Phase  core.WorkflowPhase `json:"phase"`
	TaskID string             `json:"task_id,omitempty"`
}

// PlanVersion is a snapshot of the task list after a step changed it.
type PlanVersion struct {
	Version   int                `json:"version"`
	Phase     core.WorkflowPhase `json:"phase"`
	Note      string             `json:"note"`
	Tasks     []*core.Task       `json:"tasks"`
	CreatedAt time.Time          `json:"created_at"`
}

// Context is the state of one workflow session.
type Context struct {
	UserID         string                           `json:"user_id"`
	SessionID      string                           `json:"session_id"`
	Phase          core.WorkflowPhase               `json:"phase"`
	Tasks          []*core.Task                     `json:"tasks"`
	Analysis       *Analysis                        `json:"analysis,omitempty"`
	Suggestions    []Suggestion                     `json:"suggestions,omitempty"`
	Clarifications map[string]tools.ClarifyOutput   `json:"clarifications,omitempty"`
	Checklists     map[string]tools.ChecklistOutput `json:"checklists,omitempty"`
	PlanHistory    []PlanVersion                    `json:"plan_history,omitempty"`
	Metadata       map[string]string                `json:"metadata,omitempty"`
	Timestamp      time.Time                        `json:"timestamp"`
}

// Task returns the task with id, or nil.
func (c *Context) Task(id string) *core.Task {
	for _, t := range c.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// ContextManager owns a Context. Every mutation goes through it and
// readers only ever see deep copies.
type ContextManager struct {
	mu  sync.RWMutex
	ctx *Context
	now func() time.Time
}

// NewContextManager creates a context in the initial phase.
func NewContextManager(userID, sessionID string, tasks []*core.Task) *ContextManager {
	m := &ContextManager{now: time.Now}
	m.Reset(userID, sessionID, tasks)
	return m
}

// Reset discards the context and starts over with tasks.
func (m *ContextManager) Reset(userID, sessionID string, tasks []*core.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctx = &Context{
		UserID:         userID,
		SessionID:      sessionID,
		Phase:          core.PhaseInitial,
		Tasks:          cloneTasks(tasks),
		Clarifications: make(map[string]tools.ClarifyOutput),
		Checklists:     make(map[string]tools.ChecklistOutput),
		Metadata:       make(map[string]string),
		Timestamp:      m.now(),
	}
}

// Snapshot returns a deep copy of the context.
func (m *ContextManager) Snapshot() *Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := *m.ctx
	c.Tasks = cloneTasks(m.ctx.Tasks)
	c.Analysis = m.ctx.Analysis.clone()
	c.Suggestions = append([]Suggestion(nil), m.ctx.Suggestions...)
	c.Clarifications = maps.Clone(m.ctx.Clarifications)
	c.Checklists = maps.Clone(m.ctx.Checklists)
	c.Metadata = maps.Clone(m.ctx.Metadata)
	c.PlanHistory = make([]PlanVersion, len(m.ctx.PlanHistory))
	for i, v := range m.ctx.PlanHistory {
		v.Tasks = cloneTasks(v.Tasks)
		c.PlanHistory[i] = v
	}
	return &c
}

// Phase returns the current phase.
func (m *ContextManager) Phase() core.WorkflowPhase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctx.Phase
}

// SessionID returns the session the context belongs to.
func (m *ContextManager) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctx.SessionID
}

// UserID returns the owner of the context.
func (m *ContextManager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctx.UserID
}

// SetPhase moves the context to phase.
func (m *ContextManager) SetPhase(phase core.WorkflowPhase) {
	m.update(func(c *Context) { c.Phase = phase })
}

// SetTasks replaces the task list.
func (m *ContextManager) SetTasks(tasks []*core.Task) {
	m.update(func(c *Context) { c.Tasks = cloneTasks(tasks) })
}

// AddTasks appends tasks.
func (m *ContextManager) AddTasks(tasks ...*core.Task) {
	m.update(func(c *Context) { c.Tasks = append(c.Tasks, cloneTasks(tasks)...) })
}

// UpdateTask applies fn to the task with id.
func (m *ContextManager) UpdateTask(id string, fn func(*core.Task)) error {
	var err error
	m.update(func(c *Context) {
		t := c.Task(id)
		if t == nil {
			err = core.ErrNotFound("task", id)
			return
		}
		fn(t)
		t.UpdatedAt = m.now()
	})
	return err
}

// SetAnalysis records the analysis result.
func (m *ContextManager) SetAnalysis(a *Analysis) {
	m.update(func(c *Context) { c.Analysis = a.clone() })
}

// SetSuggestions replaces the suggestion chips.
func (m *ContextManager) SetSuggestions(s []Suggestion) {
	m.update(func(c *Context) { c.Suggestions = append([]Suggestion(nil), s...) })
}

// SetClarification stores the clarify output for a task.
func (m *ContextManager) SetClarification(taskID string, out tools.ClarifyOutput) {
	m.update(func(c *Context) { c.Clarifications[taskID] = out })
}

// SetChecklist stores the checklist for a task.
func (m *ContextManager) SetChecklist(taskID string, out tools.ChecklistOutput) {
	m.update(func(c *Context) { c.Checklists[taskID] = out })
}

// SetMetadata stores a metadata value.
func (m *ContextManager) SetMetadata(key, value string) {
	m.update(func(c *Context) { c.Metadata[key] = value })
}

// Metadata reads a metadata value.
func (m *ContextManager) Metadata(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.ctx.Metadata[key]
	return v, ok
}

// SavePlanVersion snapshots the current tasks and returns the version number.
func (m *ContextManager) SavePlanVersion(note string) int {
	var version int
	m.update(func(c *Context) {
		version = len(c.PlanHistory) + 1
		c.PlanHistory = append(c.PlanHistory, PlanVersion{
			Version:   version,
			Phase:     c.Phase,
			Note:      note,
			Tasks:     cloneTasks(c.Tasks),
			CreatedAt: m.now(),
		})
	})
	return version
}

func (m *ContextManager) update(fn func(*Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.ctx)
	m.ctx.Timestamp = m.now()
}

func cloneTasks(tasks []*core.Task) []*core.Task {
	if tasks == nil {
		return nil
	}
	out := make([]*core.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}

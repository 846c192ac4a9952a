// Package conversation drives the guided, button-based refinement of a single
// task. A pure Transition function maps (State, Event) to the next State and
// the Effects a Session carries out.
package conversation

import (
	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/tools"
)

// ModeKind names a conversation mode.
type ModeKind string

const (
	KindInitial              ModeKind = "initial"
	KindSingleTaskAction     ModeKind = "single-task-action"
	KindTaskSelection        ModeKind = "task-selection"
	KindClarificationInput   ModeKind = "task-clarification-input"
	KindClarificationEdit    ModeKind = "clarification-edit"
	KindContextInput         ModeKind = "task-context-input"
	KindSingleTask           ModeKind = "single-task"
	KindEstimationInput      ModeKind = "task-estimation-input"
	KindEstimationReflection ModeKind = "task-estimation-reflection"
	KindEstimationBuffer     ModeKind = "task-estimation-buffer"
	KindPriorityFeeling      ModeKind = "priority-feeling"
	KindPriorityMatrix       ModeKind = "priority-matrix"
	KindEnded                ModeKind = "ended"
)

// Action is what the user wants to do with a single task.
type Action string

const (
	ActionClarify   Action = "clarify"
	ActionDecompose Action = "decompose"
	ActionEstimate  Action = "estimate"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionClarify, ActionDecompose, ActionEstimate:
		return true
	}
	return false
}

// Mode is the tagged union of conversation modes. Each variant carries only
// the data that is meaningful in that mode.
type Mode interface {
	Kind() ModeKind
	isMode()
}

// Initial offers the three top-level flows.
type Initial struct{}

// SingleTaskAction offers clarify, decompose and estimate.
type SingleTaskAction struct{}

// TaskSelection waits for the user to pick the task Action applies to.
type TaskSelection struct {
	Action Action
}

// ClarificationInput collects the answer to the clarifying questions. A
// non-nil Proposal means the structured answer awaits confirmation.
type ClarificationInput struct {
	TaskID    string
	Questions []string
	Answer    string
	Proposal  *core.StructuredContext
}

// ClarificationEdit lets the user correct a rejected proposal.
type ClarificationEdit struct {
	TaskID    string
	Questions []string
	Answer    string
	Proposal  *core.StructuredContext
}

// ContextInput collects optional context before decomposition.
type ContextInput struct {
	TaskID string
}

// SingleTask shows a decomposition proposal. Proposal is nil while the
// decomposition runs.
type SingleTask struct {
	TaskID   string
	Context  string
	Proposal *tools.DecomposeOutput
}

// EstimationInput waits for the user's first estimate.
type EstimationInput struct {
	TaskID string
}

// EstimationReflection shows the reflection prompt and waits for a revised
// estimate.
type EstimationReflection struct {
	TaskID     string
	Initial    int
	Reflection string
}

// EstimationBuffer asks whether to pad Minutes with the buffer.
type EstimationBuffer struct {
	TaskID  string
	Minutes int
}

// PriorityFeeling waits for the user's feeling about the day. Feeling is
// set while prioritization runs.
type PriorityFeeling struct {
	Feeling string
}

// PriorityMatrix shows the proposed quadrants.
type PriorityMatrix struct {
	Feeling string
	Result  *tools.PrioritizeOutput
}

// Ended is terminal.
type Ended struct{}

func (Initial) Kind() ModeKind              { return KindInitial }
func (SingleTaskAction) Kind() ModeKind     { return KindSingleTaskAction }
func (TaskSelection) Kind() ModeKind        { return KindTaskSelection }
func (ClarificationInput) Kind() ModeKind   { return KindClarificationInput }
func (ClarificationEdit) Kind() ModeKind    { return KindClarificationEdit }
func (ContextInput) Kind() ModeKind         { return KindContextInput }
func (SingleTask) Kind() ModeKind           { return KindSingleTask }
func (EstimationInput) Kind() ModeKind      { return KindEstimationInput }
func (EstimationReflection) Kind() ModeKind { return KindEstimationReflection }
func (EstimationBuffer) Kind() ModeKind     { return KindEstimationBuffer }
func (PriorityFeeling) Kind() ModeKind      { return KindPriorityFeeling }
func (PriorityMatrix) Kind() ModeKind       { return KindPriorityMatrix }
func (Ended) Kind() ModeKind                { return KindEnded }

func (Initial) isMode()              {}
func (SingleTaskAction) isMode()     {}
func (TaskSelection) isMode()        {}
func (ClarificationInput) isMode()   {}
func (ClarificationEdit) isMode()    {}
func (ContextInput) isMode()         {}
func (SingleTask) isMode()           {}
func (EstimationInput) isMode()      {}
func (EstimationReflection) isMode() {}
func (EstimationBuffer) isMode()     {}
func (PriorityFeeling) isMode()      {}
func (PriorityMatrix) isMode()       {}
func (Ended) isMode()                {}

// State is a mode plus the epoch counting accepted events. Delayed prompts
// carry the epoch they were scheduled in and are dropped once it moved on.
type State struct {
	Mode  Mode
	Epoch uint64
}

// InitialState returns the state a new session starts in.
func InitialState() State {
	return State{Mode: Initial{}}
}

// workflowLevel reports whether failures in kind fall back to Initial rather
// than SingleTaskAction.
func workflowLevel(kind ModeKind) bool {
	switch kind {
	case KindInitial, KindPriorityFeeling, KindPriorityMatrix:
		return true
	}
	return false
}

package conversation

import (
	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/tools"
)

// EventKind names an input to the state machine.
type EventKind string

// User events.
const (
	EventChooseFlow      EventKind = "choose_flow"
	EventChooseAction    EventKind = "choose_action"
	EventSelectTask      EventKind = "select_task"
	EventBack            EventKind = "back"
	EventSubmitAnswer    EventKind = "submit_answer"
	EventConfirm         EventKind = "confirm"
	EventReject          EventKind = "reject"
	EventSkip            EventKind = "skip"
	EventCancel          EventKind = "cancel"
	EventSubmitEdit      EventKind = "submit_edit"
	EventSubmitContext   EventKind = "submit_context"
	EventAcceptSubtasks  EventKind = "accept_subtasks"
	EventRejectSubtasks  EventKind = "reject_subtasks"
	EventSubmitEstimate  EventKind = "submit_estimate"
	EventConfirmEstimate EventKind = "confirm_estimate"
	EventSubmitFeeling   EventKind = "submit_feeling"
	EventApply           EventKind = "apply"
)

// Internal events fed back by the Session when an effect finishes.
const (
	EventQuestionsReady     EventKind = "questions_ready"
	EventAnswerStructured   EventKind = "answer_structured"
	EventDecompositionReady EventKind = "decomposition_ready"
	EventReflectionReady    EventKind = "reflection_ready"
	EventPrioritiesReady    EventKind = "priorities_ready"
	EventEffectFailed       EventKind = "effect_failed"
)

// Flow is a top-level choice offered in the initial mode.
type Flow string

const (
	FlowSingleTask Flow = "single-task"
	FlowPrioritize Flow = "prioritize"
	FlowEnd        Flow = "end"
)

// Event is one input to Transition. Only the fields relevant to Kind are read.
type Event struct {
	Kind EventKind `json:"kind"`
	// MessageID names the interactive message the user acted on.
	MessageID string `json:"message_id,omitempty"`

	Flow       Flow                    `json:"flow,omitempty"`
	Action     Action                  `json:"action,omitempty"`
	TaskID     string                  `json:"task_id,omitempty"`
	Text       string                  `json:"text,omitempty"`
	Minutes    int                     `json:"minutes,omitempty"`
	WithBuffer bool                    `json:"with_buffer,omitempty"`
	Context    *core.StructuredContext `json:"context,omitempty"`

	Questions     []string                `json:"-"`
	Decomposition *tools.DecomposeOutput  `json:"-"`
	Priorities    *tools.PrioritizeOutput `json:"-"`
	Titles        map[string]string       `json:"-"`
	Err           error                   `json:"-"`
}

// Internal reports whether the event is produced by the Session rather than
// the user.
func (e Event) Internal() bool {
	switch e.Kind {
	case EventQuestionsReady, EventAnswerStructured, EventDecompositionReady,
		EventReflectionReady, EventPrioritiesReady, EventEffectFailed:
		return true
	}
	return false
}

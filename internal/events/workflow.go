package events

import "time"

// Event type constants for workflow orchestration.
const (
	TypePhaseStarted      = "phase_started"
	TypePhaseCompleted    = "phase_completed"
	TypeWorkflowCompleted = "workflow_completed"
	TypeWorkflowFailed    = "workflow_failed"
)

// PhaseStartedEvent is emitted when the orchestrator enters a phase.
type PhaseStartedEvent struct {
	BaseEvent
	Phase string `json:"phase"`
	Step  string `json:"step,omitempty"`
}

// NewPhaseStartedEvent creates a new phase started event.
func NewPhaseStartedEvent(sessionID, phase, step string) PhaseStartedEvent {
	return PhaseStartedEvent{
		BaseEvent: NewBaseEvent(TypePhaseStarted, sessionID),
		Phase:     phase,
		Step:      step,
	}
}

// PhaseCompletedEvent is emitted when a phase finished and the next one is chosen.
type PhaseCompletedEvent struct {
	BaseEvent
	Phase     string        `json:"phase"`
	NextPhase string        `json:"next_phase"`
	Duration  time.Duration `json:"duration"`
}

// NewPhaseCompletedEvent creates a new phase completed event.
func NewPhaseCompletedEvent(sessionID, phase, next string, duration time.Duration) PhaseCompletedEvent {
	return PhaseCompletedEvent{
		BaseEvent: NewBaseEvent(TypePhaseCompleted, sessionID),
		Phase:     phase,
		NextPhase: next,
		Duration:  duration,
	}
}

// WorkflowCompletedEvent is emitted when an execution ends without error.
type WorkflowCompletedEvent struct {
	BaseEvent
	Phase         string   `json:"phase"`
	ExecutedSteps []string `json:"executed_steps"`
}

// NewWorkflowCompletedEvent creates a new workflow completed event.
func NewWorkflowCompletedEvent(sessionID, phase string, steps []string) WorkflowCompletedEvent {
	return WorkflowCompletedEvent{
		BaseEvent:     NewBaseEvent(TypeWorkflowCompleted, sessionID),
		Phase:         phase,
		ExecutedSteps: steps,
	}
}

// WorkflowFailedEvent is emitted when an execution stops on an error.
type WorkflowFailedEvent struct {
	BaseEvent
	Phase string `json:"phase"`
	Error string `json:"error"`
}

// NewWorkflowFailedEvent creates a new workflow failed event.
func NewWorkflowFailedEvent(sessionID, phase string, err error) WorkflowFailedEvent {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return WorkflowFailedEvent{
		BaseEvent: NewBaseEvent(TypeWorkflowFailed, sessionID),
		Phase:     phase,
		Error:     msg,
	}
}

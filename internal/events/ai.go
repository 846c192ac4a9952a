package events

import "time"

// Event type constants for model and tool activity.
const (
	TypeModelFallback = "model_fallback"
	TypeToolExecuted  = "tool_executed"
)

// ModelFallbackEvent is emitted when the service moves to the next model.
type ModelFallbackEvent struct {
	BaseEvent
	From  string `json:"from"`
	To    string `json:"to"`
	Error string `json:"error,omitempty"`
}

// NewModelFallbackEvent creates a new model fallback event.
func NewModelFallbackEvent(from, to string, cause error) ModelFallbackEvent {
	e := ModelFallbackEvent{
		BaseEvent: NewBaseEvent(TypeModelFallback, ""),
		From:      from,
		To:        to,
	}
	if cause != nil {
		e.Error = cause.Error()
	}
	return e
}

// ToolExecutedEvent is emitted after every tool execution.
type ToolExecutedEvent struct {
	BaseEvent
	Tool     string        `json:"tool"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// NewToolExecutedEvent creates a new tool executed event.
func NewToolExecutedEvent(sessionID, tool string, success bool, duration time.Duration, errMsg string) ToolExecutedEvent {
	return ToolExecutedEvent{
		BaseEvent: NewBaseEvent(TypeToolExecuted, sessionID),
		Tool:      tool,
		Success:   success,
		Duration:  duration,
		Error:     errMsg,
	}
}

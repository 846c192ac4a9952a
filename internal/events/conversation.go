package events

import "github.com/lumia-zhu/aiplanner-sub000/internal/core"

// Event type constants for conversation events.
const (
	TypeStreamChunk      = "stream_chunk"
	TypeMessageFinalized = "message_finalized"
	TypeMessageUpdated   = "message_updated"
	TypeModeChanged      = "mode_changed"
	TypeSidebarCollapse  = "sidebar_collapse"
)

// StreamChunkEvent carries one chunk of an assistant message being streamed.
type StreamChunkEvent struct {
	BaseEvent
	StreamID string `json:"stream_id"`
	Chunk    string `json:"chunk"`
}

// NewStreamChunkEvent creates a new stream chunk event.
func NewStreamChunkEvent(sessionID, streamID, chunk string) StreamChunkEvent {
	return StreamChunkEvent{
		BaseEvent: NewBaseEvent(TypeStreamChunk, sessionID),
		StreamID:  streamID,
		Chunk:     chunk,
	}
}

// MessageFinalizedEvent is emitted when a message is appended to the log.
type MessageFinalizedEvent struct {
	BaseEvent
	StreamID string           `json:"stream_id,omitempty"`
	Message  core.ChatMessage `json:"message"`
}

// NewMessageFinalizedEvent creates a new message finalized event.
func NewMessageFinalizedEvent(sessionID, streamID string, msg core.ChatMessage) MessageFinalizedEvent {
	return MessageFinalizedEvent{
		BaseEvent: NewBaseEvent(TypeMessageFinalized, sessionID),
		StreamID:  streamID,
		Message:   msg,
	}
}

// MessageUpdatedEvent is emitted when a logged message changes, such as an
// interactive payload turning inactive.
type MessageUpdatedEvent struct {
	BaseEvent
	Message core.ChatMessage `json:"message"`
}

// NewMessageUpdatedEvent creates a new message updated event.
func NewMessageUpdatedEvent(sessionID string, msg core.ChatMessage) MessageUpdatedEvent {
	return MessageUpdatedEvent{
		BaseEvent: NewBaseEvent(TypeMessageUpdated, sessionID),
		Message:   msg,
	}
}

// ModeChangedEvent is emitted when the conversation changes mode.
type ModeChangedEvent struct {
	BaseEvent
	From string `json:"from"`
	To   string `json:"to"`
}

// NewModeChangedEvent creates a new mode changed event.
func NewModeChangedEvent(sessionID, from, to string) ModeChangedEvent {
	return ModeChangedEvent{
		BaseEvent: NewBaseEvent(TypeModeChanged, sessionID),
		From:      from,
		To:        to,
	}
}

// SidebarCollapseEvent asks the UI to close the assistant panel.
type SidebarCollapseEvent struct {
	BaseEvent
}

// NewSidebarCollapseEvent creates a new sidebar collapse event.
func NewSidebarCollapseEvent(sessionID string) SidebarCollapseEvent {
	return SidebarCollapseEvent{BaseEvent: NewBaseEvent(TypeSidebarCollapse, sessionID)}
}

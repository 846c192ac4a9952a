package core

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PartType discriminates the content parts of a chat message.
type PartType string

const (
	PartText        PartType = "text"
	PartImageURL    PartType = "image_url"
	PartInteractive PartType = "interactive"
)

// InteractiveType names the option set carried by an interactive part.
type InteractiveType string

const (
	InteractiveWorkflowOptions      InteractiveType = "workflow-options"
	InteractiveSingleTaskAction     InteractiveType = "single-task-action"
	InteractiveFeelingOptions       InteractiveType = "feeling-options"
	InteractiveTaskSelection        InteractiveType = "task-selection"
	InteractiveClarificationConfirm InteractiveType = "clarification-confirm"
	InteractiveEstimationConfirm    InteractiveType = "estimation-confirm"
)

// ImageURL references an image attached to a message.
type ImageURL struct {
	URL string `json:"url"`
}

// Interactive is a set of options rendered as buttons. IsActive turns false
// once the user acted on it.
type Interactive struct {
	Type     InteractiveType `json:"type"`
	Data     any             `json:"data,omitempty"`
	IsActive bool            `json:"isActive"`
}

// ContentPart is one element of a message body.
type ContentPart struct {
	Type        PartType     `json:"type"`
	Text        string       `json:"text,omitempty"`
	ImageURL    *ImageURL    `json:"image_url,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
}

// ChatMessage is the envelope stored in the conversation log.
type ChatMessage struct {
	ID        string        `json:"id"`
	Role      Role          `json:"role"`
	Content   []ContentPart `json:"content"`
	CreatedAt time.Time     `json:"created_at"`
}

// Text concatenates the text parts of the message.
func (m ChatMessage) Text() string {
	var out string
	for _, p := range m.Content {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// Interactive returns the interactive part, if any.
func (m ChatMessage) Interactive() *Interactive {
	for i := range m.Content {
		if m.Content[i].Type == PartInteractive {
			return m.Content[i].Interactive
		}
	}
	return nil
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// InteractivePart builds an active interactive content part.
func InteractivePart(t InteractiveType, data any) ContentPart {
	return ContentPart{Type: PartInteractive, Interactive: &Interactive{Type: t, Data: data, IsActive: true}}
}

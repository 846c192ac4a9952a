package core

import (
	"context"
	"time"
)

// TaskStore persists tasks per user and calendar day.
type TaskStore interface {
	CreateTask(ctx context.Context, task *Task) error
	UpdateTask(ctx context.Context, task *Task) error
	DeleteTask(ctx context.Context, id string) error
	GetTask(ctx context.Context, id string) (*Task, error)
	ListTasks(ctx context.Context, userID string, date time.Time) ([]*Task, error)
}

// ChatStore persists the conversation log per user and calendar day.
type ChatStore interface {
	AppendMessage(ctx context.Context, userID string, date time.Time, msg ChatMessage) error
	ListMessages(ctx context.Context, userID string, date time.Time) ([]ChatMessage, error)
	ClearMessages(ctx context.Context, userID string, date time.Time) error
}

// UserProfile carries per-user preferences the refinement flow reads.
type UserProfile struct {
	UserID      string            `json:"user_id"`
	Name        string            `json:"name,omitempty"`
	Occupation  string            `json:"occupation,omitempty"`
	WorkHours   string            `json:"work_hours,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
	CustomTags  []string          `json:"custom_tags,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ProfileStore persists user profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)
	UpsertProfile(ctx context.Context, profile *UserProfile) error
	AppendCustomTag(ctx context.Context, userID, tag string) error
}

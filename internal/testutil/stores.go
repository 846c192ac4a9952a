package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

// MemoryTaskStore implements core.TaskStore in memory.
type MemoryTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*core.Task
}

// NewMemoryTaskStore creates an empty store.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[string]*core.Task)}
}

// CreateTask implements core.TaskStore.
func (s *MemoryTaskStore) CreateTask(_ context.Context, task *core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; ok {
		return core.ErrValidation("DUPLICATE_TASK", "task "+task.ID+" already exists")
	}
	s.tasks[task.ID] = task.Clone()
	return nil
}

// UpdateTask implements core.TaskStore.
func (s *MemoryTaskStore) UpdateTask(_ context.Context, task *core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; !ok {
		return core.ErrNotFound("task", task.ID)
	}
	s.tasks[task.ID] = task.Clone()
	return nil
}

// DeleteTask implements core.TaskStore.
func (s *MemoryTaskStore) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return core.ErrNotFound("task", id)
	}
	delete(s.tasks, id)
	return nil
}

// GetTask implements core.TaskStore.
func (s *MemoryTaskStore) GetTask(_ context.Context, id string) (*core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, core.ErrNotFound("task", id)
	}
	return t.Clone(), nil
}

// ListTasks implements core.TaskStore.
func (s *MemoryTaskStore) ListTasks(_ context.Context, userID string, date time.Time) ([]*core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := core.DateKey(date)
	var out []*core.Task
	for _, t := range s.tasks {
		if t.UserID == userID && t.Date == key {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// MemoryChatStore implements core.ChatStore in memory.
type MemoryChatStore struct {
	mu   sync.Mutex
	logs map[string][]core.ChatMessage
}

// NewMemoryChatStore creates an empty store.
func NewMemoryChatStore() *MemoryChatStore {
	return &MemoryChatStore{logs: make(map[string][]core.ChatMessage)}
}

func chatKey(userID string, date time.Time) string {
	return userID + "/" + core.DateKey(date)
}

// AppendMessage implements core.ChatStore.
func (s *MemoryChatStore) AppendMessage(_ context.Context, userID string, date time.Time, msg core.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := chatKey(userID, date)
	s.logs[k] = append(s.logs[k], msg)
	return nil
}

// ListMessages implements core.ChatStore.
func (s *MemoryChatStore) ListMessages(_ context.Context, userID string, date time.Time) ([]core.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ChatMessage(nil), s.logs[chatKey(userID, date)]...), nil
}

// ClearMessages implements core.ChatStore.
func (s *MemoryChatStore) ClearMessages(_ context.Context, userID string, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, chatKey(userID, date))
	return nil
}

// MemoryProfileStore implements core.ProfileStore in memory.
type MemoryProfileStore struct {
	mu       sync.Mutex
	profiles map[string]core.UserProfile
}

// NewMemoryProfileStore creates an empty store.
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: make(map[string]core.UserProfile)}
}

// GetProfile implements core.ProfileStore.
func (s *MemoryProfileStore) GetProfile(_ context.Context, userID string) (*core.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, core.ErrNotFound("profile", userID)
	}
	p.CustomTags = append([]string(nil), p.CustomTags...)
	return &p, nil
}

// UpsertProfile implements core.ProfileStore.
func (s *MemoryProfileStore) UpsertProfile(_ context.Context, profile *core.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *profile
	p.CustomTags = append([]string(nil), profile.CustomTags...)
	p.UpdatedAt = time.Now()
	s.profiles[p.UserID] = p
	return nil
}

// AppendCustomTag implements core.ProfileStore.
func (s *MemoryProfileStore) AppendCustomTag(_ context.Context, userID, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profiles[userID]
	p.UserID = userID
	for _, t := range p.CustomTags {
		if t == tag {
			return nil
		}
	}
	p.CustomTags = append(p.CustomTags, tag)
	p.UpdatedAt = time.Now()
	s.profiles[userID] = p
	return nil
}

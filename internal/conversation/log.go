package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/events"
	"github.com/lumia-zhu/aiplanner-sub000/internal/logging"
)

// Log is the ordered message history of one session. When a store is set,
// appended messages are persisted under the session's user and day.
type Log struct {
	mu        sync.RWMutex
	messages  []core.ChatMessage
	sessionID string
	userID    string
	date      time.Time
	store     core.ChatStore
	bus       *events.EventBus
	logger    *logging.Logger
}

// NewLog creates an empty log. store and bus may be nil.
func NewLog(sessionID, userID string, date time.Time, store core.ChatStore, bus *events.EventBus, logger *logging.Logger) *Log {
	return &Log{
		sessionID: sessionID,
		userID:    userID,
		date:      date,
		store:     store,
		bus:       bus,
		logger:    logging.OrNop(logger),
	}
}

// Append adds msg to the log and persists it.
func (l *Log) Append(msg core.ChatMessage) {
	l.mu.Lock()
	l.messages = append(l.messages, cloneMessage(msg))
	l.mu.Unlock()

	if l.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.AppendMessage(ctx, l.userID, l.date, msg); err != nil {
		l.logger.Warn("persisting chat message failed", "session_id", l.sessionID, "error", err)
	}
}

// Messages returns a copy of the history.
func (l *Log) Messages() []core.ChatMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]core.ChatMessage, len(l.messages))
	for i, m := range l.messages {
		out[i] = cloneMessage(m)
	}
	return out
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Get returns the message with id.
func (l *Log) Get(id string) (core.ChatMessage, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, m := range l.messages {
		if m.ID == id {
			return cloneMessage(m), true
		}
	}
	return core.ChatMessage{}, false
}

// Deactivate marks the interactive payload of message id as actioned. It
// fails when the message has no active payload, so each option set can be
// used once.
func (l *Log) Deactivate(id string) error {
	l.mu.Lock()
	var updated core.ChatMessage
	var err error = core.ErrNotFound("message", id)
	for i := range l.messages {
		if l.messages[i].ID != id {
			continue
		}
		in := l.messages[i].Interactive()
		if in == nil || !in.IsActive {
			err = core.ErrState(core.CodeInteractiveExpired, "message options were already used")
			break
		}
		in.IsActive = false
		updated = cloneMessage(l.messages[i])
		err = nil
		break
	}
	l.mu.Unlock()

	if err == nil {
		l.bus.Publish(events.NewMessageUpdatedEvent(l.sessionID, updated))
	}
	return err
}

// DeactivateAll turns off every active payload. Only the latest option set
// stays usable once a newer one is shown.
func (l *Log) DeactivateAll() {
	l.mu.Lock()
	var updated []core.ChatMessage
	for i := range l.messages {
		if in := l.messages[i].Interactive(); in != nil && in.IsActive {
			in.IsActive = false
			updated = append(updated, cloneMessage(l.messages[i]))
		}
	}
	l.mu.Unlock()

	for _, m := range updated {
		l.bus.Publish(events.NewMessageUpdatedEvent(l.sessionID, m))
	}
}

func cloneMessage(m core.ChatMessage) core.ChatMessage {
	parts := make([]core.ContentPart, len(m.Content))
	for i, p := range m.Content {
		if p.Interactive != nil {
			in := *p.Interactive
			p.Interactive = &in
		}
		if p.ImageURL != nil {
			u := *p.ImageURL
			p.ImageURL = &u
		}
		parts[i] = p
	}
	m.Content = parts
	return m
}

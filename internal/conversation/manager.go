package conversation

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

// Manager owns the live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      Config
	deps     Deps
}

// NewManager creates a manager handing cfg and deps to every session.
func NewManager(cfg Config, deps Deps) *Manager {
	return &Manager{sessions: make(map[string]*Session), cfg: cfg, deps: deps}
}

// Create starts a session for userID planning date.
func (m *Manager) Create(userID string, date time.Time) *Session {
	s := NewSession(uuid.NewString(), userID, date, m.cfg, m.deps)
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	s.Start()
	return s
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, core.ErrNotFound("session", id)
	}
	return s, nil
}

// Delete closes and forgets the session with id.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return core.ErrNotFound("session", id)
	}
	s.Close()
	return nil
}

// IDs lists the live session ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

package debug

import (
	"fmt"
	"sync"

	"github.com/dshills/dapconsole/internal/integration/debug/dap"
)

// ManagedSession is a session the SessionManager can track.
type ManagedSession interface {
	Adapter

	// OnOutput subscribes to the session's output events.
	OnOutput(fn func(dap.OutputEventBody)) (unsubscribe func())
}

type managedEntry struct {
	session     ManagedSession
	unsubscribe func()
}

// SessionManager tracks the live debug sessions and which one is active.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]managedEntry
	order    []string
	active   string

	created listeners[func(s ManagedSession, firstActive bool)]
	ended   listeners[func(s ManagedSession)]
	output  listeners[func(s ManagedSession, body dap.OutputEventBody)]
}

// NewSessionManager creates an empty manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]managedEntry),
	}
}

// Add registers a session. The first session added becomes active.
// Created listeners are told whether no other session was live.
func (m *SessionManager) Add(s ManagedSession) error {
	id := s.ID()

	m.mu.Lock()
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		return fmt.Errorf("debug session %s already registered", id)
	}
	firstActive := len(m.sessions) == 0
	m.sessions[id] = managedEntry{
		session: s,
		unsubscribe: s.OnOutput(func(body dap.OutputEventBody) {
			for _, fn := range m.output.snapshot() {
				fn(s, body)
			}
		}),
	}
	m.order = append(m.order, id)
	if m.active == "" {
		m.active = id
	}
	m.mu.Unlock()

	for _, fn := range m.created.snapshot() {
		fn(s, firstActive)
	}
	return nil
}

// Remove unregisters a session. If it was active, the most recently added
// remaining session becomes active.
func (m *SessionManager) Remove(id string) error {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	m.order = removeID(m.order, id)
	if m.active == id {
		m.active = ""
		if len(m.order) > 0 {
			m.active = m.order[len(m.order)-1]
		}
	}
	m.mu.Unlock()

	entry.unsubscribe()
	for _, fn := range m.ended.snapshot() {
		fn(entry.session)
	}
	return nil
}

// Active returns the active session, or nil if there is none.
func (m *SessionManager) Active() Adapter {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.active == "" {
		return nil
	}
	return m.sessions[m.active].session
}

// SetActive makes a registered session the active one.
func (m *SessionManager) SetActive(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	m.active = id
	return nil
}

// Get returns a registered session.
func (m *SessionManager) Get(id string) (ManagedSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[id]
	return entry.session, ok
}

// Sessions returns the registered sessions in registration order.
func (m *SessionManager) Sessions() []ManagedSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ManagedSession, len(m.order))
	for i, id := range m.order {
		out[i] = m.sessions[id].session
	}
	return out
}

// OnSessionCreated subscribes to session registration. firstActive is true
// when no other session was live.
func (m *SessionManager) OnSessionCreated(fn func(s ManagedSession, firstActive bool)) (unsubscribe func()) {
	return m.created.add(fn)
}

// OnSessionEnded subscribes to session removal.
func (m *SessionManager) OnSessionEnded(fn func(s ManagedSession)) (unsubscribe func()) {
	return m.ended.add(fn)
}

// OnOutput subscribes to output events of every registered session.
func (m *SessionManager) OnOutput(fn func(s ManagedSession, body dap.OutputEventBody)) (unsubscribe func()) {
	return m.output.add(fn)
}

package web

import (
	"errors"
	"sync"

	"github.com/JonMunkholm/userimport/internal/metrics"
	"github.com/JonMunkholm/userimport/internal/session"
)

var (
	errSessionNotFound = errors.New("session not found")
	errTooManySessions = errors.New("too many active sessions")
)

// Registry maps session ids to live sessions. It holds no session state of
// its own.
type Registry struct {
	newSession func() *session.Session
	max        int

	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewRegistry creates a registry holding at most maxActive sessions (0 = no cap).
func NewRegistry(maxActive int, newSession func() *session.Session) *Registry {
	return &Registry{
		newSession: newSession,
		max:        maxActive,
		sessions:   make(map[string]*session.Session),
	}
}

// Create starts a new session.
func (r *Registry) Create() (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.max > 0 && len(r.sessions) >= r.max {
		return nil, errTooManySessions
	}

	s := r.newSession()
	r.sessions[s.ID()] = s
	metrics.SetActiveSessions(len(r.sessions))
	return s, nil
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, errSessionNotFound
	}
	return s, nil
}

// Delete removes a session, discarding any call it has outstanding.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return errSessionNotFound
	}
	s.Reset()
	delete(r.sessions, id)
	metrics.SetActiveSessions(len(r.sessions))
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Package store holds committed user records in memory.
//
// A Memory store is the backing state of both the local backend and the gRPC
// user service. Nothing is persisted; a process restart starts empty.
package store

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/userimport/internal/core"
)

// ErrNotFound is returned by lookups that match no committed user.
var ErrNotFound = errors.New("user not found")

// Memory is an identity-assigning, in-memory user store.
// It is safe for concurrent use.
type Memory struct {
	pipeline *core.Pipeline
	now      func() time.Time
	newID    func() string

	mu      sync.RWMutex
	users   []core.User
	byID    map[string]int
	byEmail map[string]int
}

// Option configures a Memory store.
type Option func(*Memory)

// WithClock sets the source of CreatedAt timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

// WithIDGenerator replaces the uuid generator. Collisions are retried, so a
// generator may repeat itself without breaking uniqueness.
func WithIDGenerator(newID func() string) Option {
	return func(m *Memory) { m.newID = newID }
}

// NewMemory creates an empty store that commits through p.
func NewMemory(p *core.Pipeline, opts ...Option) *Memory {
	m := &Memory{
		pipeline: p,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
		byID:     make(map[string]int),
		byEmail:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Commit imports batch through the pipeline. Only a clean batch is stored;
// each record gets an id unique within the store and a CreatedAt timestamp.
// A batch with any failing record is returned as validated and stores nothing.
func (m *Memory) Commit(batch []core.User) core.ImportResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	issued := make(map[string]bool, len(batch))
	result := m.pipeline.Import(batch, func() string {
		for {
			id := m.newID()
			if _, taken := m.byID[id]; taken || issued[id] {
				continue
			}
			issued[id] = true
			return id
		}
	})
	if !result.Clean() {
		return result
	}

	createdAt := m.now().UTC()
	for i := range result.Successful {
		result.Successful[i].CreatedAt = createdAt
		u := result.Successful[i]

		m.users = append(m.users, u)
		idx := len(m.users) - 1
		m.byID[u.ID] = idx
		m.byEmail[emailKey(u.Email)] = idx
	}
	return result
}

// Validate runs the validation stage without touching stored state.
func (m *Memory) Validate(batch []core.User) core.ImportResult {
	return m.pipeline.Validate(batch)
}

// GetByID returns the user with the given id.
func (m *Memory) GetByID(id string) (core.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.byID[id]
	if !ok {
		return core.User{}, ErrNotFound
	}
	return m.users[idx], nil
}

// GetByEmail returns the most recently committed user with the given email.
// Matching ignores case and surrounding whitespace.
func (m *Memory) GetByEmail(email string) (core.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.byEmail[emailKey(email)]
	if !ok {
		return core.User{}, ErrNotFound
	}
	return m.users[idx], nil
}

// All returns every committed user in commit order.
func (m *Memory) All() []core.User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]core.User, len(m.users))
	copy(result, m.users)
	return result
}

// Len returns the number of committed users.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

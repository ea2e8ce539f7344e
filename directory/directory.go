// Package directory resolves usernames to principals. Principal management
// (registration, deletion) is owned by an external identity system; the
// grant processor only needs the username lookup defined here.
package directory

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound indicates no principal exists for the given username.
var ErrNotFound = errors.New("principal not found")

// Principal is a user known to the directory.
type Principal struct {
	ID       string
	Username string
}

// Directory looks up principals by username.
type Directory interface {
	FindByUsername(ctx context.Context, username string) (*Principal, error)
}

// Memory is an in-memory Directory for development and testing.
type Memory struct {
	mu         sync.RWMutex
	byUsername map[string]*Principal
}

// NewMemory creates an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{byUsername: make(map[string]*Principal)}
}

// Add registers a principal. An existing username is overwritten.
func (m *Memory) Add(p *Principal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUsername[p.Username] = p
}

// FindByUsername implements Directory.
func (m *Memory) FindByUsername(ctx context.Context, username string) (*Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

package directory

import (
	"context"
	"errors"
	"sync"

	"metergate.org/internal/auth"
)

// ErrNotFound is returned when an identity has no directory record.
var ErrNotFound = errors.New("directory: user not found")

// Status of a directory record.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// User is one identity's directory record. Role and tier here are the billing
// system's view; request authorization always reads the signed token claims.
type User struct {
	ID     string    `json:"id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Role   auth.Role `json:"role"`
	Tier   auth.Tier `json:"tier"`
	Status Status    `json:"status"`
}

// Directory resolves identities to user records. The persistence behind it is
// an external collaborator; only lookup is required here.
type Directory interface {
	Find(ctx context.Context, id string) (User, error)
}

// Memory is an in-process Directory for development and tests.
type Memory struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemory(users ...User) *Memory {
	m := &Memory{users: make(map[string]User, len(users))}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *Memory) Find(ctx context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) Put(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

package store

import (
	"context"
	"sync"
	"time"
)

// Memory is a Store for tests and for running without a database.
type Memory struct {
	mu       sync.RWMutex
	now      func() time.Time
	users    map[string]User
	messages []Message
	audit    []AuditEntry
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		now:   time.Now,
		users: make(map[string]User),
	}
}

func (m *Memory) TouchUser(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cur, ok := m.users[u.Identity]
	if !ok {
		cur = User{
			Identity:  u.Identity,
			Role:      RoleUser,
			CreatedAt: now,
		}
		if u.Role != "" {
			cur.Role = u.Role
		}
	}
	if u.ChatID != "" {
		cur.ChatID = u.ChatID
	}
	if u.Username != "" {
		cur.Username = u.Username
	}
	cur.LastSeenAt = now
	m.users[u.Identity] = cur
	return cur, nil
}

func (m *Memory) User(_ context.Context, identity string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[identity]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) SetRole(_ context.Context, identity string, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[identity]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	m.users[identity] = u
	return nil
}

func (m *Memory) SetOnboardingStep(_ context.Context, identity string, step int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[identity]
	if !ok {
		return ErrNotFound
	}
	u.OnboardingStep = step
	m.users[identity] = u
	return nil
}

func (m *Memory) LogMessage(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.At.IsZero() {
		msg.At = m.now()
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *Memory) LogAudit(_ context.Context, e AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.At.IsZero() {
		e.At = m.now()
	}
	m.audit = append(m.audit, e)
	return nil
}

func (m *Memory) Messages() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Message(nil), m.messages...)
}

func (m *Memory) Audit() []AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]AuditEntry(nil), m.audit...)
}

func (m *Memory) Close() error { return nil }

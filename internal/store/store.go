// Package store persists bot bookkeeping: identity mapping, roles,
// onboarding progress, the message log and the admin audit log.
// Rate limiter state is never stored here.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type Role string

const (
	RoleUser     Role = "user"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// Privileged reports whether the role bypasses admission control.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleOperator
}

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleOperator, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

type User struct {
	Identity       string
	ChatID         string
	Username       string
	Role           Role
	OnboardingStep int
	CreatedAt      time.Time
	LastSeenAt     time.Time
}

type Message struct {
	Identity  string
	ChatID    string
	Text      string
	Throttled bool
	At        time.Time
}

type AuditEntry struct {
	Actor  string // identity or admin API key ID
	Action string // e.g. "limit_reset"
	Target string
	Detail string
	At     time.Time
}

type Store interface {
	// TouchUser creates the user on first sight and refreshes chat details
	// and LastSeenAt otherwise. Role and onboarding are left untouched.
	TouchUser(ctx context.Context, u User) (User, error)
	User(ctx context.Context, identity string) (User, error)
	SetRole(ctx context.Context, identity string, role Role) error
	SetOnboardingStep(ctx context.Context, identity string, step int) error
	LogMessage(ctx context.Context, m Message) error
	LogAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

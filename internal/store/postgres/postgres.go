package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AlexKimmel/supportbot/internal/store"
)

//go:embed schema.sql
var schema string

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Open connects, retrying the ping for up to 30s while the database starts,
// and applies the schema.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("database pool init failed: %w", err)
	}

	deadline := time.Now().Add(30 * time.Second)
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = pool.Ping(pingCtx)
		cancel()
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			pool.Close()
			return nil, fmt.Errorf("database ping failed after retries: %w", err)
		}
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(1500 * time.Millisecond):
		}
	}

	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		query := strings.TrimSpace(stmt)
		if query == "" {
			continue
		}
		if _, err := s.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

const userColumns = `identity, chat_id, username, role, onboarding_step, created_at, last_seen_at`

func scanUser(row pgx.Row) (store.User, error) {
	var u store.User
	var role string
	err := row.Scan(&u.Identity, &u.ChatID, &u.Username, &role, &u.OnboardingStep, &u.CreatedAt, &u.LastSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, err
	}
	u.Role = store.Role(role)
	return u, nil
}

func (s *Store) TouchUser(ctx context.Context, u store.User) (store.User, error) {
	role := u.Role
	if role == "" {
		role = store.RoleUser
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO bot_users (identity, chat_id, username, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity) DO UPDATE SET
			chat_id = COALESCE(NULLIF(EXCLUDED.chat_id, ''), bot_users.chat_id),
			username = COALESCE(NULLIF(EXCLUDED.username, ''), bot_users.username),
			last_seen_at = now()
		RETURNING `+userColumns,
		u.Identity, u.ChatID, u.Username, string(role))
	out, err := scanUser(row)
	if err != nil {
		return store.User{}, fmt.Errorf("touch user %q: %w", u.Identity, err)
	}
	return out, nil
}

func (s *Store) User(ctx context.Context, identity string) (store.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM bot_users WHERE identity = $1`, identity)
	return scanUser(row)
}

func (s *Store) SetRole(ctx context.Context, identity string, role store.Role) error {
	tag, err := s.pool.Exec(ctx, `UPDATE bot_users SET role = $2 WHERE identity = $1`, identity, string(role))
	if err != nil {
		return fmt.Errorf("set role for %q: %w", identity, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetOnboardingStep(ctx context.Context, identity string, step int) error {
	tag, err := s.pool.Exec(ctx, `UPDATE bot_users SET onboarding_step = $2 WHERE identity = $1`, identity, step)
	if err != nil {
		return fmt.Errorf("set onboarding step for %q: %w", identity, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) LogMessage(ctx context.Context, m store.Message) error {
	at := m.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bot_messages (identity, chat_id, body, throttled, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.Identity, m.ChatID, m.Text, m.Throttled, at)
	if err != nil {
		return fmt.Errorf("log message: %w", err)
	}
	return nil
}

func (s *Store) LogAudit(ctx context.Context, e store.AuditEntry) error {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bot_audit_log (actor, action, target, detail, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.Actor, e.Action, e.Target, e.Detail, at)
	if err != nil {
		return fmt.Errorf("log audit: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

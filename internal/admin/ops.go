package admin

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/AlexKimmel/supportbot/internal/ratelimit"
	"github.com/AlexKimmel/supportbot/internal/store"
)

const (
	ActionReset   = "limit_reset"
	ActionUnblock = "limit_unblock"
)

// Ops are the operator actions on the admission controller. Every mutation
// is written to the audit log; audit failures are logged, not returned.
type Ops struct {
	lim   ratelimit.Limiter
	audit store.Store
	log   zerolog.Logger
}

func NewOps(lim ratelimit.Limiter, audit store.Store, log zerolog.Logger) *Ops {
	return &Ops{lim: lim, audit: audit, log: log}
}

func (o *Ops) Status(identity string) (ratelimit.Status, error) {
	return o.lim.Status(identity)
}

// Reset forgets the identity's window and block.
func (o *Ops) Reset(ctx context.Context, actor, identity string) error {
	before, err := o.lim.Status(identity)
	if err != nil {
		return err
	}
	if err := o.lim.Reset(identity); err != nil {
		return err
	}
	o.record(ctx, actor, ActionReset, identity, before)
	return nil
}

// Unblock lifts only the block; the current window keeps counting.
func (o *Ops) Unblock(ctx context.Context, actor, identity string) error {
	before, err := o.lim.Status(identity)
	if err != nil {
		return err
	}
	if err := o.lim.Unblock(identity); err != nil {
		return err
	}
	o.record(ctx, actor, ActionUnblock, identity, before)
	return nil
}

func (o *Ops) record(ctx context.Context, actor, action, identity string, before ratelimit.Status) {
	o.log.Info().
		Str("actor", actor).
		Str("action", action).
		Str("identity", identity).
		Bool("was_blocked", before.Blocked).
		Int("count", before.Count).
		Msg("limiter admin action")

	if o.audit == nil {
		return
	}
	err := o.audit.LogAudit(ctx, store.AuditEntry{
		Actor:  actor,
		Action: action,
		Target: identity,
		Detail: fmt.Sprintf("blocked=%t count=%d", before.Blocked, before.Count),
	})
	if err != nil {
		o.log.Error().Err(err).Str("action", action).Msg("audit write failed")
	}
}

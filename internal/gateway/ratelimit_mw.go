package gateway

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/AlexKimmel/supportbot/internal/chat"
	"github.com/AlexKimmel/supportbot/internal/ratelimit"
	"github.com/AlexKimmel/supportbot/internal/routing"
)

// Privileged reports identities that skip admission control.
type Privileged interface {
	IsPrivileged(ctx context.Context, identity string) bool
}

// Notifier is told about every denied update. dec.Tripped marks the one
// that started the block.
type Notifier interface {
	Throttled(ctx context.Context, u *chat.Update, dec ratelimit.Decision) error
}

type LimitHooks struct {
	OnDecision func(ctx context.Context, u *chat.Update, dec ratelimit.Decision)
	OnLimited  func(routeID string, tripped bool)
	OnError    func(routeID string)
}

// RateLimit admits each update through lim keyed by the sender's identity.
// A denial stops the update and sends a notice; it is not an error.
func RateLimit(
	lim ratelimit.Limiter,
	policy ratelimit.Policy,
	priv Privileged,
	notify Notifier,
	hooks LimitHooks,
) Middleware {
	return func(next chat.Handler) chat.Handler {
		return chat.HandlerFunc(func(ctx context.Context, u *chat.Update) error {
			if priv != nil && priv.IsPrivileged(ctx, u.Identity) {
				return next.Handle(ctx, u)
			}

			routeID := routing.RouteID(ctx)
			log := zerolog.Ctx(ctx)

			dec, err := lim.Allow(u.Identity, policy)
			if err != nil {
				if hooks.OnError != nil {
					hooks.OnError(routeID)
				}
				return fmt.Errorf("admission for %q: %w", u.Identity, err)
			}
			if hooks.OnDecision != nil {
				hooks.OnDecision(ctx, u, dec)
			}

			if dec.Allowed {
				return next.Handle(ctx, u)
			}

			if hooks.OnLimited != nil {
				hooks.OnLimited(routeID, dec.Tripped)
			}
			if dec.Tripped {
				log.Warn().
					Str("identity", u.Identity).
					Int("count", dec.Status.Count).
					Int("limit", dec.Status.MaxRequests).
					Time("unblock_at", dec.Status.UnblockAt).
					Msg("identity blocked")
			}
			if notify != nil {
				if err := notify.Throttled(ctx, u, dec); err != nil {
					log.Error().Err(err).Str("identity", u.Identity).Msg("throttle notice failed")
				}
			}
			return nil
		})
	}
}

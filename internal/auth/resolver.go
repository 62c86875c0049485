package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/AlexKimmel/supportbot/internal/store"
)

type UserLookup interface {
	User(ctx context.Context, identity string) (store.User, error)
}

// Resolver decides which chat identities are privileged: the configured
// admin identities, then anyone whose stored role is admin or operator.
type Resolver struct {
	admins map[string]struct{}
	users  UserLookup
	log    zerolog.Logger
}

func NewResolver(admins []string, users UserLookup, log zerolog.Logger) *Resolver {
	set := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		if a != "" {
			set[a] = struct{}{}
		}
	}
	return &Resolver{admins: set, users: users, log: log}
}

// IsPrivileged fails closed: lookup errors mean not privileged.
func (r *Resolver) IsPrivileged(ctx context.Context, identity string) bool {
	if identity == "" {
		return false
	}
	if _, ok := r.admins[identity]; ok {
		return true
	}
	if r.users == nil {
		return false
	}
	u, err := r.users.User(ctx, identity)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.log.Error().Err(err).Str("identity", identity).Msg("role lookup failed")
		}
		return false
	}
	return u.Role.Privileged()
}

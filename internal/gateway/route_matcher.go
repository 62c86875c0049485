package gateway

import (
	"context"
	"fmt"

	"github.com/AlexKimmel/supportbot/internal/chat"
	"github.com/AlexKimmel/supportbot/internal/routing"
)

// RouteMatcher stores the route for the update's command in ctx. Updates
// without a matching route are dropped.
func RouteMatcher(rr *routing.Router) Middleware {
	return func(next chat.Handler) chat.Handler {
		return chat.HandlerFunc(func(ctx context.Context, u *chat.Update) error {
			rt, ok := rr.Match(u.Text)
			if !ok {
				return nil
			}
			return next.Handle(routing.WithRoute(ctx, rt), u)
		})
	}
}

// Dispatch runs the route selected by RouteMatcher.
func Dispatch() chat.Handler {
	return chat.HandlerFunc(func(ctx context.Context, u *chat.Update) error {
		rt, ok := routing.RouteFrom(ctx)
		if !ok || rt.Handler == nil {
			return fmt.Errorf("dispatch: no route in context for update %s", u.ID)
		}
		return rt.Handler.Handle(ctx, u)
	})
}

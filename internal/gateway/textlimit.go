package gateway

import (
	"context"

	"github.com/AlexKimmel/supportbot/internal/chat"
)

// TextLimit truncates inbound text to maxRunes runes.
func TextLimit(maxRunes int) Middleware {
	return func(next chat.Handler) chat.Handler {
		return chat.HandlerFunc(func(ctx context.Context, u *chat.Update) error {
			if maxRunes > 0 && len(u.Text) > maxRunes {
				if r := []rune(u.Text); len(r) > maxRunes {
					u.Text = string(r[:maxRunes])
				}
			}
			return next.Handle(ctx, u)
		})
	}
}

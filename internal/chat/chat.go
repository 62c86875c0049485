package chat

import (
	"context"
	"time"
)

// Update is one inbound event from the chat transport.
type Update struct {
	ID         string    `json:"update_id"`
	Identity   string    `json:"identity"` // stable per counterpart, case-sensitive
	ChatID     string    `json:"chat_id"`
	Username   string    `json:"username,omitempty"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"-"`
}

// Handler processes an update. A returned error is a processing failure,
// never a throttling decision.
type Handler interface {
	Handle(ctx context.Context, u *Update) error
}

type HandlerFunc func(ctx context.Context, u *Update) error

func (f HandlerFunc) Handle(ctx context.Context, u *Update) error { return f(ctx, u) }

// Sender delivers outgoing text to a chat.
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

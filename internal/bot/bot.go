// Package bot implements the support bot's commands and the notice sent to
// throttled users.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/AlexKimmel/supportbot/internal/admin"
	"github.com/AlexKimmel/supportbot/internal/chat"
	"github.com/AlexKimmel/supportbot/internal/gateway"
	"github.com/AlexKimmel/supportbot/internal/ratelimit"
	"github.com/AlexKimmel/supportbot/internal/routing"
	"github.com/AlexKimmel/supportbot/internal/stats"
	"github.com/AlexKimmel/supportbot/internal/store"
)

const (
	welcomeText = "Hi! This is customer support. Describe your problem and an operator will answer here. Send /help for the list of commands."
	ackText     = "Thanks, your message has been passed to support. An operator will reply soon."
	deniedText  = "This command is only available to operators."
)

type Bot struct {
	ops    *admin.Ops
	store  store.Store
	send   chat.Sender
	priv   gateway.Privileged
	stats  stats.Recorder
	router *routing.Router
}

func New(ops *admin.Ops, st store.Store, send chat.Sender, priv gateway.Privileged, rec stats.Recorder) *Bot {
	if rec == nil {
		rec = stats.Nop{}
	}
	b := &Bot{ops: ops, store: st, send: send, priv: priv, stats: rec}
	b.router = b.routes()
	return b
}

// Router returns the command table. Admin routes check privilege themselves.
func (b *Bot) Router() *routing.Router { return b.router }

func (b *Bot) routes() *routing.Router {
	rr := routing.New()
	rr.Add(&routing.Route{ID: "start", Command: "/start", Help: "start talking to support", Handler: chat.HandlerFunc(b.start)})
	rr.Add(&routing.Route{ID: "help", Command: "/help", Help: "show this list", Handler: chat.HandlerFunc(b.help)})
	rr.Add(&routing.Route{ID: "limits", Command: "/limits", Help: "show how many messages you have left", Handler: chat.HandlerFunc(b.limits)})
	rr.Add(&routing.Route{ID: "limit_status", Command: "/limit_status", Admin: true, Help: "<identity> show an identity's admission state", Handler: b.adminOnly(b.limitStatus)})
	rr.Add(&routing.Route{ID: "limit_reset", Command: "/limit_reset", Admin: true, Help: "<identity> forget an identity's window and block", Handler: b.adminOnly(b.limitReset)})
	rr.Add(&routing.Route{ID: "limit_unblock", Command: "/limit_unblock", Admin: true, Help: "<identity> lift an identity's block", Handler: b.adminOnly(b.limitUnblock)})
	rr.Fallback(&routing.Route{ID: "message", Handler: chat.HandlerFunc(b.message)})
	return rr
}

func (b *Bot) reply(ctx context.Context, u *chat.Update, text string) error {
	if b.send == nil {
		zerolog.Ctx(ctx).Debug().Str("chat_id", u.ChatID).Msg("no sender configured, reply dropped")
		return nil
	}
	if err := b.send.Send(ctx, u.ChatID, text); err != nil {
		return fmt.Errorf("reply to %s: %w", u.ChatID, err)
	}
	return nil
}

func (b *Bot) privileged(ctx context.Context, identity string) bool {
	return b.priv != nil && b.priv.IsPrivileged(ctx, identity)
}

// Track refreshes the sender's identity mapping for every admitted update.
// Store failures are logged and do not stop the update.
func (b *Bot) Track() gateway.Middleware {
	return func(next chat.Handler) chat.Handler {
		return chat.HandlerFunc(func(ctx context.Context, u *chat.Update) error {
			_, err := b.store.TouchUser(ctx, store.User{
				Identity: u.Identity,
				ChatID:   u.ChatID,
				Username: u.Username,
			})
			if err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("touch user failed")
			}
			return next.Handle(ctx, u)
		})
	}
}

func (b *Bot) start(ctx context.Context, u *chat.Update) error {
	usr, err := b.store.TouchUser(ctx, store.User{Identity: u.Identity, ChatID: u.ChatID, Username: u.Username})
	if err != nil {
		return fmt.Errorf("register %s: %w", u.Identity, err)
	}
	if usr.OnboardingStep == 0 {
		if err := b.store.SetOnboardingStep(ctx, u.Identity, 1); err != nil {
			return fmt.Errorf("onboard %s: %w", u.Identity, err)
		}
	}
	return b.reply(ctx, u, welcomeText)
}

func (b *Bot) help(ctx context.Context, u *chat.Update) error {
	isAdmin := b.privileged(ctx, u.Identity)

	var sb strings.Builder
	sb.WriteString("Commands:\n")
	for _, rt := range b.router.Routes() {
		if rt.Admin && !isAdmin {
			continue
		}
		fmt.Fprintf(&sb, "%s %s\n", rt.Command, rt.Help)
	}
	sb.WriteString("Anything else you write goes to support.")
	return b.reply(ctx, u, sb.String())
}

func (b *Bot) limits(ctx context.Context, u *chat.Update) error {
	if b.privileged(ctx, u.Identity) {
		return b.reply(ctx, u, "You are not rate limited.")
	}
	st, err := b.ops.Status(u.Identity)
	if err != nil {
		return err
	}
	return b.reply(ctx, u, FormatStatus(st))
}

func (b *Bot) message(ctx context.Context, u *chat.Update) error {
	if strings.TrimSpace(u.Text) == "" {
		return nil
	}
	err := b.store.LogMessage(ctx, store.Message{
		Identity: u.Identity,
		ChatID:   u.ChatID,
		Text:     u.Text,
		At:       u.ReceivedAt,
	})
	if err != nil {
		return fmt.Errorf("log message: %w", err)
	}
	return b.reply(ctx, u, ackText)
}

type adminFunc func(ctx context.Context, u *chat.Update, target string) error

func (b *Bot) adminOnly(fn adminFunc) chat.Handler {
	return chat.HandlerFunc(func(ctx context.Context, u *chat.Update) error {
		if !b.privileged(ctx, u.Identity) {
			zerolog.Ctx(ctx).Warn().Str("route", routing.RouteID(ctx)).Msg("admin command refused")
			return b.reply(ctx, u, deniedText)
		}
		cmd, args := routing.SplitCommand(u.Text)
		if len(args) != 1 {
			return b.reply(ctx, u, fmt.Sprintf("Usage: %s <identity>", cmd))
		}
		return fn(ctx, u, args[0])
	})
}

func actor(u *chat.Update) string { return "chat:" + u.Identity }

func (b *Bot) limitStatus(ctx context.Context, u *chat.Update, target string) error {
	st, err := b.ops.Status(target)
	if err != nil {
		return err
	}
	return b.reply(ctx, u, FormatAdminStatus(st))
}

func (b *Bot) limitReset(ctx context.Context, u *chat.Update, target string) error {
	if err := b.ops.Reset(ctx, actor(u), target); err != nil {
		return err
	}
	return b.reply(ctx, u, fmt.Sprintf("Limits for %s were reset.", target))
}

func (b *Bot) limitUnblock(ctx context.Context, u *chat.Update, target string) error {
	if err := b.ops.Unblock(ctx, actor(u), target); err != nil {
		return err
	}
	return b.reply(ctx, u, fmt.Sprintf("%s was unblocked.", target))
}

// Record feeds admission decisions to the stats recorder. It is meant for
// gateway.LimitHooks.OnDecision.
func (b *Bot) Record(ctx context.Context, u *chat.Update, dec ratelimit.Decision) {
	out := stats.Allowed
	switch {
	case dec.Tripped:
		out = stats.Tripped
	case !dec.Allowed:
		out = stats.Denied
	}
	err := b.stats.Record(ctx, stats.Event{
		Identity: u.Identity,
		Route:    routing.RouteID(ctx),
		Outcome:  out,
		At:       u.ReceivedAt,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("stats record failed")
	}
}

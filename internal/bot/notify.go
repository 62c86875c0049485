package bot

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/AlexKimmel/supportbot/internal/chat"
	"github.com/AlexKimmel/supportbot/internal/ratelimit"
	"github.com/AlexKimmel/supportbot/internal/store"
)

// Throttled logs every refused message. The user is told when they may write
// again once per block, on the message that started it.
func (b *Bot) Throttled(ctx context.Context, u *chat.Update, dec ratelimit.Decision) error {
	err := b.store.LogMessage(ctx, store.Message{
		Identity:  u.Identity,
		ChatID:    u.ChatID,
		Text:      u.Text,
		Throttled: true,
		At:        u.ReceivedAt,
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("log throttled message failed")
	}
	if !dec.Tripped {
		return nil
	}
	return b.reply(ctx, u, FormatNotice(dec.Status))
}

// FormatNotice is the text a throttled user receives.
func FormatNotice(st ratelimit.Status) string {
	return fmt.Sprintf(
		"You are sending messages too fast (%d of %d allowed). Please try again in %s.",
		st.Count, st.MaxRequests, formatWait(st.RetryAfterSeconds()),
	)
}

func FormatStatus(st ratelimit.Status) string {
	if st.Blocked {
		return FormatNotice(st)
	}
	left := max(st.MaxRequests-st.Count, 0)
	if st.MaxRequests == 0 {
		return "You have no active limit window."
	}
	return fmt.Sprintf("You have used %d of %d messages in the current window, %d left.", st.Count, st.MaxRequests, left)
}

func FormatAdminStatus(st ratelimit.Status) string {
	if st.Blocked {
		return fmt.Sprintf("%s: blocked, count %d/%d, unblocks at %s (in %s)",
			st.Identity, st.Count, st.MaxRequests,
			st.UnblockAt.UTC().Format("2006-01-02 15:04:05Z"), formatWait(st.RetryAfterSeconds()))
	}
	if st.MaxRequests == 0 {
		return fmt.Sprintf("%s: no record", st.Identity)
	}
	return fmt.Sprintf("%s: count %d/%d, not blocked", st.Identity, st.Count, st.MaxRequests)
}

func formatWait(sec int) string {
	switch {
	case sec <= 1:
		return "1 second"
	case sec < 60:
		return fmt.Sprintf("%d seconds", sec)
	case sec%60 == 0:
		return fmt.Sprintf("%d min", sec/60)
	default:
		return fmt.Sprintf("%d min %d s", sec/60, sec%60)
	}
}

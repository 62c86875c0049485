package obs

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/AlexKimmel/supportbot/internal/chat"
	"github.com/AlexKimmel/supportbot/internal/gateway"
	"github.com/AlexKimmel/supportbot/internal/routing"
)

// SetupLogger returns a JSON logger, or a console logger when format is
// "console". Unknown levels fall back to info.
func SetupLogger(level, format string) zerolog.Logger {
	return newLogger(os.Stdout, level, format)
}

func newLogger(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// Logger returns a middleware that logs per-request with duration and status.
func Logger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return hlog.NewHandler(logger)(
			hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
				hlog.FromRequest(r).Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("remote", r.RemoteAddr).
					Int("status", status).
					Int("size", size).
					Dur("dur", duration).
					Msg("req")
			})(
				hlog.UserAgentHandler("ua")(
					hlog.RequestIDHandler("req_id", "X-Request-ID")(next),
				),
			),
		)
	}
}

// UpdateLogger puts a logger carrying the update's identity into ctx and
// logs each update once it has been handled. It falls back to base when
// ctx carries no logger.
func UpdateLogger(base zerolog.Logger) gateway.Middleware {
	return func(next chat.Handler) chat.Handler {
		return chat.HandlerFunc(func(ctx context.Context, u *chat.Update) error {
			parent := zerolog.Ctx(ctx)
			if parent.GetLevel() == zerolog.Disabled {
				parent = &base
			}
			l := parent.With().Str("identity", u.Identity).Str("update_id", u.ID).Logger()
			ctx = l.WithContext(ctx)

			start := time.Now()
			err := next.Handle(ctx, u)

			ev := l.Debug()
			if err != nil {
				ev = l.Error().Err(err)
			}
			ev.Str("route", routing.RouteID(ctx)).Dur("dur", time.Since(start)).Msg("update")
			return err
		})
	}
}

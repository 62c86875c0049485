package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexKimmel/supportbot/internal/chat"
	"github.com/AlexKimmel/supportbot/internal/ratelimit"
	"github.com/AlexKimmel/supportbot/internal/ratelimit/memory"
	"github.com/AlexKimmel/supportbot/internal/routing"
)

type staticPrivileged map[string]bool

func (s staticPrivileged) IsPrivileged(_ context.Context, id string) bool { return s[id] }

type recordingNotifier struct {
	mu        sync.Mutex
	decisions []ratelimit.Decision
}

func (n *recordingNotifier) Throttled(_ context.Context, _ *chat.Update, dec ratelimit.Decision) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.decisions = append(n.decisions, dec)
	return nil
}

type counter struct {
	mu sync.Mutex
	n  map[string]int
}

func (c *counter) handler() chat.Handler {
	return chat.HandlerFunc(func(_ context.Context, u *chat.Update) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.n == nil {
			c.n = map[string]int{}
		}
		c.n[u.Identity]++
		return nil
	})
}

var policy = ratelimit.Policy{MaxRequests: 2, Window: time.Minute, BlockDuration: time.Minute}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next chat.Handler) chat.Handler {
			return chat.HandlerFunc(func(ctx context.Context, u *chat.Update) error {
				order = append(order, name)
				return next.Handle(ctx, u)
			})
		}
	}
	h := Chain(chat.HandlerFunc(func(context.Context, *chat.Update) error {
		order = append(order, "handler")
		return nil
	}), mw("a"), mw("b"))

	require.NoError(t, h.Handle(context.Background(), &chat.Update{}))
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestRateLimit_DeniesAndNotifies(t *testing.T) {
	lim := memory.New()
	defer lim.Close()
	notifier := &recordingNotifier{}
	var c counter

	var limited, tripped int
	h := Chain(c.handler(), RateLimit(lim, policy, staticPrivileged{}, notifier, LimitHooks{
		OnLimited: func(_ string, trip bool) {
			limited++
			if trip {
				tripped++
			}
		},
	}))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, h.Handle(ctx, &chat.Update{Identity: "u1"}), "denial is not an error")
	}

	assert.Equal(t, 2, c.n["u1"])
	assert.Equal(t, 3, limited)
	assert.Equal(t, 1, tripped)
	require.Len(t, notifier.decisions, 3)
	assert.True(t, notifier.decisions[0].Tripped)
	assert.True(t, notifier.decisions[0].Status.Blocked)
	assert.Equal(t, 2, notifier.decisions[0].Status.MaxRequests)
	assert.False(t, notifier.decisions[1].Tripped)
	assert.False(t, notifier.decisions[2].Tripped)
}

func TestRateLimit_PrivilegedBypass(t *testing.T) {
	lim := memory.New()
	defer lim.Close()
	var c counter

	h := Chain(c.handler(), RateLimit(lim, policy, staticPrivileged{"admin": true}, nil, LimitHooks{}))
	for i := 0; i < 10; i++ {
		require.NoError(t, h.Handle(context.Background(), &chat.Update{Identity: "admin"}))
	}

	assert.Equal(t, 10, c.n["admin"])
	assert.Equal(t, 0, lim.Len(), "privileged identities never reach the limiter")
}

func TestRateLimit_LimiterErrorsSurface(t *testing.T) {
	lim := memory.New()
	defer lim.Close()
	var errs int

	h := Chain(chat.HandlerFunc(func(context.Context, *chat.Update) error { return nil }),
		RateLimit(lim, ratelimit.Policy{}, nil, nil, LimitHooks{OnError: func(string) { errs++ }}))

	err := h.Handle(context.Background(), &chat.Update{Identity: "u1"})
	assert.ErrorIs(t, err, ratelimit.ErrInvalidPolicy)
	assert.Equal(t, 1, errs)

	err = Chain(chat.HandlerFunc(func(context.Context, *chat.Update) error { return nil }),
		RateLimit(lim, policy, nil, nil, LimitHooks{})).Handle(context.Background(), &chat.Update{})
	assert.ErrorIs(t, err, ratelimit.ErrEmptyIdentity)
}

func TestTextLimit(t *testing.T) {
	var got string
	h := Chain(chat.HandlerFunc(func(_ context.Context, u *chat.Update) error {
		got = u.Text
		return nil
	}), TextLimit(3))

	require.NoError(t, h.Handle(context.Background(), &chat.Update{Text: "héllo"}))
	assert.Equal(t, "hél", got)

	require.NoError(t, h.Handle(context.Background(), &chat.Update{Text: "hé"}))
	assert.Equal(t, "hé", got)
}

func TestRouteMatcherAndDispatch(t *testing.T) {
	rr := routing.New()
	var hit string
	rr.Add(&routing.Route{ID: "help", Command: "/help", Handler: chat.HandlerFunc(func(ctx context.Context, _ *chat.Update) error {
		hit = routing.RouteID(ctx)
		return nil
	})})

	h := Chain(Dispatch(), RouteMatcher(rr))
	require.NoError(t, h.Handle(context.Background(), &chat.Update{Text: "/help"}))
	assert.Equal(t, "help", hit)

	hit = ""
	require.NoError(t, h.Handle(context.Background(), &chat.Update{Text: "no route"}))
	assert.Empty(t, hit)

	assert.Error(t, Dispatch().Handle(context.Background(), &chat.Update{ID: "1"}))
}

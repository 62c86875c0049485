package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Match(t *testing.T) {
	r := New()
	r.Add(&Route{ID: "start", Command: "/start"})
	r.Add(&Route{ID: "limits", Command: "/Limits"})

	rt, ok := r.Match("/start")
	require.True(t, ok)
	assert.Equal(t, "start", rt.ID)

	rt, ok = r.Match("  /LIMITS@support_bot extra args")
	require.True(t, ok)
	assert.Equal(t, "limits", rt.ID)

	_, ok = r.Match("hello there")
	assert.False(t, ok, "no fallback configured")

	r.Fallback(&Route{ID: "message"})
	rt, ok = r.Match("hello there")
	require.True(t, ok)
	assert.Equal(t, "message", rt.ID)

	rt, ok = r.Match("/unknown")
	require.True(t, ok)
	assert.Equal(t, "message", rt.ID)
}

func TestSplitCommand(t *testing.T) {
	cmd, args := SplitCommand("/limit_reset@bot  user-7 now")
	assert.Equal(t, "/limit_reset", cmd)
	assert.Equal(t, []string{"user-7", "now"}, args)

	cmd, args = SplitCommand("just text")
	assert.Empty(t, cmd)
	assert.Equal(t, []string{"just", "text"}, args)

	cmd, args = SplitCommand("")
	assert.Empty(t, cmd)
	assert.Empty(t, args)
}

func TestRouteContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "unknown", RouteID(ctx))

	ctx = WithRoute(ctx, &Route{ID: "help"})
	rt, ok := RouteFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "help", rt.ID)
	assert.Equal(t, "help", RouteID(ctx))
}

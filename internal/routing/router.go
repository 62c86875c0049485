package routing

import (
	"context"
	"strings"

	"github.com/AlexKimmel/supportbot/internal/chat"
)

type Route struct {
	ID      string
	Command string // e.g. "/start"; empty for the fallback route
	Admin   bool   // only privileged identities may run it
	Help    string
	Handler chat.Handler
}

type Router struct {
	routes   []*Route
	fallback *Route
}

func New() *Router {
	return &Router{}
}

func (r *Router) Add(rt *Route) {
	rt.Command = strings.ToLower(strings.TrimSpace(rt.Command))
	r.routes = append(r.routes, rt)
}

// Fallback sets the route used for text that is not a known command.
func (r *Router) Fallback(rt *Route) {
	r.fallback = rt
}

func (r *Router) Routes() []*Route {
	return r.routes
}

// Match resolves the command in text. "/Limits@support_bot args" matches
// "/limits".
func (r *Router) Match(text string) (*Route, bool) {
	cmd, _ := SplitCommand(text)
	if cmd != "" {
		for _, rt := range r.routes {
			if rt.Command == cmd {
				return rt, true
			}
		}
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

// SplitCommand returns the lower-cased command (without any @botname
// suffix) and the remaining arguments. Plain text yields an empty command.
func SplitCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", fields
	}
	cmd := fields[0]
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), fields[1:]
}

// --- context helpers ---
type ctxKey int

const keyRoute ctxKey = 0

func WithRoute(ctx context.Context, rt *Route) context.Context {
	return context.WithValue(ctx, keyRoute, rt)
}

func RouteFrom(ctx context.Context) (*Route, bool) {
	v := ctx.Value(keyRoute)
	if v == nil {
		return nil, false
	}
	rt, ok := v.(*Route)
	return rt, ok
}

// RouteID returns the matched route ID or "unknown", for labels and logs.
func RouteID(ctx context.Context) string {
	if rt, ok := RouteFrom(ctx); ok && rt != nil && rt.ID != "" {
		return rt.ID
	}
	return "unknown"
}

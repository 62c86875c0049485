package gateway

import "github.com/AlexKimmel/supportbot/internal/chat"

type Middleware func(next chat.Handler) chat.Handler

// Chain wraps h so that the first middleware runs first.
func Chain(h chat.Handler, mws ...Middleware) chat.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

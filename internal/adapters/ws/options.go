package ws

import (
	"net/http"

	"github.com/oculab/gazelink/pkg/logger"
)

// Option applies a configuration option to the Gateway.
type Option func(*Gateway)

// WithSendBuffer sets the per-client outbound queue depth. A client
// whose queue fills is disconnected.
func WithSendBuffer(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.sendBuffer = n
		}
	}
}

// WithSnapshot sets a producer of frames pushed to every client on
// connect, before any broadcast reaches it.
func WithSnapshot(fn func() []Frame) Option {
	return func(g *Gateway) {
		g.snapshot = fn
	}
}

// WithCheckOrigin sets the origin policy for the upgrade handshake.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(g *Gateway) {
		if fn != nil {
			g.upgrader.CheckOrigin = fn
		}
	}
}

// WithLogger overrides the gateway logger.
func WithLogger(log logger.Logger) Option {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

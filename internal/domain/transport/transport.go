// Package transport defines how framed messages reach the dispatcher.
package transport

import (
	"context"
)

// MessageHandler processes one raw inbound message and returns the raw
// response. A nil return means nothing is written back, as for notifications.
type MessageHandler func(ctx context.Context, message []byte) []byte

// Transport defines the interface for message transports
type Transport interface {
	// Start serves messages with the given handler until ctx is done or the
	// input is exhausted
	Start(ctx context.Context, handler MessageHandler) error

	// Close closes the transport
	Close() error
}

// Chain wraps handler with the given middleware, outermost first.
func Chain(handler MessageHandler, middleware ...func(MessageHandler) MessageHandler) MessageHandler {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

// Package server provides the stdio and HTTP transports and the middleware
// wrapped around the message handler.
package server

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain/transport"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
)

// Transport kinds
const (
	KindStdio = "stdio"
	KindHTTP  = "http"
)

// Options selects and configures a transport.
type Options struct {
	Kind        string
	HTTPAddr    string
	ContextFunc ContextFunc
	Logger      *logging.Logger
}

// NewTransport creates the transport named by opts.Kind.
func NewTransport(opts Options) (transport.Transport, error) {
	switch opts.Kind {
	case KindStdio, "":
		return NewStdioTransport(WithContextFunc(opts.ContextFunc), WithStdioLogger(opts.Logger)), nil
	case KindHTTP:
		return NewHTTPTransport(opts.HTTPAddr, WithHTTPContextFunc(opts.ContextFunc), WithHTTPLogger(opts.Logger)), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedTransport, "%q", opts.Kind)
	}
}

// LoggingMiddleware logs every message with its size and handling time.
func LoggingMiddleware(logger *logging.Logger) func(transport.MessageHandler) transport.MessageHandler {
	logger = logging.OrDefault(logger).Named("transport")
	return func(next transport.MessageHandler) transport.MessageHandler {
		return func(ctx context.Context, msg []byte) []byte {
			start := time.Now()
			reply := next(ctx, msg)
			logger.Debug("message handled", logging.Fields{
				"requestBytes":  len(msg),
				"responseBytes": len(reply),
				"duration":      time.Since(start),
			})
			return reply
		}
	}
}

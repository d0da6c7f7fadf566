package server

import "github.com/pkg/errors"

// ErrUnsupportedTransport is returned by NewTransport for an unknown kind.
var ErrUnsupportedTransport = errors.New("unsupported transport")

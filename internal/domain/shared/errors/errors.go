// Package errors defines the error taxonomy that crosses the dispatch
// boundary and how each kind is classified.
package errors

import (
	"github.com/pkg/errors"
)

// ErrorType defines the type of error
type ErrorType string

const (
	// ErrorTypeProtocol indicates a malformed request, an unknown method or
	// tool, or any other client-attributable failure
	ErrorTypeProtocol ErrorType = "protocol"
	// ErrorTypeToolExecution indicates the tool or its upstream call failed
	ErrorTypeToolExecution ErrorType = "tool_execution"
	// ErrorTypeNotFound indicates a registry lookup miss
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeInternal indicates anything else
	ErrorTypeInternal ErrorType = "internal"
)

// NotFound is implemented by registry lookup errors.
type NotFound interface {
	error
	NotFound() bool
}

// TypeOf classifies err. Tool execution failures take precedence over
// protocol errors found deeper in the chain.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var execErr *ToolExecutionError
	if errors.As(err, &execErr) {
		return ErrorTypeToolExecution
	}
	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		return ErrorTypeProtocol
	}
	var nf NotFound
	if errors.As(err, &nf) && nf.NotFound() {
		return ErrorTypeNotFound
	}
	return ErrorTypeInternal
}

// IsProtocolError checks if an error chain contains a ProtocolError
func IsProtocolError(err error) bool {
	var protoErr *ProtocolError
	return errors.As(err, &protoErr)
}

// IsToolExecutionError checks if an error chain contains a ToolExecutionError
func IsToolExecutionError(err error) bool {
	var execErr *ToolExecutionError
	return errors.As(err, &execErr)
}

// IsNotFound checks if an error chain contains a registry not-found error
func IsNotFound(err error) bool {
	var nf NotFound
	return errors.As(err, &nf) && nf.NotFound()
}

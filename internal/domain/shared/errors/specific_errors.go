package errors

import "fmt"

// Protocol error messages with fixed wording
const (
	MsgInvalidJSON             = "Invalid JSON"
	MsgInvalidRequestStructure = "Invalid request structure"
	MsgToolNotFound            = "Tool not found"
)

// ProtocolError indicates a client-attributable failure
type ProtocolError struct {
	Message string
	Details interface{}
}

// Error returns the error message
func (e *ProtocolError) Error() string {
	return e.Message
}

// NewProtocolError creates a new protocol error
func NewProtocolError(message string, details interface{}) *ProtocolError {
	return &ProtocolError{
		Message: message,
		Details: details,
	}
}

// ToolExecutionError indicates a tool execution failed
type ToolExecutionError struct {
	Name  string
	Cause error
}

// NewToolExecutionError wraps cause as a failure of the named tool
func NewToolExecutionError(name string, cause error) *ToolExecutionError {
	return &ToolExecutionError{Name: name, Cause: cause}
}

// Error returns the error message
func (e *ToolExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Tool execution failed: %s: %v", e.Name, e.Cause)
	}
	return fmt.Sprintf("Tool execution failed: %s", e.Name)
}

// Unwrap returns the underlying cause
func (e *ToolExecutionError) Unwrap() error {
	return e.Cause
}

// Details returns the structured data carried on the wire
func (e *ToolExecutionError) Details() map[string]interface{} {
	details := map[string]interface{}{"tool": e.Name}
	if e.Cause != nil {
		details["cause"] = e.Cause.Error()
	}
	return details
}

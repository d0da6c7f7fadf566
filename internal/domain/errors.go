package domain

import "fmt"

// Error represents a domain error with an associated code.
type Error struct {
	Message string
	Code    int
}

// Error returns the error message.
func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new domain error with the given message and code.
func NewError(message string, code int) *Error {
	return &Error{
		Message: message,
		Code:    code,
	}
}

// ResourceNotFoundError indicates that a requested resource was not found.
// Exactly one of URI and Name is set.
type ResourceNotFoundError struct {
	URI  string
	Name string
	Err  *Error
}

// Error returns the error message.
func (e *ResourceNotFoundError) Error() string {
	return e.Err.Error()
}

// NotFound marks the error as a lookup miss.
func (e *ResourceNotFoundError) NotFound() bool { return true }

// NewResourceNotFoundError creates a new ResourceNotFoundError.
func NewResourceNotFoundError(uri string) *ResourceNotFoundError {
	return &ResourceNotFoundError{
		URI: uri,
		Err: NewError(fmt.Sprintf("resource with URI %s not found", uri), 404),
	}
}

// NewResourceNameNotFoundError creates a ResourceNotFoundError for a lookup
// by registered name.
func NewResourceNameNotFoundError(name string) *ResourceNotFoundError {
	return &ResourceNotFoundError{
		Name: name,
		Err:  NewError(fmt.Sprintf("resource with name %s not found", name), 404),
	}
}

// ToolNotFoundError indicates that a requested tool was not found.
type ToolNotFoundError struct {
	Name string
	Err  *Error
}

// Error returns the error message.
func (e *ToolNotFoundError) Error() string {
	return e.Err.Error()
}

// NotFound marks the error as a lookup miss.
func (e *ToolNotFoundError) NotFound() bool { return true }

// NewToolNotFoundError creates a new ToolNotFoundError.
func NewToolNotFoundError(name string) *ToolNotFoundError {
	return &ToolNotFoundError{
		Name: name,
		Err:  NewError(fmt.Sprintf("tool with name %s not found", name), 404),
	}
}

// PromptNotFoundError indicates that a requested prompt was not found.
type PromptNotFoundError struct {
	Name string
	Err  *Error
}

// Error returns the error message.
func (e *PromptNotFoundError) Error() string {
	return e.Err.Error()
}

// NotFound marks the error as a lookup miss.
func (e *PromptNotFoundError) NotFound() bool { return true }

// NewPromptNotFoundError creates a new PromptNotFoundError.
func NewPromptNotFoundError(name string) *PromptNotFoundError {
	return &PromptNotFoundError{
		Name: name,
		Err:  NewError(fmt.Sprintf("prompt with name %s not found", name), 404),
	}
}

package shared

import (
	"encoding/json"
	"fmt"
)

// JSONRPCVersion is the version of JSON-RPC to use
const JSONRPCVersion = "2.0"

// ErrorCode represents a JSON-RPC error code
type ErrorCode int

// Wire error codes. They are fixed constants, not configurable.
const (
	// ParseError covers malformed or invalid requests, unknown methods and tools,
	// and every other client-attributable failure.
	ParseError ErrorCode = -32700
	// InternalError covers tool execution and internal failures.
	InternalError ErrorCode = -32603
)

// Request is a decoded wire request.
type Request struct {
	JSONRPC string         `json:"jsonrpc,omitempty"`
	ID      any            `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
}

// HasID reports whether the request carries a usable correlation id.
func (r *Request) HasID() bool {
	return r != nil && ValidID(r.ID)
}

// ValidID reports whether id is a string or a number.
func ValidID(id any) bool {
	switch v := id.(type) {
	case string:
		return v != ""
	case float64, float32, int, int32, int64, json.Number:
		return true
	default:
		return false
	}
}

// JSONRPCError is the error member of a response.
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements error so a wire error can be returned by clients.
func (e *JSONRPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Response is a wire response. Exactly one of Result and Error is emitted.
type Response struct {
	JSONRPC string
	ID      any
	Result  any
	Error   *JSONRPCError
}

type responseWithResult struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result"`
}

type responseWithError struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id"`
	Error   *JSONRPCError `json:"error"`
}

// MarshalJSON writes either the result or the error member, never both and
// never neither. A nil success result is written as an empty object.
func (r Response) MarshalJSON() ([]byte, error) {
	version := r.JSONRPC
	if version == "" {
		version = JSONRPCVersion
	}
	if r.Error != nil {
		return json.Marshal(responseWithError{JSONRPC: version, ID: r.ID, Error: r.Error})
	}
	result := r.Result
	if result == nil {
		result = struct{}{}
	}
	return json.Marshal(responseWithResult{JSONRPC: version, ID: r.ID, Result: result})
}

// UnmarshalJSON reads a response written by MarshalJSON.
func (r *Response) UnmarshalJSON(data []byte) error {
	var raw struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      any             `json:"id"`
		Result  json.RawMessage `json:"result"`
		Error   *JSONRPCError   `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.JSONRPC = raw.JSONRPC
	r.ID = raw.ID
	r.Error = raw.Error
	r.Result = nil
	if raw.Error == nil && len(raw.Result) > 0 {
		var result any
		if err := json.Unmarshal(raw.Result, &result); err != nil {
			return err
		}
		r.Result = result
	}
	return nil
}

// IsError reports whether the response carries an error.
func (r *Response) IsError() bool {
	return r.Error != nil
}

// Package protocol parses, validates and answers wire requests, and invokes
// registered tools.
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain/shared"
	sharederrors "github.com/miguelarios/productboard-mcp-server-sub002/internal/domain/shared/errors"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
)

// Validation messages
const (
	MsgIDRequired     = "Request id is required"
	MsgMethodRequired = "Request method is required"
	MsgUnknownTool    = "Unknown tool"
	MsgInternalError  = "Internal error"
)

// ValidationResult is the outcome of ValidateRequest.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Handler implements the request contract over a tool repository.
type Handler struct {
	tools  domain.ToolRepository
	logger *logging.Logger
}

// NewHandler creates a Handler.
func NewHandler(tools domain.ToolRepository, logger *logging.Logger) *Handler {
	return &Handler{
		tools:  tools,
		logger: logging.OrDefault(logger).Named("protocol"),
	}
}

// ParseRequest decodes raw into a Request. Malformed JSON and structurally
// invalid requests are reported as ProtocolErrors.
func (h *Handler) ParseRequest(raw []byte) (*shared.Request, error) {
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, sharederrors.NewProtocolError(sharederrors.MsgInvalidJSON, map[string]interface{}{
			"error": err.Error(),
		})
	}

	obj, ok := decoded.(map[string]interface{})
	if !ok {
		return nil, invalidStructure("request must be an object")
	}
	method, ok := obj["method"].(string)
	if !ok {
		return nil, invalidStructure("method must be a string")
	}

	req := &shared.Request{Method: method, ID: obj["id"]}
	if v, ok := obj["jsonrpc"].(string); ok {
		req.JSONRPC = v
	}
	if params, present := obj["params"]; present && params != nil {
		p, ok := params.(map[string]interface{})
		if !ok {
			return nil, invalidStructure("params must be an object")
		}
		req.Params = p
	}

	// Notifications carry no id and expect no response.
	if shared.IsNotification(method) && req.ID == nil {
		return req, nil
	}
	if !shared.ValidID(req.ID) {
		return nil, invalidStructure("id must be a string or a number")
	}
	return req, nil
}

func invalidStructure(reason string) error {
	return sharederrors.NewProtocolError(sharederrors.MsgInvalidRequestStructure, map[string]interface{}{
		"reason": reason,
	})
}

// ValidateRequest checks req without side effects.
func (h *Handler) ValidateRequest(req *shared.Request) ValidationResult {
	var errs []string
	if req == nil {
		return ValidationResult{Errors: []string{MsgIDRequired, MsgMethodRequired}}
	}
	if !req.HasID() {
		errs = append(errs, MsgIDRequired)
	}
	if req.Method == "" {
		errs = append(errs, MsgMethodRequired)
	}

	if shared.IsToolMethod(req.Method) {
		tool, ok := h.tools.Get(req.Method)
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("%s: %s", MsgUnknownTool, req.Method))
		case req.Params != nil:
			for _, v := range tool.Parameters().ValidateParams(req.Params) {
				errs = append(errs, v.String())
			}
		}
	}

	if len(errs) > 0 {
		return ValidationResult{Errors: errs}
	}
	return ValidationResult{Valid: true}
}

// InvokeTool runs the named tool. Every failure is returned as a
// ToolExecutionError; an unknown tool wraps a ProtocolError.
func (h *Handler) InvokeTool(ctx context.Context, name string, params map[string]interface{}) (result interface{}, err error) {
	tool, ok := h.tools.Get(name)
	if !ok {
		notFound := sharederrors.NewProtocolError(fmt.Sprintf("%s: %s", sharederrors.MsgToolNotFound, name), nil)
		return nil, sharederrors.NewToolExecutionError(name, notFound)
	}

	start := time.Now()
	h.logger.Debug("invoking tool", logging.Fields{"tool": name})
	defer func() {
		if r := recover(); r != nil {
			err = sharederrors.NewToolExecutionError(name, fmt.Errorf("panic: %v", r))
			result = nil
		}
		fields := logging.Fields{"tool": name, "duration": time.Since(start)}
		if err != nil {
			fields["error"] = err
		}
		h.logger.Debug("tool invocation finished", fields)
	}()

	if params == nil {
		params = map[string]interface{}{}
	}
	result, err = tool.Execute(ctx, params)
	if err != nil {
		return nil, sharederrors.NewToolExecutionError(name, err)
	}
	return result, nil
}

// CreateSuccessResponse wraps result for id.
func (h *Handler) CreateSuccessResponse(id interface{}, result interface{}) *shared.Response {
	return &shared.Response{JSONRPC: shared.JSONRPCVersion, ID: id, Result: result}
}

// CreateErrorResponse maps err onto the wire error envelope. Only messages and
// structured details cross the boundary.
func (h *Handler) CreateErrorResponse(id interface{}, err error) *shared.Response {
	return &shared.Response{JSONRPC: shared.JSONRPCVersion, ID: id, Error: ToWireError(err)}
}

// ToWireError maps err to a wire error.
func ToWireError(err error) *shared.JSONRPCError {
	var execErr *sharederrors.ToolExecutionError
	if errors.As(err, &execErr) {
		return &shared.JSONRPCError{
			Code:    int(shared.InternalError),
			Message: execErr.Error(),
			Data:    execErr.Details(),
		}
	}

	var protoErr *sharederrors.ProtocolError
	if errors.As(err, &protoErr) {
		return &shared.JSONRPCError{
			Code:    int(shared.ParseError),
			Message: protoErr.Message,
			Data:    protoErr.Details,
		}
	}

	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &shared.JSONRPCError{
		Code:    int(shared.InternalError),
		Message: MsgInternalError,
		Data:    map[string]interface{}{"originalError": msg},
	}
}

// SupportedMethods returns the core protocol methods followed by every tool
// name in registration order.
func (h *Handler) SupportedMethods() []string {
	methods := append([]string(nil), shared.CoreMethods...)
	return append(methods, h.tools.Names()...)
}

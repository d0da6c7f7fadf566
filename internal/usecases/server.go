// Package usecases implements the request dispatch pipeline of the server.
package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain/shared"
	sharederrors "github.com/miguelarios/productboard-mcp-server-sub002/internal/domain/shared/errors"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/cache"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/ratelimit"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/retry"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/usecases/permission"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/usecases/protocol"
)

// Dispatch error messages
const (
	MsgMethodNotFound    = "Method not found"
	MsgRateLimitExceeded = "Rate limit exceeded"
	MsgInvalidParams     = "Invalid params"
	MsgResourceNotFound  = "Resource not found"
	MsgPromptNotFound    = "Prompt not found"
)

// ServerService dispatches requests through validation, authorization, rate
// limiting, caching and retries.
type ServerService struct {
	name         string
	version      string
	instructions string
	sessionID    string

	toolRepo     domain.ToolRepository
	resourceRepo domain.ResourceRepository
	promptRepo   domain.PromptRepository

	protocol *protocol.Handler
	gate     *permission.Gate
	limiter  *ratelimit.Limiter
	cache    *cache.Cache
	retry    *retry.Handler
	maxWait  time.Duration

	logger       *logging.Logger
	shuttingDown atomic.Bool
	shutdown     chan struct{}
	shutdownOnce sync.Once
	closed       atomic.Bool
}

// ServerConfig contains configuration for the ServerService. Only the
// repositories are required; a nil policy component is skipped.
type ServerConfig struct {
	Name         string
	Version      string
	Instructions string
	ToolRepo     domain.ToolRepository
	ResourceRepo domain.ResourceRepository
	PromptRepo   domain.PromptRepository
	Gate         *permission.Gate
	Limiter      *ratelimit.Limiter
	Cache        *cache.Cache
	Retry        *retry.Handler
	// MaxWait bounds rate-limit waits. Zero waits for as long as the request
	// context allows.
	MaxWait time.Duration
	Logger  *logging.Logger
}

// NewServerService creates a new ServerService with the given repositories and configuration.
func NewServerService(config ServerConfig) *ServerService {
	logger := logging.OrDefault(config.Logger)
	s := &ServerService{
		name:         config.Name,
		version:      config.Version,
		instructions: config.Instructions,
		sessionID:    uuid.New().String(),
		toolRepo:     config.ToolRepo,
		resourceRepo: config.ResourceRepo,
		promptRepo:   config.PromptRepo,
		protocol:     protocol.NewHandler(config.ToolRepo, logger),
		gate:         config.Gate,
		limiter:      config.Limiter,
		cache:        config.Cache,
		retry:        config.Retry,
		maxWait:      config.MaxWait,
		logger:       logger.Named("server"),
		shutdown:     make(chan struct{}),
	}
	if s.retry == nil {
		s.retry = retry.New(retry.Config{MaxAttempts: 1}, retry.WithLogger(logger))
	}
	return s
}

// ServerInfo returns information about the server.
func (s *ServerService) ServerInfo() shared.ServerInfo {
	return shared.ServerInfo{Name: s.name, Version: s.version}
}

// SessionID identifies this server process in logs.
func (s *ServerService) SessionID() string {
	return s.sessionID
}

// Protocol returns the protocol handler.
func (s *ServerService) Protocol() *protocol.Handler {
	return s.protocol
}

// ShuttingDown reports whether a client requested shutdown.
func (s *ServerService) ShuttingDown() bool {
	return s.shuttingDown.Load()
}

// Done is closed once a client requests shutdown.
func (s *ServerService) Done() <-chan struct{} {
	return s.shutdown
}

// HandleMessage processes one raw request and returns the raw response, or
// nil when the message is a notification.
func (s *ServerService) HandleMessage(ctx context.Context, raw []byte) []byte {
	req, err := s.protocol.ParseRequest(raw)
	if err != nil {
		s.logger.Debug("rejecting unparseable request", logging.Fields{"error": err})
		return s.encode(s.protocol.CreateErrorResponse(nil, err))
	}

	resp := s.Handle(ctx, req)
	if resp == nil {
		return nil
	}
	return s.encode(resp)
}

func (s *ServerService) encode(resp *shared.Response) []byte {
	data, err := json.Marshal(resp)
	if err == nil {
		return data
	}
	s.logger.Error("failed to encode response", logging.Fields{"error": err, "id": resp.ID})
	data, _ = json.Marshal(s.protocol.CreateErrorResponse(resp.ID, errors.Wrap(err, "encode response")))
	return data
}

// Handle dispatches a parsed request. It returns nil for notifications and
// exactly one response otherwise.
func (s *ServerService) Handle(ctx context.Context, req *shared.Request) (resp *shared.Response) {
	if req == nil {
		return s.protocol.CreateErrorResponse(nil, sharederrors.NewProtocolError(sharederrors.MsgInvalidRequestStructure, nil))
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recovered from panic while handling request", logging.Fields{
				"method": req.Method,
				"panic":  fmt.Sprint(r),
			})
			resp = s.protocol.CreateErrorResponse(req.ID, fmt.Errorf("panic: %v", r))
		}
	}()

	if shared.IsNotification(req.Method) && !req.HasID() {
		s.logger.Debug("notification received", logging.Fields{"method": req.Method})
		return nil
	}

	if v := s.protocol.ValidateRequest(req); !v.Valid {
		return s.protocol.CreateErrorResponse(req.ID, sharederrors.NewProtocolError(
			strings.Join(v.Errors, "; "),
			map[string]interface{}{"errors": v.Errors},
		))
	}

	var (
		result interface{}
		err    error
	)
	if shared.IsProtocolMethod(req.Method) {
		result, err = s.handleProtocolMethod(ctx, req)
	} else {
		result, err = s.CallTool(ctx, req.Method, req.Params)
	}

	fields := logging.Fields{
		"method":   req.Method,
		"id":       req.ID,
		"duration": time.Since(start),
	}
	if err != nil {
		fields["error"] = err
		if sharederrors.IsProtocolError(err) && !sharederrors.IsToolExecutionError(err) {
			s.logger.Debug("request rejected", fields)
		} else {
			s.logger.Warn("request failed", fields)
		}
		return s.protocol.CreateErrorResponse(req.ID, err)
	}
	s.logger.Debug("request completed", fields)
	return s.protocol.CreateSuccessResponse(req.ID, result)
}

func (s *ServerService) handleProtocolMethod(ctx context.Context, req *shared.Request) (interface{}, error) {
	switch req.Method {
	case shared.MethodInitialize:
		return s.initialize(), nil
	case shared.MethodPing:
		return struct{}{}, nil
	case shared.MethodShutdown:
		s.shuttingDown.Store(true)
		s.shutdownOnce.Do(func() { close(s.shutdown) })
		s.logger.Info("shutdown requested", logging.Fields{"session": s.sessionID})
		return struct{}{}, nil
	case shared.MethodListTools:
		return s.listTools(), nil
	case shared.MethodCallTool:
		return s.callToolMethod(ctx, req)
	case shared.MethodListResources:
		return s.listResources(), nil
	case shared.MethodReadResource:
		return s.readResource(ctx, req.Params)
	case shared.MethodListPrompts:
		return s.listPrompts(), nil
	case shared.MethodGetPrompt:
		return s.getPrompt(ctx, req.Params)
	default:
		return nil, sharederrors.NewProtocolError(fmt.Sprintf("%s: %s", MsgMethodNotFound, req.Method), nil)
	}
}

func (s *ServerService) initialize() shared.InitializeResult {
	caps := shared.Capabilities{Tools: &shared.ToolsCapability{}}
	if s.resourceRepo != nil && s.resourceRepo.Size() > 0 {
		caps.Resources = &shared.ResourcesCapability{}
	}
	if s.promptRepo != nil && s.promptRepo.Size() > 0 {
		caps.Prompts = &shared.PromptsCapability{}
	}
	return shared.InitializeResult{
		ProtocolVersion: shared.ProtocolVersion,
		ServerInfo:      s.ServerInfo(),
		Capabilities:    caps,
		Instructions:    s.instructions,
	}
}

func (s *ServerService) listTools() shared.ListToolsResult {
	tools := s.toolRepo.List()
	out := make([]shared.Tool, 0, len(tools))
	for _, tool := range tools {
		out = append(out, domain.DescribeTool(tool))
	}
	return shared.ListToolsResult{Tools: out}
}

func (s *ServerService) callToolMethod(ctx context.Context, req *shared.Request) (interface{}, error) {
	var params shared.CallToolParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	if params.Name == "" {
		return nil, invalidParams("name is required")
	}

	inner := &shared.Request{ID: req.ID, Method: params.Name, Params: params.Arguments}
	if v := s.protocol.ValidateRequest(inner); !v.Valid {
		return nil, sharederrors.NewProtocolError(strings.Join(v.Errors, "; "), map[string]interface{}{"errors": v.Errors})
	}

	result, err := s.CallTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return nil, err
	}
	text, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(err, "encode tool result")
	}
	return shared.CallToolResult{
		Content:           []shared.TextContent{shared.NewTextContent(string(text))},
		StructuredContent: result,
	}, nil
}

// CallTool runs a tool through the permission gate, the rate limiter, the
// cache and the retry handler.
func (s *ServerService) CallTool(ctx context.Context, name string, params map[string]interface{}) (interface{}, error) {
	if tool, ok := s.toolRepo.Get(name); ok && s.gate != nil {
		if err := s.gate.Authorize(ctx, tool); err != nil {
			return nil, err
		}
	}

	if s.limiter != nil {
		if err := s.admit(ctx, ratelimit.GlobalKey); err != nil {
			return nil, err
		}
		if s.limiter.HasOverride(name) {
			if err := s.admit(ctx, name); err != nil {
				s.limiter.Release(ratelimit.GlobalKey)
				return nil, err
			}
		}
	}

	desc := cache.RequestDescriptor{Tool: name, Method: name, Params: params}
	var cacheKey string
	if s.cache != nil && s.cache.ShouldCache(desc) {
		cacheKey = cache.Key(desc)
		if cached, ok := s.cache.Get(cacheKey); ok {
			s.logger.Debug("cache hit", logging.Fields{"tool": name})
			return cached, nil
		}
	}

	result, err := s.retry.WithRetries(ctx, func(ctx context.Context) (interface{}, error) {
		return s.protocol.InvokeTool(ctx, name, params)
	})
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		s.cache.Set(cacheKey, result, 0)
	}
	return result, nil
}

// admit takes a token for key, waiting at most maxWait when it is set.
func (s *ServerService) admit(ctx context.Context, key string) error {
	waitCtx := ctx
	if s.maxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.maxWait)
		defer cancel()
	}

	err := s.limiter.WaitForSlot(waitCtx, key)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	usage := s.limiter.Usage(key)
	return sharederrors.NewProtocolError(MsgRateLimitExceeded, map[string]interface{}{
		"key":     key,
		"limit":   usage.Limit,
		"resetAt": usage.ResetAt,
	})
}

func (s *ServerService) listResources() shared.ListResourcesResult {
	out := []shared.Resource{}
	if s.resourceRepo != nil {
		for _, r := range s.resourceRepo.List() {
			out = append(out, domain.DescribeResource(r))
		}
	}
	return shared.ListResourcesResult{Resources: out}
}

func (s *ServerService) readResource(ctx context.Context, raw map[string]interface{}) (interface{}, error) {
	var params shared.ReadResourceParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if params.URI == "" {
		return nil, invalidParams("uri is required")
	}

	var resource domain.Resource
	ok := false
	if s.resourceRepo != nil {
		resource, ok = s.resourceRepo.GetByURI(params.URI)
	}
	if !ok {
		return nil, sharederrors.NewProtocolError(fmt.Sprintf("%s: %s", MsgResourceNotFound, params.URI), nil)
	}
	return shared.ReadResourceResult{
		Contents: []shared.ResourceContent{domain.ReadResource(ctx, resource)},
	}, nil
}

func (s *ServerService) listPrompts() shared.ListPromptsResult {
	out := []shared.Prompt{}
	if s.promptRepo != nil {
		for _, p := range s.promptRepo.List() {
			out = append(out, domain.DescribePrompt(p))
		}
	}
	return shared.ListPromptsResult{Prompts: out}
}

func (s *ServerService) getPrompt(ctx context.Context, raw map[string]interface{}) (interface{}, error) {
	var params shared.GetPromptParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}

	var prompt domain.Prompt
	ok := false
	if s.promptRepo != nil && params.Name != "" {
		prompt, ok = s.promptRepo.Get(params.Name)
	}
	if !ok {
		return nil, sharederrors.NewProtocolError(fmt.Sprintf("%s: %s", MsgPromptNotFound, params.Name), nil)
	}

	if missing := domain.MissingPromptArguments(prompt, params.Arguments); len(missing) > 0 {
		sort.Strings(missing)
		return nil, invalidParams("missing required arguments: " + strings.Join(missing, ", "))
	}

	messages, err := prompt.Execute(ctx, params.Arguments)
	if err != nil {
		return nil, errors.Wrapf(err, "prompt %s", params.Name)
	}
	return shared.GetPromptResult{
		Description: prompt.Description(),
		Messages:    messages,
	}, nil
}

// Close clears the cache and the registries.
func (s *ServerService) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.cache != nil {
		s.cache.Clear()
		s.cache.Close()
	}
	s.toolRepo.Clear()
	if s.resourceRepo != nil {
		s.resourceRepo.Clear()
	}
	if s.promptRepo != nil {
		s.promptRepo.Clear()
	}
	s.logger.Info("server closed", logging.Fields{"session": s.sessionID})
	return nil
}

func invalidParams(reason string) error {
	return sharederrors.NewProtocolError(fmt.Sprintf("%s: %s", MsgInvalidParams, reason), nil)
}

func decodeParams(params map[string]interface{}, dst interface{}) error {
	if params == nil {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return invalidParams(err.Error())
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return invalidParams(err.Error())
	}
	return nil
}

// Package permission decides whether a caller may invoke a tool.
package permission

import (
	"context"
	"fmt"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain"
	sharederrors "github.com/miguelarios/productboard-mcp-server-sub002/internal/domain/shared/errors"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
)

// MsgInsufficientPermissions prefixes every denial.
const MsgInsufficientPermissions = "Insufficient permissions for tool"

// Caller is what the current requester has been granted.
type Caller struct {
	AccessLevel domain.AccessLevel
	Permissions []string
}

func (c Caller) has(permission string) bool {
	if c.AccessLevel >= domain.AccessAdmin {
		return true
	}
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

type callerKey struct{}

// WithCaller attaches caller to ctx.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller attached to ctx.
func CallerFrom(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(Caller)
	return caller, ok
}

// Gate checks tool permission metadata against the caller.
type Gate struct {
	defaultCaller Caller
	logger        *logging.Logger
}

// NewGate creates a Gate. defaultCaller applies when the context carries none.
func NewGate(defaultCaller Caller, logger *logging.Logger) *Gate {
	return &Gate{
		defaultCaller: defaultCaller,
		logger:        logging.OrDefault(logger).Named("permission"),
	}
}

// Authorize returns nil when the caller may invoke tool, else a ProtocolError.
func (g *Gate) Authorize(ctx context.Context, tool domain.Tool) error {
	meta := tool.Permissions()
	if meta == nil {
		return nil
	}

	caller, ok := CallerFrom(ctx)
	if !ok {
		caller = g.defaultCaller
	}

	var missing []string
	for _, p := range meta.RequiredPermissions {
		if !caller.has(p) {
			missing = append(missing, p)
		}
	}
	levelOK := caller.AccessLevel >= meta.MinimumAccessLevel
	if levelOK && len(missing) == 0 {
		return nil
	}

	details := map[string]interface{}{
		"required":            meta.RequiredPermissions,
		"requiredAccessLevel": meta.MinimumAccessLevel.String(),
		"accessLevel":         caller.AccessLevel.String(),
	}
	if len(missing) > 0 {
		details["missing"] = missing
	}
	g.logger.Warn("permission denied", logging.Fields{
		"tool":                tool.Name(),
		"accessLevel":         caller.AccessLevel.String(),
		"requiredAccessLevel": meta.MinimumAccessLevel.String(),
		"missing":             missing,
	})
	return sharederrors.NewProtocolError(fmt.Sprintf("%s: %s", MsgInsufficientPermissions, tool.Name()), details)
}

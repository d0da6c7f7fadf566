package permission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain"
	sharederrors "github.com/miguelarios/productboard-mcp-server-sub002/internal/domain/shared/errors"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
)

func tool(opts ...domain.ToolOption) domain.Tool {
	return domain.NewTool("pb_feature_create", func(context.Context, map[string]any) (any, error) {
		return nil, nil
	}, opts...)
}

func TestAuthorize(t *testing.T) {
	writeTool := tool(domain.WithPermissions(domain.AccessWrite, "features:write"))

	tests := []struct {
		name    string
		caller  Caller
		tool    domain.Tool
		allowed bool
	}{
		{name: "unrestricted tool", caller: Caller{}, tool: tool(), allowed: true},
		{name: "level and permission satisfied", caller: Caller{AccessLevel: domain.AccessWrite, Permissions: []string{"features:write"}}, tool: writeTool, allowed: true},
		{name: "higher level satisfies lower", caller: Caller{AccessLevel: domain.AccessDelete, Permissions: []string{"features:write"}}, tool: writeTool, allowed: true},
		{name: "admin satisfies everything", caller: Caller{AccessLevel: domain.AccessAdmin}, tool: writeTool, allowed: true},
		{name: "level too low", caller: Caller{AccessLevel: domain.AccessRead, Permissions: []string{"features:write"}}, tool: writeTool, allowed: false},
		{name: "permission missing", caller: Caller{AccessLevel: domain.AccessWrite}, tool: writeTool, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(tt.caller, logging.NewNop())
			err := g.Authorize(context.Background(), tt.tool)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, sharederrors.IsProtocolError(err))
			assert.Equal(t, "Insufficient permissions for tool: pb_feature_create", err.Error())
		})
	}
}

func TestAuthorizeDetails(t *testing.T) {
	g := NewGate(Caller{AccessLevel: domain.AccessRead}, logging.NewNop())
	err := g.Authorize(context.Background(), tool(domain.WithPermissions(domain.AccessWrite, "features:write")))

	var protoErr *sharederrors.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, map[string]interface{}{
		"required":            []string{"features:write"},
		"missing":             []string{"features:write"},
		"requiredAccessLevel": "write",
		"accessLevel":         "read",
	}, protoErr.Details)
}

func TestContextCallerOverridesDefault(t *testing.T) {
	g := NewGate(Caller{AccessLevel: domain.AccessRead}, logging.NewNop())
	writeTool := tool(domain.WithPermissions(domain.AccessWrite, "features:write"))

	ctx := WithCaller(context.Background(), Caller{AccessLevel: domain.AccessWrite, Permissions: []string{"features:write"}})
	assert.NoError(t, g.Authorize(ctx, writeTool))
	assert.Error(t, g.Authorize(context.Background(), writeTool))

	caller, ok := CallerFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, domain.AccessWrite, caller.AccessLevel)

	_, ok = CallerFrom(context.Background())
	assert.False(t, ok)
}

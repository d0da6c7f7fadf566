package domain

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain/schema"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain/shared"
)

type staticResource struct {
	contents *ResourceContents
	err      error
}

func (r *staticResource) Name() string        { return "static" }
func (r *staticResource) URI() string         { return "test://static" }
func (r *staticResource) Description() string { return "static test resource" }
func (r *staticResource) MIMEType() string    { return "text/plain" }
func (r *staticResource) Retrieve(context.Context) (*ResourceContents, error) {
	return r.contents, r.err
}

type greetingPrompt struct{}

func (greetingPrompt) Name() string        { return "greeting" }
func (greetingPrompt) Description() string { return "says hello" }
func (greetingPrompt) Arguments() []shared.PromptArgument {
	return []shared.PromptArgument{
		{Name: "who", Required: true},
		{Name: "tone"},
	}
}
func (greetingPrompt) Execute(_ context.Context, params map[string]any) ([]shared.PromptMessage, error) {
	return []shared.PromptMessage{{Role: "user", Content: shared.NewTextContent("hello")}}, nil
}

func TestAccessLevel(t *testing.T) {
	tests := []struct {
		input string
		want  AccessLevel
	}{
		{input: "read", want: AccessRead},
		{input: "Write", want: AccessWrite},
		{input: " delete ", want: AccessDelete},
		{input: "admin", want: AccessAdmin},
		{input: "none", want: AccessNone},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAccessLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseAccessLevel("owner")
	assert.Error(t, err)

	assert.True(t, AccessRead < AccessWrite)
	assert.True(t, AccessWrite < AccessDelete)
	assert.True(t, AccessDelete < AccessAdmin)
	assert.Equal(t, "AccessLevel(9)", AccessLevel(9).String())

	data, err := json.Marshal(AccessWrite)
	require.NoError(t, err)
	assert.Equal(t, `"write"`, string(data))
}

func TestNewTool(t *testing.T) {
	params := schema.Object(map[string]*schema.Schema{
		"id": schema.String("Feature ID"),
	}, "id")

	tool := NewTool("pb_feature_get",
		func(_ context.Context, p map[string]any) (any, error) {
			return map[string]any{"id": p["id"]}, nil
		},
		WithDescription("Get a feature"),
		WithParameters(params),
		WithPermissions(AccessRead, "features:read"),
	)

	assert.Equal(t, "pb_feature_get", tool.Name())
	assert.Equal(t, "Get a feature", tool.Description())
	assert.Same(t, params, tool.Parameters())
	require.NotNil(t, tool.Permissions())
	assert.Equal(t, AccessRead, tool.Permissions().MinimumAccessLevel)
	assert.Equal(t, []string{"features:read"}, tool.Permissions().RequiredPermissions)

	out, err := tool.Execute(context.Background(), map[string]any{"id": "f1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "f1"}, out)

	desc := DescribeTool(tool)
	assert.Equal(t, "pb_feature_get", desc.Name)
	assert.Equal(t, "object", desc.InputSchema.Type)
	assert.Equal(t, []string{"id"}, desc.InputSchema.Required)
}

func TestNewToolDefaults(t *testing.T) {
	tool := NewTool("bare", nil)

	assert.Nil(t, tool.Permissions())
	require.NotNil(t, tool.Parameters())
	assert.Equal(t, schema.KindObject, tool.Parameters().Kind)

	_, err := tool.Execute(context.Background(), nil)
	assert.EqualError(t, err, "tool bare has no handler")
}

func TestReadResource(t *testing.T) {
	tests := []struct {
		name     string
		resource *staticResource
		want     shared.ResourceContent
	}{
		{
			name:     "text content inherits uri and mime type",
			resource: &staticResource{contents: &ResourceContents{Text: "hello"}},
			want:     shared.ResourceContent{URI: "test://static", MIMEType: "text/plain", Text: "hello"},
		},
		{
			name: "binary content is base64 encoded",
			resource: &staticResource{contents: &ResourceContents{
				URI:      "test://static/image",
				MIMEType: "image/png",
				Blob:     []byte{0x89, 0x50, 0x4E, 0x47},
			}},
			want: shared.ResourceContent{URI: "test://static/image", MIMEType: "image/png", Blob: "iVBORw=="},
		},
		{
			name:     "retrieval failure becomes error content",
			resource: &staticResource{err: errors.New("upstream unavailable")},
			want: shared.ResourceContent{
				URI:      "test://static",
				MIMEType: "application/json",
				Text:     `{"error":"upstream unavailable"}`,
				IsError:  true,
			},
		},
		{
			name:     "nil contents",
			resource: &staticResource{},
			want:     shared.ResourceContent{URI: "test://static", MIMEType: "text/plain"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReadResource(context.Background(), tt.resource))
		})
	}

	desc := DescribeResource(&staticResource{})
	assert.Equal(t, shared.Resource{URI: "test://static", Name: "static", Description: "static test resource", MIMEType: "text/plain"}, desc)
}

func TestPromptHelpers(t *testing.T) {
	p := greetingPrompt{}

	desc := DescribePrompt(p)
	assert.Equal(t, "greeting", desc.Name)
	assert.Len(t, desc.Arguments, 2)

	assert.Equal(t, []string{"who"}, MissingPromptArguments(p, nil))
	assert.Equal(t, []string{"who"}, MissingPromptArguments(p, map[string]any{"who": ""}))
	assert.Empty(t, MissingPromptArguments(p, map[string]any{"who": "team"}))
}

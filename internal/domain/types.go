// Package domain defines the core entities served by the tool server: tools,
// resources and prompts, and the permission metadata attached to tools.
package domain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain/schema"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain/shared"
)

// AccessLevel orders what a caller may do. Higher levels include lower ones.
type AccessLevel int

// Access levels
const (
	AccessNone AccessLevel = iota
	AccessRead
	AccessWrite
	AccessDelete
	AccessAdmin
)

var accessLevelNames = map[AccessLevel]string{
	AccessNone:   "none",
	AccessRead:   "read",
	AccessWrite:  "write",
	AccessDelete: "delete",
	AccessAdmin:  "admin",
}

func (l AccessLevel) String() string {
	if name, ok := accessLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("AccessLevel(%d)", int(l))
}

// MarshalJSON writes the level name.
func (l AccessLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// ParseAccessLevel converts a level name into an AccessLevel.
func ParseAccessLevel(s string) (AccessLevel, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for level, name := range accessLevelNames {
		if name == needle {
			return level, nil
		}
	}
	return AccessNone, fmt.Errorf("unknown access level %q", s)
}

// PermissionMetadata declares what a caller needs to invoke a tool.
type PermissionMetadata struct {
	RequiredPermissions []string
	MinimumAccessLevel  AccessLevel
}

// Tool is a named, schema-described operation.
type Tool interface {
	Name() string
	Description() string
	Parameters() *schema.Schema
	// Permissions returns nil when the tool is unrestricted.
	Permissions() *PermissionMetadata
	Execute(ctx context.Context, params map[string]any) (any, error)
}

// ToolHandlerFunc executes a tool.
type ToolHandlerFunc func(ctx context.Context, params map[string]any) (any, error)

// BasicTool is a function-backed Tool.
type BasicTool struct {
	name        string
	description string
	parameters  *schema.Schema
	permissions *PermissionMetadata
	handler     ToolHandlerFunc
}

// ToolOption is a function that configures a tool.
type ToolOption func(*BasicTool)

// NewTool creates a new tool with the given name, handler and options.
func NewTool(name string, handler ToolHandlerFunc, options ...ToolOption) *BasicTool {
	tool := &BasicTool{
		name:       name,
		parameters: schema.Object(map[string]*schema.Schema{}),
		handler:    handler,
	}
	for _, option := range options {
		option(tool)
	}
	return tool
}

// WithDescription sets the description of a tool.
func WithDescription(description string) ToolOption {
	return func(t *BasicTool) {
		t.description = description
	}
}

// WithParameters sets the parameter schema of a tool.
func WithParameters(s *schema.Schema) ToolOption {
	return func(t *BasicTool) {
		t.parameters = s
	}
}

// WithPermissions sets the minimum access level and required permissions of a tool.
func WithPermissions(level AccessLevel, permissions ...string) ToolOption {
	return func(t *BasicTool) {
		t.permissions = &PermissionMetadata{
			RequiredPermissions: permissions,
			MinimumAccessLevel:  level,
		}
	}
}

// Name implements Tool.
func (t *BasicTool) Name() string { return t.name }

// Description implements Tool.
func (t *BasicTool) Description() string { return t.description }

// Parameters implements Tool.
func (t *BasicTool) Parameters() *schema.Schema { return t.parameters }

// Permissions implements Tool.
func (t *BasicTool) Permissions() *PermissionMetadata { return t.permissions }

// Execute implements Tool.
func (t *BasicTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	if t.handler == nil {
		return nil, fmt.Errorf("tool %s has no handler", t.name)
	}
	return t.handler(ctx, params)
}

// DescribeTool projects a tool into its discovery descriptor.
func DescribeTool(t Tool) shared.Tool {
	return shared.Tool{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: t.Parameters().JSONSchema(),
	}
}

// ResourceContents is the content produced by a resource.
type ResourceContents struct {
	URI      string
	MIMEType string
	Text     string
	Blob     []byte
	Metadata map[string]any
}

// Resource is a named, URI-addressable read-only content provider.
type Resource interface {
	Name() string
	URI() string
	Description() string
	MIMEType() string
	Retrieve(ctx context.Context) (*ResourceContents, error)
}

// DescribeResource projects a resource into its discovery descriptor.
func DescribeResource(r Resource) shared.Resource {
	return shared.Resource{
		URI:         r.URI(),
		Name:        r.Name(),
		Description: r.Description(),
		MIMEType:    r.MIMEType(),
	}
}

// ReadResource retrieves r and converts the result into wire content.
// A retrieval failure is returned as structured error content, never as an error.
func ReadResource(ctx context.Context, r Resource) shared.ResourceContent {
	contents, err := r.Retrieve(ctx)
	if err != nil {
		body, _ := json.Marshal(map[string]string{"error": err.Error()})
		return shared.ResourceContent{
			URI:      r.URI(),
			MIMEType: "application/json",
			Text:     string(body),
			IsError:  true,
		}
	}
	if contents == nil {
		contents = &ResourceContents{}
	}

	out := shared.ResourceContent{
		URI:      contents.URI,
		MIMEType: contents.MIMEType,
		Text:     contents.Text,
		Metadata: contents.Metadata,
	}
	if out.URI == "" {
		out.URI = r.URI()
	}
	if out.MIMEType == "" {
		out.MIMEType = r.MIMEType()
	}
	if len(contents.Blob) > 0 {
		out.Blob = base64.StdEncoding.EncodeToString(contents.Blob)
	}
	return out
}

// Prompt is a named template producing role-tagged messages.
type Prompt interface {
	Name() string
	Description() string
	Arguments() []shared.PromptArgument
	Execute(ctx context.Context, params map[string]any) ([]shared.PromptMessage, error)
}

// DescribePrompt projects a prompt into its discovery descriptor.
func DescribePrompt(p Prompt) shared.Prompt {
	return shared.Prompt{
		Name:        p.Name(),
		Description: p.Description(),
		Arguments:   p.Arguments(),
	}
}

// MissingPromptArguments returns the names of required arguments absent from params.
func MissingPromptArguments(p Prompt, params map[string]any) []string {
	var missing []string
	for _, arg := range p.Arguments() {
		if !arg.Required {
			continue
		}
		if v, ok := params[arg.Name]; !ok || v == nil || v == "" {
			missing = append(missing, arg.Name)
		}
	}
	return missing
}

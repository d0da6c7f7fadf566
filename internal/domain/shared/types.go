package shared

import "github.com/google/jsonschema-go/jsonschema"

// ServerInfo contains information about the server
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities represents the server's capabilities
type Capabilities struct {
	Resources *ResourcesCapability `json:"resources,omitempty"`
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Prompts   *PromptsCapability   `json:"prompts,omitempty"`
}

// ResourcesCapability indicates support for resources
type ResourcesCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ToolsCapability indicates support for tools
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// PromptsCapability indicates support for prompts
type PromptsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// Tool is the discovery descriptor of a registered tool.
type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

// Resource is the discovery descriptor of a registered resource.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MIMEType    string `json:"mimeType,omitempty"`
}

// ResourceContent is one item returned by resources/read.
type ResourceContent struct {
	URI      string         `json:"uri"`
	MIMEType string         `json:"mimeType,omitempty"`
	Text     string         `json:"text,omitempty"`
	Blob     string         `json:"blob,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	IsError  bool           `json:"isError,omitempty"`
}

// Prompt is the discovery descriptor of a registered prompt.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument represents an argument for a prompt
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// PromptMessage is a single role-tagged message produced by a prompt.
type PromptMessage struct {
	Role    string      `json:"role"`
	Content TextContent `json:"content"`
}

// TextContent represents text content
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTextContent returns a text content block.
func NewTextContent(text string) TextContent {
	return TextContent{Type: "text", Text: text}
}

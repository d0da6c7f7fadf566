package shared

import "strings"

// Protocol method names
const (
	// Core methods
	MethodInitialize = "initialize"
	MethodPing       = "ping"
	MethodShutdown   = "shutdown"

	// Resource methods
	MethodListResources = "resources/list"
	MethodReadResource  = "resources/read"

	// Tool methods
	MethodListTools = "tools/list"
	MethodCallTool  = "tools/call"

	// Prompt methods
	MethodListPrompts = "prompts/list"
	MethodGetPrompt   = "prompts/get"

	// NotificationPrefix starts every client notification method.
	NotificationPrefix = "notifications/"
)

// ProtocolVersion is the protocol revision advertised by initialize.
const ProtocolVersion = "2024-11-05"

// CoreMethods are the fixed protocol methods always reported as supported.
var CoreMethods = []string{
	MethodInitialize,
	MethodListTools,
	MethodPing,
	MethodShutdown,
}

var protocolMethods = map[string]bool{
	MethodInitialize:    true,
	MethodPing:          true,
	MethodShutdown:      true,
	MethodListResources: true,
	MethodReadResource:  true,
	MethodListTools:     true,
	MethodCallTool:      true,
	MethodListPrompts:   true,
	MethodGetPrompt:     true,
}

// IsProtocolMethod reports whether method belongs to the protocol itself
// rather than naming a tool. Anything that contains a slash is reserved for
// the protocol namespace.
func IsProtocolMethod(method string) bool {
	return protocolMethods[method] || strings.Contains(method, "/")
}

// IsToolMethod reports whether method names a tool.
func IsToolMethod(method string) bool {
	return method != "" && !IsProtocolMethod(method)
}

// IsNotification reports whether method is a client notification.
func IsNotification(method string) bool {
	return strings.HasPrefix(method, NotificationPrefix)
}

// InitializeResult represents the result of the initialize method
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Capabilities    Capabilities `json:"capabilities"`
	Instructions    string       `json:"instructions,omitempty"`
}

// ListToolsResult represents the result of the tools/list method
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams represents parameters for the tools/call method
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ListResourcesResult represents the result of the resources/list method
type ListResourcesResult struct {
	Resources []Resource `json:"resources"`
}

// ReadResourceResult represents the result of the resources/read method
type ReadResourceResult struct {
	Contents []ResourceContent `json:"contents"`
}

// ListPromptsResult represents the result of the prompts/list method
type ListPromptsResult struct {
	Prompts []Prompt `json:"prompts"`
}

// GetPromptResult represents the result of the prompts/get method
type GetPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// CallToolResult represents the result of the tools/call method
type CallToolResult struct {
	Content           []TextContent `json:"content"`
	StructuredContent any           `json:"structuredContent,omitempty"`
	IsError           bool          `json:"isError,omitempty"`
}

// GetPromptParams represents parameters for the prompts/get method
type GetPromptParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ReadResourceParams represents parameters for the resources/read method
type ReadResourceParams struct {
	URI string `json:"uri"`
}

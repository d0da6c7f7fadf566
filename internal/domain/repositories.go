package domain

// ToolRepository stores tools by name in registration order.
type ToolRepository interface {
	// Register adds a tool. A second registration under the same name replaces
	// the first and keeps its position.
	Register(tool Tool)

	// Unregister removes a tool, failing with ToolNotFoundError when absent.
	Unregister(name string) error

	// Get retrieves a tool by its name.
	Get(name string) (Tool, bool)

	// Has reports whether a tool is registered.
	Has(name string) bool

	// List returns all tools in registration order.
	List() []Tool

	// Names returns all tool names in registration order.
	Names() []string

	// Size returns the number of registered tools.
	Size() int

	// Clear removes every tool.
	Clear()
}

// ResourceRepository stores resources by name, addressable by URI.
type ResourceRepository interface {
	Register(resource Resource)
	Unregister(name string) error
	Get(name string) (Resource, bool)
	// GetByURI retrieves a resource by its URI.
	GetByURI(uri string) (Resource, bool)
	Has(name string) bool
	List() []Resource
	Size() int
	Clear()
}

// PromptRepository stores prompts by name.
type PromptRepository interface {
	Register(prompt Prompt)
	Unregister(name string) error
	Get(name string) (Prompt, bool)
	Has(name string) bool
	List() []Prompt
	Size() int
	Clear()
}

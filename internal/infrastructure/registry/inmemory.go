// Package registry provides the in-memory repositories that hold the tools,
// resources and prompts a server exposes.
package registry

import (
	"sync"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
)

// ordered is a name-keyed map that remembers insertion order. Replacing an
// entry keeps its original position.
type ordered[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	order []string
}

func newOrdered[T any]() *ordered[T] {
	return &ordered[T]{items: make(map[string]T)}
}

// set stores item and reports whether it replaced an existing entry.
func (o *ordered[T]) set(key string, item T) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, exists := o.items[key]
	if !exists {
		o.order = append(o.order, key)
	}
	o.items[key] = item
	return exists
}

func (o *ordered[T]) remove(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.items[key]; !exists {
		return false
	}
	delete(o.items, key)
	for i, k := range o.order {
		if k == key {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	return true
}

func (o *ordered[T]) get(key string) (T, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	item, ok := o.items[key]
	return item, ok
}

func (o *ordered[T]) values() []T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]T, 0, len(o.order))
	for _, k := range o.order {
		out = append(out, o.items[k])
	}
	return out
}

func (o *ordered[T]) keys() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]string(nil), o.order...)
}

func (o *ordered[T]) size() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.order)
}

func (o *ordered[T]) clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = make(map[string]T)
	o.order = nil
}

// InMemoryToolRepository implements a ToolRepository using in-memory storage.
type InMemoryToolRepository struct {
	tools  *ordered[domain.Tool]
	logger *logging.Logger
}

// NewInMemoryToolRepository creates a new InMemoryToolRepository.
func NewInMemoryToolRepository(logger *logging.Logger) *InMemoryToolRepository {
	return &InMemoryToolRepository{
		tools:  newOrdered[domain.Tool](),
		logger: logging.OrDefault(logger),
	}
}

// Register adds a tool to the repository. Registering an existing name
// replaces the tool in place.
func (r *InMemoryToolRepository) Register(tool domain.Tool) {
	if r.tools.set(tool.Name(), tool) {
		r.logger.Warn("tool replaced", logging.Fields{"name": tool.Name()})
	}
}

// Unregister removes a tool from the repository.
func (r *InMemoryToolRepository) Unregister(name string) error {
	if !r.tools.remove(name) {
		return domain.NewToolNotFoundError(name)
	}
	return nil
}

// Get retrieves a tool by its name.
func (r *InMemoryToolRepository) Get(name string) (domain.Tool, bool) {
	return r.tools.get(name)
}

// Has reports whether a tool is registered.
func (r *InMemoryToolRepository) Has(name string) bool {
	_, ok := r.tools.get(name)
	return ok
}

// List returns all tools in registration order.
func (r *InMemoryToolRepository) List() []domain.Tool {
	return r.tools.values()
}

// Names returns all tool names in registration order.
func (r *InMemoryToolRepository) Names() []string {
	return r.tools.keys()
}

// Size returns the number of registered tools.
func (r *InMemoryToolRepository) Size() int {
	return r.tools.size()
}

// Clear removes every tool.
func (r *InMemoryToolRepository) Clear() {
	r.tools.clear()
}

// InMemoryResourceRepository implements a ResourceRepository using in-memory storage.
type InMemoryResourceRepository struct {
	resources *ordered[domain.Resource]
	logger    *logging.Logger
}

// NewInMemoryResourceRepository creates a new InMemoryResourceRepository.
func NewInMemoryResourceRepository(logger *logging.Logger) *InMemoryResourceRepository {
	return &InMemoryResourceRepository{
		resources: newOrdered[domain.Resource](),
		logger:    logging.OrDefault(logger),
	}
}

// Register adds a resource to the repository.
func (r *InMemoryResourceRepository) Register(resource domain.Resource) {
	if r.resources.set(resource.Name(), resource) {
		r.logger.Warn("resource replaced", logging.Fields{"name": resource.Name()})
	}
}

// Unregister removes a resource from the repository.
func (r *InMemoryResourceRepository) Unregister(name string) error {
	if !r.resources.remove(name) {
		return domain.NewResourceNameNotFoundError(name)
	}
	return nil
}

// Get retrieves a resource by its name.
func (r *InMemoryResourceRepository) Get(name string) (domain.Resource, bool) {
	return r.resources.get(name)
}

// GetByURI retrieves a resource by its URI. The first registered match wins.
func (r *InMemoryResourceRepository) GetByURI(uri string) (domain.Resource, bool) {
	for _, resource := range r.resources.values() {
		if resource.URI() == uri {
			return resource, true
		}
	}
	return nil, false
}

// Has reports whether a resource is registered.
func (r *InMemoryResourceRepository) Has(name string) bool {
	_, ok := r.resources.get(name)
	return ok
}

// List returns all resources in registration order.
func (r *InMemoryResourceRepository) List() []domain.Resource {
	return r.resources.values()
}

// Size returns the number of registered resources.
func (r *InMemoryResourceRepository) Size() int {
	return r.resources.size()
}

// Clear removes every resource.
func (r *InMemoryResourceRepository) Clear() {
	r.resources.clear()
}

// InMemoryPromptRepository implements a PromptRepository using in-memory storage.
type InMemoryPromptRepository struct {
	prompts *ordered[domain.Prompt]
	logger  *logging.Logger
}

// NewInMemoryPromptRepository creates a new InMemoryPromptRepository.
func NewInMemoryPromptRepository(logger *logging.Logger) *InMemoryPromptRepository {
	return &InMemoryPromptRepository{
		prompts: newOrdered[domain.Prompt](),
		logger:  logging.OrDefault(logger),
	}
}

// Register adds a prompt to the repository.
func (r *InMemoryPromptRepository) Register(prompt domain.Prompt) {
	if r.prompts.set(prompt.Name(), prompt) {
		r.logger.Warn("prompt replaced", logging.Fields{"name": prompt.Name()})
	}
}

// Unregister removes a prompt from the repository.
func (r *InMemoryPromptRepository) Unregister(name string) error {
	if !r.prompts.remove(name) {
		return domain.NewPromptNotFoundError(name)
	}
	return nil
}

// Get retrieves a prompt by its name.
func (r *InMemoryPromptRepository) Get(name string) (domain.Prompt, bool) {
	return r.prompts.get(name)
}

// Has reports whether a prompt is registered.
func (r *InMemoryPromptRepository) Has(name string) bool {
	_, ok := r.prompts.get(name)
	return ok
}

// List returns all prompts in registration order.
func (r *InMemoryPromptRepository) List() []domain.Prompt {
	return r.prompts.values()
}

// Size returns the number of registered prompts.
func (r *InMemoryPromptRepository) Size() int {
	return r.prompts.size()
}

// Clear removes every prompt.
func (r *InMemoryPromptRepository) Clear() {
	r.prompts.clear()
}

var (
	_ domain.ToolRepository     = (*InMemoryToolRepository)(nil)
	_ domain.ResourceRepository = (*InMemoryResourceRepository)(nil)
	_ domain.PromptRepository   = (*InMemoryPromptRepository)(nil)
)

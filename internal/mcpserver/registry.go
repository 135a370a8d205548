package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	ierrors "github.com/jamesprial/mcp-oauth-tools/internal/errors"
)

// catalog is a string-keyed set of entries listed in key order.
type catalog[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
}

func newCatalog[T any]() *catalog[T] {
	return &catalog[T]{entries: make(map[string]T)}
}

func (c *catalog[T]) add(key string, entry T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		return false
	}
	c.entries[key] = entry
	return true
}

func (c *catalog[T]) get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok
}

func (c *catalog[T]) sorted() []T {
	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	out := make([]T, len(keys))
	for i, key := range keys {
		out[i] = c.entries[key]
	}
	c.mu.RUnlock()
	return out
}

func registryError(op string, kind error, err error) *ierrors.DomainError {
	return ierrors.New("mcp", op, kind, err)
}

// toolRegistry implements ToolRegistry. Tools are keyed by definition name.
type toolRegistry struct {
	tools *catalog[Tool]
}

// NewToolRegistry creates an empty, thread-safe tool registry.
func NewToolRegistry() ToolRegistry {
	return &toolRegistry{tools: newCatalog[Tool]()}
}

// RegisterTool requires a name and a description; names are unique.
func (r *toolRegistry) RegisterTool(tool Tool) error {
	if tool == nil {
		return registryError("RegisterTool", ierrors.ErrBadRequest, errors.New("tool cannot be nil"))
	}
	def := tool.Definition()
	switch {
	case def.Name == "":
		return registryError("RegisterTool", ierrors.ErrBadRequest, errors.New("tool name cannot be empty"))
	case def.Description == "":
		return registryError("RegisterTool", ierrors.ErrBadRequest, errors.New("tool description cannot be empty")).
			WithContext("tool_name", def.Name)
	}

	if !r.tools.add(def.Name, tool) {
		return registryError("RegisterTool", ierrors.ErrBadRequest, ErrToolAlreadyRegistered).
			WithContext("tool_name", def.Name)
	}
	return nil
}

// GetTool returns the tool registered under name.
func (r *toolRegistry) GetTool(name string) (Tool, error) {
	tool, ok := r.tools.get(name)
	if !ok {
		return nil, registryError("GetTool", ierrors.ErrNotFound, ErrToolNotFound).
			WithContext("tool_name", name)
	}
	return tool, nil
}

// ListTools returns every tool definition, sorted by name.
func (r *toolRegistry) ListTools() []mcp.Tool {
	tools := r.tools.sorted()
	defs := make([]mcp.Tool, len(tools))
	for i, tool := range tools {
		defs[i] = tool.Definition()
	}
	return defs
}

// resourceRegistry implements ResourceRegistry. Providers are keyed by URI.
type resourceRegistry struct {
	providers *catalog[ResourceProvider]
}

// NewResourceRegistry creates an empty, thread-safe resource registry.
func NewResourceRegistry() ResourceRegistry {
	return &resourceRegistry{providers: newCatalog[ResourceProvider]()}
}

// RegisterResource registers provider under its definition URI. Empty and
// duplicate URIs are rejected.
func (r *resourceRegistry) RegisterResource(provider ResourceProvider) error {
	if provider == nil {
		return registryError("RegisterResource", ierrors.ErrBadRequest, errors.New("resource provider cannot be nil"))
	}
	uri := provider.Definition().URI
	if uri == "" {
		return registryError("RegisterResource", ierrors.ErrBadRequest, errors.New("resource uri cannot be empty"))
	}

	if !r.providers.add(uri, provider) {
		return registryError("RegisterResource", ierrors.ErrBadRequest, ErrResourceAlreadyRegistered).
			WithContext("resource_uri", uri)
	}
	return nil
}

// GetResource reads outside the registry lock; providers may be slow.
func (r *resourceRegistry) GetResource(ctx context.Context, uri string) (*mcp.TextResourceContents, error) {
	provider, ok := r.providers.get(uri)
	if !ok {
		return nil, registryError("GetResource", ierrors.ErrNotFound, ErrResourceNotFound).
			WithContext("resource_uri", uri)
	}

	contents, err := provider.Read(ctx)
	if err != nil {
		return nil, registryError("GetResource", ierrors.ErrInternal, fmt.Errorf("failed to read resource: %w", err)).
			WithContext("resource_uri", uri)
	}
	return contents, nil
}

// ListResources returns every resource definition, sorted by URI.
func (r *resourceRegistry) ListResources() []mcp.Resource {
	providers := r.providers.sorted()
	defs := make([]mcp.Resource, len(providers))
	for i, provider := range providers {
		defs[i] = provider.Definition()
	}
	return defs
}

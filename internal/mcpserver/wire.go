package mcpserver

// Config holds configuration for MCP services.
type Config struct {
	ServerName    string
	ServerVersion string

	// Instructions is returned from initialize as a hint to the client.
	Instructions string
}

// NewHandler creates a new MCP protocol handler.
func NewHandler(cfg *Config, toolRegistry ToolRegistry, resourceRegistry ResourceRegistry) Handler {
	if cfg == nil {
		panic("config cannot be nil")
	}

	info := serverInfo{
		Name:         cfg.ServerName,
		Version:      cfg.ServerVersion,
		Instructions: cfg.Instructions,
	}

	return newHandler(toolRegistry, resourceRegistry, info)
}

// NewServices creates a handler with empty registries. Register tools and
// resources before serving; registries are not expected to change afterwards.
func NewServices(cfg *Config) (Handler, ToolRegistry, ResourceRegistry) {
	toolRegistry := NewToolRegistry()
	resourceRegistry := NewResourceRegistry()
	handler := NewHandler(cfg, toolRegistry, resourceRegistry)

	return handler, toolRegistry, resourceRegistry
}

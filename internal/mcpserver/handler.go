package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// handler routes JSON-RPC requests to the tool and resource registries.
// It holds no per-session state.
type handler struct {
	toolRegistry     ToolRegistry
	resourceRegistry ResourceRegistry
	serverInfo       serverInfo
}

type serverInfo struct {
	Name         string
	Version      string
	Instructions string
}

func newHandler(toolRegistry ToolRegistry, resourceRegistry ResourceRegistry, info serverInfo) Handler {
	if toolRegistry == nil {
		panic("toolRegistry cannot be nil")
	}
	if resourceRegistry == nil {
		panic("resourceRegistry cannot be nil")
	}
	return &handler{
		toolRegistry:     toolRegistry,
		resourceRegistry: resourceRegistry,
		serverInfo:       info,
	}
}

// HandleRequest processes an MCP JSON-RPC message.
func (h *handler) HandleRequest(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return h.errorResponse(nil, CodeInvalidRequest, "request cannot be nil", nil), nil
	}

	if req.JSONRPC != JSONRPCVersion {
		return h.errorResponse(req.ID, CodeInvalidRequest, "invalid jsonrpc version", nil), nil
	}
	if req.Method == "" {
		return h.errorResponse(req.ID, CodeInvalidRequest, "method is required", nil), nil
	}
	if req.idPresent && !validID(req.ID) {
		return h.errorResponse(nil, CodeInvalidRequest, "id must be a string or number", nil), nil
	}

	if req.IsNotification() {
		h.handleNotification(req)
		return nil, nil
	}

	switch req.Method {
	case "initialize":
		return h.handleInitialize(req)
	case "ping":
		return h.result(req.ID, emptyResult{}), nil
	case "tools/list":
		return h.result(req.ID, mcp.ListToolsResult{Tools: h.toolRegistry.ListTools()}), nil
	case "tools/call":
		return h.handleToolsCall(ctx, req)
	case "resources/list":
		return h.result(req.ID, mcp.ListResourcesResult{Resources: h.resourceRegistry.ListResources()}), nil
	case "resources/read":
		return h.handleResourcesRead(ctx, req)
	default:
		return h.errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil), nil
	}
}

func (h *handler) handleNotification(req *Request) {
	if !strings.HasPrefix(req.Method, "notifications/") {
		slog.Debug("ignoring notification for request method", "method", req.Method)
		return
	}
	slog.Debug("notification received", "method", req.Method)
}

func (h *handler) handleInitialize(req *Request) (*Response, error) {
	var params InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return h.errorResponse(req.ID, CodeInvalidParams, "invalid initialize params", err.Error()), nil
		}
	}

	version := LatestProtocolVersion
	if slices.Contains(SupportedProtocolVersions, params.ProtocolVersion) {
		version = params.ProtocolVersion
	}

	slog.Debug("client initialized",
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
		"protocol_version", version)

	return h.result(req.ID, InitializeResult{
		ProtocolVersion: version,
		ServerInfo: ServerInfoResponse{
			Name:    h.serverInfo.Name,
			Version: h.serverInfo.Version,
		},
		Capabilities: Capabilities{
			Tools:     &ToolsCapability{},
			Resources: &ResourcesCapability{},
		},
		Instructions: h.serverInfo.Instructions,
	}), nil
}

// handleToolsCall resolves the tool and checks its arguments before running
// it. Neither an unknown name nor a bad argument shape invokes anything.
func (h *handler) handleToolsCall(ctx context.Context, req *Request) (*Response, error) {
	if len(req.Params) == 0 {
		return h.errorResponse(req.ID, CodeInvalidParams, "params required", nil), nil
	}

	var params ToolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return h.errorResponse(req.ID, CodeInvalidParams, "invalid tools/call params", err.Error()), nil
	}
	if params.Name == "" {
		return h.errorResponse(req.ID, CodeInvalidParams, "tool name is required", nil), nil
	}

	tool, err := h.toolRegistry.GetTool(params.Name)
	if err != nil {
		if errors.Is(err, ErrToolNotFound) {
			return h.errorResponse(req.ID, CodeToolNotFound, fmt.Sprintf("tool not found: %s", params.Name), nil), nil
		}
		return h.errorResponse(req.ID, CodeInternalError, "failed to get tool", err.Error()), nil
	}

	args, err := decodeArguments(params.Arguments, tool.Definition().InputSchema)
	if err != nil {
		return h.errorResponse(req.ID, CodeInvalidParams, err.Error(), map[string]any{"tool": params.Name}), nil
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		slog.Warn("tool execution failed", "tool", params.Name, "error", err)
		return h.result(req.ID, mcp.NewToolResultError(err.Error())), nil
	}
	if result == nil {
		result = &mcp.CallToolResult{Content: []mcp.Content{}}
	}

	return h.result(req.ID, result), nil
}

func (h *handler) handleResourcesRead(ctx context.Context, req *Request) (*Response, error) {
	if len(req.Params) == 0 {
		return h.errorResponse(req.ID, CodeInvalidParams, "params required", nil), nil
	}

	var params ResourcesReadParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return h.errorResponse(req.ID, CodeInvalidParams, "invalid resources/read params", err.Error()), nil
	}
	if params.URI == "" {
		return h.errorResponse(req.ID, CodeInvalidParams, "resource uri is required", nil), nil
	}

	contents, err := h.resourceRegistry.GetResource(ctx, params.URI)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return h.errorResponse(req.ID, CodeResourceNotFound, fmt.Sprintf("resource not found: %s", params.URI), nil), nil
		}
		return h.errorResponse(req.ID, CodeInternalError, "failed to read resource", err.Error()), nil
	}

	return h.result(req.ID, mcp.ReadResourceResult{
		Contents: []mcp.ResourceContents{*contents},
	}), nil
}

func (h *handler) result(id any, result any) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
	}
}

func (h *handler) errorResponse(id any, code int, message string, data any) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

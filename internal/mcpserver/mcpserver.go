// Package mcpserver implements the server side of the Model Context Protocol:
// JSON-RPC 2.0 dispatch, the tool registry and the resource registry.
// Tool and resource shapes are the mcp-go types so clients built on mcp-go
// decode them without translation.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handler processes MCP protocol requests.
type Handler interface {
	// HandleRequest processes one JSON-RPC message. It returns a nil
	// Response for notifications, which get no reply.
	//
	// Protocol failures are reported inside the Response; the error return
	// is reserved for failures that prevent building any response.
	HandleRequest(ctx context.Context, req *Request) (*Response, error)
}

// Request represents an MCP JSON-RPC 2.0 request or notification.
type Request struct {
	JSONRPC string `json:"jsonrpc"`

	// ID is the request identifier. Notifications omit it.
	ID any `json:"id,omitempty"`

	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`

	// idPresent is set when a decoded message had an id member, null included.
	idPresent bool
}

// UnmarshalJSON keeps track of whether the id member was present, so an
// explicit null id is not mistaken for a notification.
func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	_, p.idPresent = members["id"]
	*r = Request(p)
	return nil
}

// Response represents an MCP JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`

	// ID matches the request ID. It is null when the request could not be
	// parsed far enough to read one.
	ID any `json:"id"`

	Result any    `json:"result,omitempty"`
	Error  *Error `json:"error,omitempty"`
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`

	// Cause is the underlying error (not serialized to JSON).
	Cause error `json:"-"`
}

const (
	// LatestProtocolVersion is offered when the client asks for a version
	// this server does not speak.
	LatestProtocolVersion = "2025-06-18"

	JSONRPCVersion = "2.0"
)

// SupportedProtocolVersions are echoed back when a client requests one of them.
var SupportedProtocolVersions = []string{"2025-06-18", "2025-03-26", "2024-11-05"}

// Standard JSON-RPC 2.0 error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// MCP-specific error codes
const (
	CodeResourceNotFound = -32002
	CodeToolNotFound     = -32003
)

// ToolRegistry manages MCP tools. It is safe for concurrent use.
type ToolRegistry interface {
	// RegisterTool registers tool under its definition name. Empty and
	// duplicate names are rejected.
	RegisterTool(tool Tool) error

	// GetTool returns ErrToolNotFound when no tool has that name.
	GetTool(name string) (Tool, error)

	// ListTools returns all definitions sorted by name.
	ListTools() []mcp.Tool
}

// Tool is an executable MCP tool.
type Tool interface {
	// Execute runs the tool. args has already been checked against the
	// definition's input schema. A returned error is reported to the client
	// as a tool result with isError set.
	Execute(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error)

	Definition() mcp.Tool
}

// ResourceRegistry manages read-only MCP resources.
type ResourceRegistry interface {
	RegisterResource(provider ResourceProvider) error

	// GetResource reads the resource registered under uri.
	GetResource(ctx context.Context, uri string) (*mcp.TextResourceContents, error)

	// ListResources returns all definitions sorted by URI.
	ListResources() []mcp.Resource
}

// ResourceProvider serves the content of one resource.
type ResourceProvider interface {
	Read(ctx context.Context) (*mcp.TextResourceContents, error)
	Definition() mcp.Resource
}

// NewError creates a new Error with the given code, message, and optional data.
func NewError(code int, message string, data any) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("JSON-RPC error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Validate checks the JSON-RPC envelope.
func (r *Request) Validate() error {
	if r.JSONRPC != JSONRPCVersion {
		return ErrInvalidRequest
	}
	if r.Method == "" {
		return ErrInvalidRequest
	}
	if r.idPresent && !validID(r.ID) {
		return ErrInvalidRequest
	}
	return nil
}

// IsNotification reports whether the message expects no response. Only a
// message with no id member at all is a notification.
func (r *Request) IsNotification() bool {
	return r.ID == nil && !r.idPresent
}

// validID accepts the decoded forms of a string or number id. MCP forbids null.
func validID(id any) bool {
	switch id.(type) {
	case string, float64:
		return true
	default:
		return false
	}
}

// IsError returns true if the response contains an error.
func (r *Response) IsError() bool {
	return r.Error != nil
}

// Package tools holds the tools served by the tool server.
package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// EchoToolName is the registered name of the echo tool.
const EchoToolName = "echo"

// Echo returns its message argument unchanged.
type Echo struct{}

// NewEcho creates the echo tool.
func NewEcho() *Echo {
	return &Echo{}
}

// Definition declares a single required string argument, message.
func (e *Echo) Definition() mcp.Tool {
	return mcp.NewTool(EchoToolName,
		mcp.WithDescription("Echo the provided message."),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The message to echo back"),
		),
	)
}

// Execute returns the message as one text content item.
func (e *Echo) Execute(_ context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	message, _ := args["message"].(string)
	return mcp.NewToolResultText(message), nil
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jamesprial/mcp-oauth-tools/internal/oauth"
)

// UserInfoToolName is the registered name of the user info tool.
const UserInfoToolName = "get_user_info"

// UserInfo is the get_user_info response body.
type UserInfo struct {
	Message       string   `json:"message"`
	Authenticated bool     `json:"authenticated"`
	Provider      string   `json:"provider"`
	Subject       string   `json:"subject,omitempty"`
	Issuer        string   `json:"issuer,omitempty"`
	ClientID      string   `json:"client_id,omitempty"`
	Scopes        []string `json:"scopes"`
	ExpiresAt     string   `json:"expires_at,omitempty"`
}

// GetUserInfo reports the identity the auth gate attached to the request.
type GetUserInfo struct {
	provider string
}

// NewGetUserInfo creates the tool. provider is reported verbatim.
func NewGetUserInfo(provider string) *GetUserInfo {
	return &GetUserInfo{provider: provider}
}

// Definition declares a tool that takes no arguments.
func (g *GetUserInfo) Definition() mcp.Tool {
	return mcp.NewTool(UserInfoToolName,
		mcp.WithDescription("Get information about the authenticated user."),
	)
}

// Execute returns a UserInfo as JSON text. Authenticated is true only when
// a validated identity is in ctx.
func (g *GetUserInfo) Execute(ctx context.Context, _ map[string]any) (*mcp.CallToolResult, error) {
	info := UserInfo{
		Provider: g.provider,
		Scopes:   []string{},
	}

	identity, ok := oauth.IdentityFromContext(ctx)
	if !ok {
		info.Message = "No authenticated user on this request."
	} else {
		info.Message = "Authenticated via OAuth."
		info.Authenticated = true
		info.Subject = identity.Subject
		info.Issuer = identity.Issuer
		info.ClientID = identity.ClientID
		if len(identity.Scopes) > 0 {
			info.Scopes = identity.Scopes
		}
		if !identity.ExpiresAt.IsZero() {
			info.ExpiresAt = identity.ExpiresAt.UTC().Format(time.RFC3339)
		}
	}

	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user info: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// Package resources holds the read-only resources served by the tool server.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jamesprial/mcp-oauth-tools/internal/oauth"
)

const ProtectedResourceMetadataURI = "oauth://protected-resource-metadata"

// ProtectedResourceMetadata exposes the RFC 9728 document as an MCP resource.
type ProtectedResourceMetadata struct {
	service oauth.MetadataService
}

func NewProtectedResourceMetadata(service oauth.MetadataService) *ProtectedResourceMetadata {
	return &ProtectedResourceMetadata{service: service}
}

func (p *ProtectedResourceMetadata) Definition() mcp.Resource {
	return mcp.NewResource(ProtectedResourceMetadataURI,
		"Protected resource metadata",
		mcp.WithResourceDescription("OAuth 2.0 protected resource metadata (RFC 9728) for this server."),
		mcp.WithMIMEType("application/json"),
	)
}

func (p *ProtectedResourceMetadata) Read(ctx context.Context) (*mcp.TextResourceContents, error) {
	doc, err := p.service.GetMetadata(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return &mcp.TextResourceContents{
		URI:      ProtectedResourceMetadataURI,
		MIMEType: "application/json",
		Text:     string(data),
	}, nil
}

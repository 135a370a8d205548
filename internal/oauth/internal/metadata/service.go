// Package metadata builds the RFC 9728 protected resource metadata document.
package metadata

import (
	"context"
	"fmt"
	"strings"

	pkgoauth "github.com/jamesprial/mcp-oauth-tools/pkg/oauth"
)

// WellKnownPath is where the document is served, relative to the base URL.
const WellKnownPath = pkgoauth.WellKnownProtectedResource

// ProtectedResourceMetadata is the RFC 9728 document.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
	ResourceName           string   `json:"resource_name,omitempty"`

	// ClientID is a public client pre-registered with the provider for this
	// resource. Clients that find it can skip dynamic registration.
	ClientID string `json:"client_id,omitempty"`
}

// Options configure a Service.
type Options struct {
	// BaseURL is the public origin of the server. The document URL is
	// derived from it.
	BaseURL string

	// ResourceID is the resource identifier tokens must carry in aud.
	ResourceID string

	// ProviderURL is the single trusted authorization server.
	ProviderURL string

	ScopesSupported []string
	ResourceName    string
	ClientID        string
}

// Service serves a fixed metadata document. The document never changes
// after construction.
type Service struct {
	doc         ProtectedResourceMetadata
	metadataURL string
}

// NewService creates a metadata service. It fails when the document would
// not satisfy RFC 9728.
func NewService(opts Options) (*Service, error) {
	doc := ProtectedResourceMetadata{
		Resource:               opts.ResourceID,
		AuthorizationServers:   []string{strings.TrimRight(opts.ProviderURL, "/")},
		ScopesSupported:        opts.ScopesSupported,
		BearerMethodsSupported: []string{"header"},
		ResourceName:           opts.ResourceName,
		ClientID:               opts.ClientID,
	}
	if err := ValidateMetadata(&doc); err != nil {
		return nil, err
	}

	return &Service{
		doc:         doc,
		metadataURL: strings.TrimRight(opts.BaseURL, "/") + WellKnownPath,
	}, nil
}

// GetMetadata returns a copy of the document.
func (s *Service) GetMetadata(_ context.Context) (*ProtectedResourceMetadata, error) {
	doc := s.doc
	doc.AuthorizationServers = append([]string(nil), s.doc.AuthorizationServers...)
	doc.ScopesSupported = append([]string(nil), s.doc.ScopesSupported...)
	doc.BearerMethodsSupported = append([]string(nil), s.doc.BearerMethodsSupported...)
	return &doc, nil
}

// GetMetadataURL returns the absolute URL of the document.
func (s *Service) GetMetadataURL() string {
	return s.metadataURL
}

// ValidateMetadata checks the fields RFC 9728 requires.
func ValidateMetadata(doc *ProtectedResourceMetadata) error {
	if doc.Resource == "" {
		return fmt.Errorf("resource field is required")
	}

	if len(doc.AuthorizationServers) == 0 {
		return fmt.Errorf("authorization_servers field must contain at least one server")
	}

	for _, server := range doc.AuthorizationServers {
		if server == "" {
			return fmt.Errorf("authorization server URL cannot be empty")
		}
		if !strings.HasPrefix(server, "https://") && !isLocalHTTP(server) {
			return fmt.Errorf("authorization server URL must use HTTPS (or http on localhost): %s", server)
		}
	}

	return nil
}

func isLocalHTTP(server string) bool {
	for _, prefix := range []string{"http://localhost", "http://127.0.0.1", "http://[::1]"} {
		if strings.HasPrefix(server, prefix) {
			return true
		}
	}
	return false
}

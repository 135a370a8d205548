// Package oauth integrates the tool server with its identity provider.
// It validates bearer tokens against the provider's published signing keys
// and serves RFC 9728 protected resource metadata.
package oauth

import (
	"context"
	"slices"
	"time"
)

// TokenValidator validates access tokens issued by the identity provider.
type TokenValidator interface {
	// ValidateToken verifies the token signature against the provider JWKS,
	// checks time claims with clock skew tolerance, requires the issuer to be
	// the provider and the audience to contain this resource.
	//
	// Errors are DomainErrors of kind ErrUnauthorized for bad tokens and
	// ErrInternal when the provider cannot be reached.
	ValidateToken(ctx context.Context, token string) (*Identity, error)
}

// Identity is the authentication context derived from one validated token.
// It is attached to a single request and discarded with it.
type Identity struct {
	// Subject is the sub claim, the authenticated user or service.
	Subject string

	// Issuer is the iss claim; always the configured provider.
	Issuer string

	// Audience is the aud claim.
	Audience []string

	// Scopes is parsed from the space-separated scope claim (or scp array).
	Scopes []string

	// ClientID is the OAuth client that obtained the token (client_id or azp).
	ClientID string

	ExpiresAt time.Time
	IssuedAt  time.Time

	// JTI is the JWT ID, when the provider sets one.
	JTI string
}

// HasScope returns true if the identity has the specified scope.
func (i *Identity) HasScope(scope string) bool {
	return i != nil && slices.Contains(i.Scopes, scope)
}

// HasAnyScope returns true if the identity has any of the specified scopes.
// Returns false if scopes is empty.
func (i *Identity) HasAnyScope(scopes ...string) bool {
	for _, s := range scopes {
		if i.HasScope(s) {
			return true
		}
	}
	return false
}

// HasAllScopes returns true if the identity has every specified scope.
// An empty list is always satisfied.
func (i *Identity) HasAllScopes(scopes ...string) bool {
	for _, s := range scopes {
		if !i.HasScope(s) {
			return false
		}
	}
	return true
}

// MissingScopes returns the required scopes the identity lacks.
func (i *Identity) MissingScopes(required ...string) []string {
	var missing []string
	for _, s := range required {
		if !i.HasScope(s) {
			missing = append(missing, s)
		}
	}
	return missing
}

// MetadataService provides Protected Resource Metadata per RFC 9728.
type MetadataService interface {
	// GetMetadata returns the protected resource metadata document.
	GetMetadata(ctx context.Context) (*ProtectedResourceMetadata, error)

	// GetMetadataURL returns the URL where the document is served:
	// {baseURL}/.well-known/oauth-protected-resource
	GetMetadataURL() string
}

// ProtectedResourceMetadata is the RFC 9728 document clients use to find
// the authorization server for this resource.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
	ResourceName           string   `json:"resource_name,omitempty"`
	ClientID               string   `json:"client_id,omitempty"`
}

// JWKSClient resolves signing keys published by the identity provider.
type JWKSClient interface {
	// GetKey returns the public key (*rsa.PublicKey or *ecdsa.PublicKey) for kid.
	// An unknown kid triggers one refetch of the key set.
	GetKey(ctx context.Context, keyID string) (any, error)

	// RefreshKeys drops cached keys and refetches the key set.
	RefreshKeys(ctx context.Context) error
}

// ScopeChecker validates identity scopes against required scopes.
type ScopeChecker interface {
	// RequireScopes returns an insufficient_scope DomainError unless every
	// required scope is present.
	RequireScopes(identity *Identity, required ...string) error

	// RequireAnyScope returns an insufficient_scope DomainError unless at
	// least one scope is present.
	RequireAnyScope(identity *Identity, scopes ...string) error
}

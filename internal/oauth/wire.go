package oauth

import (
	"context"
	"net/http"
	"time"

	"github.com/jamesprial/mcp-oauth-tools/internal/oauth/internal/jwks"
	"github.com/jamesprial/mcp-oauth-tools/internal/oauth/internal/metadata"
	"github.com/jamesprial/mcp-oauth-tools/internal/oauth/internal/token"
)

// Config holds the configuration needed to construct OAuth services.
type Config struct {
	// BaseURL is the public origin of this server.
	BaseURL string

	// ProviderURL is the identity provider. It is both the trusted issuer
	// and the only advertised authorization server.
	ProviderURL string

	// ResourceID is the value tokens must carry in aud.
	ResourceID string

	// ResourceName is the human readable name in the metadata document.
	ResourceName string

	// ClientID, when set, is advertised in the metadata document for clients
	// that cannot register dynamically.
	ClientID string

	ScopesSupported []string

	JWKSCacheTTL time.Duration
	ClockSkew    time.Duration

	// HTTPClient is used for discovery and JWKS fetches. Nil uses a default.
	HTTPClient *http.Client
}

type tokenValidatorAdapter struct {
	validator *token.Validator
}

func (a *tokenValidatorAdapter) ValidateToken(ctx context.Context, tokenString string) (*Identity, error) {
	claims, err := a.validator.ValidateToken(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	return &Identity{
		Subject:   claims.Subject,
		Issuer:    claims.Issuer,
		Audience:  claims.Audience,
		Scopes:    claims.Scopes,
		ClientID:  claims.ClientID,
		ExpiresAt: claims.ExpiresAt,
		IssuedAt:  claims.IssuedAt,
		JTI:       claims.JTI,
	}, nil
}

type metadataServiceAdapter struct {
	service *metadata.Service
}

func (a *metadataServiceAdapter) GetMetadata(ctx context.Context) (*ProtectedResourceMetadata, error) {
	meta, err := a.service.GetMetadata(ctx)
	if err != nil {
		return nil, err
	}
	return &ProtectedResourceMetadata{
		Resource:               meta.Resource,
		AuthorizationServers:   meta.AuthorizationServers,
		ScopesSupported:        meta.ScopesSupported,
		BearerMethodsSupported: meta.BearerMethodsSupported,
		ResourceName:           meta.ResourceName,
		ClientID:               meta.ClientID,
	}, nil
}

func (a *metadataServiceAdapter) GetMetadataURL() string {
	return a.service.GetMetadataURL()
}

type scopeCheckerAdapter struct {
	checker *token.ScopeChecker
}

func (a *scopeCheckerAdapter) RequireScopes(identity *Identity, required ...string) error {
	return a.checker.RequireScopes(identityScopes(identity), required...)
}

func (a *scopeCheckerAdapter) RequireAnyScope(identity *Identity, scopes ...string) error {
	return a.checker.RequireAnyScope(identityScopes(identity), scopes...)
}

func identityScopes(identity *Identity) []string {
	if identity == nil {
		return nil
	}
	return identity.Scopes
}

// NewJWKSClient creates a JWKS client for the configured provider.
func NewJWKSClient(cfg *Config) JWKSClient {
	return jwks.NewClient(cfg.ProviderURL, cfg.JWKSCacheTTL, cfg.HTTPClient)
}

// NewTokenValidator creates a validator that trusts keys from jwksClient,
// requires iss to be the provider and aud to contain the resource ID.
func NewTokenValidator(cfg *Config, jwksClient JWKSClient) TokenValidator {
	validator := token.NewValidator(jwksClient, cfg.ProviderURL, cfg.ResourceID, cfg.ClockSkew)
	return &tokenValidatorAdapter{validator: validator}
}

// NewMetadataService creates the RFC 9728 metadata service.
func NewMetadataService(cfg *Config) (MetadataService, error) {
	service, err := metadata.NewService(metadata.Options{
		BaseURL:         cfg.BaseURL,
		ResourceID:      cfg.ResourceID,
		ProviderURL:     cfg.ProviderURL,
		ScopesSupported: cfg.ScopesSupported,
		ResourceName:    cfg.ResourceName,
		ClientID:        cfg.ClientID,
	})
	if err != nil {
		return nil, err
	}
	return &metadataServiceAdapter{service: service}, nil
}

func NewScopeChecker() ScopeChecker {
	return &scopeCheckerAdapter{checker: token.NewScopeChecker()}
}

// Services bundles everything the HTTP layer needs from this package.
type Services struct {
	Validator TokenValidator
	Metadata  MetadataService
	Scopes    ScopeChecker
	JWKS      JWKSClient
}

// NewServices creates all OAuth services from the configuration.
func NewServices(cfg *Config) (*Services, error) {
	jwksClient := NewJWKSClient(cfg)
	meta, err := NewMetadataService(cfg)
	if err != nil {
		return nil, err
	}
	return &Services{
		Validator: NewTokenValidator(cfg, jwksClient),
		Metadata:  meta,
		Scopes:    NewScopeChecker(),
		JWKS:      jwksClient,
	}, nil
}

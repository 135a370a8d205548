package clientauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	pkgoauth "github.com/jamesprial/mcp-oauth-tools/pkg/oauth"
)

const maxMetadataBytes = 1 << 20

// ResourceMetadata is the RFC 9728 document published by the tool server.
type ResourceMetadata struct {
	Resource             string   `json:"resource"`
	AuthorizationServers []string `json:"authorization_servers"`
	ScopesSupported      []string `json:"scopes_supported,omitempty"`
	ResourceName         string   `json:"resource_name,omitempty"`

	// ClientID is a client the server has pre-registered with its
	// authorization server. Not part of RFC 9728.
	ClientID string `json:"client_id,omitempty"`
}

// ServerMetadata is the RFC 8414 / OpenID Connect discovery document.
type ServerMetadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	RegistrationEndpoint          string   `json:"registration_endpoint,omitempty"`
	ScopesSupported               []string `json:"scopes_supported,omitempty"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// SupportsS256 reports whether the server accepts S256 PKCE. Servers that
// do not list any method are assumed to, as OAuth 2.1 requires it.
func (m *ServerMetadata) SupportsS256() bool {
	return len(m.CodeChallengeMethodsSupported) == 0 ||
		slices.Contains(m.CodeChallengeMethodsSupported, pkgoauth.CodeChallengeMethodS256)
}

// Discovery is everything learned about a protected MCP endpoint before
// authorizing against it.
type Discovery struct {
	ResourceMetadataURL string
	Resource            *ResourceMetadata
	AuthServer          *ServerMetadata
}

// Discover finds the authorization server protecting mcpURL. It sends an
// unauthenticated request and follows the resource_metadata parameter of
// the 401 challenge. Without one it falls back to the well-known location
// at the origin of mcpURL.
func Discover(ctx context.Context, httpClient *http.Client, mcpURL string) (*Discovery, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	metadataURL, err := probeResourceMetadataURL(ctx, httpClient, mcpURL)
	if err != nil {
		return nil, err
	}

	var resource ResourceMetadata
	if err := getJSON(ctx, httpClient, metadataURL, &resource); err != nil {
		return nil, fmt.Errorf("%w: resource metadata: %w", ErrDiscovery, err)
	}
	if len(resource.AuthorizationServers) == 0 {
		return nil, fmt.Errorf("%w: resource metadata at %s lists no authorization servers", ErrDiscovery, metadataURL)
	}

	authServer, err := DiscoverServerMetadata(ctx, httpClient, resource.AuthorizationServers[0])
	if err != nil {
		return nil, err
	}

	return &Discovery{
		ResourceMetadataURL: metadataURL,
		Resource:            &resource,
		AuthServer:          authServer,
	}, nil
}

// DiscoverServerMetadata fetches issuer metadata, trying RFC 8414 first and
// then OpenID Connect discovery.
func DiscoverServerMetadata(ctx context.Context, httpClient *http.Client, issuer string) (*ServerMetadata, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	issuer = strings.TrimRight(issuer, "/")

	var lastErr error
	for _, path := range []string{pkgoauth.WellKnownAuthorizationServer, pkgoauth.WellKnownOpenIDConfiguration} {
		var meta ServerMetadata
		if err := getJSON(ctx, httpClient, issuer+path, &meta); err != nil {
			lastErr = err
			continue
		}
		if meta.AuthorizationEndpoint == "" || meta.TokenEndpoint == "" {
			lastErr = fmt.Errorf("%s lacks authorization or token endpoint", issuer+path)
			continue
		}
		if !meta.SupportsS256() {
			return nil, fmt.Errorf("%w: %s does not support S256 PKCE", ErrDiscovery, issuer)
		}
		return &meta, nil
	}

	return nil, fmt.Errorf("%w: authorization server metadata for %s: %w", ErrDiscovery, issuer, lastErr)
}

func probeResourceMetadataURL(ctx context.Context, httpClient *http.Client, mcpURL string) (string, error) {
	fallback, err := wellKnownAtOrigin(mcpURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mcpURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: probe %s: %w", ErrDiscovery, mcpURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxMetadataBytes))

	if challenge := pkgoauth.ChallengeFromResponse(resp); challenge != nil && challenge.ResourceMetadata != "" {
		return challenge.ResourceMetadata, nil
	}
	return fallback, nil
}

func wellKnownAtOrigin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: invalid server URL %q", ErrDiscovery, rawURL)
	}
	return u.Scheme + "://" + u.Host + pkgoauth.WellKnownProtectedResource, nil
}

func getJSON(ctx context.Context, httpClient *http.Client, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set(pkgoauth.HeaderAccept, pkgoauth.ContentTypeJSON)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxMetadataBytes)).Decode(v); err != nil {
		return fmt.Errorf("GET %s: %w", rawURL, err)
	}
	return nil
}

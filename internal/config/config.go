// Package config provides configuration management for the OAuth tool server.
// Values come from an optional YAML file and are overridden by environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// DefaultServerName is reported in the MCP initialize result.
const DefaultServerName = "OAuth Tool Server"

// Config holds the complete server configuration in a flat structure.
type Config struct {
	// Server settings
	// Addr is the address to bind the HTTP server (e.g., ":8000").
	Addr string

	// BaseURL is the externally reachable base URL of this server (e.g., "https://tools.example.com").
	// Resource metadata and WWW-Authenticate challenges are derived from it.
	BaseURL string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration

	// IdleTimeout is the maximum duration to wait for the next request when keep-alives are enabled.
	IdleTimeout time.Duration

	// ServerName is reported to MCP clients during initialize.
	ServerName string

	// Identity provider settings
	// ProviderURL is the identity provider environment URL. It is both the
	// expected token issuer and the authorization server advertised to clients.
	ProviderURL string

	// ClientID is the OAuth client identifier registered with the provider.
	ClientID string

	// ResourceID is the protected-resource identifier. Access tokens must
	// carry it in their audience claim.
	ResourceID string

	// RequiredScopes must all be present on a token before any MCP request is served.
	RequiredScopes []string

	// ScopesSupported is advertised in the protected resource metadata.
	ScopesSupported []string

	// JWKSCacheTTL is how long to cache signing keys from the provider.
	JWKSCacheTTL time.Duration

	// ClockSkew is the leeway applied to time-based token claims.
	ClockSkew time.Duration

	// MCP settings
	// SessionTTL is the duration before an idle MCP session expires.
	SessionTTL time.Duration
}

// Load reads configuration from environment variables only.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from the YAML file at path (if non-empty) and
// then applies environment overrides. The result is validated before return.
func LoadFile(path string) (*Config, error) {
	fc, err := readFile(path)
	if err != nil {
		return nil, err
	}

	readTimeout, err := parseDurationWithDefault("SERVER_READ_TIMEOUT", fc.Server.ReadTimeout, "30s")
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := parseDurationWithDefault("SERVER_WRITE_TIMEOUT", fc.Server.WriteTimeout, "30s")
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := parseDurationWithDefault("SERVER_IDLE_TIMEOUT", fc.Server.IdleTimeout, "120s")
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_IDLE_TIMEOUT: %w", err)
	}

	jwksCacheTTL, err := parseDurationWithDefault("OAUTH_JWKS_CACHE_TTL", fc.OAuth.JWKSCacheTTL, "1h")
	if err != nil {
		return nil, fmt.Errorf("invalid OAUTH_JWKS_CACHE_TTL: %w", err)
	}

	clockSkew, err := parseDurationWithDefault("OAUTH_CLOCK_SKEW", fc.OAuth.ClockSkew, "1m")
	if err != nil {
		return nil, fmt.Errorf("invalid OAUTH_CLOCK_SKEW: %w", err)
	}

	sessionTTL, err := parseDurationWithDefault("MCP_SESSION_TTL", fc.MCP.SessionTTL, "1h")
	if err != nil {
		return nil, fmt.Errorf("invalid MCP_SESSION_TTL: %w", err)
	}

	baseURL := strings.TrimRight(getEnvWithDefault("SERVER_BASE_URL", fc.Server.BaseURL, "http://localhost:8000"), "/")

	cfg := &Config{
		Addr:         getEnvWithDefault("SERVER_ADDR", fc.Server.Addr, ":8000"),
		BaseURL:      baseURL,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		ServerName:   getEnvWithDefault("MCP_SERVER_NAME", fc.Server.Name, DefaultServerName),

		ProviderURL:     strings.TrimRight(getEnvWithDefault("OAUTH_PROVIDER_URL", fc.OAuth.ProviderURL, ""), "/"),
		ClientID:        getEnvWithDefault("OAUTH_CLIENT_ID", fc.OAuth.ClientID, ""),
		ResourceID:      getEnvWithDefault("OAUTH_RESOURCE_ID", fc.OAuth.ResourceID, baseURL+"/mcp"),
		RequiredScopes:  parseCommaSeparated("OAUTH_REQUIRED_SCOPES", fc.OAuth.RequiredScopes),
		ScopesSupported: parseCommaSeparated("OAUTH_SCOPES_SUPPORTED", fc.OAuth.ScopesSupported),
		JWKSCacheTTL:    jwksCacheTTL,
		ClockSkew:       clockSkew,

		SessionTTL: sessionTTL,
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getEnvWithDefault returns the environment variable value, then the file
// value, then the default, whichever is first non-empty.
func getEnvWithDefault(key, fileValue, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if fileValue != "" {
		return fileValue
	}
	return defaultValue
}

// parseCommaSeparated parses a comma-separated environment variable into a string slice.
// Empty values are filtered out. The file value is used when the variable is unset.
func parseCommaSeparated(key string, fileValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fileValue
	}

	var result []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseDurationWithDefault parses a duration from an environment variable,
// falling back to the file value and then the default.
func parseDurationWithDefault(key, fileValue, defaultValue string) (time.Duration, error) {
	value := getEnvWithDefault(key, fileValue, defaultValue)

	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("cannot parse duration %q: %w", value, err)
	}
	return duration, nil
}

// String returns a string representation of the configuration (for debugging).
// The client ID is redacted.
func (c *Config) String() string {
	clientID := ""
	if c.ClientID != "" {
		clientID = "[REDACTED]"
	}
	return fmt.Sprintf("Config{Addr: %s, BaseURL: %s, ProviderURL: %s, ClientID: %s, ResourceID: %s, RequiredScopes: %v, ScopesSupported: %v, JWKSCacheTTL: %v, ClockSkew: %v, SessionTTL: %v}",
		c.Addr, c.BaseURL, c.ProviderURL, clientID, c.ResourceID,
		c.RequiredScopes, c.ScopesSupported, c.JWKSCacheTTL, c.ClockSkew, c.SessionTTL)
}

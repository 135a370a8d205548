package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the YAML layout accepted by --config.
// Durations are strings in time.ParseDuration syntax.
type fileConfig struct {
	Server struct {
		Addr         string `yaml:"addr"`
		BaseURL      string `yaml:"base_url"`
		Name         string `yaml:"name"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
		IdleTimeout  string `yaml:"idle_timeout"`
	} `yaml:"server"`

	OAuth struct {
		ProviderURL     string   `yaml:"provider_url"`
		ClientID        string   `yaml:"client_id"`
		ResourceID      string   `yaml:"resource_id"`
		RequiredScopes  []string `yaml:"required_scopes"`
		ScopesSupported []string `yaml:"scopes_supported"`
		JWKSCacheTTL    string   `yaml:"jwks_cache_ttl"`
		ClockSkew       string   `yaml:"clock_skew"`
	} `yaml:"oauth"`

	MCP struct {
		SessionTTL string `yaml:"session_ttl"`
	} `yaml:"mcp"`
}

// readFile loads a YAML config file. An empty path yields an empty fileConfig.
func readFile(path string) (*fileConfig, error) {
	fc := &fileConfig{}
	if path == "" {
		return fc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return fc, nil
}

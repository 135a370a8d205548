package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jamesprial/mcp-oauth-tools/internal/config"
	ierrors "github.com/jamesprial/mcp-oauth-tools/internal/errors"
	"github.com/jamesprial/mcp-oauth-tools/internal/mcpserver"
	"github.com/jamesprial/mcp-oauth-tools/internal/mcpserver/tools"
	"github.com/jamesprial/mcp-oauth-tools/internal/oauth"
	pkgoauth "github.com/jamesprial/mcp-oauth-tools/pkg/oauth"
)

type stubValidator map[string]*oauth.Identity

func (s stubValidator) ValidateToken(_ context.Context, token string) (*oauth.Identity, error) {
	if token == "provider-down" {
		return nil, ierrors.New("oauth", "GetKey", ierrors.ErrInternal, oauth.ErrJWKSFetchFailed)
	}
	if identity, ok := s[token]; ok {
		return identity, nil
	}
	return nil, ierrors.New("oauth", "ValidateToken", ierrors.ErrUnauthorized, oauth.ErrInvalidSignature)
}

type stubMetadata struct{}

func (stubMetadata) GetMetadata(context.Context) (*oauth.ProtectedResourceMetadata, error) {
	return &oauth.ProtectedResourceMetadata{
		Resource:             "http://localhost:8000/mcp",
		AuthorizationServers: []string{"https://idp.example.com"},
	}, nil
}

func (stubMetadata) GetMetadataURL() string {
	return "http://localhost:8000/.well-known/oauth-protected-resource"
}

func newTestStack(t *testing.T, requiredScopes ...string) http.Handler {
	t.Helper()

	handler, registry, _ := mcpserver.NewServices(&mcpserver.Config{ServerName: "Test Tools", ServerVersion: "test"})
	if err := registry.RegisterTool(tools.NewEcho()); err != nil {
		t.Fatalf("RegisterTool() error: %v", err)
	}

	svc, err := NewTransportServices(&Config{
		ServerConfig: &config.Config{
			Addr:           "127.0.0.1:0",
			ServerName:     "Test Tools",
			RequiredScopes: requiredScopes,
			SessionTTL:     time.Hour,
		},
		OAuth: &oauth.Services{
			Validator: stubValidator{
				"alice-token": {Subject: "alice", Scopes: []string{"tools"}},
				"bob-token":   {Subject: "bob"},
			},
			Metadata: stubMetadata{},
			Scopes:   oauth.NewScopeChecker(),
		},
		MCPHandler: handler,
	})
	if err != nil {
		t.Fatalf("NewTransportServices() error: %v", err)
	}
	return svc.Router
}

func post(t *testing.T, h http.Handler, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewTransportServices_PublicRoutes(t *testing.T) {
	t.Parallel()

	h := newTestStack(t)

	for _, path := range []string{
		"/.well-known/oauth-protected-resource",
		"/.well-known/oauth-protected-resource/mcp",
		"/health",
	} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, w.Code)
		}
		if w.Header().Get("X-Request-Id") == "" {
			t.Errorf("GET %s missing X-Request-Id", path)
		}
	}
}

func TestNewTransportServices_Gate(t *testing.T) {
	t.Parallel()

	h := newTestStack(t)
	ping := `{"jsonrpc":"2.0","id":1,"method":"ping"}`

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantError  string
	}{
		{"no token", "", http.StatusUnauthorized, ""},
		{"bad token", "forged", http.StatusUnauthorized, "invalid_token"},
		{"provider down", "provider-down", http.StatusInternalServerError, ""},
		{"valid token", "alice-token", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := post(t, h, tt.token, ping)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			header := w.Header().Get("WWW-Authenticate")
			if tt.wantStatus != http.StatusUnauthorized {
				if header != "" {
					t.Errorf("unexpected challenge %q", header)
				}
				return
			}

			challenge, err := pkgoauth.ParseWWWAuthenticate(header)
			if err != nil {
				t.Fatalf("ParseWWWAuthenticate() error: %v", err)
			}
			if want := (stubMetadata{}).GetMetadataURL(); challenge.ResourceMetadata != want {
				t.Errorf("resource_metadata = %q", challenge.ResourceMetadata)
			}
			if challenge.Error != tt.wantError {
				t.Errorf("error = %q, want %q", challenge.Error, tt.wantError)
			}
		})
	}
}

func TestNewTransportServices_RequiredScopes(t *testing.T) {
	t.Parallel()

	h := newTestStack(t, "tools")
	ping := `{"jsonrpc":"2.0","id":1,"method":"ping"}`

	if w := post(t, h, "alice-token", ping); w.Code != http.StatusOK {
		t.Errorf("alice status = %d, want 200", w.Code)
	}

	w := post(t, h, "bob-token", ping)
	if w.Code != http.StatusForbidden {
		t.Fatalf("bob status = %d, want 403", w.Code)
	}
	challenge, err := pkgoauth.ParseWWWAuthenticate(w.Header().Get("WWW-Authenticate"))
	if err != nil {
		t.Fatalf("ParseWWWAuthenticate() error: %v", err)
	}
	if challenge.Error != "insufficient_scope" || challenge.Scope != "tools" {
		t.Errorf("challenge = %+v, want insufficient_scope for tools", challenge)
	}
}

func TestNewTransportServices_EchoThroughGate(t *testing.T) {
	t.Parallel()

	h := newTestStack(t)
	w := post(t, h, "alice-token", `{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"echo","arguments":{"message":"hi there"}}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Result.IsError || len(resp.Result.Content) != 1 || resp.Result.Content[0].Text != "hi there" {
		t.Errorf("result = %+v, want echoed text", resp.Result)
	}
}

func TestNewTransportServices_ConfigErrors(t *testing.T) {
	t.Parallel()

	handler, _, _ := mcpserver.NewServices(&mcpserver.Config{})
	full := func() *Config {
		return &Config{
			ServerConfig: &config.Config{},
			OAuth:        &oauth.Services{Validator: stubValidator{}, Metadata: stubMetadata{}, Scopes: oauth.NewScopeChecker()},
			MCPHandler:   handler,
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config) *Config
	}{
		{"nil config", func(c *Config) *Config { return nil }},
		{"no server config", func(c *Config) *Config { c.ServerConfig = nil; return c }},
		{"no oauth", func(c *Config) *Config { c.OAuth = nil; return c }},
		{"no validator", func(c *Config) *Config { c.OAuth.Validator = nil; return c }},
		{"no handler", func(c *Config) *Config { c.MCPHandler = nil; return c }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewTransportServices(tt.mutate(full())); err == nil {
				t.Error("NewTransportServices() error = nil, want error")
			}
		})
	}

	if _, err := NewTransportServices(full()); err != nil {
		t.Errorf("NewTransportServices() unexpected error: %v", err)
	}
}

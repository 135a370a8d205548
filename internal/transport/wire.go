package transport

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jamesprial/mcp-oauth-tools/internal/config"
	"github.com/jamesprial/mcp-oauth-tools/internal/mcpserver"
	"github.com/jamesprial/mcp-oauth-tools/internal/oauth"
	"github.com/jamesprial/mcp-oauth-tools/internal/transport/internal/handlers"
	transporthttp "github.com/jamesprial/mcp-oauth-tools/internal/transport/internal/http"
	"github.com/jamesprial/mcp-oauth-tools/internal/transport/internal/middleware"
	"github.com/jamesprial/mcp-oauth-tools/internal/transport/internal/session"
	pkgoauth "github.com/jamesprial/mcp-oauth-tools/pkg/oauth"
)

// MCPPath is where the MCP endpoint is mounted.
const MCPPath = "/mcp"

// HealthPath is the unauthenticated liveness probe.
const HealthPath = "/health"

// NewServer creates an HTTP server using the configured address and timeouts.
func NewServer(cfg *config.Config, router Router) Server {
	return transporthttp.NewServer(cfg, router)
}

// NewRouter creates a chi-backed router whose fallbacks answer through responder.
func NewRouter(responder ErrorResponder) Router {
	return transporthttp.NewRouter(responder)
}

// NewErrorResponder creates a responder that advertises metadataURL in
// every bearer challenge.
func NewErrorResponder(metadataURL string, logger *slog.Logger) ErrorResponder {
	return transporthttp.NewErrorResponder(metadataURL, logger)
}

// NewAuthMiddleware creates the bearer token gate.
func NewAuthMiddleware(validator oauth.TokenValidator, scopes oauth.ScopeChecker, responder ErrorResponder) AuthMiddleware {
	return middleware.NewAuthMiddleware(validator, scopes, responder)
}

// NewSessionStore creates an in-memory session store with idle expiry ttl.
func NewSessionStore(ttl time.Duration) SessionStore {
	return session.NewStore(ttl)
}

// NewMetadataHandler serves the protected resource metadata document.
func NewMetadataHandler(service oauth.MetadataService, responder ErrorResponder) http.Handler {
	return handlers.NewMetadataHandler(service, responder)
}

// NewMCPHandler serves the MCP endpoint.
func NewMCPHandler(handler mcpserver.Handler, sessions SessionStore, responder ErrorResponder) http.Handler {
	return handlers.NewMCPHandler(handler, sessions, responder)
}

// NewHealthHandler serves the liveness probe.
func NewHealthHandler(serverName string, responder ErrorResponder) http.Handler {
	return handlers.NewHealthHandler(serverName, responder)
}

// NewLoggingMiddleware logs one line per request. A nil logger uses slog.Default.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return middleware.NewLoggingMiddleware(logger)
}

// NewRecoveryMiddleware converts handler panics into 500 responses.
func NewRecoveryMiddleware(responder ErrorResponder, logger *slog.Logger) Middleware {
	return middleware.NewRecoveryMiddleware(responder, logger)
}

// Config holds what the transport layer needs from the rest of the server.
type Config struct {
	ServerConfig *config.Config
	OAuth        *oauth.Services
	MCPHandler   mcpserver.Handler

	// Logger receives request and error logs. Nil uses slog.Default.
	Logger *slog.Logger
}

// Services is the assembled transport layer.
type Services struct {
	Server   Server
	Router   Router
	Sessions SessionStore
}

// NewTransportServices assembles routing, middleware and handlers:
//
//	GET  /.well-known/oauth-protected-resource[/...]  public
//	GET  /health                                      public
//	POST /mcp, DELETE /mcp                            bearer token required
//
// Recovery wraps logging, which wraps everything else.
func NewTransportServices(cfg *Config) (*Services, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.ServerConfig == nil {
		return nil, fmt.Errorf("server config cannot be nil")
	}
	if cfg.OAuth == nil || cfg.OAuth.Validator == nil || cfg.OAuth.Metadata == nil || cfg.OAuth.Scopes == nil {
		return nil, fmt.Errorf("oauth services cannot be nil")
	}
	if cfg.MCPHandler == nil {
		return nil, fmt.Errorf("mcp handler cannot be nil")
	}

	responder := NewErrorResponder(cfg.OAuth.Metadata.GetMetadataURL(), cfg.Logger)
	auth := NewAuthMiddleware(cfg.OAuth.Validator, cfg.OAuth.Scopes, responder)
	sessions := NewSessionStore(cfg.ServerConfig.SessionTTL)

	metadataHandler := NewMetadataHandler(cfg.OAuth.Metadata, responder)
	mcpHandler := NewMCPHandler(cfg.MCPHandler, sessions, responder)

	router := NewRouter(responder)
	router.Use(NewRecoveryMiddleware(responder, cfg.Logger), NewLoggingMiddleware(cfg.Logger))

	router.Method(http.MethodGet, pkgoauth.WellKnownProtectedResource, metadataHandler)
	// RFC 9728 path-suffixed form, e.g. /.well-known/oauth-protected-resource/mcp.
	router.Method(http.MethodGet, pkgoauth.WellKnownProtectedResource+"/*", metadataHandler)
	router.Handle(HealthPath, NewHealthHandler(cfg.ServerConfig.ServerName, responder))

	protected := auth.Authenticate()(auth.RequireScopes(cfg.ServerConfig.RequiredScopes...)(mcpHandler))
	router.Handle(MCPPath, protected)

	return &Services{
		Server:   NewServer(cfg.ServerConfig, router),
		Router:   router,
		Sessions: sessions,
	}, nil
}

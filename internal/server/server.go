// Package server assembles the OAuth-protected tool server from its
// configuration and runs it until the context is cancelled.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jamesprial/mcp-oauth-tools/internal/config"
	"github.com/jamesprial/mcp-oauth-tools/internal/mcpserver"
	"github.com/jamesprial/mcp-oauth-tools/internal/mcpserver/resources"
	"github.com/jamesprial/mcp-oauth-tools/internal/mcpserver/tools"
	"github.com/jamesprial/mcp-oauth-tools/internal/oauth"
	"github.com/jamesprial/mcp-oauth-tools/internal/transport"
)

const (
	// ShutdownTimeout bounds graceful shutdown after the context ends.
	ShutdownTimeout = 30 * time.Second

	sessionSweepInterval = time.Minute
)

// Server is the assembled tool server.
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	oauth     *oauth.Services
	transport *transport.Services
}

// New wires OAuth, the MCP handler with its tools and resources, and the
// HTTP transport. A nil logger uses slog.Default.
func New(cfg *config.Config, version string, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	oauthServices, err := oauth.NewServices(&oauth.Config{
		BaseURL:         cfg.BaseURL,
		ProviderURL:     cfg.ProviderURL,
		ResourceID:      cfg.ResourceID,
		ResourceName:    cfg.ServerName,
		ClientID:        cfg.ClientID,
		ScopesSupported: cfg.ScopesSupported,
		JWKSCacheTTL:    cfg.JWKSCacheTTL,
		ClockSkew:       cfg.ClockSkew,
	})
	if err != nil {
		return nil, fmt.Errorf("oauth services: %w", err)
	}

	handler, toolRegistry, resourceRegistry := mcpserver.NewServices(&mcpserver.Config{
		ServerName:    cfg.ServerName,
		ServerVersion: version,
	})
	for _, tool := range []mcpserver.Tool{
		tools.NewEcho(),
		tools.NewGetUserInfo(cfg.ProviderURL),
	} {
		if err := toolRegistry.RegisterTool(tool); err != nil {
			return nil, fmt.Errorf("register tool: %w", err)
		}
	}
	if err := resourceRegistry.RegisterResource(resources.NewProtectedResourceMetadata(oauthServices.Metadata)); err != nil {
		return nil, fmt.Errorf("register resource: %w", err)
	}

	transportServices, err := transport.NewTransportServices(&transport.Config{
		ServerConfig: cfg,
		OAuth:        oauthServices,
		MCPHandler:   handler,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("transport services: %w", err)
	}

	logger.Info("server assembled",
		"server_name", cfg.ServerName,
		"version", version,
		"tools", len(toolRegistry.ListTools()),
		"metadata_url", oauthServices.Metadata.GetMetadataURL(),
	)

	return &Server{
		cfg:       cfg,
		logger:    logger,
		oauth:     oauthServices,
		transport: transportServices,
	}, nil
}

// Run serves until ctx is done, then shuts down within ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	// A provider that is down at startup is not fatal; keys are fetched
	// again on the first request.
	warmCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := s.oauth.JWKS.RefreshKeys(warmCtx); err != nil {
		s.logger.Warn("could not prefetch provider signing keys", "provider", s.cfg.ProviderURL, "error", err)
	}
	cancel()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.transport.Sessions.Run(sweepCtx, sessionSweepInterval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.transport.Server.Start()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, stopping server gracefully")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancelShutdown()
	if err := s.transport.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.transport.Server.Ready()
}

// Addr is the bound listen address. It is empty until Ready.
func (s *Server) Addr() string {
	return s.transport.Server.Addr()
}

// Handler is the routed handler with all middleware, for mounting on a
// listener the caller owns.
func (s *Server) Handler() http.Handler {
	return s.transport.Router
}

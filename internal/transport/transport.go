// Package transport is the HTTP face of the tool server. It puts the bearer
// token gate in front of the MCP endpoint and serves the RFC 9728 protected
// resource metadata that lets clients find the identity provider.
package transport

import (
	"context"
	"time"

	"github.com/jamesprial/mcp-oauth-tools/internal/transport/transportcore"
)

// Middleware wraps an http.Handler.
type Middleware = transportcore.Middleware

// Server manages the HTTP server lifecycle.
type Server = transportcore.Server

// Router handles routing and middleware composition.
type Router = transportcore.Router

// AuthMiddleware validates bearer tokens and enforces scopes.
type AuthMiddleware = transportcore.AuthMiddleware

// ErrorResponder writes JSON error bodies and bearer challenges.
type ErrorResponder = transportcore.ErrorResponder

// SessionStore tracks MCP sessions opened by initialize.
type SessionStore interface {
	Create(subject string) string
	Touch(id, subject string) error
	Delete(id, subject string) error

	// Sweep drops expired sessions and returns how many were removed.
	Sweep() int

	// Run sweeps every interval until ctx is done.
	Run(ctx context.Context, interval time.Duration)
}

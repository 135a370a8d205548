// Package transportcore provides core types, interfaces, and primitives for the transport layer.
// This package exists to break import cycles between the transport package and its internal subpackages.
package transportcore

import (
	"context"
	"net/http"

	ierrors "github.com/jamesprial/mcp-oauth-tools/internal/errors"
)

// Middleware is a function that wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Server manages the HTTP server lifecycle.
type Server interface {
	// Start begins serving HTTP requests on the configured address.
	// It blocks until the server stops.
	Start() error

	// Shutdown gracefully shuts down the server without interrupting
	// active connections.
	Shutdown(ctx context.Context) error

	// Addr returns the bound address once Start has created the listener.
	Addr() string

	// Ready is closed once the listener is bound.
	Ready() <-chan struct{}
}

// Router handles HTTP request routing and middleware composition.
type Router interface {
	http.Handler

	// Handle registers handler for every method on pattern.
	Handle(pattern string, handler http.Handler)

	// Method registers handler for one HTTP method on pattern.
	Method(method, pattern string, handler http.Handler)

	// Use applies middleware to all subsequent route registrations.
	// Middleware is applied in the order registered.
	Use(middlewares ...Middleware)
}

// AuthMiddleware provides OAuth token validation middleware.
type AuthMiddleware interface {
	// Authenticate validates the bearer token and attaches the identity to
	// the request context. Requests without a valid token never reach next.
	Authenticate() Middleware

	// RequireScopes rejects identities lacking any of scopes with 403.
	// It must run after Authenticate.
	RequireScopes(scopes ...string) Middleware
}

// ErrorResponder writes error responses. Challenges follow RFC 6750 and
// carry the RFC 9728 resource_metadata parameter.
type ErrorResponder interface {
	// Unauthorized sends 401 with a WWW-Authenticate header built from challenge.
	Unauthorized(w http.ResponseWriter, challenge *ierrors.OAuthError, err error)

	// Forbidden sends 403 with error="insufficient_scope".
	Forbidden(w http.ResponseWriter, requiredScopes []string, err error)

	InternalError(w http.ResponseWriter, err error)
	BadRequest(w http.ResponseWriter, err error)
	NotFound(w http.ResponseWriter, err error)
	MethodNotAllowed(w http.ResponseWriter, allowed ...string)
}

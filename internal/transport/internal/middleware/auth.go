// Package middleware provides HTTP middleware for the transport layer.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	ierrors "github.com/jamesprial/mcp-oauth-tools/internal/errors"
	"github.com/jamesprial/mcp-oauth-tools/internal/oauth"
	"github.com/jamesprial/mcp-oauth-tools/internal/transport/transportcore"
	pkgoauth "github.com/jamesprial/mcp-oauth-tools/pkg/oauth"
)

// authMiddleware implements transportcore.AuthMiddleware.
type authMiddleware struct {
	validator oauth.TokenValidator
	scopes    oauth.ScopeChecker
	responder transportcore.ErrorResponder
}

// NewAuthMiddleware creates bearer token middleware. Validated identities
// are stored with oauth.ContextWithIdentity.
func NewAuthMiddleware(
	validator oauth.TokenValidator,
	scopes oauth.ScopeChecker,
	responder transportcore.ErrorResponder,
) transportcore.AuthMiddleware {
	if validator == nil {
		panic("validator cannot be nil")
	}
	if scopes == nil {
		panic("scope checker cannot be nil")
	}
	if responder == nil {
		panic("responder cannot be nil")
	}

	return &authMiddleware{
		validator: validator,
		scopes:    scopes,
		responder: responder,
	}
}

// Authenticate rejects requests without a valid bearer token.
//
// No credentials produce a bare challenge. A rejected token produces
// error="invalid_token". When the provider's keys cannot be fetched the
// token was never judged, so the request fails with 500 instead.
func (m *authMiddleware) Authenticate() transportcore.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := extractBearerToken(r)
			if err != nil {
				m.responder.Unauthorized(w, nil, err)
				return
			}

			identity, err := m.validator.ValidateToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, ierrors.ErrInternal) {
					m.responder.InternalError(w, err)
					return
				}
				challenge := ierrors.NewOAuthError(ierrors.ErrorCodeInvalidToken, err.Error())
				m.responder.Unauthorized(w, challenge, err)
				return
			}

			ctx := oauth.ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScopes must run after Authenticate. An empty scope list lets every
// authenticated request through.
func (m *authMiddleware) RequireScopes(scopes ...string) transportcore.Middleware {
	required := append([]string(nil), scopes...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := oauth.IdentityFromContext(r.Context())
			if !ok {
				m.responder.Unauthorized(w, nil, transportcore.ErrMissingToken)
				return
			}

			if len(required) > 0 {
				if err := m.scopes.RequireScopes(identity, required...); err != nil {
					m.responder.Forbidden(w, required, err)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken reads "Authorization: Bearer <token>". The scheme is
// case-insensitive per RFC 6750. Tokens are never read from the query string.
func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get(pkgoauth.HeaderAuthorization)
	if authHeader == "" {
		return "", transportcore.ErrMissingToken
	}

	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, pkgoauth.BearerToken) {
		return "", transportcore.ErrMissingToken
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", transportcore.ErrMissingToken
	}

	return token, nil
}

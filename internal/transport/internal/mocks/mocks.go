// Package mocks provides test doubles for the transport layer.
package mocks

import (
	"context"
	"net/http"
	"strings"
	"sync"

	ierrors "github.com/jamesprial/mcp-oauth-tools/internal/errors"
	"github.com/jamesprial/mcp-oauth-tools/internal/mcpserver"
	"github.com/jamesprial/mcp-oauth-tools/internal/oauth"
)

// TokenValidator is a stub oauth.TokenValidator.
type TokenValidator struct {
	ValidateFunc func(ctx context.Context, token string) (*oauth.Identity, error)
}

func (m *TokenValidator) ValidateToken(ctx context.Context, token string) (*oauth.Identity, error) {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, token)
	}
	return nil, nil
}

// StaticTokens returns a validator accepting exactly the tokens in ids.
// Any other token fails with err.
func StaticTokens(ids map[string]*oauth.Identity, err error) *TokenValidator {
	return &TokenValidator{
		ValidateFunc: func(_ context.Context, token string) (*oauth.Identity, error) {
			if identity, ok := ids[token]; ok {
				return identity, nil
			}
			return nil, err
		},
	}
}

// MetadataService is a stub oauth.MetadataService.
type MetadataService struct {
	GetMetadataFunc func(ctx context.Context) (*oauth.ProtectedResourceMetadata, error)
	URL             string
}

func (m *MetadataService) GetMetadata(ctx context.Context) (*oauth.ProtectedResourceMetadata, error) {
	if m.GetMetadataFunc != nil {
		return m.GetMetadataFunc(ctx)
	}
	return &oauth.ProtectedResourceMetadata{}, nil
}

func (m *MetadataService) GetMetadataURL() string {
	if m.URL != "" {
		return m.URL
	}
	return "https://tools.example.com/.well-known/oauth-protected-resource"
}

// MCPHandler is a stub mcpserver.Handler. Without HandleFunc it echoes the
// request id back with an empty result.
type MCPHandler struct {
	HandleFunc func(ctx context.Context, req *mcpserver.Request) (*mcpserver.Response, error)
}

func (m *MCPHandler) HandleRequest(ctx context.Context, req *mcpserver.Request) (*mcpserver.Response, error) {
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, req)
	}
	if req.IsNotification() {
		return nil, nil
	}
	return &mcpserver.Response{
		JSONRPC: mcpserver.JSONRPCVersion,
		ID:      req.ID,
		Result:  map[string]any{},
	}, nil
}

// ErrorResponder records which response was sent and writes only the
// status line and challenge header.
type ErrorResponder struct {
	mu sync.Mutex

	UnauthorizedCalled    bool
	UnauthorizedChallenge *ierrors.OAuthError
	ForbiddenCalled       bool
	ForbiddenScopes       []string
	InternalCalled        bool
	BadRequestCalled      bool
	NotFoundCalled        bool
	MethodNotAllowedCalls int
	LastErr               error
}

func (m *ErrorResponder) Unauthorized(w http.ResponseWriter, challenge *ierrors.OAuthError, err error) {
	m.mu.Lock()
	m.UnauthorizedCalled = true
	m.UnauthorizedChallenge = challenge
	m.LastErr = err
	m.mu.Unlock()

	header := `Bearer`
	if challenge != nil && challenge.ErrorCode != "" {
		header += ` error="` + challenge.ErrorCode + `"`
	}
	w.Header().Set("WWW-Authenticate", header)
	w.WriteHeader(http.StatusUnauthorized)
}

func (m *ErrorResponder) Forbidden(w http.ResponseWriter, requiredScopes []string, err error) {
	m.mu.Lock()
	m.ForbiddenCalled = true
	m.ForbiddenScopes = requiredScopes
	m.LastErr = err
	m.mu.Unlock()

	w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+strings.Join(requiredScopes, " ")+`"`)
	w.WriteHeader(http.StatusForbidden)
}

func (m *ErrorResponder) InternalError(w http.ResponseWriter, err error) {
	m.mu.Lock()
	m.InternalCalled = true
	m.LastErr = err
	m.mu.Unlock()
	w.WriteHeader(http.StatusInternalServerError)
}

func (m *ErrorResponder) BadRequest(w http.ResponseWriter, err error) {
	m.mu.Lock()
	m.BadRequestCalled = true
	m.LastErr = err
	m.mu.Unlock()
	w.WriteHeader(http.StatusBadRequest)
}

func (m *ErrorResponder) NotFound(w http.ResponseWriter, err error) {
	m.mu.Lock()
	m.NotFoundCalled = true
	m.LastErr = err
	m.mu.Unlock()
	w.WriteHeader(http.StatusNotFound)
}

func (m *ErrorResponder) MethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	m.mu.Lock()
	m.MethodNotAllowedCalls++
	m.mu.Unlock()
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	w.WriteHeader(http.StatusMethodNotAllowed)
}

package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	ierrors "github.com/jamesprial/mcp-oauth-tools/internal/errors"
	"github.com/jamesprial/mcp-oauth-tools/internal/transport/transportcore"
	"github.com/jamesprial/mcp-oauth-tools/pkg/oauth"
)

// errorResponse represents a JSON error response body.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// errorResponder implements transportcore.ErrorResponder.
type errorResponder struct {
	metadataURL string
	logger      *slog.Logger
}

// NewErrorResponder creates an error responder. metadataURL is advertised in
// every bearer challenge per RFC 9728. A nil logger uses slog.Default.
func NewErrorResponder(metadataURL string, logger *slog.Logger) transportcore.ErrorResponder {
	if logger == nil {
		logger = slog.Default()
	}
	return &errorResponder{
		metadataURL: metadataURL,
		logger:      logger,
	}
}

// Unauthorized sends 401. A challenge without an error code produces the
// bare form clients see when they sent no credentials.
func (e *errorResponder) Unauthorized(w http.ResponseWriter, challenge *ierrors.OAuthError, err error) {
	if challenge == nil {
		challenge = ierrors.NewOAuthError("", "")
	}
	header := *challenge
	header.ResourceMetadata = e.metadataURL
	// Descriptions can leak validation detail; they stay in the log.
	header.ErrorDescription = ""

	w.Header().Set(oauth.HeaderWWWAuthenticate, header.WWWAuthenticate())

	e.logger.Warn("unauthorized request",
		"error", err,
		"oauth_error", challenge.ErrorCode,
	)

	code := challenge.ErrorCode
	if code == "" {
		code = "unauthorized"
	}
	e.writeJSON(w, http.StatusUnauthorized, errorResponse{
		Error:   code,
		Message: "Authentication required",
	})
}

// Forbidden sends 403 with an insufficient_scope challenge per RFC 6750 Section 3.1.
func (e *errorResponder) Forbidden(w http.ResponseWriter, requiredScopes []string, err error) {
	scopeStr := strings.Join(requiredScopes, " ")

	challenge := ierrors.NewOAuthError(ierrors.ErrorCodeInsufficientScope, "").
		WithScope(scopeStr).
		WithResourceMetadata(e.metadataURL)
	w.Header().Set(oauth.HeaderWWWAuthenticate, challenge.WWWAuthenticate())

	e.logger.Warn("forbidden request - insufficient scope",
		"error", err,
		"required_scopes", requiredScopes,
	)

	e.writeJSON(w, http.StatusForbidden, errorResponse{
		Error:   ierrors.ErrorCodeInsufficientScope,
		Message: fmt.Sprintf("Required scopes: %s", scopeStr),
	})
}

func (e *errorResponder) InternalError(w http.ResponseWriter, err error) {
	e.logger.Error("internal server error", "error", err)

	e.writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:   "internal_error",
		Message: "An internal server error occurred",
	})
}

func (e *errorResponder) BadRequest(w http.ResponseWriter, err error) {
	e.logger.Warn("bad request", "error", err)

	message := "Invalid request"
	if err != nil {
		message = err.Error()
	}
	e.writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:   "bad_request",
		Message: message,
	})
}

func (e *errorResponder) NotFound(w http.ResponseWriter, err error) {
	message := "Not found"
	if err != nil {
		message = err.Error()
	}
	e.writeJSON(w, http.StatusNotFound, errorResponse{
		Error:   "not_found",
		Message: message,
	})
}

func (e *errorResponder) MethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	e.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
		Error:   "method_not_allowed",
		Message: transportcore.ErrMethodNotAllowed.Error(),
	})
}

func (e *errorResponder) writeJSON(w http.ResponseWriter, status int, body errorResponse) {
	w.Header().Set(oauth.HeaderContentType, oauth.ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		e.logger.Error("failed to encode error response", "error", err)
	}
}

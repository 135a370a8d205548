package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ierrors "github.com/jamesprial/mcp-oauth-tools/internal/errors"
	"github.com/jamesprial/mcp-oauth-tools/pkg/oauth"
)

const testMetadataURL = "https://tools.example.com/.well-known/oauth-protected-resource"

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v\n%s", err, w.Body.String())
	}
	return body
}

func TestResponder_Unauthorized(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		challenge *ierrors.OAuthError
		wantError string
		wantCode  string
	}{
		{name: "no credentials", challenge: nil, wantError: "unauthorized", wantCode: ""},
		{
			name:      "rejected token",
			challenge: ierrors.NewOAuthError(ierrors.ErrorCodeInvalidToken, "token expired at 12:00"),
			wantError: "invalid_token",
			wantCode:  "invalid_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var logs bytes.Buffer
			r := NewErrorResponder(testMetadataURL, slog.New(slog.NewTextHandler(&logs, nil)))
			w := httptest.NewRecorder()
			r.Unauthorized(w, tt.challenge, errors.New("detail"))

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}

			challenge, err := oauth.ParseWWWAuthenticate(w.Header().Get("WWW-Authenticate"))
			if err != nil {
				t.Fatalf("ParseWWWAuthenticate() error: %v", err)
			}
			if challenge.ResourceMetadata != testMetadataURL {
				t.Errorf("resource_metadata = %q, want %q", challenge.ResourceMetadata, testMetadataURL)
			}
			if challenge.Error != tt.wantCode {
				t.Errorf("error = %q, want %q", challenge.Error, tt.wantCode)
			}
			if challenge.ErrorDescription != "" {
				t.Errorf("error_description = %q, want it withheld", challenge.ErrorDescription)
			}

			if body := decodeErrorBody(t, w); body.Error != tt.wantError {
				t.Errorf("body error = %q, want %q", body.Error, tt.wantError)
			}
			if !strings.Contains(logs.String(), "detail") {
				t.Error("underlying error not logged")
			}
		})
	}
}

func TestResponder_Unauthorized_DoesNotMutateChallenge(t *testing.T) {
	t.Parallel()

	challenge := ierrors.NewOAuthError(ierrors.ErrorCodeInvalidToken, "kept")
	NewErrorResponder(testMetadataURL, nil).Unauthorized(httptest.NewRecorder(), challenge, nil)

	if challenge.ErrorDescription != "kept" || challenge.ResourceMetadata != "" {
		t.Errorf("challenge mutated: %+v", challenge)
	}
}

func TestResponder_Forbidden(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	NewErrorResponder(testMetadataURL, nil).Forbidden(w, []string{"tools:read", "tools:call"}, errors.New("missing"))

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}

	challenge, err := oauth.ParseWWWAuthenticate(w.Header().Get("WWW-Authenticate"))
	if err != nil {
		t.Fatalf("ParseWWWAuthenticate() error: %v", err)
	}
	if challenge.Error != "insufficient_scope" {
		t.Errorf("error = %q, want insufficient_scope", challenge.Error)
	}
	if challenge.Scope != "tools:read tools:call" {
		t.Errorf("scope = %q, want space-separated scopes", challenge.Scope)
	}
	if challenge.ResourceMetadata != testMetadataURL {
		t.Errorf("resource_metadata = %q", challenge.ResourceMetadata)
	}

	body := decodeErrorBody(t, w)
	if body.Error != "insufficient_scope" || !strings.Contains(body.Message, "tools:call") {
		t.Errorf("body = %+v", body)
	}
}

func TestResponder_PlainErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		write       func(r *errorResponder, w http.ResponseWriter)
		wantStatus  int
		wantError   string
		wantMessage string
	}{
		{
			name:        "internal hides detail",
			write:       func(r *errorResponder, w http.ResponseWriter) { r.InternalError(w, errors.New("db password wrong")) },
			wantStatus:  http.StatusInternalServerError,
			wantError:   "internal_error",
			wantMessage: "An internal server error occurred",
		},
		{
			name:        "bad request shows detail",
			write:       func(r *errorResponder, w http.ResponseWriter) { r.BadRequest(w, errors.New("missing session id")) },
			wantStatus:  http.StatusBadRequest,
			wantError:   "bad_request",
			wantMessage: "missing session id",
		},
		{
			name:        "not found without error",
			write:       func(r *errorResponder, w http.ResponseWriter) { r.NotFound(w, nil) },
			wantStatus:  http.StatusNotFound,
			wantError:   "not_found",
			wantMessage: "Not found",
		},
		{
			name:        "method not allowed",
			write:       func(r *errorResponder, w http.ResponseWriter) { r.MethodNotAllowed(w, "POST", "DELETE") },
			wantStatus:  http.StatusMethodNotAllowed,
			wantError:   "method_not_allowed",
			wantMessage: "method not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewErrorResponder(testMetadataURL, nil).(*errorResponder)
			w := httptest.NewRecorder()
			tt.write(r, w)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := decodeErrorBody(t, w)
			if body.Error != tt.wantError || body.Message != tt.wantMessage {
				t.Errorf("body = %+v, want error %q message %q", body, tt.wantError, tt.wantMessage)
			}
			if w.Header().Get("WWW-Authenticate") != "" {
				t.Error("non-auth error carried a bearer challenge")
			}
		})
	}
}

func TestResponder_MethodNotAllowedHeader(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	NewErrorResponder("", nil).MethodNotAllowed(w, "POST", "DELETE")

	if got := w.Header().Get("Allow"); got != "POST, DELETE" {
		t.Errorf("Allow = %q, want POST, DELETE", got)
	}
}

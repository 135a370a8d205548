package errors

import (
	"fmt"
	"strings"

	pkgoauth "github.com/jamesprial/mcp-oauth-tools/pkg/oauth"
)

// OAuth error codes from RFC 6750 Section 3.1.
const (
	ErrorCodeInvalidToken      = pkgoauth.ErrorInvalidToken
	ErrorCodeInsufficientScope = pkgoauth.ErrorInsufficientScope
	ErrorCodeInvalidRequest    = pkgoauth.ErrorInvalidRequest
)

// OAuthError is the payload of a bearer challenge. It renders both as an
// error string and as a WWW-Authenticate header value.
type OAuthError struct {
	ErrorCode        string
	ErrorDescription string
	Scope            string
	ResourceMetadata string
	Realm            string
}

func (e *OAuthError) Error() string {
	if e.ErrorDescription != "" {
		return fmt.Sprintf("%s: %s", e.ErrorCode, e.ErrorDescription)
	}
	return e.ErrorCode
}

// NewOAuthError creates an OAuthError with the given code and description.
// An empty code produces a bare challenge (request carried no credentials).
func NewOAuthError(errorCode, errorDescription string) *OAuthError {
	return &OAuthError{
		ErrorCode:        errorCode,
		ErrorDescription: errorDescription,
	}
}

// WithScope sets the space-separated scope parameter.
func (e *OAuthError) WithScope(scope string) *OAuthError {
	e.Scope = scope
	return e
}

// WithResourceMetadata sets the RFC 9728 resource_metadata parameter.
func (e *OAuthError) WithResourceMetadata(url string) *OAuthError {
	e.ResourceMetadata = url
	return e
}

// WWWAuthenticate formats the challenge with parameters in a fixed order:
//
//	Bearer realm="..", error="..", error_description="..", scope="..", resource_metadata=".."
//
// Empty parameters are omitted.
func (e *OAuthError) WWWAuthenticate() string {
	params := []struct{ key, value string }{
		{"realm", e.Realm},
		{"error", e.ErrorCode},
		{"error_description", e.ErrorDescription},
		{"scope", e.Scope},
		{"resource_metadata", e.ResourceMetadata},
	}

	var parts []string
	for _, p := range params {
		if p.value != "" {
			parts = append(parts, fmt.Sprintf(`%s="%s"`, p.key, escapeQuotes(p.value)))
		}
	}

	if len(parts) == 0 {
		return pkgoauth.BearerToken
	}
	return pkgoauth.BearerToken + " " + strings.Join(parts, ", ")
}

// escapeQuotes escapes backslashes and double quotes for a quoted-string.
func escapeQuotes(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

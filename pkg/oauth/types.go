// Package oauth provides OAuth 2.1 and MCP wire constants shared by the
// tool server and the tool client.
package oauth

// Token type constants as defined in RFC 6750.
const (
	BearerToken = "Bearer"
)

// Grant types as defined in OAuth 2.1.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// ResponseTypeCode is the only response type OAuth 2.1 keeps.
const ResponseTypeCode = "code"

// CodeChallengeMethodS256 is the only PKCE method OAuth 2.1 allows.
const CodeChallengeMethodS256 = "S256"

// TokenEndpointAuthMethodNone marks a public client in RFC 7591 registration.
const TokenEndpointAuthMethodNone = "none"

// HTTP header names.
const (
	HeaderAuthorization   = "Authorization"
	HeaderWWWAuthenticate = "WWW-Authenticate"
	HeaderContentType     = "Content-Type"
	HeaderAccept          = "Accept"

	// HeaderMCPSessionID carries the streamable HTTP session id.
	HeaderMCPSessionID = "Mcp-Session-Id"

	HeaderRequestID = "X-Request-Id"
)

// Content type constants.
const (
	ContentTypeJSON           = "application/json"
	ContentTypeFormURLEncoded = "application/x-www-form-urlencoded"
)

// Well-known discovery paths.
const (
	// WellKnownProtectedResource is the RFC 9728 metadata path.
	WellKnownProtectedResource = "/.well-known/oauth-protected-resource"

	// WellKnownAuthorizationServer is the RFC 8414 metadata path.
	WellKnownAuthorizationServer = "/.well-known/oauth-authorization-server"

	// WellKnownOpenIDConfiguration is the OpenID Connect discovery path.
	WellKnownOpenIDConfiguration = "/.well-known/openid-configuration"
)

// Bearer challenge error codes (RFC 6750 section 3.1).
const (
	ErrorInvalidRequest    = "invalid_request"
	ErrorInvalidToken      = "invalid_token"
	ErrorInsufficientScope = "insufficient_scope"
)

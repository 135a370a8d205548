package oauth

import "github.com/jamesprial/mcp-oauth-tools/internal/oauth/oautherr"

// Sentinel errors for OAuth operations. They live in oautherr so the
// internal packages can wrap them; errors.Is works against either name.
var (
	ErrInvalidToken         = oautherr.ErrInvalidToken
	ErrInsufficientScope    = oautherr.ErrInsufficientScope
	ErrInvalidAudience      = oautherr.ErrInvalidAudience
	ErrInvalidIssuer        = oautherr.ErrInvalidIssuer
	ErrTokenExpired         = oautherr.ErrTokenExpired
	ErrInvalidSignature     = oautherr.ErrInvalidSignature
	ErrUnsupportedAlgorithm = oautherr.ErrUnsupportedAlgorithm
	ErrMissingClaim         = oautherr.ErrMissingClaim
	ErrKeyNotFound          = oautherr.ErrKeyNotFound
	ErrJWKSFetchFailed      = oautherr.ErrJWKSFetchFailed
	ErrInvalidMetadata      = oautherr.ErrInvalidMetadata
)

// Package oautherr provides OAuth error constructors.
// It is separate from internal/oauth so the internal token and jwks
// packages can build errors without an import cycle.
package oautherr

import (
	"errors"
	"fmt"

	ierrors "github.com/jamesprial/mcp-oauth-tools/internal/errors"
)

const domainOAuth = "oauth"

// Sentinels re-exported by package oauth.
var (
	ErrInvalidToken         = errors.New("invalid token")
	ErrInsufficientScope    = errors.New("insufficient scope")
	ErrInvalidAudience      = errors.New("invalid audience")
	ErrInvalidIssuer        = errors.New("invalid issuer")
	ErrTokenExpired         = errors.New("token expired")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrMissingClaim         = errors.New("missing claim")
	ErrKeyNotFound          = errors.New("key not found")
	ErrJWKSFetchFailed      = errors.New("jwks fetch failed")
	ErrInvalidMetadata      = errors.New("invalid metadata")
)

// invalidToken builds the common shape of every 401 failure.
func invalidToken(op string, sentinel, cause error) *ierrors.DomainError {
	err := sentinel
	if cause != nil {
		err = fmt.Errorf("%w: %w", sentinel, cause)
	}
	return ierrors.New(domainOAuth, op, ierrors.ErrUnauthorized, err).
		WithContext("oauth_error", ierrors.ErrorCodeInvalidToken)
}

func NewInvalidTokenError(op string, err error) *ierrors.DomainError {
	return invalidToken(op, ErrInvalidToken, err)
}

func NewInsufficientScopeError(op string, required []string) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrForbidden, ErrInsufficientScope).
		WithContext("oauth_error", ierrors.ErrorCodeInsufficientScope).
		WithContext("required_scopes", required)
}

func NewInvalidAudienceError(op string, expected string, actual []string) *ierrors.DomainError {
	return invalidToken(op, ErrInvalidAudience, nil).
		WithContext("expected_audience", expected).
		WithContext("actual_audience", actual)
}

func NewInvalidIssuerError(op string, expected, actual string) *ierrors.DomainError {
	return invalidToken(op, ErrInvalidIssuer, nil).
		WithContext("expected_issuer", expected).
		WithContext("actual_issuer", actual)
}

func NewTokenExpiredError(op string, err error) *ierrors.DomainError {
	return invalidToken(op, ErrTokenExpired, err).
		WithContext("reason", "token_expired")
}

func NewInvalidSignatureError(op string, err error) *ierrors.DomainError {
	return invalidToken(op, ErrInvalidSignature, err).
		WithContext("reason", "invalid_signature")
}

func NewUnsupportedAlgorithmError(op string, algorithm string) *ierrors.DomainError {
	return invalidToken(op, ErrUnsupportedAlgorithm, nil).
		WithContext("algorithm", algorithm)
}

func NewMissingClaimError(op string, claim string) *ierrors.DomainError {
	return invalidToken(op, ErrMissingClaim, fmt.Errorf("%s", claim)).
		WithContext("missing_claim", claim)
}

func NewKeyNotFoundError(op string, keyID string) *ierrors.DomainError {
	return invalidToken(op, ErrKeyNotFound, nil).
		WithContext("key_id", keyID)
}

// NewJWKSFetchError reports that the provider could not be reached. It is an
// internal failure, not a verdict on the token.
func NewJWKSFetchError(op string, url string, err error) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrInternal, fmt.Errorf("%w: %w", ErrJWKSFetchFailed, err)).
		WithContext("url", url)
}

func NewInvalidMetadataError(op string, url string, err error) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrInternal, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)).
		WithContext("url", url)
}

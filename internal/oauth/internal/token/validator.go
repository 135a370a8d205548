// Package token validates provider-issued JWT access tokens.
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	ierrors "github.com/jamesprial/mcp-oauth-tools/internal/errors"
	"github.com/jamesprial/mcp-oauth-tools/internal/oauth/oautherr"
)

// KeySource resolves signing keys by kid.
// This avoids importing the parent oauth package.
type KeySource interface {
	GetKey(ctx context.Context, keyID string) (any, error)
}

// Claims are the validated claims of an access token.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	Scopes    []string
	ClientID  string
	ExpiresAt time.Time
	IssuedAt  time.Time
	JTI       string
}

// Asymmetric algorithms only. HS* and none are rejected before any key lookup.
var allowedAlgorithms = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}

// Validator checks signature, time claims, issuer and audience.
type Validator struct {
	keys      KeySource
	issuer    string
	audience  string
	clockSkew time.Duration
}

// NewValidator creates a validator that accepts tokens issued by issuer for audience.
func NewValidator(keys KeySource, issuer, audience string, clockSkew time.Duration) *Validator {
	return &Validator{
		keys:      keys,
		issuer:    strings.TrimRight(issuer, "/"),
		audience:  audience,
		clockSkew: clockSkew,
	}
}

// ValidateToken validates an access token and returns its claims.
func (v *Validator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, oautherr.NewInvalidTokenError("ValidateToken", fmt.Errorf("empty token"))
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(allowedAlgorithms),
		jwt.WithLeeway(v.clockSkew),
		jwt.WithExpirationRequired(),
	)

	parsed, err := parser.Parse(tokenString, func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, oautherr.NewInvalidTokenError("ValidateToken", fmt.Errorf("missing kid in token header"))
		}
		return v.keys.GetKey(ctx, kid)
	})
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !parsed.Valid {
		return nil, oautherr.NewInvalidTokenError("ValidateToken", fmt.Errorf("token is invalid"))
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, oautherr.NewInvalidTokenError("ValidateToken", fmt.Errorf("invalid claims type"))
	}

	claims, err := extractClaims(mapClaims)
	if err != nil {
		return nil, err
	}

	if strings.TrimRight(claims.Issuer, "/") != v.issuer {
		return nil, oautherr.NewInvalidIssuerError("ValidateToken", v.issuer, claims.Issuer)
	}

	if !containsAudience(claims.Audience, v.audience) {
		return nil, oautherr.NewInvalidAudienceError("ValidateToken", v.audience, claims.Audience)
	}

	return claims, nil
}

// classifyParseError maps jwt errors onto oauth DomainErrors. Errors raised by
// the keyfunc (key lookup, missing kid) are already DomainErrors and pass through.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		if inner := unwrapKeyfuncError(err); inner != nil {
			return inner
		}
		return oautherr.NewInvalidTokenError("ValidateToken", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		if strings.Contains(err.Error(), "signing method") {
			return oautherr.NewUnsupportedAlgorithmError("ValidateToken", algorithmFromError(err))
		}
		return oautherr.NewInvalidSignatureError("ValidateToken", err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return oautherr.NewTokenExpiredError("ValidateToken", err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return oautherr.NewMissingClaimError("ValidateToken", "exp")
	default:
		return oautherr.NewInvalidTokenError("ValidateToken", err)
	}
}

// unwrapKeyfuncError digs the keyfunc's own error out of jwt's joined error.
func unwrapKeyfuncError(err error) error {
	var de *ierrors.DomainError
	if errors.As(err, &de) {
		return de
	}
	return nil
}

func algorithmFromError(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, "signing method "); i >= 0 {
		rest := msg[i+len("signing method "):]
		if j := strings.IndexByte(rest, ' '); j >= 0 {
			return rest[:j]
		}
		return rest
	}
	return "unknown"
}

func extractClaims(mapClaims jwt.MapClaims) (*Claims, error) {
	claims := &Claims{}

	sub, err := mapClaims.GetSubject()
	if err != nil || sub == "" {
		return nil, oautherr.NewMissingClaimError("extractClaims", "sub")
	}
	claims.Subject = sub

	iss, err := mapClaims.GetIssuer()
	if err != nil || iss == "" {
		return nil, oautherr.NewMissingClaimError("extractClaims", "iss")
	}
	claims.Issuer = iss

	aud, err := mapClaims.GetAudience()
	if err != nil || len(aud) == 0 {
		return nil, oautherr.NewMissingClaimError("extractClaims", "aud")
	}
	claims.Audience = aud

	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, oautherr.NewMissingClaimError("extractClaims", "exp")
	}
	claims.ExpiresAt = exp.Time

	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}

	if jti, ok := mapClaims["jti"].(string); ok {
		claims.JTI = jti
	}

	claims.ClientID = firstString(mapClaims, "client_id", "azp")
	claims.Scopes = extractScopes(mapClaims)

	return claims, nil
}

func firstString(m jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// extractScopes accepts the RFC 8693 "scope" string as well as the "scp"
// and "scopes" arrays some providers emit.
func extractScopes(m jwt.MapClaims) []string {
	if s, ok := m["scope"].(string); ok {
		return strings.Fields(s)
	}
	for _, key := range []string{"scp", "scopes"} {
		raw, ok := m[key].([]any)
		if !ok {
			continue
		}
		var scopes []string
		for _, item := range raw {
			if s, ok := item.(string); ok && s != "" {
				scopes = append(scopes, s)
			}
		}
		return scopes
	}
	return nil
}

func containsAudience(audiences []string, want string) bool {
	for _, aud := range audiences {
		if aud == want {
			return true
		}
	}
	return false
}

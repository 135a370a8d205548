package token

import (
	"slices"

	"github.com/jamesprial/mcp-oauth-tools/internal/oauth/oautherr"
)

// ScopeChecker validates token scopes against required scopes.
type ScopeChecker struct{}

func NewScopeChecker() *ScopeChecker {
	return &ScopeChecker{}
}

// RequireScopes fails unless scopes contains every required scope.
func (s *ScopeChecker) RequireScopes(scopes []string, required ...string) error {
	for _, r := range required {
		if !slices.Contains(scopes, r) {
			return oautherr.NewInsufficientScopeError("RequireScopes", required)
		}
	}
	return nil
}

// RequireAnyScope fails unless scopes contains at least one of candidates.
func (s *ScopeChecker) RequireAnyScope(scopes []string, candidates ...string) error {
	for _, c := range candidates {
		if slices.Contains(scopes, c) {
			return nil
		}
	}
	return oautherr.NewInsufficientScopeError("RequireAnyScope", candidates)
}

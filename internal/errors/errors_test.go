package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *DomainError
		want string
	}{
		{
			name: "with wrapped error",
			err:  New("oauth", "ValidateToken", ErrUnauthorized, errors.New("token expired")),
			want: "oauth.ValidateToken: unauthorized: token expired",
		},
		{
			name: "kind only",
			err:  New("mcp", "GetTool", ErrNotFound, nil),
			want: "mcp.GetTool: not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDomainError_IsAndUnwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("tool not found")
	err := New("mcp", "GetTool", ErrNotFound, inner)

	if !errors.Is(err, ErrNotFound) {
		t.Error("errors.Is(err, ErrNotFound) = false, want true")
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is(err, inner) = false, want true")
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Error("errors.Is(err, ErrUnauthorized) = true, want false")
	}
	if errors.Unwrap(err) != inner {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), inner)
	}

	wrapped := fmt.Errorf("dispatch: %w", err)
	var de *DomainError
	if !errors.As(wrapped, &de) {
		t.Fatal("errors.As() = false, want true")
	}
	if de.Op != "GetTool" {
		t.Errorf("Op = %q, want %q", de.Op, "GetTool")
	}
}

func TestDomainError_WithContext(t *testing.T) {
	t.Parallel()

	err := (&DomainError{Domain: "oauth", Op: "ValidateToken", Kind: ErrUnauthorized}).
		WithContext("oauth_error", ErrorCodeInvalidToken).
		WithContext("kid", 7)

	if got := err.ContextString("oauth_error"); got != ErrorCodeInvalidToken {
		t.Errorf("ContextString(oauth_error) = %q, want %q", got, ErrorCodeInvalidToken)
	}
	if got := err.ContextString("kid"); got != "" {
		t.Errorf("ContextString(kid) = %q, want empty for non-string value", got)
	}
	if got := err.ContextString("missing"); got != "" {
		t.Errorf("ContextString(missing) = %q, want empty", got)
	}

	var nilErr *DomainError
	if got := nilErr.ContextString("x"); got != "" {
		t.Errorf("nil ContextString() = %q, want empty", got)
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"domain unauthorized", New("oauth", "op", ErrUnauthorized, nil), ErrUnauthorized},
		{"wrapped forbidden", fmt.Errorf("x: %w", New("oauth", "op", ErrForbidden, nil)), ErrForbidden},
		{"bare sentinel", ErrBadRequest, ErrBadRequest},
		{"plain error", errors.New("boom"), ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSentinelErrors_Distinct(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for _, k := range kinds {
		if seen[k.Error()] {
			t.Errorf("duplicate sentinel message %q", k.Error())
		}
		seen[k.Error()] = true
		if strings.TrimSpace(k.Error()) == "" {
			t.Error("sentinel with empty message")
		}
	}
}

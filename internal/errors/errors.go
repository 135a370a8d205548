// Package errors provides the error vocabulary shared by the tool server:
// sentinel kinds, a DomainError carrying subsystem and operation, and the
// RFC 6750 OAuthError used to build bearer challenges.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Every DomainError carries exactly one of these.
var (
	// ErrNotFound indicates a requested tool, resource or session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates authentication is required or failed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the authenticated caller lacks permission.
	ErrForbidden = errors.New("forbidden")

	// ErrBadRequest indicates invalid request parameters or format.
	ErrBadRequest = errors.New("bad request")

	// ErrInternal indicates an internal server error.
	ErrInternal = errors.New("internal error")
)

var kinds = []error{ErrNotFound, ErrUnauthorized, ErrForbidden, ErrBadRequest, ErrInternal}

// DomainError is an error raised inside one subsystem ("oauth", "mcp",
// "transport") by one operation, classified by a sentinel Kind.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Err     error
	Context map[string]any
}

// New creates a DomainError. err may be nil.
func New(domain, op string, kind, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Err:     err,
		Context: make(map[string]any),
	}
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %v: %v", e.Domain, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s.%s: %v", e.Domain, e.Op, e.Kind)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on the Kind as well as the wrapped chain, so
// errors.Is(err, ErrUnauthorized) works for any oauth failure.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

// WithContext adds a key-value pair and returns e for chaining.
func (e *DomainError) WithContext(key string, value any) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ContextString returns the string stored under key, or "".
func (e *DomainError) ContextString(key string) string {
	if e == nil || e.Context == nil {
		return ""
	}
	s, _ := e.Context[key].(string)
	return s
}

// KindOf returns the sentinel kind of err, or ErrInternal when err carries none.
// A nil err has no kind.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}

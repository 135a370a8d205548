package clientauth

import "errors"

var (
	// ErrDiscovery indicates the resource or authorization server metadata
	// could not be found or was unusable.
	ErrDiscovery = errors.New("oauth discovery failed")

	// ErrNoClientID indicates no client id was configured and the
	// authorization server offers no dynamic registration.
	ErrNoClientID = errors.New("no client id and dynamic registration unavailable")

	// ErrStateMismatch indicates the callback carried a state value other
	// than the one sent. The code is discarded.
	ErrStateMismatch = errors.New("state mismatch in authorization callback")

	// ErrAuthorizationDenied indicates the authorization server redirected
	// back with an error instead of a code.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrCallbackTimeout indicates the user did not finish authorizing in time.
	ErrCallbackTimeout = errors.New("timed out waiting for authorization callback")
)

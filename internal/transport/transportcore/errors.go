package transportcore

import (
	"errors"
)

// Sentinel errors for transport operations.
// Wrap these with DomainError from internal/errors to add context.
var (
	// ErrMissingToken indicates the request carried no bearer token.
	ErrMissingToken = errors.New("missing authorization token")

	ErrMethodNotAllowed = errors.New("method not allowed")

	// ErrSessionNotFound indicates an unknown, expired or foreign MCP session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMissingSession indicates a request that needs an MCP session id
	// but carried none.
	ErrMissingSession = errors.New("missing session id")

	// ErrNoMetadata indicates the metadata service returned no document.
	ErrNoMetadata = errors.New("protected resource metadata unavailable")
)

package mcpserver

import (
	"errors"
)

// Sentinel errors for MCP operations.
// Wrap these with DomainError from internal/errors to add context.
var (
	ErrInvalidRequest            = errors.New("invalid request")
	ErrMethodNotFound            = errors.New("method not found")
	ErrInvalidParams             = errors.New("invalid params")
	ErrToolNotFound              = errors.New("tool not found")
	ErrToolAlreadyRegistered     = errors.New("tool already registered")
	ErrResourceNotFound          = errors.New("resource not found")
	ErrResourceAlreadyRegistered = errors.New("resource already registered")

	// ErrInvalidArguments reports tool arguments that do not match the
	// tool's input schema.
	ErrInvalidArguments = errors.New("invalid arguments")
)

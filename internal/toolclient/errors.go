package toolclient

import (
	"errors"
	"fmt"

	pkgoauth "github.com/jamesprial/mcp-oauth-tools/pkg/oauth"
)

var (
	// ErrAuthentication covers a missing, rejected or unrefreshable token:
	// HTTP 401 or 403 from the server, or a failed token request.
	ErrAuthentication = errors.New("authentication failed")

	// ErrUnknownTool is JSON-RPC -32003 from tools/call.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments is JSON-RPC -32602.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrToolFailed is a tool result with isError set.
	ErrToolFailed = errors.New("tool reported an error")

	// ErrTransport is everything else: connection failures, 5xx and
	// undecodable responses.
	ErrTransport = errors.New("transport error")
)

// StepError is the failure of one step of the request sequence.
type StepError struct {
	Step string
	Kind error
	Err  error

	// Challenge is the parsed WWW-Authenticate header of an auth failure.
	Challenge *pkgoauth.Challenge
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Step, e.Err)
	if e.Challenge != nil && e.Challenge.Error != "" {
		msg += " (" + e.Challenge.Error
		if e.Challenge.ErrorDescription != "" {
			msg += ": " + e.Challenge.ErrorDescription
		}
		msg += ")"
	}
	return msg
}

func (e *StepError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// IsAuthError reports whether err is an authentication failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

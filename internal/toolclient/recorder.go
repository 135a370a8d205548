package toolclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/jamesprial/mcp-oauth-tools/internal/mcpserver"
	pkgoauth "github.com/jamesprial/mcp-oauth-tools/pkg/oauth"
)

const maxPeekBytes = 4 << 20

// observation is the first failure signal seen on the wire during a step.
type observation struct {
	status    int
	rpcCode   int
	authErr   bool
	challenge *pkgoauth.Challenge
}

func (o observation) failed() bool {
	return o.authErr || o.status >= http.StatusBadRequest || o.rpcCode != 0
}

func (o observation) kind() error {
	switch {
	case o.authErr, o.status == http.StatusUnauthorized, o.status == http.StatusForbidden:
		return ErrAuthentication
	case o.rpcCode == mcpserver.CodeToolNotFound:
		return ErrUnknownTool
	case o.rpcCode == mcpserver.CodeInvalidParams:
		return ErrInvalidArguments
	default:
		return ErrTransport
	}
}

// recorder sits under the MCP client and notes HTTP statuses and JSON-RPC
// error codes so failures can be classified without parsing error strings.
type recorder struct {
	base http.RoundTripper

	mu   sync.Mutex
	seen observation
}

func (r *recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.base.RoundTrip(req)
	if err != nil {
		if errors.Is(err, ErrAuthentication) {
			r.record(observation{authErr: true})
		}
		return nil, err
	}

	obs := observation{status: resp.StatusCode}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		obs.challenge = pkgoauth.ChallengeFromResponse(resp)
	}
	if isJSON(resp.Header.Get(pkgoauth.HeaderContentType)) {
		code, peekErr := peekRPCErrorCode(resp)
		if peekErr != nil {
			return nil, peekErr
		}
		obs.rpcCode = code
	}
	r.record(obs)
	return resp, nil
}

// record keeps the first failure of a step. Later traffic such as the
// session DELETE does not overwrite it.
func (r *recorder) record(obs observation) {
	if !obs.failed() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.seen.failed() {
		r.seen = obs
	}
}

// take returns the observation and clears it for the next step.
func (r *recorder) take() observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	obs := r.seen
	r.seen = observation{}
	return obs
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == pkgoauth.ContentTypeJSON
}

func peekRPCErrorCode(resp *http.Response) (int, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPeekBytes))
	_ = resp.Body.Close()
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))

	var envelope struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &envelope) != nil || envelope.Error == nil {
		return 0, nil
	}
	return envelope.Error.Code, nil
}

// authTokenSource marks token failures, including refresh failures, as
// authentication errors.
type authTokenSource struct {
	src oauth2.TokenSource
}

func (a authTokenSource) Token() (*oauth2.Token, error) {
	tok, err := a.src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	return tok, nil
}

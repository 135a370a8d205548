package clientauth

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	pkgoauth "github.com/jamesprial/mcp-oauth-tools/pkg/oauth"
)

// fakeAuthServer plays both the protected MCP server and its authorization
// server on one httptest.Server.
type fakeAuthServer struct {
	server *httptest.Server

	mu             sync.Mutex
	noRegistration bool
	noChallenge    bool
	denyAuthorize  bool
	wrongState     bool
	failRefresh    bool
	advertisedID   string
	codes          map[string]pendingCode
	lastResource   string
	registeredName string

	tokensIssued atomic.Int32
	refreshes    atomic.Int32
	registers    atomic.Int32
}

type pendingCode struct {
	clientID  string
	challenge string
	redirect  string
}

func newFakeAuthServer(t *testing.T) *fakeAuthServer {
	t.Helper()
	f := &fakeAuthServer{codes: make(map[string]pendingCode)}

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", f.handleMCP)
	mux.HandleFunc(pkgoauth.WellKnownProtectedResource, f.handleResourceMetadata)
	mux.HandleFunc(pkgoauth.WellKnownAuthorizationServer, f.handleServerMetadata)
	mux.HandleFunc("/register", f.handleRegister)
	mux.HandleFunc("/authorize", f.handleAuthorize)
	mux.HandleFunc("/token", f.handleToken)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAuthServer) mcpURL() string { return f.server.URL + "/mcp" }

func (f *fakeAuthServer) configure(fn func(f *fakeAuthServer)) {
	f.mu.Lock()
	fn(f)
	f.mu.Unlock()
}

func (f *fakeAuthServer) handleMCP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	noChallenge := f.noChallenge
	f.mu.Unlock()

	if noChallenge {
		w.Header().Set(pkgoauth.HeaderWWWAuthenticate, "Bearer")
	} else {
		w.Header().Set(pkgoauth.HeaderWWWAuthenticate,
			fmt.Sprintf(`Bearer resource_metadata="%s%s"`, f.server.URL, pkgoauth.WellKnownProtectedResource))
	}
	w.WriteHeader(http.StatusUnauthorized)
}

func (f *fakeAuthServer) handleResourceMetadata(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	advertisedID := f.advertisedID
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, ResourceMetadata{
		Resource:             f.mcpURL(),
		AuthorizationServers: []string{f.server.URL},
		ScopesSupported:      []string{"mcp:tools"},
		ClientID:             advertisedID,
	})
}

func (f *fakeAuthServer) handleServerMetadata(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	noRegistration := f.noRegistration
	f.mu.Unlock()

	meta := ServerMetadata{
		Issuer:                        f.server.URL,
		AuthorizationEndpoint:         f.server.URL + "/authorize",
		TokenEndpoint:                 f.server.URL + "/token",
		CodeChallengeMethodsSupported: []string{pkgoauth.CodeChallengeMethodS256},
	}
	if !noRegistration {
		meta.RegistrationEndpoint = f.server.URL + "/register"
	}
	writeJSON(w, http.StatusOK, meta)
}

func (f *fakeAuthServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.RedirectURIs) != 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_client_metadata"})
		return
	}
	if req.TokenEndpointAuthMethod != pkgoauth.TokenEndpointAuthMethodNone {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_client_metadata"})
		return
	}
	f.mu.Lock()
	f.registeredName = req.ClientName
	f.mu.Unlock()

	n := f.registers.Add(1)
	writeJSON(w, http.StatusCreated, map[string]any{
		"client_id":     fmt.Sprintf("dyn-client-%d", n),
		"redirect_uris": req.RedirectURIs,
	})
}

func (f *fakeAuthServer) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	redirect, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || q.Get("code_challenge_method") != pkgoauth.CodeChallengeMethodS256 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	deny, wrongState := f.denyAuthorize, f.wrongState
	f.lastResource = q.Get("resource")
	code := fmt.Sprintf("code-%d", len(f.codes)+1)
	f.codes[code] = pendingCode{
		clientID:  q.Get("client_id"),
		challenge: q.Get("code_challenge"),
		redirect:  q.Get("redirect_uri"),
	}
	f.mu.Unlock()

	params := url.Values{}
	switch {
	case deny:
		params.Set("error", "access_denied")
		params.Set("error_description", "user said no")
	default:
		params.Set("code", code)
	}
	if wrongState {
		params.Set("state", "forged")
	} else {
		params.Set("state", q.Get("state"))
	}
	redirect.RawQuery = params.Encode()
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

func (f *fakeAuthServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	switch r.PostForm.Get("grant_type") {
	case pkgoauth.GrantTypeAuthorizationCode:
		f.mu.Lock()
		pending, ok := f.codes[r.PostForm.Get("code")]
		delete(f.codes, r.PostForm.Get("code"))
		f.mu.Unlock()

		sum := sha256.Sum256([]byte(r.PostForm.Get("code_verifier")))
		if !ok || pending.challenge != base64.RawURLEncoding.EncodeToString(sum[:]) ||
			pending.clientID != r.PostForm.Get("client_id") ||
			pending.redirect != r.PostForm.Get("redirect_uri") {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
	case pkgoauth.GrantTypeRefreshToken:
		f.refreshes.Add(1)
		f.mu.Lock()
		fail := f.failRefresh
		f.mu.Unlock()
		if fail || r.PostForm.Get("refresh_token") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	n := f.tokensIssued.Add(1)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  fmt.Sprintf("access-%d", n),
		"token_type":    "Bearer",
		"refresh_token": fmt.Sprintf("refresh-%d", n),
		"expires_in":    3600,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(pkgoauth.HeaderContentType, pkgoauth.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// followRedirects acts as the user's browser: it visits the authorization
// URL and lets the redirect land on the loopback callback.
func followRedirects(authURL string) error {
	resp, err := http.Get(authURL)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

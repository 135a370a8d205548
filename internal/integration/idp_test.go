package integration

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgoauth "github.com/jamesprial/mcp-oauth-tools/pkg/oauth"
)

const signingKeyID = "idp-key-1"

// identityProvider is an in-process authorization server: metadata, JWKS,
// dynamic registration, the authorize redirect and the token endpoint.
type identityProvider struct {
	server *httptest.Server
	key    *rsa.PrivateKey

	mu       sync.Mutex
	subject  string
	tokenTTL time.Duration
	jwksDown bool
	codes    map[string]authorization
	refresh  map[string]authorization

	registrations atomic.Int32
	refreshes     atomic.Int32
	issued        atomic.Int32
}

type authorization struct {
	clientID  string
	challenge string
	redirect  string
	resource  string
	scope     string
}

func newIdentityProvider(t *testing.T) *identityProvider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}

	p := &identityProvider{
		key:      key,
		subject:  "alice",
		tokenTTL: time.Hour,
		codes:    make(map[string]authorization),
		refresh:  make(map[string]authorization),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(pkgoauth.WellKnownAuthorizationServer, p.handleMetadata)
	mux.HandleFunc("/jwks", p.handleJWKS)
	mux.HandleFunc("/register", p.handleRegister)
	mux.HandleFunc("/authorize", p.handleAuthorize)
	mux.HandleFunc("/token", p.handleToken)

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *identityProvider) issuer() string { return p.server.URL }

func (p *identityProvider) configure(fn func(p *identityProvider)) {
	p.mu.Lock()
	fn(p)
	p.mu.Unlock()
}

// mint signs an access token; claims override the defaults.
func (p *identityProvider) mint(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := p.sign(claims)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return tok
}

func (p *identityProvider) sign(claims jwt.MapClaims) (string, error) {
	now := time.Now()
	defaults := jwt.MapClaims{
		"iss": p.issuer(),
		"sub": "alice",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
		"jti": fmt.Sprintf("jti-%d", now.UnixNano()),
	}
	for k, v := range claims {
		defaults[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, defaults)
	token.Header["kid"] = signingKeyID
	return token.SignedString(p.key)
}

func (p *identityProvider) handleMetadata(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                           p.issuer(),
		"authorization_endpoint":           p.issuer() + "/authorize",
		"token_endpoint":                   p.issuer() + "/token",
		"registration_endpoint":            p.issuer() + "/register",
		"jwks_uri":                         p.issuer() + "/jwks",
		"code_challenge_methods_supported": []string{pkgoauth.CodeChallengeMethodS256},
	})
}

func (p *identityProvider) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	p.mu.Lock()
	down := p.jwksDown
	p.mu.Unlock()
	if down {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	pub := p.key.PublicKey
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"use": "sig",
			"alg": "RS256",
			"kid": signingKeyID,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (p *identityProvider) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RedirectURIs []string `json:"redirect_uris"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.RedirectURIs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_client_metadata"})
		return
	}
	n := p.registrations.Add(1)
	writeJSON(w, http.StatusCreated, map[string]any{"client_id": fmt.Sprintf("registered-%d", n)})
}

func (p *identityProvider) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	redirect, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || q.Get("code_challenge_method") != pkgoauth.CodeChallengeMethodS256 || q.Get("resource") == "" {
		http.Error(w, "invalid_request", http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	code := fmt.Sprintf("code-%d", len(p.codes)+1)
	p.codes[code] = authorization{
		clientID:  q.Get("client_id"),
		challenge: q.Get("code_challenge"),
		redirect:  q.Get("redirect_uri"),
		resource:  q.Get("resource"),
		scope:     q.Get("scope"),
	}
	p.mu.Unlock()

	redirect.RawQuery = url.Values{"code": {code}, "state": {q.Get("state")}}.Encode()
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

func (p *identityProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	var grant authorization
	switch r.PostForm.Get("grant_type") {
	case pkgoauth.GrantTypeAuthorizationCode:
		p.mu.Lock()
		pending, ok := p.codes[r.PostForm.Get("code")]
		delete(p.codes, r.PostForm.Get("code"))
		p.mu.Unlock()

		sum := sha256.Sum256([]byte(r.PostForm.Get("code_verifier")))
		if !ok || pending.challenge != base64.RawURLEncoding.EncodeToString(sum[:]) || pending.clientID != r.PostForm.Get("client_id") {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		grant = pending
	case pkgoauth.GrantTypeRefreshToken:
		p.refreshes.Add(1)
		p.mu.Lock()
		pending, ok := p.refresh[r.PostForm.Get("refresh_token")]
		delete(p.refresh, r.PostForm.Get("refresh_token"))
		p.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		grant = pending
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	p.mu.Lock()
	ttl, subject := p.tokenTTL, p.subject
	refreshToken := fmt.Sprintf("rt-%d", p.issued.Add(1))
	p.refresh[refreshToken] = grant
	p.mu.Unlock()

	access, err := p.sign(jwt.MapClaims{
		"sub":       subject,
		"aud":       grant.resource,
		"scope":     grant.scope,
		"client_id": grant.clientID,
		"exp":       time.Now().Add(ttl).Unix(),
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"token_type":    "Bearer",
		"expires_in":    int(ttl.Seconds()),
		"refresh_token": refreshToken,
		"scope":         grant.scope,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(pkgoauth.HeaderContentType, pkgoauth.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// browse plays the user's browser: it follows the authorization redirect
// back to the client's loopback callback.
func browse(authURL string) error {
	resp, err := http.Get(authURL)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

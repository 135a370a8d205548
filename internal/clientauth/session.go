// Package clientauth obtains and maintains OAuth 2.1 access tokens for a
// protected MCP server: discovery, dynamic client registration, the
// authorization code flow with PKCE on a loopback redirect, and a token
// cache that survives restarts.
package clientauth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/oauth2"
)

// DefaultClientName is sent during dynamic registration.
const DefaultClientName = "MCP OAuth Tool Client"

// Config configures a Session.
type Config struct {
	// ServerURL is the MCP endpoint, e.g. http://127.0.0.1:8000/mcp.
	ServerURL string

	// ClientID skips dynamic registration when set. Without it, a client id
	// advertised in the resource metadata is used before registering.
	ClientID   string
	ClientName string

	// TokenDir holds cached tokens. Empty uses DefaultTokenDir.
	TokenDir string

	// Scopes requested. Empty uses the scopes the resource advertises.
	Scopes []string

	// NoBrowser prints the authorization URL instead of opening it.
	NoBrowser bool

	// OpenBrowser replaces the platform opener. Nil uses OpenBrowser.
	OpenBrowser func(url string) error

	CallbackPort    int
	CallbackTimeout time.Duration

	// HTTPClient is used for discovery, registration and token requests.
	HTTPClient *http.Client

	// Out receives user-facing prompts. Nil uses io.Discard.
	Out    io.Writer
	Logger *slog.Logger
}

// Session holds a token source bound to one MCP server.
type Session struct {
	source *persistingTokenSource
}

// NewSession returns a session for cfg.ServerURL. A cached token is reused
// when it is still valid or can be refreshed; otherwise the user is taken
// through the browser authorization flow.
func NewSession(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ClientName == "" {
		cfg.ClientName = DefaultClientName
	}
	if cfg.CallbackTimeout <= 0 {
		cfg.CallbackTimeout = DefaultCallbackTimeout
	}
	if cfg.OpenBrowser == nil {
		cfg.OpenBrowser = OpenBrowser
	}

	store, err := NewFileStore(cfg.TokenDir)
	if err != nil {
		return nil, err
	}

	// Token requests outlive ctx: the source keeps refreshing for the
	// lifetime of the session.
	tokenCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, cfg.HTTPClient)

	if s := resumeSession(tokenCtx, cfg, store); s != nil {
		return s, nil
	}

	record, err := authorize(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := store.Save(record); err != nil {
		return nil, err
	}
	cfg.Logger.Info("authorization complete", "server", cfg.ServerURL, "client_id", record.ClientID)

	return newSession(tokenCtx, cfg, store, record), nil
}

// TokenSource returns a source that refreshes transparently and persists
// rotated tokens.
func (s *Session) TokenSource() oauth2.TokenSource {
	return s.source
}

// HTTPClient returns a client that attaches the bearer token to every
// request. A nil base uses http.DefaultTransport.
func (s *Session) HTTPClient(base http.RoundTripper) *http.Client {
	return &http.Client{Transport: &oauth2.Transport{Source: s.source, Base: base}}
}

func resumeSession(tokenCtx context.Context, cfg Config, store *FileStore) *Session {
	record, err := store.Load(cfg.ServerURL)
	if err != nil {
		cfg.Logger.Warn("ignoring unreadable token cache", "error", err)
		return nil
	}
	if !record.Usable() {
		return nil
	}
	if cfg.ClientID != "" && record.ClientID != cfg.ClientID {
		return nil
	}

	s := newSession(tokenCtx, cfg, store, record)
	if _, err := s.source.Token(); err != nil {
		cfg.Logger.Info("cached token could not be refreshed", "server", cfg.ServerURL, "error", err)
		_ = store.Delete(cfg.ServerURL)
		return nil
	}
	cfg.Logger.Debug("using cached token", "server", cfg.ServerURL)
	return s
}

func newSession(tokenCtx context.Context, cfg Config, store *FileStore, record *StoredToken) *Session {
	conf := &oauth2.Config{
		ClientID: record.ClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  record.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: record.Scopes,
	}
	return &Session{
		source: &persistingTokenSource{
			src:    conf.TokenSource(tokenCtx, record.Token()),
			store:  store,
			record: *record,
			logger: cfg.Logger,
		},
	}
}

func authorize(ctx context.Context, cfg Config) (*StoredToken, error) {
	discovery, err := Discover(ctx, cfg.HTTPClient, cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	as := discovery.AuthServer

	callback, err := StartCallbackServer(ctx, cfg.CallbackPort)
	if err != nil {
		return nil, err
	}
	defer callback.Stop()

	clientID := cfg.ClientID
	if clientID == "" && discovery.Resource.ClientID != "" {
		clientID = discovery.Resource.ClientID
		cfg.Logger.Debug("using advertised client", "client_id", clientID)
	}
	if clientID == "" {
		if as.RegistrationEndpoint == "" {
			return nil, ErrNoClientID
		}
		clientID, err = RegisterClient(ctx, cfg.HTTPClient, as.RegistrationEndpoint, cfg.ClientName, callback.RedirectURI())
		if err != nil {
			return nil, err
		}
		cfg.Logger.Debug("registered client", "client_id", clientID)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = discovery.Resource.ScopesSupported
	}
	resource := discovery.Resource.Resource
	if resource == "" {
		resource = cfg.ServerURL
	}

	conf := &oauth2.Config{
		ClientID: clientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:   as.AuthorizationEndpoint,
			TokenURL:  as.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: callback.RedirectURI(),
		Scopes:      scopes,
	}

	verifier := oauth2.GenerateVerifier()
	state := rand.Text()
	resourceParam := oauth2.SetAuthURLParam("resource", resource)
	authURL := conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier), resourceParam)

	if cfg.NoBrowser {
		_, _ = fmt.Fprintf(cfg.Out, "Open this URL to authorize:\n\n  %s\n\n", authURL)
	} else if err := cfg.OpenBrowser(authURL); err != nil {
		cfg.Logger.Warn("could not open browser", "error", err)
		_, _ = fmt.Fprintf(cfg.Out, "Open this URL to authorize:\n\n  %s\n\n", authURL)
	}

	result, err := waitForCallback(ctx, cfg, callback)
	if err != nil {
		return nil, err
	}
	if result.IsError() {
		return nil, fmt.Errorf("%w: %s %s", ErrAuthorizationDenied, result.Error, result.ErrorDescription)
	}
	if subtle.ConstantTimeCompare([]byte(result.State), []byte(state)) != 1 {
		return nil, ErrStateMismatch
	}

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	tok, err := conf.Exchange(exchangeCtx, result.Code, oauth2.VerifierOption(verifier), resourceParam)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}

	return &StoredToken{
		ServerURL:     cfg.ServerURL,
		Issuer:        as.Issuer,
		ClientID:      clientID,
		TokenEndpoint: as.TokenEndpoint,
		Resource:      resource,
		Scopes:        scopes,
		AccessToken:   tok.AccessToken,
		TokenType:     tok.TokenType,
		RefreshToken:  tok.RefreshToken,
		Expiry:        tok.Expiry,
	}, nil
}

func waitForCallback(ctx context.Context, cfg Config, callback *CallbackServer) (*CallbackResult, error) {
	waitCtx, cancel := context.WithTimeout(ctx, cfg.CallbackTimeout)
	defer cancel()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cfg.Out))
	s.Suffix = " Waiting for authorization in the browser..."
	s.Start()
	defer s.Stop()

	return callback.Wait(waitCtx)
}

// persistingTokenSource saves every token the refresh flow hands out so the
// next run starts from the rotated refresh token.
type persistingTokenSource struct {
	src    oauth2.TokenSource
	store  *FileStore
	logger *slog.Logger

	mu     sync.Mutex
	record StoredToken
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if tok.AccessToken == p.record.AccessToken {
		return tok, nil
	}

	p.record.AccessToken = tok.AccessToken
	p.record.TokenType = tok.TokenType
	p.record.Expiry = tok.Expiry
	if tok.RefreshToken != "" {
		p.record.RefreshToken = tok.RefreshToken
	}
	record := p.record
	if err := p.store.Save(&record); err != nil {
		p.logger.Warn("failed to persist refreshed token", "error", err)
	} else {
		p.logger.Debug("token refreshed", "server", p.record.ServerURL, "expiry", tok.Expiry)
	}
	return tok, nil
}

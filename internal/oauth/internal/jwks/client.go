// Package jwks discovers and caches the identity provider's signing keys.
package jwks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jamesprial/mcp-oauth-tools/internal/oauth/oautherr"
	pkgoauth "github.com/jamesprial/mcp-oauth-tools/pkg/oauth"
)

// DefaultMinRefreshInterval bounds how often an unknown kid can force a refetch.
const DefaultMinRefreshInterval = 10 * time.Second

const maxDocumentSize = 1 << 20

// fetchTimeout bounds a shared fetch, which outlives any single caller.
const fetchTimeout = 15 * time.Second

// wellKnownPaths are tried in order: RFC 8414 first, then OpenID Connect discovery.
var wellKnownPaths = []string{
	pkgoauth.WellKnownAuthorizationServer,
	pkgoauth.WellKnownOpenIDConfiguration,
}

// ServerMetadata is the subset of authorization server metadata used for key discovery.
type ServerMetadata struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// Client fetches and caches the provider's JWKS.
type Client struct {
	httpClient         *http.Client
	cache              *Cache
	providerURL        string
	minRefreshInterval time.Duration

	group singleflight.Group

	mu        sync.Mutex
	jwksURI   string
	lastFetch time.Time
}

// NewClient creates a JWKS client for a single identity provider.
// A nil httpClient gets a default client with a 10 second timeout.
func NewClient(providerURL string, cacheTTL time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		httpClient:         httpClient,
		cache:              NewCache(cacheTTL),
		providerURL:        strings.TrimRight(providerURL, "/"),
		minRefreshInterval: DefaultMinRefreshInterval,
	}
}

// SetMinRefreshInterval overrides DefaultMinRefreshInterval.
func (c *Client) SetMinRefreshInterval(d time.Duration) {
	c.mu.Lock()
	c.minRefreshInterval = d
	c.mu.Unlock()
}

// GetKey returns the public key for keyID. A cache miss fetches the key set;
// concurrent misses share one fetch.
func (c *Client) GetKey(ctx context.Context, keyID string) (any, error) {
	if keyID == "" {
		return nil, oautherr.NewKeyNotFoundError("GetKey", "")
	}

	if key := c.cache.Get(keyID); key != nil {
		return key, nil
	}

	if err := c.refresh(ctx, false); err != nil {
		return nil, err
	}

	if key := c.cache.Get(keyID); key != nil {
		return key, nil
	}
	return nil, oautherr.NewKeyNotFoundError("GetKey", keyID)
}

// RefreshKeys refetches the key set and forgets the discovered jwks_uri.
func (c *Client) RefreshKeys(ctx context.Context) error {
	c.mu.Lock()
	c.jwksURI = ""
	c.mu.Unlock()
	return c.refresh(ctx, true)
}

// refresh fetches the key set unless one was fetched within the minimum
// refresh interval. force skips that check.
func (c *Client) refresh(ctx context.Context, force bool) error {
	c.mu.Lock()
	recent := !c.lastFetch.IsZero() && time.Since(c.lastFetch) < c.minRefreshInterval
	c.mu.Unlock()
	if recent && !force {
		return nil
	}

	// The fetch is shared and outlives the caller that started it. Each
	// caller stops waiting when its own context is done.
	ch := c.group.DoChan(c.providerURL, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return nil, c.fetchKeys(fetchCtx)
	})
	select {
	case res := <-ch:
		if res.Shared {
			slog.Debug("jwks fetch shared", "provider", c.providerURL)
		}
		return res.Err
	case <-ctx.Done():
		return oautherr.NewJWKSFetchError("refresh", c.providerURL, ctx.Err())
	}
}

func (c *Client) fetchKeys(ctx context.Context) error {
	jwksURI, err := c.discoverJWKSURI(ctx)
	if err != nil {
		return err
	}

	var set JWKS
	if err := c.getJSON(ctx, jwksURI, &set); err != nil {
		return oautherr.NewJWKSFetchError("fetchKeys", jwksURI, err)
	}

	keys := make(map[string]any, len(set.Keys))
	for i := range set.Keys {
		jwk := &set.Keys[i]
		if jwk.KeyID == "" {
			continue
		}
		key, err := jwk.PublicKey()
		if err != nil {
			slog.Debug("skipping jwk", "kid", jwk.KeyID, "error", err)
			continue
		}
		keys[jwk.KeyID] = key
	}

	c.cache.Replace(keys)

	c.mu.Lock()
	c.lastFetch = time.Now()
	c.mu.Unlock()

	slog.Info("jwks refreshed", "provider", c.providerURL, "keys", len(keys))
	return nil
}

// discoverJWKSURI reads jwks_uri from the provider's metadata document.
// The result is remembered until RefreshKeys.
func (c *Client) discoverJWKSURI(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.jwksURI
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	var lastErr error
	for _, path := range wellKnownPaths {
		metadataURL := c.providerURL + path

		var meta ServerMetadata
		if err := c.getJSON(ctx, metadataURL, &meta); err != nil {
			lastErr = oautherr.NewJWKSFetchError("discoverJWKSURI", metadataURL, err)
			continue
		}
		if meta.JWKSURI == "" {
			lastErr = oautherr.NewInvalidMetadataError("discoverJWKSURI", metadataURL,
				fmt.Errorf("metadata missing jwks_uri"))
			continue
		}

		c.mu.Lock()
		c.jwksURI = meta.JWKSURI
		c.mu.Unlock()
		return meta.JWKSURI, nil
	}

	return "", lastErr
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

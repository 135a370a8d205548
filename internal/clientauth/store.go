package clientauth

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTokenDir is relative to the user's home directory.
const DefaultTokenDir = ".config/mcp-oauth-tools/tokens"

// StoredToken is a token plus what is needed to refresh it without
// repeating discovery.
type StoredToken struct {
	ServerURL     string    `json:"server_url"`
	Issuer        string    `json:"issuer"`
	ClientID      string    `json:"client_id"`
	TokenEndpoint string    `json:"token_endpoint"`
	Resource      string    `json:"resource,omitempty"`
	Scopes        []string  `json:"scopes,omitempty"`
	AccessToken   string    `json:"access_token"`
	TokenType     string    `json:"token_type,omitempty"`
	RefreshToken  string    `json:"refresh_token,omitempty"`
	Expiry        time.Time `json:"expiry,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Token converts to an oauth2.Token.
func (t *StoredToken) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}

// Usable reports whether the token is still valid or can be refreshed.
func (t *StoredToken) Usable() bool {
	if t == nil || t.ClientID == "" || t.TokenEndpoint == "" {
		return false
	}
	return t.Token().Valid() || t.RefreshToken != ""
}

// FileStore keeps one JSON file per server URL. Files are 0600 inside a
// 0700 directory. Token values are never logged.
type FileStore struct {
	dir string
}

// NewFileStore creates the store. An empty dir uses DefaultTokenDir under
// the home directory.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, DefaultTokenDir)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Load returns the token stored for serverURL, or nil when there is none.
func (s *FileStore) Load(serverURL string) (*StoredToken, error) {
	data, err := os.ReadFile(s.path(serverURL))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var tok StoredToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	if tok.ServerURL != serverURL {
		return nil, nil
	}
	return &tok, nil
}

// Save writes tok atomically, replacing any previous token for its server.
func (s *FileStore) Save(tok *StoredToken) error {
	tok.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".token-*")
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set token file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(tok.ServerURL)); err != nil {
		return fmt.Errorf("failed to store token file: %w", err)
	}
	return nil
}

// Delete removes the token for serverURL. Deleting a missing token is not an error.
func (s *FileStore) Delete(serverURL string) error {
	err := os.Remove(s.path(serverURL))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete token file: %w", err)
	}
	return nil
}

func (s *FileStore) path(serverURL string) string {
	sum := sha256.Sum256([]byte(serverURL))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:16])+".json")
}

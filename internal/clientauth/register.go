package clientauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	pkgoauth "github.com/jamesprial/mcp-oauth-tools/pkg/oauth"
)

type registrationRequest struct {
	ClientName              string   `json:"client_name"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
}

type registrationResponse struct {
	ClientID string `json:"client_id"`
}

// RegisterClient performs RFC 7591 dynamic registration of a public client
// and returns the issued client id.
func RegisterClient(ctx context.Context, httpClient *http.Client, endpoint, clientName, redirectURI string) (string, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	body, err := json.Marshal(registrationRequest{
		ClientName:              clientName,
		RedirectURIs:            []string{redirectURI},
		GrantTypes:              []string{pkgoauth.GrantTypeAuthorizationCode, pkgoauth.GrantTypeRefreshToken},
		ResponseTypes:           []string{pkgoauth.ResponseTypeCode},
		TokenEndpointAuthMethod: pkgoauth.TokenEndpointAuthMethodNone,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set(pkgoauth.HeaderContentType, pkgoauth.ContentTypeJSON)
	req.Header.Set(pkgoauth.HeaderAccept, pkgoauth.ContentTypeJSON)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("client registration: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("client registration: status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	var reg registrationResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxMetadataBytes)).Decode(&reg); err != nil {
		return "", fmt.Errorf("client registration: %w", err)
	}
	if reg.ClientID == "" {
		return "", fmt.Errorf("client registration: response has no client_id")
	}
	return reg.ClientID, nil
}

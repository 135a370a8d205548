package oauth

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Challenge is a parsed WWW-Authenticate bearer challenge.
type Challenge struct {
	Scheme           string
	Realm            string
	Error            string
	ErrorDescription string
	Scope            string

	// ResourceMetadata is the RFC 9728 resource_metadata URL.
	ResourceMetadata string
}

var authParamRegex = regexp.MustCompile(`(\w+)="((?:[^"\\]|\\.)*)"`)

// ParseWWWAuthenticate parses a WWW-Authenticate header value such as
//
//	Bearer error="invalid_token", resource_metadata="https://tools.example.com/.well-known/oauth-protected-resource"
func ParseWWWAuthenticate(header string) (*Challenge, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, fmt.Errorf("empty WWW-Authenticate header")
	}

	scheme, params, _ := strings.Cut(header, " ")
	challenge := &Challenge{Scheme: scheme}

	for _, match := range authParamRegex.FindAllStringSubmatch(params, -1) {
		value := unescapeQuoted(match[2])
		switch strings.ToLower(match[1]) {
		case "realm":
			challenge.Realm = value
		case "error":
			challenge.Error = value
		case "error_description":
			challenge.ErrorDescription = value
		case "scope":
			challenge.Scope = value
		case "resource_metadata":
			challenge.ResourceMetadata = value
		}
	}

	return challenge, nil
}

// ChallengeFromResponse returns the bearer challenge of a 401 or 403
// response, or nil when there is none.
func ChallengeFromResponse(resp *http.Response) *Challenge {
	if resp == nil {
		return nil
	}
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return nil
	}
	challenge, err := ParseWWWAuthenticate(resp.Header.Get(HeaderWWWAuthenticate))
	if err != nil || !strings.EqualFold(challenge.Scheme, BearerToken) {
		return nil
	}
	return challenge
}

func unescapeQuoted(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if !escaped && r == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultTokenURL is Spotify's token endpoint.
	DefaultTokenURL = "https://accounts.spotify.com/api/token"

	// defaultExpiresIn is used when the issuer omits expires_in.
	defaultExpiresIn = 3600
)

// Refresher exchanges a refresh token for a fresh access token at the
// issuer's token endpoint using HTTP Basic auth.
type Refresher struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithTokenURL overrides the token endpoint (used in tests).
func WithTokenURL(u string) Option {
	return func(r *Refresher) {
		r.tokenURL = u
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Refresher) {
		r.httpClient = c
	}
}

// NewRefresher creates a Refresher for the given client credentials.
func NewRefresher(clientID, clientSecret string, opts ...Option) *Refresher {
	r := &Refresher{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     DefaultTokenURL,
		httpClient: &http.Client{
			Timeout: 8 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// tokenResponse is the issuer's JSON reply to a refresh grant.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Refresh exchanges tok's refresh token for a new access token.
// On success it returns a new token with the recomputed expiry; the refresh
// token is carried over unless the issuer rotated it. On any failure the
// input token is left untouched and ErrRefreshFailed is returned, so callers
// never observe a partial overwrite.
func (r *Refresher) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil || tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", ErrRefreshFailed)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {tok.RefreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating refresh request: %w", err)
	}
	req.SetBasicAuth(r.clientID, r.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: issuer returned status %d", ErrRefreshFailed, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%w: parsing issuer response: %v", ErrRefreshFailed, err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: issuer returned no access token", ErrRefreshFailed)
	}

	expiresIn := tr.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}

	fresh := &oauth2.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
	// The issuer may rotate the refresh token or keep the existing one.
	if tr.RefreshToken != "" {
		fresh.RefreshToken = tr.RefreshToken
	}

	return fresh, nil
}

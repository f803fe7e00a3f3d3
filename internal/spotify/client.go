// Package spotify provides a thin page-oriented client for the Spotify Web
// API. Each call fetches exactly one page; a non-success response degrades
// to an empty page rather than failing the caller.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
)

const defaultBaseURL = "https://api.spotify.com/v1"

// MaxPageLimit is the largest page size the API allows.
const MaxPageLimit = 50

// Client fetches pages of the user's library and top items.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (used in tests).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Spotify API client.
func NewClient(logger *log.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 8 * time.Second,
		},
		log: logger.With("component", "spotify"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SavedTracks fetches one page of the user's saved tracks (GET /me/tracks).
func (c *Client) SavedTracks(ctx context.Context, accessToken string, offset, limit int) Page[SavedTrack] {
	return fetchPage[SavedTrack](ctx, c, accessToken, "/me/tracks", offset, limit, nil)
}

// TopTracks fetches one page of the user's top tracks for the given ranking
// period (GET /me/top/tracks).
func (c *Client) TopTracks(ctx context.Context, accessToken string, tr TimeRange, offset, limit int) Page[Track] {
	return fetchPage[Track](ctx, c, accessToken, "/me/top/tracks", offset, limit, url.Values{
		"time_range": {string(tr)},
	})
}

// TopArtists fetches one page of the user's top artists for the given
// ranking period (GET /me/top/artists).
func (c *Client) TopArtists(ctx context.Context, accessToken string, tr TimeRange, offset, limit int) Page[Artist] {
	return fetchPage[Artist](ctx, c, accessToken, "/me/top/artists", offset, limit, url.Values{
		"time_range": {string(tr)},
	})
}

// fetchPage performs one paginated GET. Transport errors, non-200 statuses,
// and malformed payloads all yield an empty page with Err set; the caller
// proceeds with whatever other pages succeeded.
func fetchPage[T any](ctx context.Context, c *Client, accessToken, path string, offset, limit int, extra url.Values) Page[T] {
	if limit <= 0 || limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	params := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
	for k, vs := range extra {
		for _, v := range vs {
			params.Add(k, v)
		}
	}

	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Page[T]{Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("page fetch failed", "path", path, "offset", offset, "err", err)
		return Page[T]{Err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("page fetch returned non-200", "path", path, "offset", offset, "status", resp.StatusCode)
		return Page[T]{Err: fmt.Errorf("spotify returned status %d", resp.StatusCode)}
	}

	var envelope pageEnvelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		c.log.Warn("page payload malformed", "path", path, "offset", offset, "err", err)
		return Page[T]{Err: fmt.Errorf("parsing page: %w", err)}
	}

	page := Page[T]{Items: envelope.Items}
	if envelope.Total != nil {
		page.Total = *envelope.Total
		page.HasTotal = true
	}
	return page
}

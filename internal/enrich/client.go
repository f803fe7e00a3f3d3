package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.reccobeats.com"

	// defaultRequestsPerSecond paces the attribute fan-out so a large
	// uncached batch does not hammer the service.
	defaultRequestsPerSecond = 10
)

// ErrUpstream is returned when the enrichment service answers with a
// non-success status.
var ErrUpstream = errors.New("enrichment service error")

// Client talks to the secondary enrichment service. The service keys tracks
// by its own IDs, so every lookup is a two-hop: resolve primary IDs to
// secondary IDs, then fetch attributes per secondary ID.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the service base URL (used in tests).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the attribute-fetch pacing in requests per second.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewClient creates an enrichment service client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// resolveResponse is the wire shape of the batched ID lookup.
type resolveResponse struct {
	Content []struct {
		ID   string `json:"id"`
		Href string `json:"href"`
	} `json:"content"`
}

// ResolveIDs maps primary (Spotify) track IDs to the service's own IDs in a
// single batched call. The service echoes each track's canonical Spotify
// URL in href; the primary ID is recovered from its last path segment.
// IDs the service does not recognize are silently absent from the result.
func (c *Client) ResolveIDs(ctx context.Context, primaryIDs []string) (map[string]string, error) {
	if len(primaryIDs) == 0 {
		return map[string]string{}, nil
	}

	params := url.Values{"ids": {strings.Join(primaryIDs, ",")}}
	reqURL := c.baseURL + "/v1/track?" + params.Encode()

	body, err := c.doGet(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("resolving track IDs: %w", err)
	}

	var resp resolveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing resolve response: %w", err)
	}

	mapping := make(map[string]string, len(resp.Content))
	for _, entry := range resp.Content {
		primary := lastPathSegment(entry.Href)
		if primary == "" || entry.ID == "" {
			continue
		}
		mapping[primary] = entry.ID
	}
	return mapping, nil
}

// AudioFeatures fetches the attributes for one secondary ID. The payload's
// field names vary, so tempo and energy are read through an ordered
// fallback; a payload missing both yields present-but-empty attributes.
func (c *Client) AudioFeatures(ctx context.Context, secondaryID string) (Attributes, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Attributes{}, err
	}

	reqURL := c.baseURL + "/v1/track/" + url.PathEscape(secondaryID) + "/audio-features"

	body, err := c.doGet(ctx, reqURL)
	if err != nil {
		return Attributes{}, fmt.Errorf("fetching audio features: %w", err)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return Attributes{}, fmt.Errorf("parsing audio features: %w", err)
	}

	return Attributes{
		Tempo:  firstNumber(payload, "tempo", "bpm", "BPM"),
		Energy: firstNumber(payload, "energy", "Energy"),
	}, nil
}

// doGet performs a single GET; non-200 statuses are ErrUpstream.
func (c *Client) doGet(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

// firstNumber returns the first of the given keys present in the payload as
// a number, or nil when none parse.
func firstNumber(payload map[string]json.RawMessage, keys ...string) *float64 {
	for _, key := range keys {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		return &v
	}
	return nil
}

// lastPathSegment extracts the final path segment of a URL, ignoring any
// query string.
func lastPathSegment(href string) string {
	if href == "" {
		return ""
	}
	if i := strings.IndexByte(href, '?'); i >= 0 {
		href = href[:i]
	}
	href = strings.TrimRight(href, "/")
	if i := strings.LastIndexByte(href, '/'); i >= 0 {
		return href[i+1:]
	}
	return href
}

// Package requests is a reference Request Task: it shows how an opaque,
// source-specific collaborator (spec.md's term for whatever fetches raw
// data for a Target) wires into the engine as a dispatch.Handler, using
// the Google Play Store detail/reviews endpoints as the worked example.
// Nothing in pkg/scheduler, pkg/stageproc, or pkg/dispatch depends on
// this package; it exists for cmd/kraken wiring and for tests that want
// an end-to-end Handler.
package requests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// defaultBaseURL points at nothing real; callers wire a Client against
// whatever scraping endpoint actually serves this shape of JSON (or a
// test server) via WithBaseURL.
const defaultBaseURL = "https://play.google.com/_/PlayStoreUi"

// Client fetches raw Google Play Store app data over HTTP. It is
// intentionally thin: the original's google-play-scraper library does
// HTML scraping and response unpacking the pack has no Go equivalent
// for, so Client assumes whatever sits behind BaseURL already speaks
// the same flat JSON shape the Python library returns (the dict keys
// DetailFromResponse/ReviewFromResponse expect).
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient builds a Client with the given base URL and a sane request
// timeout, mirroring the teacher's HTTP client defaults elsewhere in
// the repo.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (map[string]any, error) {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("requests: build request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requests: fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("requests: %s returned status %d", path, resp.StatusCode)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("requests: decode %s response: %w", path, err)
	}
	return raw, nil
}

type notFoundError struct{}

func (notFoundError) Error() string { return "requests: target not found" }

var errNotFound notFoundError

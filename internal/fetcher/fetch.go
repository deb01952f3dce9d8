package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "PlutoTV-Source/1.0"

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Client issues GET requests against a single vendor base URL.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewClient returns a Client for baseURL. userAgent is optional; timeout
// bounds the whole request including reading the body (0 = no timeout).
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, userAgent, &http.Client{Timeout: timeout})
}

// NewClientWithHTTP is like NewClient but uses hc for transport.
func NewClientWithHTTP(baseURL, userAgent string, hc *http.Client) *Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      hc,
	}
}

// BaseURL returns the vendor base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get requests baseURL+path and returns the response body unread.
// The caller must close it.
func (c *Client) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	u := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("NewRequest: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Do: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: u}
	}
	return resp.Body, nil
}

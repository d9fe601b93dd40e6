// Package dashboard is an HTTP client for the cluster job dashboard.
//
// Every request carries the client's User-Agent; the dashboard answers
// 500 to requests without one. Calls are single-shot: failures are returned
// to the caller without retries.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/justapithecus/rayjob/iox"
	"github.com/justapithecus/rayjob/log"
	"github.com/justapithecus/rayjob/types"
)

const (
	// DefaultURL is the dashboard address used when none is configured.
	DefaultURL = "http://127.0.0.1:8265"
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second
	// maxErrorBody caps how much of a failed response is kept.
	maxErrorBody = 4096
)

// ErrInvalidURL is returned by New for unusable base URLs.
var ErrInvalidURL = fmt.Errorf("%w: invalid dashboard url", types.ErrValidation)

// StatusError reports a non-success HTTP response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Is classifies status failures as transport errors.
func (e *StatusError) Is(target error) bool {
	return target == types.ErrTransport
}

// Client talks to one dashboard.
// It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	userAgent  string
	httpClient *http.Client
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithUserAgent overrides the User-Agent sent on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for the dashboard at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURL, baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q: scheme must be http or https", ErrInvalidURL, baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q: missing host", ErrInvalidURL, baseURL)
	}

	c := &Client{
		baseURL:    u,
		userAgent:  types.UserAgent,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("dashboard", u.String())
	return c, nil
}

// BaseURL returns the dashboard address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// UserAgent returns the User-Agent sent on every request.
func (c *Client) UserAgent() string {
	return c.userAgent
}

// Version returns the dashboard's version information.
func (c *Client) Version(ctx context.Context) (*types.VersionResponse, error) {
	var out types.VersionResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/version", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping reports whether the dashboard answers the version endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Version(ctx)
	return err
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("%w: new request: %v", types.ErrValidation, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

// do sends req and returns the response when the status is 2xx or one of
// the extra accepted codes. Other statuses become *StatusError.
func (c *Client) do(req *http.Request, accept ...int) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", types.ErrTransport, req.Method, req.URL.Path, err)
	}

	c.logger.Debug("dashboard request", map[string]any{
		"method":      req.Method,
		"path":        req.URL.Path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	for _, code := range accept {
		if resp.StatusCode == code {
			return resp, nil
		}
	}

	defer iox.DrainClose(resp.Body)
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &StatusError{
		Method: req.Method,
		Path:   req.URL.Path,
		Code:   resp.StatusCode,
		Body:   strings.TrimSpace(string(data)),
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("%w: encode json: %v", types.ErrValidation, err)
		}
		payload = buf
	}

	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer iox.DrainClose(resp.Body)

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: decode json: %w", types.ErrTransport, method, path, err)
	}
	return nil
}

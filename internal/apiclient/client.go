package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/windfall/uwu_classroom/internal/session"
)

// Client is the single point of contact with the backend REST API.
type Client struct {
	baseURL     string
	session     *session.Session
	httpClient  *http.Client
	placeholder string
	log         zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTransport sets the round tripper of the HTTP client, typically a middleware chain.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt == nil {
			return
		}
		hc := *c.httpClient
		hc.Transport = rt
		c.httpClient = &hc
	}
}

// WithTimeout sets the per-request timeout of the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			return
		}
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithValidationPlaceholder sets the message used for field errors with neither loc nor msg.
func WithValidationPlaceholder(text string) Option {
	return func(c *Client) {
		if text != "" {
			c.placeholder = text
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a client for baseURL. A nil session means an empty in-memory one.
func New(baseURL string, sess *session.Session, opts ...Option) *Client {
	if sess == nil {
		sess, _ = session.Load(context.Background(), session.NewMemoryStore())
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		session:     sess,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		placeholder: DefaultValidationPlaceholder,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *session.Session {
	return c.session
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type requestOptions struct {
	header http.Header
}

// RequestOption customizes a single request.
type RequestOption func(*requestOptions)

// WithHeader sets a header on the request, overriding any default of the same name.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.header.Set(key, value)
	}
}

// Request issues a JSON request. body is JSON-encoded when non-nil; a 2xx response is decoded
// into out when out is non-nil and the body is not empty. Failures are returned as *APIError.
func (c *Client) Request(ctx context.Context, method, endpoint string, body, out any, opts ...RequestOption) error {
	ro := requestOptions{header: http.Header{}}
	for _, opt := range opts {
		opt(&ro)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, values := range ro.header {
		req.Header[key] = values
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return newTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newHTTPError(resp.StatusCode, raw, c.placeholder)
		c.log.Debug().
			Str("method", method).
			Str("endpoint", endpoint).
			Int("status", apiErr.Status).
			Str("detail", apiErr.Detail).
			Msg("API request failed")
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response from %s %s: %w", method, endpoint, err)
	}
	return nil
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, endpoint string, out any, opts ...RequestOption) error {
	return c.Request(ctx, http.MethodGet, endpoint, nil, out, opts...)
}

// Post issues a POST request.
func (c *Client) Post(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	return c.Request(ctx, http.MethodPost, endpoint, body, out, opts...)
}

// Put issues a PUT request.
func (c *Client) Put(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	return c.Request(ctx, http.MethodPut, endpoint, body, out, opts...)
}

// Patch issues a PATCH request.
func (c *Client) Patch(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	return c.Request(ctx, http.MethodPatch, endpoint, body, out, opts...)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string, out any, opts ...RequestOption) error {
	return c.Request(ctx, http.MethodDelete, endpoint, nil, out, opts...)
}

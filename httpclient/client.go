// Package httpclient sends JSON requests to a single base URL and reports
// unexpected statuses as typed errors.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// maxErrorBody caps how much of a response body a StatusError keeps.
const maxErrorBody = 512

// Client is a JSON client with request logging
type Client struct {
	httpClient *http.Client
	logger     zerolog.Logger
	baseURL    string
	headers    http.Header
}

// Config holds HTTP client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
	// Headers are sent with every request.
	Headers map[string]string
	// Transport overrides the default transport (tests).
	Transport http.RoundTripper
}

// New creates a new HTTP client
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	headers := http.Header{}
	headers.Set("Accept", "application/json")
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: cfg.Transport},
		logger:     cfg.Logger.With().Str("component", "http-client").Logger(),
		baseURL:    cfg.BaseURL,
		headers:    headers,
	}
}

// Request is one call relative to the base URL. A nil Body sends no payload.
type Request struct {
	Method string
	Path   string
	Body   interface{}
	Header http.Header
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header

	method string
	url    string
}

// StatusError is returned by Response.Expect for an unexpected status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path})
}

// Post performs a POST request with a JSON body
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Do sends r and reads the whole response. Transport failures are errors;
// any status is returned as a Response for the caller to check.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	url := c.baseURL + r.Path

	// Encode payload
	var payload io.Reader
	if r.Body != nil {
		raw, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, url, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Client headers first, request headers win
	for k, vs := range c.headers {
		req.Header[k] = vs
	}
	for k, vs := range r.Header {
		req.Header[k] = vs
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.logger.With().Str("method", r.Method).Str("url", url).Logger()
	startTime := time.Now()
	log.Debug().Msg("HTTP request started")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Dur("duration", time.Since(startTime)).Msg("HTTP request failed")
		return nil, fmt.Errorf("%s %s: %w", r.Method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(startTime)).
		Msg("HTTP request completed")

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    resp.Header,
		method:     r.Method,
		url:        url,
	}, nil
}

// IsSuccess checks if the response indicates success
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Expect returns a *StatusError unless the status is one of statuses. With
// no statuses any 2xx is accepted.
func (r *Response) Expect(statuses ...int) error {
	if len(statuses) == 0 && r.IsSuccess() {
		return nil
	}
	if lo.Contains(statuses, r.StatusCode) {
		return nil
	}
	body := r.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{
		Method:     r.method,
		URL:        r.url,
		StatusCode: r.StatusCode,
		Body:       string(body),
	}
}

// Unmarshal unmarshals the response body into dest
func (r *Response) Unmarshal(dest interface{}) error {
	if err := json.Unmarshal(r.Body, dest); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

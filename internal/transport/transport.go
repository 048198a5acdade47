// Package transport issues single outbound HTTP(S) requests to appliance
// APIs: fixed timeout, bounded redirect following, JSON decoding.
//
// Self-signed certificates are accepted. The appliances this client talks
// to live on private networks behind certificates they mint themselves;
// rejecting those would make HTTPS unusable there.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds a single appliance call, redirects included.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRedirects caps the redirect chain for one logical request.
	DefaultMaxRedirects = 5
)

// ErrTooManyRedirects is returned (wrapped in *TransportError) when a
// redirect chain exceeds the configured bound.
var ErrTooManyRedirects = errors.New("too many redirects")

// TransportError represents a failed outbound call: network error, timeout,
// or an exhausted redirect chain. The HTTP status of a completed response is
// not a TransportError; callers inspect Response.StatusCode for that.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Response is the outcome of a completed HTTP exchange.
type Response struct {
	StatusCode int
	Body       []byte
}

// DecodeJSON unmarshals the response body into v, returning a descriptive
// error rather than a silently zeroed value on malformed bodies.
func (r *Response) DecodeJSON(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body (status %d)", r.StatusCode)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("malformed JSON response (status %d): %w", r.StatusCode, err)
	}
	return nil
}

// Client performs appliance HTTP calls.
type Client struct {
	httpClient   *http.Client
	timeout      time.Duration
	maxRedirects int
}

// Option configures the Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMaxRedirects sets the redirect hop bound.
func WithMaxRedirects(n int) Option {
	return func(c *Client) {
		c.maxRedirects = n
	}
}

// NewClient creates a Client for appliance calls.
func NewClient(opts ...Option) *Client {
	c := &Client{
		timeout:      DefaultTimeout,
		maxRedirects: DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.httpClient = &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		},
		// Redirects are followed manually in Do so the hop bound is an
		// explicit loop with a counter, not a callback.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return c
}

// Do performs one logical request: marshal the body (if any), send, follow
// redirects up to the bound, read the final response.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = b
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := url
	for attempt := 0; attempt <= c.maxRedirects; attempt++ {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
		if err != nil {
			return nil, &TransportError{URL: target, Err: err}
		}

		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &TransportError{URL: target, Err: err}
		}

		if isRedirect(resp.StatusCode) {
			loc := resp.Header.Get("Location")
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if loc == "" {
				return nil, &TransportError{URL: target, Err: fmt.Errorf("redirect (status %d) without Location header", resp.StatusCode)}
			}
			next, err := resp.Request.URL.Parse(loc)
			if err != nil {
				return nil, &TransportError{URL: target, Err: fmt.Errorf("invalid redirect target %q: %w", loc, err)}
			}
			target = next.String()
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, &TransportError{URL: target, Err: fmt.Errorf("failed to read response body: %w", err)}
		}

		return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
	}

	return nil, &TransportError{URL: url, Err: ErrTooManyRedirects}
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, headers, nil)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, url string, headers map[string]string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, url, headers, body)
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

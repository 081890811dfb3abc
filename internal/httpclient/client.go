// Package httpclient provides the HTTP GET primitive used by source adapters.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize is the maximum allowed response size (10MB)
	MaxResponseSize = 10 * 1024 * 1024

	// UserAgent is the default user agent string for HTTP requests
	UserAgent = "DevOps-Learning-Platform"

	// DefaultInitialInterval is the first retry delay
	DefaultInitialInterval = 500 * time.Millisecond

	maxRetryInterval = 5 * time.Second
)

// Client is an interface for HTTP operations
type Client interface {
	// Get performs an HTTP GET request and returns the response body
	Get(ctx context.Context, url string, opts ...RequestOption) ([]byte, error)
}

// RequestOption mutates an outgoing request
type RequestOption func(*http.Request)

// WithHeader sets a request header, replacing any default value
func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// Option configures a DefaultClient
type Option func(*DefaultClient)

// WithMaxAttempts sets the total number of tries for retryable failures.
// Values below 1 are treated as 1.
func WithMaxAttempts(attempts int) Option {
	return func(c *DefaultClient) {
		if attempts < 1 {
			attempts = 1
		}
		c.maxAttempts = attempts
	}
}

// WithInitialInterval sets the first retry delay
func WithInitialInterval(interval time.Duration) Option {
	return func(c *DefaultClient) {
		if interval > 0 {
			c.initialInterval = interval
		}
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(userAgent string) Option {
	return func(c *DefaultClient) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithTransport sets the round tripper used for requests
func WithTransport(rt http.RoundTripper) Option {
	return func(c *DefaultClient) {
		if rt != nil {
			c.client.Transport = rt
		}
	}
}

// DefaultClient is the default HTTP client implementation
type DefaultClient struct {
	client          *http.Client
	timeout         time.Duration
	userAgent       string
	maxAttempts     int
	initialInterval time.Duration
}

// NewDefaultClient creates a new default HTTP client with the specified timeout
// If timeout is 0, uses DefaultTimeout
func NewDefaultClient(timeout time.Duration, opts ...Option) Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	c := &DefaultClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout:         timeout,
		userAgent:       UserAgent,
		maxAttempts:     1,
		initialInterval: DefaultInitialInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs an HTTP GET request, retrying network failures and 5xx
// responses up to the configured number of attempts
func (c *DefaultClient) Get(ctx context.Context, url string, opts ...RequestOption) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	bo.MaxInterval = maxRetryInterval

	operation := func() ([]byte, error) {
		body, err := c.get(ctx, url, opts)
		if err != nil && !IsRetryable(ctx, err) {
			return nil, backoff.Permanent(err)
		}
		return body, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(c.maxAttempts)), //nolint:gosec // maxAttempts is always >= 1
	)
}

func (c *DefaultClient) get(ctx context.Context, url string, opts []RequestOption) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	// Set headers
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	// Execute request
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Check status code
	if resp.StatusCode != http.StatusOK {
		return nil, NewHTTPError(resp.StatusCode, url, resp.Status)
	}

	// Check Content-Length header if available
	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("%w: response size %d bytes exceeds maximum allowed size of %d bytes (%.2f MB)",
			ErrResponseTooLarge, resp.ContentLength, MaxResponseSize, float64(MaxResponseSize)/(1024*1024))
	}

	// +1 to detect if limit exceeded
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("%w: response size exceeds maximum allowed size of %d bytes (%.2f MB)",
			ErrResponseTooLarge, MaxResponseSize, float64(MaxResponseSize)/(1024*1024))
	}

	return body, nil
}

// IsRetryable reports whether err is a transient failure worth another attempt:
// transport errors and 5xx responses. Client errors, oversized bodies and
// cancellation of ctx are never retried.
func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrResponseTooLarge) || errors.Is(err, ErrInvalidRequest) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	return true
}

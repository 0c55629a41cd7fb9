package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/finsight/finsight/internal/logging"
)

// maxErrorBody bounds how much of a failed response is echoed into an error
const maxErrorBody = 2 << 10

// Client is an HTTP client with retry, logging, and policy support
type Client struct {
	httpClient *http.Client
	policies   []Policy
}

// Options contains configuration options for the HTTP client
type Options struct {
	// Timeout is the maximum time for the entire request
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts; zero disables retries
	MaxRetries int

	// RetryDelay is the initial delay between retries (exponential backoff is applied)
	RetryDelay time.Duration

	// Logger is used for debug logging (optional)
	Logger *logging.Logger

	// UserAgent is the User-Agent header value
	UserAgent string

	// Redact rewrites URLs before they are logged, hiding credentials embedded in paths
	Redact func(string) string

	// HeaderFilters lists header names whose values are never logged
	HeaderFilters []string

	// Transport allows customizing the underlying HTTP transport
	Transport http.RoundTripper

	// AdditionalPolicies allows adding custom policies
	AdditionalPolicies []Policy
}

// DefaultOptions returns default options for the HTTP client
func DefaultOptions() *Options {
	return &Options{
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		RetryDelay: time.Second,
		UserAgent:  defaultUserAgent,
	}
}

// NewClient creates a new HTTP client with the given options
func NewClient(opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}

	httpClient := &http.Client{
		Timeout: opts.Timeout,
	}

	if opts.Transport != nil {
		httpClient.Transport = opts.Transport
	}

	// Policy order, outermost first:
	// error wrapping, retry, request ID, user agent, logging, custom
	policies := make([]Policy, 0)

	policies = append(policies, NewErrorPolicy(opts.Redact))

	if opts.MaxRetries > 0 {
		policies = append(policies, NewRetryPolicy(&RetryOptions{
			MaxRetries: opts.MaxRetries,
			RetryDelay: opts.RetryDelay,
			Logger:     opts.Logger,
			Redact:     opts.Redact,
		}))
	}

	// Request ID must come before logging so the ID shows up in logs
	policies = append(policies, NewDefaultRequestIDPolicy())

	if opts.UserAgent != "" {
		policies = append(policies, NewUserAgentPolicy(opts.UserAgent))
	}

	// Logging runs last so it sees the request as it goes on the wire
	if opts.Logger != nil {
		policies = append(policies, NewLoggingPolicy(opts.Logger, &LoggingOptions{
			LogHeaders:    true,
			LogBody:       true,
			HeaderFilters: append([]string{"Authorization", "Apikey"}, opts.HeaderFilters...),
			Redact:        opts.Redact,
		}))
	}

	if len(opts.AdditionalPolicies) > 0 {
		policies = append(policies, opts.AdditionalPolicies...)
	}

	return &Client{
		httpClient: httpClient,
		policies:   policies,
	}
}

// Do executes an HTTP request through the policy chain
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	next := func(r *http.Request) (*http.Response, error) {
		return c.httpClient.Do(r)
	}

	// Wrap from the innermost policy outwards
	for i := len(c.policies) - 1; i >= 0; i-- {
		policy := c.policies[i]
		currentNext := next
		next = func(r *http.Request) (*http.Response, error) {
			return policy.Do(r, currentNext)
		}
	}

	return next(req)
}

// Get is a convenience method for GET requests
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Post is a convenience method for POST requests
func (c *Client) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(req)
}

// StatusError is returned by DoJSON for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// DoJSON executes req and decodes a 2xx JSON body into out.
// out may be nil, in which case the body is drained and discarded.
func (c *Client) DoJSON(req *http.Request, out any) error {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return err // already wrapped by ErrorPolicy
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

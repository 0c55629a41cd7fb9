package httpclient

import (
	"net/http"
	"time"

	"github.com/finsight/finsight/internal/logging"
)

// RetryPolicy handles retrying failed requests. Only idempotent methods are
// retried; a POST that reached the server may already have been applied.
type RetryPolicy struct {
	maxRetries       int
	retryDelay       time.Duration
	retryStatusCodes []int
	logger           *logging.Logger
	redact           func(string) string
}

// RetryOptions contains configuration for RetryPolicy
type RetryOptions struct {
	// MaxRetries is the maximum number of retry attempts (default: 3)
	MaxRetries int

	// RetryDelay is the initial delay between retries (default: 1s)
	RetryDelay time.Duration

	// RetryStatusCodes defines which HTTP status codes should trigger a retry
	// Default: 429, 500, 502, 503, 504
	RetryStatusCodes []int

	// Logger for debug logging (optional)
	Logger *logging.Logger

	// Redact rewrites URLs before logging (optional)
	Redact func(string) string
}

// NewRetryPolicy creates a new RetryPolicy
func NewRetryPolicy(opts *RetryOptions) *RetryPolicy {
	if opts == nil {
		opts = &RetryOptions{}
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	retryStatusCodes := opts.RetryStatusCodes
	if len(retryStatusCodes) == 0 {
		retryStatusCodes = []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		}
	}

	return &RetryPolicy{
		maxRetries:       maxRetries,
		retryDelay:       retryDelay,
		retryStatusCodes: retryStatusCodes,
		logger:           opts.Logger,
		redact:           opts.Redact,
	}
}

// Do implements Policy interface
func (p *RetryPolicy) Do(
	req *http.Request,
	next func(*http.Request) (*http.Response, error),
) (*http.Response, error) {
	if !idempotent(req.Method) {
		return next(req)
	}

	var resp *http.Response
	var err error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		// Rewind the body for every attempt after the first
		if attempt > 0 && req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, bodyErr
			}
			req.Body = body
		}

		resp, err = next(req)

		if err == nil && !p.shouldRetry(resp) {
			return resp, nil
		}

		if attempt == p.maxRetries {
			break
		}

		// A retried response is discarded, release its connection
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		if p.logger != nil {
			p.logger.Debug("Retrying request",
				logging.Int("attempt", attempt+1),
				logging.Int("max_retries", p.maxRetries),
				logging.String("url", redactURL(p.redact, req.URL.String())))
		}

		delay := p.retryDelay * time.Duration(1<<attempt)
		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}

	return resp, err
}

func idempotent(method string) bool {
	switch method {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// shouldRetry determines if a response should be retried
func (p *RetryPolicy) shouldRetry(resp *http.Response) bool {
	if resp == nil {
		return true
	}

	for _, code := range p.retryStatusCodes {
		if resp.StatusCode == code {
			return true
		}
	}

	return false
}

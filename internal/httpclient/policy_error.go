package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// ErrorPolicy wraps errors with additional context
type ErrorPolicy struct {
	redact func(string) string
}

// NewErrorPolicy creates a new ErrorPolicy. redact may be nil.
func NewErrorPolicy(redact func(string) string) *ErrorPolicy {
	return &ErrorPolicy{redact: redact}
}

// Do implements Policy interface
func (p *ErrorPolicy) Do(
	req *http.Request,
	next func(*http.Request) (*http.Response, error),
) (*http.Response, error) {
	resp, err := next(req)
	if err != nil {
		target := redactURL(p.redact, req.URL.String())

		// net/http embeds the raw URL in *url.Error; unwrap it so secrets
		// in the path do not leak through the message
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return resp, fmt.Errorf("request to %s failed: %w", target, err)
	}
	return resp, nil
}

func redactURL(redact func(string) string, raw string) string {
	if redact == nil {
		return raw
	}
	return redact(raw)
}

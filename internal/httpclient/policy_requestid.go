package httpclient

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader is the header carrying the per-request correlation ID
const RequestIDHeader = "X-Client-Request-Id"

// RequestIDPolicy adds a unique request ID to each request
type RequestIDPolicy struct {
	headerName string
}

// NewRequestIDPolicy creates a new RequestIDPolicy
func NewRequestIDPolicy(headerName string) *RequestIDPolicy {
	if headerName == "" {
		headerName = RequestIDHeader
	}
	return &RequestIDPolicy{headerName: headerName}
}

// NewDefaultRequestIDPolicy creates a RequestIDPolicy using RequestIDHeader
func NewDefaultRequestIDPolicy() *RequestIDPolicy {
	return NewRequestIDPolicy(RequestIDHeader)
}

// Do implements Policy interface. An ID already set by the caller is kept.
func (p *RequestIDPolicy) Do(
	req *http.Request,
	next func(*http.Request) (*http.Response, error),
) (*http.Response, error) {
	if req.Header.Get(p.headerName) == "" {
		req.Header.Set(p.headerName, uuid.New().String())
	}
	return next(req)
}

// Package tunnel reads the public URL of a local tunnel manager (ngrok) from
// its status API, falling back to asking the operator.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/finsight/finsight/internal/api"
	"github.com/finsight/finsight/internal/httpclient"
	"github.com/finsight/finsight/internal/logging"
)

// DefaultAPIURL is the tunnel manager's local status endpoint
const DefaultAPIURL = "http://127.0.0.1:4040/api/tunnels"

// ErrNoTunnel is returned when the status API lists no usable tunnel
var ErrNoTunnel = errors.New("tunnel manager reports no public URL")

// Client queries the tunnel manager's status API
type Client struct {
	apiURL     string
	httpClient *httpclient.Client
}

// Options contains configuration for the status client
type Options struct {
	// APIURL is the full status endpoint URL
	APIURL string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// Logger is used for debug logging (optional)
	Logger *logging.Logger
}

// DefaultOptions returns default options for the status client
func DefaultOptions() *Options {
	return &Options{
		APIURL:  DefaultAPIURL,
		Timeout: 5 * time.Second,
	}
}

// NewClient creates a status API client. Lookups are not retried: a failure
// hands over to the operator prompt immediately.
func NewClient(opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}

	apiURL := opts.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		apiURL: apiURL,
		httpClient: httpclient.NewClient(&httpclient.Options{
			Timeout:    timeout,
			MaxRetries: 0,
			Logger:     opts.Logger,
			UserAgent:  httpclient.DefaultUserAgent(),
		}),
	}
}

// Tunnels returns the decoded status listing
func (c *Client) Tunnels(ctx context.Context) (*api.TunnelsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var resp api.TunnelsResponse
	if err := c.httpClient.DoJSON(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PublicURL returns tunnels[0].public_url
func (c *Client) PublicURL(ctx context.Context) (string, error) {
	resp, err := c.Tunnels(ctx)
	if err != nil {
		return "", err
	}
	if len(resp.Tunnels) == 0 {
		return "", ErrNoTunnel
	}

	publicURL := strings.TrimSpace(resp.Tunnels[0].PublicURL)
	if publicURL == "" {
		return "", ErrNoTunnel
	}
	return publicURL, nil
}

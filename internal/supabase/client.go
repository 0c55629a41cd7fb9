// Package supabase is a small PostgREST client for the Supabase tables the bot
// reads and writes with the service-role key.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/finsight/finsight/internal/httpclient"
	"github.com/finsight/finsight/internal/logging"
)

// ErrNotConfigured is returned when the URL or the service key is missing
var ErrNotConfigured = errors.New("supabase is not configured")

// Client issues PostgREST requests against a Supabase project
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.Client
}

// Options contains configuration for the Supabase client
type Options struct {
	// URL is the project URL, e.g. https://xxxxx.supabase.co
	URL string

	// Key is the service-role key
	Key string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts for selects; inserts
	// are always sent once
	MaxRetries int

	// Logger is used for debug logging (optional)
	Logger *logging.Logger

	// Transport allows customizing the underlying HTTP transport
	Transport http.RoundTripper
}

// NewClient creates a Supabase client. A client built without URL or key is
// valid but every call returns ErrNotConfigured.
func NewClient(opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimSpace(strings.TrimRight(opts.URL, "/")),
		apiKey:  strings.TrimSpace(opts.Key),
		httpClient: httpclient.NewClient(&httpclient.Options{
			Timeout:       timeout,
			MaxRetries:    opts.MaxRetries,
			RetryDelay:    500 * time.Millisecond,
			Logger:        opts.Logger,
			UserAgent:     httpclient.DefaultUserAgent(),
			HeaderFilters: []string{"Apikey"},
			Transport:     opts.Transport,
		}),
	}
}

// Enabled reports whether both URL and key are set
func (c *Client) Enabled() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// Filter is a PostgREST horizontal filter, rendered as column=op.value
type Filter struct {
	Column   string
	Operator string
	Value    string
}

// Eq matches rows where column equals value
func Eq(column, value string) Filter {
	return Filter{Column: column, Operator: "eq", Value: value}
}

// Gte matches rows where column is greater than or equal to value
func Gte(column, value string) Filter {
	return Filter{Column: column, Operator: "gte", Value: value}
}

// Query describes a select request
type Query struct {
	// Columns is the select list; empty means "*"
	Columns string

	Filters []Filter

	// Order is a PostgREST order clause, e.g. "created_at.desc"
	Order string

	// Limit caps the number of rows; zero means no limit
	Limit int
}

// Values renders the query as URL parameters
func (q Query) Values() url.Values {
	values := url.Values{}

	columns := q.Columns
	if columns == "" {
		columns = "*"
	}
	values.Set("select", columns)

	for _, f := range q.Filters {
		values.Add(f.Column, f.Operator+"."+f.Value)
	}
	if q.Order != "" {
		values.Set("order", q.Order)
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	return values
}

// Insert adds row to table and asks PostgREST to return the representation
func (c *Client) Insert(ctx context.Context, table string, row any) error {
	headers := map[string]string{
		"Prefer": "return=representation",
	}
	return c.requestJSON(ctx, http.MethodPost, table, nil, headers, row, nil)
}

// Select decodes the rows of table matching q into out (a pointer to a slice)
func (c *Client) Select(ctx context.Context, table string, q Query, out any) error {
	return c.requestJSON(ctx, http.MethodGet, table, q.Values(), nil, nil, out)
}

func (c *Client) requestJSON(ctx context.Context, method, table string, query url.Values, extraHeaders map[string]string, payload any, out any) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}

	endpoint := c.baseURL + "/rest/v1/" + url.PathEscape(table)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	}
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	if err := c.httpClient.DoJSON(req, out); err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			return fmt.Errorf("supabase %s %s: %w", method, table, statusErr)
		}
		return err
	}
	return nil
}

// Package telegram is a minimal Telegram Bot API client covering webhook
// registration and outbound text replies.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/finsight/finsight/internal/httpclient"
	"github.com/finsight/finsight/internal/logging"
)

// DefaultBaseURL is the public Bot API endpoint
const DefaultBaseURL = "https://api.telegram.org"

// SecretHeader carries the webhook shared secret on every update Telegram delivers
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// ErrNoToken is returned when a call needs a bot token and none is configured
var ErrNoToken = errors.New("telegram bot token is not configured")

// Client talks to the Bot API for a single bot
type Client struct {
	baseURL    string
	token      string
	secret     string
	httpClient *httpclient.Client
}

// Options contains configuration for the Bot API client
type Options struct {
	// BaseURL overrides DefaultBaseURL (tests, local Bot API servers)
	BaseURL string

	// Token is the bot token issued by BotFather
	Token string

	// Secret is the webhook shared secret; only used to redact logs
	Secret string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// Logger is used for debug logging (optional)
	Logger *logging.Logger
}

// Response is the envelope every Bot API method answers with
type Response struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`

	// Raw is the undecoded body, kept for operator display
	Raw json.RawMessage `json:"-"`
}

// APIError reports a Bot API call answered with ok=false
type APIError struct {
	Method      string
	StatusCode  int
	ErrorCode   int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed: status=%d error_code=%d description=%q",
		e.Method, e.StatusCode, e.ErrorCode, e.Description)
}

// NewClient creates a Bot API client
func NewClient(opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL: baseURL,
		token:   opts.Token,
		secret:  opts.Secret,
	}

	// Bot API calls are sent once; a resent sendMessage duplicates the reply
	c.httpClient = httpclient.NewClient(&httpclient.Options{
		Timeout:    timeout,
		MaxRetries: 0,
		Logger:     opts.Logger,
		UserAgent:  httpclient.DefaultUserAgent(),
		Redact:     c.Redact,
	})

	return c
}

// Enabled reports whether a bot token is configured
func (c *Client) Enabled() bool {
	return c.token != ""
}

// Redact hides the bot token and webhook secret in s
func (c *Client) Redact(s string) string {
	for _, secret := range []string{c.token, c.secret} {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, "[REDACTED]")
		if escaped := url.QueryEscape(secret); escaped != secret {
			s = strings.ReplaceAll(s, escaped, "[REDACTED]")
		}
		if escaped := url.PathEscape(secret); escaped != secret {
			s = strings.ReplaceAll(s, escaped, "[REDACTED]")
		}
	}
	return s
}

// WebhookURL returns the setWebhook request URL for callbackURL and secret
func (c *Client) WebhookURL(callbackURL, secret string) string {
	query := url.Values{}
	query.Set("url", callbackURL)
	if secret != "" {
		query.Set("secret_token", secret)
	}
	return c.methodURL("setWebhook") + "?" + query.Encode()
}

// SetWebhook binds callbackURL and secret to the bot.
// The parsed response is returned even when Telegram rejects the call,
// together with an *APIError.
func (c *Client) SetWebhook(ctx context.Context, callbackURL, secret string) (*Response, error) {
	if !c.Enabled() {
		return nil, ErrNoToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.WebhookURL(callbackURL, secret), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", c.redactErr(err))
	}

	return c.call(req, "setWebhook")
}

// sendMessageRequest is the body of sendMessage
type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// SendMessage sends a plain text message to chatID
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if !c.Enabled() {
		return ErrNoToken
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", c.redactErr(err))
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.call(req, "sendMessage")
	return err
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func (c *Client) call(req *http.Request, method string) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err // already wrapped and redacted by ErrorPolicy
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", method, err)
	}

	out := &Response{Raw: raw}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("failed to decode %s response (status %d): %w", method, resp.StatusCode, err)
	}

	if !out.OK || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, &APIError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			ErrorCode:   out.ErrorCode,
			Description: out.Description,
		}
	}

	return out, nil
}

func (c *Client) redactErr(err error) error {
	return errors.New(c.Redact(err.Error()))
}

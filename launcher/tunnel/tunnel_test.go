package tunnel

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tunnels", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestClient_PublicURL(t *testing.T) {
	ts := statusServer(t, http.StatusOK,
		`{"tunnels":[{"name":"command_line","public_url":"https://abc123.ngrok-free.app","proto":"https","config":{"addr":"http://localhost:8000","inspect":true}}],"uri":"/api/tunnels"}`)

	c := NewClient(&Options{APIURL: ts.URL + "/api/tunnels"})
	got, err := c.PublicURL(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "https://abc123.ngrok-free.app", got)
}

func TestClient_NoTunnels(t *testing.T) {
	for name, body := range map[string]string{
		"empty list": `{"tunnels":[]}`,
		"empty url":  `{"tunnels":[{"public_url":""}]}`,
		"missing":    `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			ts := statusServer(t, http.StatusOK, body)
			_, err := NewClient(&Options{APIURL: ts.URL + "/api/tunnels"}).PublicURL(context.Background())
			assert.ErrorIs(t, err, ErrNoTunnel)
		})
	}
}

func TestClient_BadResponses(t *testing.T) {
	ts := statusServer(t, http.StatusBadGateway, `upstream down`)
	_, err := NewClient(&Options{APIURL: ts.URL + "/api/tunnels"}).PublicURL(context.Background())
	assert.Error(t, err)

	ts = statusServer(t, http.StatusOK, `<html>`)
	_, err = NewClient(&Options{APIURL: ts.URL + "/api/tunnels"}).PublicURL(context.Background())
	assert.Error(t, err)
}

func TestClient_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL + "/api/tunnels"
	ts.Close()

	_, err := NewClient(&Options{APIURL: url}).PublicURL(context.Background())
	assert.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(nil)
	assert.Equal(t, DefaultAPIURL, c.apiURL)
}

type stubLookup struct {
	url string
	err error
}

func (s stubLookup) PublicURL(context.Context) (string, error) {
	return s.url, s.err
}

func TestResolver_UsesLookup(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewResolver(stubLookup{url: "https://abc.ngrok.app"}, NewPrompter(strings.NewReader("https://ignored\n"), out), nil)

	got, err := r.Resolve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "https://abc.ngrok.app", got)
	assert.Empty(t, out.String())
}

func TestResolver_PromptsOnFailure(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewResolver(stubLookup{err: errors.New("connection refused")},
		NewPrompter(strings.NewReader("  https://typed.ngrok.app  \n"), out), nil)

	got, err := r.Resolve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "https://typed.ngrok.app", got)
	assert.Contains(t, out.String(), "Paste the public https URL")
}

func TestResolver_PromptAcceptsAnswerWithoutNewline(t *testing.T) {
	r := NewResolver(stubLookup{err: ErrNoTunnel}, NewPrompter(strings.NewReader("https://eof.ngrok.app"), &bytes.Buffer{}), nil)

	got, err := r.Resolve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "https://eof.ngrok.app", got)
}

func TestResolver_EmptyAnswer(t *testing.T) {
	r := NewResolver(stubLookup{err: ErrNoTunnel}, NewPrompter(strings.NewReader("\n"), &bytes.Buffer{}), nil)

	_, err := r.Resolve(context.Background())

	assert.ErrorIs(t, err, ErrNoPublicURL)
}

func TestPrompter_AskReturnsOnCancel(t *testing.T) {
	in, w := io.Pipe()
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewPrompter(in, &bytes.Buffer{}).Ask(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolver_NoPrompt(t *testing.T) {
	r := NewResolver(stubLookup{err: ErrNoTunnel}, nil, nil)

	_, err := r.Resolve(context.Background())

	assert.ErrorIs(t, err, ErrNoTunnel)
}

func TestResolver_UnreachableStatusAPIPrompts(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL + "/api/tunnels"
	ts.Close()

	r := NewResolver(NewClient(&Options{APIURL: url}),
		NewPrompter(strings.NewReader("https://manual.ngrok.app\n"), &bytes.Buffer{}), nil)

	got, err := r.Resolve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "https://manual.ngrok.app", got)
}

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/finsight/internal/telegram"
)

func TestCallbackURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://abc123.ngrok-free.app", "https://abc123.ngrok-free.app/webhook/telegram"},
		{"https://abc123.ngrok-free.app/", "https://abc123.ngrok-free.app/webhook/telegram"},
		{"  https://abc123.ngrok-free.app  ", "https://abc123.ngrok-free.app/webhook/telegram"},
		{"http://localhost:8000", "http://localhost:8000/webhook/telegram"},
	}
	for _, tt := range tests {
		got, err := CallbackURL(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestCallbackURL_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc123.ngrok-free.app", "ftp://host", "https://"} {
		_, err := CallbackURL(in)
		assert.Error(t, err, in)
	}
}

type fakeRegistrar struct {
	callback string
	secret   string
	resp     *telegram.Response
	err      error
}

func (f *fakeRegistrar) SetWebhook(_ context.Context, callbackURL, secret string) (*telegram.Response, error) {
	f.callback = callbackURL
	f.secret = secret
	return f.resp, f.err
}

func TestRegister(t *testing.T) {
	reg := &fakeRegistrar{resp: &telegram.Response{OK: true, Raw: []byte(`{"ok":true,"result":true,"description":"Webhook was set"}`)}}
	out := &bytes.Buffer{}

	callback, err := Register(context.Background(), reg, "https://abc.ngrok.app/", "hook-secret-value", out)

	require.NoError(t, err)
	assert.Equal(t, "https://abc.ngrok.app/webhook/telegram", callback)
	assert.Equal(t, callback, reg.callback)
	assert.Equal(t, "hook-secret-value", reg.secret)
	assert.Equal(t, "{\n  \"ok\": true,\n  \"result\": true,\n  \"description\": \"Webhook was set\"\n}\n", out.String())
}

func TestRegister_RejectedStillPrinted(t *testing.T) {
	reg := &fakeRegistrar{
		resp: &telegram.Response{Raw: []byte(`{"ok":false,"error_code":400,"description":"Bad Request: bad webhook"}`)},
		err:  &telegram.APIError{Method: "setWebhook", StatusCode: 400, ErrorCode: 400, Description: "Bad Request: bad webhook"},
	}
	out := &bytes.Buffer{}

	_, err := Register(context.Background(), reg, "https://abc.ngrok.app", "s", out)

	var apiErr *telegram.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, out.String(), "bad webhook")
}

func TestRegister_InvalidPublicURL(t *testing.T) {
	reg := &fakeRegistrar{}

	_, err := Register(context.Background(), reg, "not a url", "s", &bytes.Buffer{})

	assert.Error(t, err)
	assert.Empty(t, reg.callback)
}

func TestRegister_AgainstBotAPI(t *testing.T) {
	var gotQuery map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123456789:AAH-test-token/setWebhook", r.URL.Path)
		gotQuery = map[string]string{
			"url":          r.URL.Query().Get("url"),
			"secret_token": r.URL.Query().Get("secret_token"),
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": true, "description": "Webhook was set"})
	}))
	defer ts.Close()

	client := telegram.NewClient(&telegram.Options{BaseURL: ts.URL, Token: "123456789:AAH-test-token", Secret: "hook-secret-value"})
	out := &bytes.Buffer{}

	_, err := Register(context.Background(), client, "https://abc.ngrok.app", "hook-secret-value", out)

	require.NoError(t, err)
	assert.Equal(t, "https://abc.ngrok.app/webhook/telegram", gotQuery["url"])
	assert.Equal(t, "hook-secret-value", gotQuery["secret_token"])
	assert.Contains(t, out.String(), "\"description\": \"Webhook was set\"")
}

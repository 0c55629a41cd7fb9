package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/finsight/internal/api"
	"github.com/finsight/finsight/internal/background"
	"github.com/finsight/finsight/internal/store"
	"github.com/finsight/finsight/internal/supabase"
	"github.com/finsight/finsight/internal/telegram"
	"github.com/finsight/finsight/server/bot"
)

type fakeReader struct {
	messages []api.Message
	err      error
	limit    int
}

func (f *fakeReader) Recent(_ context.Context, limit int) ([]api.Message, error) {
	f.limit = limit
	return f.messages, f.err
}

type fakeLog struct {
	mu      sync.Mutex
	entries []store.Entry
	err     error
}

func (f *fakeLog) Append(_ context.Context, e store.Entry) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return int64(len(f.entries)), f.err
}

type fakeRecorder struct {
	mu   sync.Mutex
	rows []any
	err  error
}

func (f *fakeRecorder) Insert(_ context.Context, table string, row any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if table == bot.TableMessages {
		f.rows = append(f.rows, row)
	}
	return f.err
}

type fakeCommander struct {
	mu    sync.Mutex
	calls []string
	reply string
}

func (f *fakeCommander) Handle(_ context.Context, sender, text string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sender+" "+text)
	return f.reply
}

type sent struct {
	ChatID int64
	Text   string
}

type fakeMessenger struct {
	mu       sync.Mutex
	disabled bool
	sent     []sent
}

func (f *fakeMessenger) Enabled() bool { return !f.disabled }

func (f *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{ChatID: chatID, Text: text})
	return nil
}

type webhookFixture struct {
	log       *fakeLog
	records   *fakeRecorder
	commands  *fakeCommander
	messenger *fakeMessenger
	tasks     *background.Group
	handler   http.HandlerFunc
}

func newWebhookFixture(secret string) *webhookFixture {
	f := &webhookFixture{
		log:       &fakeLog{},
		records:   &fakeRecorder{},
		commands:  &fakeCommander{reply: "pong"},
		messenger: &fakeMessenger{},
		tasks:     background.New(nil, time.Second),
	}
	f.handler = NewWebhookHandler(&WebhookOptions{
		Secret:    secret,
		Log:       f.log,
		Records:   f.records,
		Commands:  f.commands,
		Messenger: f.messenger,
		Tasks:     f.tasks,
		Now:       func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) },
	})
	return f
}

func (f *webhookFixture) post(target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.handler(w, req)
	f.tasks.Wait()
	return w
}

const textUpdate = `{"update_id":10,"message":{"text":"/help","chat":{"id":42},"from":{"id":7,"username":"asha"}}}`

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	HealthHandler(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMessagesHandler_DefaultLimit(t *testing.T) {
	reader := &fakeReader{messages: []api.Message{{ID: 2, Platform: "telegram", Sender: "7", Text: "/help", CreatedAt: "2025-03-14 09:30:00"}}}

	w := httptest.NewRecorder()
	NewMessagesHandler(reader)(w, httptest.NewRequest(http.MethodGet, "/messages", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, DefaultMessagesLimit, reader.limit)

	var resp api.MessagesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "/help", resp.Messages[0].Text)
}

func TestMessagesHandler_Limit(t *testing.T) {
	reader := &fakeReader{messages: []api.Message{}}

	w := httptest.NewRecorder()
	NewMessagesHandler(reader)(w, httptest.NewRequest(http.MethodGet, "/messages?limit=5", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, reader.limit)
	assert.JSONEq(t, `{"messages":[]}`, w.Body.String())
}

func TestMessagesHandler_InvalidLimit(t *testing.T) {
	for _, limit := range []string{"abc", "0", "-3"} {
		t.Run(limit, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewMessagesHandler(&fakeReader{})(w, httptest.NewRequest(http.MethodGet, "/messages?limit="+limit, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestMessagesHandler_StoreError(t *testing.T) {
	w := httptest.NewRecorder()
	NewMessagesHandler(&fakeReader{err: errors.New("disk gone")})(w, httptest.NewRequest(http.MethodGet, "/messages", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhook_TextMessage(t *testing.T) {
	f := newWebhookFixture("")

	w := f.post("/webhook/telegram", textUpdate, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	require.Len(t, f.log.entries, 1)
	assert.Equal(t, store.Entry{Platform: "telegram", Sender: "7", Text: "/help", Raw: textUpdate}, f.log.entries[0])

	require.Len(t, f.records.rows, 1)
	record, ok := f.records.rows[0].(bot.MessageRecord)
	require.True(t, ok)
	assert.Equal(t, "asha", record.Username)
	assert.Equal(t, "2025-03-14T09:30:00Z", record.CreatedAt)
	assert.JSONEq(t, textUpdate, string(record.Raw))

	assert.Equal(t, []string{"7 /help"}, f.commands.calls)
	assert.Equal(t, []sent{{ChatID: 42, Text: "pong"}}, f.messenger.sent)
}

func TestWebhook_SecretRequired(t *testing.T) {
	f := newWebhookFixture("hook-secret-value")

	w := f.post("/webhook/telegram", textUpdate, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"forbidden"}`, w.Body.String())

	w = f.post("/webhook/telegram?secret=wrong", textUpdate, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.Empty(t, f.log.entries)
	assert.Empty(t, f.commands.calls)
}

func TestWebhook_SecretAccepted(t *testing.T) {
	f := newWebhookFixture("hook-secret-value")

	w := f.post("/webhook/telegram?secret=hook-secret-value", textUpdate, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.post("/webhook/telegram", textUpdate, map[string]string{telegram.SecretHeader: "hook-secret-value"})
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Len(t, f.log.entries, 2)
}

func TestWebhook_InvalidBody(t *testing.T) {
	f := newWebhookFixture("")

	w := f.post("/webhook/telegram", "{{{", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.log.entries, 1)
	assert.Equal(t, store.Entry{Platform: "telegram", Sender: "unknown", Text: "{}", Raw: "{}"}, f.log.entries[0])
	assert.Empty(t, f.commands.calls)
	assert.Len(t, f.records.rows, 1)
}

func TestWebhook_NonTextMessageGetsUnknownReply(t *testing.T) {
	f := newWebhookFixture("")
	f.commands.reply = bot.ReplyUnknown

	w := f.post("/webhook/telegram", `{"message":{"chat":{"id":42},"sticker":{"emoji":"x"}}}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.log.entries, 1)
	assert.Equal(t, "42", f.log.entries[0].Sender)
	require.Len(t, f.commands.calls, 1)
	assert.Equal(t, `42 {"chat":{"id":42},"sticker":{"emoji":"x"}}`, f.commands.calls[0])
	assert.Equal(t, []sent{{ChatID: 42, Text: bot.ReplyUnknown}}, f.messenger.sent)
}

func TestWebhook_StoreFailureStillAcknowledged(t *testing.T) {
	f := newWebhookFixture("")
	f.log.err = errors.New("database is locked")
	f.records.err = supabase.ErrNotConfigured

	w := f.post("/webhook/telegram", textUpdate, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.Len(t, f.messenger.sent, 1)
}

func TestWebhook_MessengerDisabled(t *testing.T) {
	f := newWebhookFixture("")
	f.messenger.disabled = true

	f.post("/webhook/telegram", textUpdate, nil)

	assert.Len(t, f.commands.calls, 1)
	assert.Empty(t, f.messenger.sent)
}

func TestWebhook_EmptyReplyNotSent(t *testing.T) {
	f := newWebhookFixture("")
	f.commands.reply = ""

	f.post("/webhook/telegram", textUpdate, nil)

	assert.Empty(t, f.messenger.sent)
}

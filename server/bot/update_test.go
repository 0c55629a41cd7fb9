package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUpdate_TextMessage(t *testing.T) {
	body := []byte(`{"update_id":1,"message":{"text":"/help","chat":{"id":42},"from":{"id":7,"username":"asha","first_name":"Asha"}}}`)

	in := ParseUpdate(body)

	assert.Equal(t, int64(42), in.ChatID)
	assert.Equal(t, "7", in.SenderID)
	assert.Equal(t, "asha", in.Username)
	assert.Equal(t, "/help", in.Text)
	assert.JSONEq(t, string(body), string(in.Raw))
}

func TestParseUpdate_EditedMessage(t *testing.T) {
	body := []byte(`{"edited_message":{"text":"/stats","chat":{"id":5},"from":{"id":9,"first_name":"Ravi"}}}`)

	in := ParseUpdate(body)

	assert.Equal(t, int64(5), in.ChatID)
	assert.Equal(t, "9", in.SenderID)
	assert.Equal(t, "Ravi", in.Username)
	assert.Equal(t, "/stats", in.Text)
}

func TestParseUpdate_NoTextUsesMessageJSON(t *testing.T) {
	body := []byte(`{"message":{"chat":{"id":-100},"photo":[{"file_id":"x"}]}}`)

	in := ParseUpdate(body)

	assert.Equal(t, "-100", in.SenderID)
	assert.Equal(t, "-100", in.Username)
	assert.JSONEq(t, `{"chat":{"id":-100},"photo":[{"file_id":"x"}]}`, in.Text)
}

func TestParseUpdate_InvalidBody(t *testing.T) {
	in := ParseUpdate([]byte("not json"))

	assert.Equal(t, int64(0), in.ChatID)
	assert.Equal(t, "unknown", in.SenderID)
	assert.Equal(t, "", in.Username)
	assert.Equal(t, "{}", in.Text)
	assert.Equal(t, "{}", string(in.Raw))
}

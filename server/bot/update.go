package bot

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Platform is the value recorded in the platform column for Telegram traffic
const Platform = "telegram"

// User is the sender of a Telegram message
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// Chat is the conversation a Telegram message belongs to
type Chat struct {
	ID int64 `json:"id"`
}

// Message is the subset of a Telegram message the bot reads
type Message struct {
	Text string `json:"text"`
	Chat Chat   `json:"chat"`
	From *User  `json:"from"`
}

// Inbound is a webhook update reduced to what the bot stores and acts on
type Inbound struct {
	// ChatID is the chat to reply to; zero when the update has none
	ChatID int64

	// SenderID is from.id, else chat.id, else "unknown"
	SenderID string

	// Username is from.username, else from.first_name, else the chat ID
	Username string

	// Text is the message text, or the message JSON when it carries no text
	Text string

	// Raw is the full update body as JSON
	Raw json.RawMessage
}

// ParseUpdate reduces a webhook body to an Inbound.
// Bodies that are not JSON objects are treated as {}.
func ParseUpdate(body []byte) Inbound {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		fields = map[string]json.RawMessage{}
		body = []byte("{}")
	}

	msgRaw := pick(fields, "message", "edited_message")

	var msg Message
	_ = json.Unmarshal(msgRaw, &msg)

	in := Inbound{
		ChatID: msg.Chat.ID,
		Text:   msg.Text,
		Raw:    compact(body),
	}
	if in.Text == "" {
		in.Text = string(compact(msgRaw))
	}

	chatID := ""
	if msg.Chat.ID != 0 {
		chatID = strconv.FormatInt(msg.Chat.ID, 10)
	}

	switch {
	case msg.From != nil && msg.From.ID != 0:
		in.SenderID = strconv.FormatInt(msg.From.ID, 10)
	case chatID != "":
		in.SenderID = chatID
	default:
		in.SenderID = "unknown"
	}

	switch {
	case msg.From != nil && msg.From.Username != "":
		in.Username = msg.From.Username
	case msg.From != nil && msg.From.FirstName != "":
		in.Username = msg.From.FirstName
	default:
		in.Username = chatID
	}

	return in
}

// pick returns the first key holding a non-empty JSON object, or {}
func pick(fields map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, key := range keys {
		raw := bytes.TrimSpace(fields[key])
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("{}")) {
			continue
		}
		return raw
	}
	return json.RawMessage("{}")
}

func compact(raw []byte) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return json.RawMessage(raw)
	}
	return buf.Bytes()
}

package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/finsight/finsight/internal/api"
	"github.com/finsight/finsight/internal/background"
	"github.com/finsight/finsight/internal/logging"
	"github.com/finsight/finsight/internal/store"
	"github.com/finsight/finsight/internal/supabase"
	"github.com/finsight/finsight/internal/telegram"
	"github.com/finsight/finsight/server/bot"
)

// maxUpdateSize caps the webhook body; Telegram updates are far smaller
const maxUpdateSize = 1 << 20

// MessageLog appends to the local message log
type MessageLog interface {
	Append(ctx context.Context, e store.Entry) (int64, error)
}

// Recorder mirrors rows into the remote tables
type Recorder interface {
	Insert(ctx context.Context, table string, row any) error
}

// Commander turns command text into a reply
type Commander interface {
	Handle(ctx context.Context, sender, text string) string
}

// Messenger sends replies to a chat
type Messenger interface {
	Enabled() bool
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Scheduler runs work after the response has been sent
type Scheduler interface {
	Go(name string, task background.Task)
}

// WebhookOptions contains the dependencies of the webhook handler
type WebhookOptions struct {
	// Secret, when set, must match the secret query parameter or the
	// X-Telegram-Bot-Api-Secret-Token header
	Secret string

	Log       MessageLog
	Records   Recorder
	Commands  Commander
	Messenger Messenger
	Tasks     Scheduler

	// Now returns the current time (optional, defaults to time.Now)
	Now func() time.Time
}

// NewWebhookHandler serves POST /webhook/telegram
func NewWebhookHandler(opts *WebhookOptions) http.HandlerFunc {
	if opts == nil {
		opts = &WebhookOptions{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		if !authorized(r, opts.Secret) {
			logger.Warn("Webhook rejected: secret mismatch")
			writeError(w, r, http.StatusForbidden, "forbidden")
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateSize))
		if err != nil {
			logger.Warn("Failed to read webhook body", logging.Error(err))
			body = nil
		}

		in := bot.ParseUpdate(body)

		if opts.Log != nil {
			id, err := opts.Log.Append(ctx, store.Entry{
				Platform: bot.Platform,
				Sender:   in.SenderID,
				Text:     in.Text,
				Raw:      string(in.Raw),
			})
			if err != nil {
				logger.Error("Failed to store message", logging.Error(err))
			} else {
				logger.Debug("Message stored", logging.Int64("id", id), logging.String("sender", in.SenderID))
			}
		}

		if opts.Tasks != nil {
			schedule(opts, in, now().UTC(), logger)
		}

		writeJSON(w, r, http.StatusOK, api.AckResponse{OK: true})
	}
}

func schedule(opts *WebhookOptions, in bot.Inbound, received time.Time, logger *logging.Logger) {
	if opts.Records != nil {
		record := bot.MessageRecord{
			Platform:  bot.Platform,
			Sender:    in.SenderID,
			Username:  in.Username,
			Text:      in.Text,
			Raw:       in.Raw,
			CreatedAt: received.Format(time.RFC3339),
		}
		opts.Tasks.Go("supabase-message", func(ctx context.Context) error {
			err := opts.Records.Insert(ctx, bot.TableMessages, record)
			if errors.Is(err, supabase.ErrNotConfigured) {
				logger.Debug("Supabase not configured; message not mirrored")
				return nil
			}
			return err
		})
	}

	// Messages without text carry their JSON as text and get the unknown-command reply
	if in.ChatID == 0 || opts.Commands == nil {
		return
	}

	opts.Tasks.Go("command", func(ctx context.Context) error {
		reply := opts.Commands.Handle(ctx, in.SenderID, in.Text)
		if reply == "" {
			return nil
		}
		if opts.Messenger == nil || !opts.Messenger.Enabled() {
			logger.Debug("Telegram token not set; reply not sent")
			return nil
		}
		return opts.Messenger.SendMessage(ctx, in.ChatID, reply)
	})
}

func authorized(r *http.Request, secret string) bool {
	if secret == "" {
		return true
	}
	for _, candidate := range []string{r.URL.Query().Get("secret"), r.Header.Get(telegram.SecretHeader)} {
		if candidate != "" && subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) == 1 {
			return true
		}
	}
	return false
}

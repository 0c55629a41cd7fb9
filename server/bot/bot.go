// Package bot implements the FinSight slash commands on top of the Supabase tables.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finsight/finsight/internal/logging"
	"github.com/finsight/finsight/internal/supabase"
)

// Replies shared by several commands
const (
	ReplyError   = "An error occurred while processing your command."
	ReplyUnknown = "Command not recognized. Use /help to see available commands."
)

// Repository is the table access the commands need
type Repository interface {
	Insert(ctx context.Context, table string, row any) error
	Select(ctx context.Context, table string, q supabase.Query, out any) error
}

// Options contains configuration for the Bot
type Options struct {
	// Repository stores and reads user records
	Repository Repository

	// AppURL is the dashboard link shown by /start and /link
	AppURL string

	// Now returns the current time (optional, defaults to time.Now)
	Now func() time.Time

	// Logger is used for command logging (optional)
	Logger *logging.Logger
}

type handlerFunc func(ctx context.Context, sender string, args []string) (string, error)

// Bot turns command text into reply text
type Bot struct {
	repo     Repository
	appURL   string
	now      func() time.Time
	logger   *logging.Logger
	handlers map[string]handlerFunc
}

// New creates a Bot
func New(opts *Options) *Bot {
	if opts == nil {
		opts = &Options{}
	}

	b := &Bot{
		repo:   opts.Repository,
		appURL: opts.AppURL,
		now:    opts.Now,
		logger: opts.Logger,
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.logger == nil {
		b.logger = logging.Nop()
	}

	b.handlers = map[string]handlerFunc{
		"/start":      b.start,
		"/help":       b.help,
		"/addincome":  b.addIncome,
		"/income":     b.income,
		"/addexpense": b.addExpense,
		"/expense":    b.expense,
		"/setbudget":  b.setBudget,
		"/budget":     b.budget,
		"/portfolio":  b.portfolio,
		"/stats":      b.stats,
		"/link":       b.link,
		"/consent":    b.consent,
		"/export":     b.export,
	}
	return b
}

// Handle runs the command in text on behalf of sender and returns the reply.
// An empty reply means there is nothing to send.
func (b *Bot) Handle(ctx context.Context, sender, text string) string {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return ""
	}

	cmd := strings.ToLower(parts[0])
	// "/cmd@SomeBot" is how Telegram addresses a command in group chats
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}

	handler, ok := b.handlers[cmd]
	if !ok {
		return ReplyUnknown
	}

	reply, err := handler(ctx, sender, parts[1:])
	if err != nil {
		b.logger.Error("Command failed",
			logging.String("command", cmd),
			logging.String("sender", sender),
			logging.Error(err))
		return ReplyError
	}
	return reply
}

// insert writes a row. An unconfigured repository is skipped with a warning.
func (b *Bot) insert(ctx context.Context, table string, row any) error {
	if b.repo == nil {
		b.logger.Warn("Supabase not configured; skipping insert", logging.String("table", table))
		return nil
	}
	err := b.repo.Insert(ctx, table, row)
	if errors.Is(err, supabase.ErrNotConfigured) {
		b.logger.Warn("Supabase not configured; skipping insert", logging.String("table", table))
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// selectRows reads rows into out. Any failure is logged and leaves out empty,
// so the commands answer as if there were no records.
func (b *Bot) selectRows(ctx context.Context, table string, q supabase.Query, out any) {
	if b.repo == nil {
		b.logger.Warn("Supabase not configured; returning no rows", logging.String("table", table))
		return
	}
	err := b.repo.Select(ctx, table, q, out)
	switch {
	case errors.Is(err, supabase.ErrNotConfigured):
		b.logger.Warn("Supabase not configured; returning no rows", logging.String("table", table))
	case err != nil:
		b.logger.Error("Supabase select failed",
			logging.String("table", table),
			logging.Error(err))
	}
}

func (b *Bot) timestamp() string {
	return b.now().UTC().Format(time.RFC3339)
}

// Package webhook binds the bot's Telegram webhook to a public URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/finsight/finsight/internal/telegram"
)

// Path is the route the server receives Telegram updates on
const Path = "/webhook/telegram"

// Registrar performs the setWebhook call
type Registrar interface {
	SetWebhook(ctx context.Context, callbackURL, secret string) (*telegram.Response, error)
}

// CallbackURL appends Path to publicURL. A trailing slash on publicURL is
// dropped so the path is not doubled.
func CallbackURL(publicURL string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(publicURL), "/")

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid public URL %q: %w", publicURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid public URL %q: want an absolute http(s) URL", publicURL)
	}

	return base + Path, nil
}

// Register points the webhook at publicURL and prints Telegram's answer to out.
// The answer is printed even when Telegram rejects the call.
func Register(ctx context.Context, reg Registrar, publicURL, secret string, out io.Writer) (string, error) {
	callback, err := CallbackURL(publicURL)
	if err != nil {
		return "", err
	}

	resp, err := reg.SetWebhook(ctx, callback, secret)
	if resp != nil {
		if printErr := printJSON(out, resp.Raw); printErr != nil && err == nil {
			err = printErr
		}
	}
	if err != nil {
		return callback, fmt.Errorf("register webhook: %w", err)
	}
	return callback, nil
}

func printJSON(out io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		buf.Reset()
		buf.Write(raw)
	}
	buf.WriteByte('\n')
	_, err := out.Write(buf.Bytes())
	return err
}

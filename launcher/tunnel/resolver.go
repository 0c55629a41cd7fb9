package tunnel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/finsight/finsight/internal/logging"
)

// ErrNoPublicURL is returned when the operator answers the prompt with nothing
var ErrNoPublicURL = errors.New("no public URL entered")

// Lookup finds the public URL without operator input
type Lookup interface {
	PublicURL(ctx context.Context) (string, error)
}

// Prompter asks the operator for the public URL
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter reads answers from in and writes questions to out
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Ask prints the question and returns the trimmed answer line
func (p *Prompter) Ask(ctx context.Context) (string, error) {
	if _, err := fmt.Fprint(p.out, "Could not read the public URL from the tunnel manager.\nPaste the public https URL: "); err != nil {
		return "", err
	}

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	// Stdin reads cannot be interrupted. On cancellation this goroutine stays
	// blocked until the launcher exits, which follows right after; a Prompter
	// is not asked again after a cancelled Ask.
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-ch:
		line := strings.TrimSpace(a.line)
		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return "", fmt.Errorf("read answer: %w", a.err)
		}
		if line == "" {
			return "", ErrNoPublicURL
		}
		return line, nil
	}
}

// Resolver asks the status API first and the operator second
type Resolver struct {
	lookup Lookup
	prompt *Prompter
	logger *logging.Logger
}

// NewResolver creates a Resolver. A nil prompt turns a failed lookup into an error.
func NewResolver(lookup Lookup, prompt *Prompter, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Resolver{lookup: lookup, prompt: prompt, logger: logger}
}

// Resolve returns the public URL
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	publicURL, err := r.lookup.PublicURL(ctx)
	if err == nil {
		r.logger.Info("Public URL found", logging.String("public_url", publicURL))
		return publicURL, nil
	}

	r.logger.Warn("Tunnel status lookup failed", logging.Error(err))
	if r.prompt == nil {
		return "", fmt.Errorf("resolve public URL: %w", err)
	}

	publicURL, err = r.prompt.Ask(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve public URL: %w", err)
	}
	return publicURL, nil
}

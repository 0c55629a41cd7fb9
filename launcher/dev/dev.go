// Package dev runs the local development loop: server, tunnel, webhook
// registration, then wait for the operator to stop it.
package dev

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/finsight/finsight/internal/logging"
	"github.com/finsight/finsight/launcher/process"
	"github.com/finsight/finsight/launcher/webhook"
)

// Defaults for Options
const (
	DefaultPort        = 8000
	DefaultWait        = 5 * time.Second
	DefaultServer      = "finsight serve"
	DefaultNgrok       = "ngrok"
	DefaultStopTimeout = 10 * time.Second
)

// Resolver finds the tunnel's public URL
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Options configures a development run
type Options struct {
	// Port is the local port the server listens on and the tunnel forwards to
	Port int

	// Wait is the fixed delay between starting the tunnel and querying it
	Wait time.Duration

	// PublicURL skips the tunnel entirely when set
	PublicURL string

	// NoServer skips starting the server
	NoServer bool

	// Detach leaves the children running and returns after registration
	Detach bool

	// Server is the server command; the port flag is appended
	Server string

	// Ngrok is the tunnelling executable
	Ngrok string

	// Secret is the webhook shared secret
	Secret string

	Runner    process.Runner
	Resolver  Resolver
	Registrar webhook.Registrar

	// Out receives the registration response
	Out io.Writer

	Logger *logging.Logger

	// Sleep waits for d or until ctx is done (optional)
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultOptions returns default options for a development run
func DefaultOptions() *Options {
	return &Options{
		Port:   DefaultPort,
		Wait:   DefaultWait,
		Server: DefaultServer,
		Ngrok:  DefaultNgrok,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type child struct {
	name string
	proc process.Process
}

// Run starts the children, registers the webhook and, unless detached, waits
// for ctx to be cancelled or a child to exit before stopping the children.
func Run(ctx context.Context, opts *Options) (err error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Runner == nil || opts.Registrar == nil {
		return errors.New("dev: runner and registrar are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	wait := opts.Sleep
	if wait == nil {
		wait = sleep
	}
	port := strconv.Itoa(opts.Port)

	var children []child
	defer func() {
		if opts.Detach && err == nil {
			for _, c := range children {
				logger.Info("Leaving process running", logging.String("name", c.name), logging.Int("pid", c.proc.PID()))
			}
			return
		}
		stopAll(children, logger)
	}()

	if !opts.NoServer {
		spec, err := process.ParseCommand("server", opts.Server, "--port", port)
		if err != nil {
			return err
		}
		p, err := opts.Runner.Start(ctx, spec)
		if err != nil {
			return err
		}
		children = append(children, child{name: spec.Name, proc: p})
	}

	publicURL := opts.PublicURL
	if publicURL == "" {
		if opts.Resolver == nil {
			return errors.New("dev: no public URL and no resolver")
		}

		spec := process.Spec{Name: "tunnel", Path: opts.Ngrok, Args: []string{"http", port}}
		p, err := opts.Runner.Start(ctx, spec)
		if err != nil {
			return err
		}
		children = append(children, child{name: spec.Name, proc: p})

		logger.Info("Waiting for tunnel", logging.Duration("wait", opts.Wait))
		if err := wait(ctx, opts.Wait); err != nil {
			return err
		}

		publicURL, err = opts.Resolver.Resolve(ctx)
		if err != nil {
			return err
		}
	}

	callback, err := webhook.Register(ctx, opts.Registrar, publicURL, opts.Secret, out)
	if err != nil {
		return err
	}
	logger.Info("Webhook registered", logging.String("url", callback))

	if opts.Detach || len(children) == 0 {
		return nil
	}

	return waitChildren(ctx, children, logger)
}

// waitChildren blocks until ctx is done or any child exits
func waitChildren(ctx context.Context, children []child, logger *logging.Logger) error {
	exited := make(chan child, len(children))
	stop := make(chan struct{})
	defer close(stop)

	for _, c := range children {
		go func(c child) {
			select {
			case <-c.proc.Done():
				exited <- c
			case <-stop:
			}
		}(c)
	}

	logger.Info("Running; press Ctrl+C to stop")
	select {
	case <-ctx.Done():
		logger.Info("Stopping")
		return nil
	case c := <-exited:
		if err := c.proc.Err(); err != nil {
			return fmt.Errorf("%s exited: %w", c.name, err)
		}
		return fmt.Errorf("%s exited", c.name)
	}
}

func stopAll(children []child, logger *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultStopTimeout)
	defer cancel()

	for i := len(children) - 1; i >= 0; i-- {
		c := children[i]
		if err := c.proc.Stop(ctx); err != nil {
			logger.Warn("Failed to stop process", logging.String("name", c.name), logging.Error(err))
		}
	}
}

// Package process starts and stops the external programs the launcher drives.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/finsight/finsight/internal/logging"
)

// Spec describes a program to run
type Spec struct {
	// Name labels the process in logs
	Name string

	Path string
	Args []string

	// Dir is the working directory; empty means the current one
	Dir string

	// Env is added to the inherited environment
	Env []string
}

// String renders the command line
func (s Spec) String() string {
	return strings.TrimSpace(s.Path + " " + strings.Join(s.Args, " "))
}

// ParseCommand splits a command line such as "go mod download" into a Spec
func ParseCommand(name, line string, extra ...string) (Spec, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Spec{}, fmt.Errorf("%s: empty command", name)
	}
	args := append(fields[1:len(fields):len(fields)], extra...)
	return Spec{Name: name, Path: fields[0], Args: args}, nil
}

// Process is a started program
type Process interface {
	PID() int

	// Done is closed once the program has exited
	Done() <-chan struct{}

	// Err is the exit error, valid after Done is closed
	Err() error

	// Stop interrupts the program and kills it if it is still running
	// when ctx expires
	Stop(ctx context.Context) error
}

// Runner starts programs
type Runner interface {
	// Start launches spec and returns without waiting for it
	Start(ctx context.Context, spec Spec) (Process, error)

	// Run launches spec and waits for it. Cancelling ctx interrupts it.
	Run(ctx context.Context, spec Spec) error
}

// ExecRunner runs programs with os/exec
type ExecRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// WaitDelay bounds how long Run waits after interrupting a cancelled program
	WaitDelay time.Duration

	Logger *logging.Logger
}

// NewExecRunner creates a runner wired to the current terminal
func NewExecRunner(logger *logging.Logger) *ExecRunner {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ExecRunner{
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		WaitDelay: 10 * time.Second,
		Logger:    logger,
	}
}

func (r *ExecRunner) command(spec Spec) *exec.Cmd {
	cmd := exec.Command(spec.Path, spec.Args...)
	r.configure(cmd, spec)
	return cmd
}

func (r *ExecRunner) configure(cmd *exec.Cmd, spec Spec) {
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
}

func (r *ExecRunner) logger() *logging.Logger {
	if r.Logger == nil {
		return logging.Nop()
	}
	return r.Logger
}

// Start implements Runner. The program is not tied to ctx so it can outlive
// the launcher.
func (r *ExecRunner) Start(_ context.Context, spec Spec) (Process, error) {
	cmd := r.command(spec)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s (%s): %w", spec.Name, spec, err)
	}

	p := &execProcess{cmd: cmd, name: spec.Name, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()

	r.logger().Info("Process started",
		logging.String("name", spec.Name),
		logging.Int("pid", p.PID()),
		logging.String("command", spec.String()))
	return p, nil
}

// Run implements Runner
func (r *ExecRunner) Run(ctx context.Context, spec Spec) error {
	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	r.configure(cmd, spec)
	cmd.Stdin = r.Stdin
	cmd.Cancel = func() error {
		return interrupt(cmd.Process)
	}
	cmd.WaitDelay = r.WaitDelay

	r.logger().Info("Running",
		logging.String("name", spec.Name),
		logging.String("command", spec.String()),
		logging.String("dir", spec.Dir))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s interrupted: %w", spec.Name, ctx.Err())
		}
		return fmt.Errorf("%s (%s): %w", spec.Name, spec, err)
	}
	return nil
}

type execProcess struct {
	cmd  *exec.Cmd
	name string
	done chan struct{}
	err  error
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

func (p *execProcess) Stop(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	if err := interrupt(p.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("interrupt %s: %w", p.name, err)
	}

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill %s: %w", p.name, err)
		}
		<-p.done
		return nil
	}
}

// interrupt asks the program to exit; platforms without SIGINT get a kill
func interrupt(p *os.Process) error {
	if err := p.Signal(os.Interrupt); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return err
		}
		return p.Kill()
	}
	return nil
}

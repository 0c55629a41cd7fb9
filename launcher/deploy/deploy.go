// Package deploy is the hosting entrypoint: install dependencies in the
// service directory, then run the server bound to every interface on $PORT.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/logging"
	"github.com/finsight/finsight/launcher/process"
)

// Defaults for Options. They match a checkout of this module: the server's
// main package lives in cmd/finsight and is run from source.
const (
	DefaultDir     = "cmd/finsight"
	DefaultInstall = "go mod download"
	DefaultServer  = "go run . serve"
	BindHost       = "0.0.0.0"
)

// ErrDirNotFound is returned when the service directory is missing
var ErrDirNotFound = errors.New("service directory not found")

// Options configures a deployment run
type Options struct {
	// Dir is the service directory, relative to the working directory
	Dir string

	// Install is the dependency installation command; empty skips it
	Install string

	// Server is the server command; host and port flags are appended
	Server string

	// Getenv looks up PORT (optional, defaults to os.Getenv)
	Getenv func(string) string

	Runner process.Runner
	Logger *logging.Logger
}

// DefaultOptions returns default options for a deployment run
func DefaultOptions() *Options {
	return &Options{
		Dir:     DefaultDir,
		Install: DefaultInstall,
		Server:  DefaultServer,
	}
}

// ResolvePort returns $PORT when set and non-empty, otherwise the default port
func ResolvePort(getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	if port := getenv("PORT"); port != "" {
		return port
	}
	return config.DefaultPort
}

// CheckDir verifies dir exists and is a directory
func CheckDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDirNotFound, dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDirNotFound, dir)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrDirNotFound, dir)
	}
	return abs, nil
}

// Run checks the directory, installs dependencies and runs the server until
// it exits or ctx is cancelled. Nothing is started when the directory is missing.
func Run(ctx context.Context, opts *Options) error {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Runner == nil {
		return errors.New("deploy: no process runner")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	dir, err := CheckDir(opts.Dir)
	if err != nil {
		return err
	}

	port := ResolvePort(opts.Getenv)
	server, err := process.ParseCommand("server", opts.Server, "--host", BindHost, "--port", port)
	if err != nil {
		return err
	}
	server.Dir = dir

	if opts.Install != "" {
		install, err := process.ParseCommand("install", opts.Install)
		if err != nil {
			return err
		}
		install.Dir = dir

		logger.Info("Installing dependencies", logging.String("dir", dir), logging.String("command", install.String()))
		if err := opts.Runner.Run(ctx, install); err != nil {
			return fmt.Errorf("install dependencies: %w", err)
		}
	}

	logger.Info("Starting server",
		logging.String("dir", dir),
		logging.String("host", BindHost),
		logging.String("port", port))
	if err := opts.Runner.Run(ctx, server); err != nil {
		return fmt.Errorf("run server: %w", err)
	}
	return nil
}

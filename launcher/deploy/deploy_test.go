package deploy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/finsight/launcher/process"
)

type fakeRunner struct {
	runs    []process.Spec
	failOn  string
	started []process.Spec
}

func (f *fakeRunner) Start(_ context.Context, spec process.Spec) (process.Process, error) {
	f.started = append(f.started, spec)
	return nil, errors.New("not supported")
}

func (f *fakeRunner) Run(_ context.Context, spec process.Spec) error {
	f.runs = append(f.runs, spec)
	if spec.Name == f.failOn {
		return errors.New("exit status 1")
	}
	return nil
}

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestResolvePort(t *testing.T) {
	assert.Equal(t, "8000", ResolvePort(env(nil)))
	assert.Equal(t, "8000", ResolvePort(env(map[string]string{"PORT": ""})))
	assert.Equal(t, "10000", ResolvePort(env(map[string]string{"PORT": "10000"})))
}

func TestResolvePort_OSEnvironment(t *testing.T) {
	t.Setenv("PORT", "4321")
	assert.Equal(t, "4321", ResolvePort(nil))
}

func TestRun_BindsToPort(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{}

	err := Run(context.Background(), &Options{
		Dir:     dir,
		Install: DefaultInstall,
		Server:  DefaultServer,
		Getenv:  env(map[string]string{"PORT": "10000"}),
		Runner:  runner,
	})

	require.NoError(t, err)
	require.Len(t, runner.runs, 2)

	install := runner.runs[0]
	assert.Equal(t, "go", install.Path)
	assert.Equal(t, []string{"mod", "download"}, install.Args)
	assert.Equal(t, dir, install.Dir)

	server := runner.runs[1]
	assert.Equal(t, "go", server.Path)
	assert.Equal(t, []string{"run", ".", "serve", "--host", "0.0.0.0", "--port", "10000"}, server.Args)
	assert.Equal(t, dir, server.Dir)
}

func TestRun_DefaultPort(t *testing.T) {
	runner := &fakeRunner{}

	err := Run(context.Background(), &Options{
		Dir:    t.TempDir(),
		Server: DefaultServer,
		Getenv: env(nil),
		Runner: runner,
	})

	require.NoError(t, err)
	require.Len(t, runner.runs, 1)
	assert.Equal(t, []string{"run", ".", "serve", "--host", "0.0.0.0", "--port", "8000"}, runner.runs[0].Args)
}

func TestRun_MissingDirStartsNothing(t *testing.T) {
	runner := &fakeRunner{}

	err := Run(context.Background(), &Options{
		Dir:     filepath.Join(t.TempDir(), "backend"),
		Install: DefaultInstall,
		Server:  DefaultServer,
		Runner:  runner,
	})

	assert.ErrorIs(t, err, ErrDirNotFound)
	assert.Empty(t, runner.runs)
	assert.Empty(t, runner.started)
}

func TestRun_DirIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "backend")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	runner := &fakeRunner{}

	err := Run(context.Background(), &Options{Dir: file, Server: DefaultServer, Runner: runner})

	assert.ErrorIs(t, err, ErrDirNotFound)
	assert.Empty(t, runner.runs)
}

func TestRun_InstallFailureSkipsServer(t *testing.T) {
	runner := &fakeRunner{failOn: "install"}

	err := Run(context.Background(), &Options{
		Dir:     t.TempDir(),
		Install: DefaultInstall,
		Server:  DefaultServer,
		Runner:  runner,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "install dependencies")
	assert.Len(t, runner.runs, 1)
}

func TestRun_ServerFailure(t *testing.T) {
	runner := &fakeRunner{failOn: "server"}

	err := Run(context.Background(), &Options{Dir: t.TempDir(), Server: DefaultServer, Runner: runner})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "run server")
}

func TestRun_EmptyServerCommand(t *testing.T) {
	runner := &fakeRunner{}

	err := Run(context.Background(), &Options{Dir: t.TempDir(), Server: " ", Runner: runner})

	assert.Error(t, err)
	assert.Empty(t, runner.runs)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, "cmd/finsight", opts.Dir)
	assert.Equal(t, "go mod download", opts.Install)
	assert.Equal(t, "go run . serve", opts.Server)
}

func TestDefaultDirIsServerPackage(t *testing.T) {
	// tests run in launcher/deploy; the module root is two levels up
	dir, err := CheckDir(filepath.Join("..", "..", DefaultDir))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "main.go"))
	assert.NoError(t, err)
}

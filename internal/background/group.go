// Package background runs fire-and-forget work that must outlive the request
// that scheduled it but not the process.
package background

import (
	"context"
	"sync"
	"time"

	"github.com/finsight/finsight/internal/logging"
)

// Task is a unit of background work
type Task func(ctx context.Context) error

// Group runs tasks on their own goroutines and tracks them for shutdown
type Group struct {
	logger  *logging.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates a Group. Every task gets its own timeout derived from a
// context that is cancelled by Shutdown.
func New(logger *logging.Logger, timeout time.Duration) *Group {
	if logger == nil {
		logger = logging.Nop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Group{
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Go schedules task under name. Errors are logged, never returned.
func (g *Group) Go(name string, task Task) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		g.logger.Warn("Background task dropped after shutdown", logging.String("task", name))
		return
	}
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()

		ctx, cancel := context.WithTimeout(g.ctx, g.timeout)
		defer cancel()

		if err := task(ctx); err != nil {
			g.logger.Error("Background task failed",
				logging.String("task", name),
				logging.Error(err))
		}
	}()
}

// Wait blocks until every scheduled task has returned
func (g *Group) Wait() {
	g.wg.Wait()
}

// Shutdown stops accepting tasks and waits for running ones until ctx expires,
// then cancels whatever is still running
func (g *Group) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.cancel()
		return nil
	case <-ctx.Done():
		g.cancel()
		<-done
		return ctx.Err()
	}
}

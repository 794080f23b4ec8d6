// Package background runs long-lived maintenance loops (pool reapers,
// periodic health checks) under one cancellable context.
//
// A process normally uses the shared group returned by Default, which is
// created on first use and lives until the process exits. Tests and the
// daemon create their own with New so they can Shutdown and wait for every
// loop to return.
//
//	g := background.New()
//	g.Go("reaper", func(ctx context.Context) {
//	    for { select { case <-ctx.Done(): return; case <-tick: ... } }
//	})
//	defer g.Shutdown(context.Background())
package background

import (
	"context"
	"errors"
	"sync"
)

// ErrShutdown is returned by Go once the group has been shut down.
var ErrShutdown = errors.New("background: group is shut down")

// Logger defines the logging interface for the group.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Group is a set of background tasks sharing one lifetime.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	logger  Logger
	running int
	stopped bool
}

var defaultGroup = sync.OnceValue(New)

// Default returns the process-wide group. It is never shut down.
func Default() *Group {
	return defaultGroup()
}

// New creates an empty group.
func New() *Group {
	ctx, cancel := context.WithCancel(context.Background())
	return &Group{
		ctx:    ctx,
		cancel: cancel,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger used to report task panics.
func (g *Group) SetLogger(logger Logger) {
	g.mu.Lock()
	g.logger = logger
	g.mu.Unlock()
}

// Go starts fn in a new goroutine. The context passed to fn is cancelled
// when the group shuts down. A panic in fn is logged and swallowed.
func (g *Group) Go(name string, fn func(ctx context.Context)) error {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return ErrShutdown
	}
	g.running++
	g.wg.Add(1)
	logger := g.logger
	g.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("background task panic recovered",
					"task", name,
					"panic", r,
				)
			}
			g.mu.Lock()
			g.running--
			g.mu.Unlock()
			g.wg.Done()
		}()

		logger.Debug("background task started", "task", name)
		fn(g.ctx)
		logger.Debug("background task stopped", "task", name)
	}()
	return nil
}

// Running returns the number of tasks that have not yet returned.
func (g *Group) Running() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Shutdown cancels every task and waits for them to return or for ctx to
// expire, whichever comes first. It is safe to call more than once.
func (g *Group) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.stopped = true
	g.mu.Unlock()
	g.cancel()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package reconnect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
)

// Logger defines the logging interface for the reconnect wrapper.
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

// generation pins one inner connection. A recovery replaces the pointer, so
// comparing pointers tells a caller whether someone else already recovered.
type generation struct {
	c   conn.Connection
	seq uint64

	closeOnce sync.Once
	closeErr  error
}

// close closes the pinned connection once. Close and a recovery may both
// reach the same generation.
func (g *generation) close() error {
	g.closeOnce.Do(func() { g.closeErr = g.c.Close() })
	return g.closeErr
}

// Connection is a conn.Connection that reconnects on transport failure.
type Connection struct {
	factory conn.Factory
	cfg     Config
	driver  string

	current    atomic.Pointer[generation]
	state      atomic.Int32
	failures   atomic.Uint32
	reconnects atomic.Uint64

	// recovering is a single-slot semaphore; holding it means running a
	// recovery. A channel lets waiters give up when their ctx expires.
	recovering chan struct{}

	closed    atomic.Bool
	closeCh   chan struct{}
	closeOnce sync.Once

	mu      sync.RWMutex
	logger  Logger
	onEvent func(Event)
}

// New creates the first inner connection from factory and wraps it.
func New(ctx context.Context, factory conn.Factory, cfg Config) (*Connection, error) {
	inner, err := factory.Create(ctx)
	if err != nil {
		return nil, err
	}
	return Wrap(inner, factory, cfg), nil
}

// Lazy returns a wrapper that has not connected yet. The first operation
// connects through the normal recovery loop, so a target that is down at
// startup is retried instead of failing construction.
func Lazy(factory conn.Factory, driver string, cfg Config) *Connection {
	return Wrap(unconnected{driver: driver}, factory, cfg)
}

// Wrap wraps an existing connection. factory is used for every reconnect.
func Wrap(inner conn.Connection, factory conn.Factory, cfg Config) *Connection {
	c := &Connection{
		factory:    factory,
		cfg:        cfg,
		driver:     inner.DriverName(),
		recovering: make(chan struct{}, 1),
		closeCh:    make(chan struct{}),
		logger:     noopLogger{},
	}
	c.current.Store(&generation{c: inner})
	c.state.Store(int32(StateConnected))
	return c
}

// SetLogger sets the logger for the wrapper.
func (c *Connection) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// SetOnEvent registers a callback for recovery transitions. It runs on the
// goroutine doing the recovery and should return quickly.
func (c *Connection) SetOnEvent(fn func(Event)) {
	c.mu.Lock()
	c.onEvent = fn
	c.mu.Unlock()
}

// State returns the current recovery state.
func (c *Connection) State() State {
	return State(c.state.Load())
}

// ConsecutiveFailures returns the number of failed create calls since the
// last successful connection.
func (c *Connection) ConsecutiveFailures() uint32 {
	return c.failures.Load()
}

// Reconnects returns how many times the inner connection has been replaced.
func (c *Connection) Reconnects() uint64 {
	return c.reconnects.Load()
}

// Inner returns the connection currently being delegated to.
func (c *Connection) Inner() conn.Connection {
	return c.current.Load().c
}

// DriverName implements conn.Connection.
func (c *Connection) DriverName() string {
	return c.driver
}

// Execute implements conn.Connection.
func (c *Connection) Execute(ctx context.Context, sql string, args ...any) (*conn.StatementResult, error) {
	return run(ctx, c, func(inner conn.Connection) (*conn.StatementResult, error) {
		return inner.Execute(ctx, sql, args...)
	})
}

// Query implements conn.Connection.
func (c *Connection) Query(ctx context.Context, sql string, args ...any) (*conn.QueryResult, error) {
	return run(ctx, c, func(inner conn.Connection) (*conn.QueryResult, error) {
		return inner.Query(ctx, sql, args...)
	})
}

// BeginTransaction implements conn.Connection.
func (c *Connection) BeginTransaction(ctx context.Context) (conn.Transaction, error) {
	return run(ctx, c, func(inner conn.Connection) (conn.Transaction, error) {
		return inner.BeginTransaction(ctx)
	})
}

// Close closes the inner connection and makes every later operation fail
// with ErrClosed. A recovery in progress is abandoned. Close is idempotent.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.closeOnce.Do(func() { close(c.closeCh) })
	return c.current.Load().close()
}

// IsClosed implements conn.Connection. It is also true in StateFailed so a
// pool holding the wrapper discards it.
func (c *Connection) IsClosed() bool {
	return c.closed.Load() || c.State() == StateFailed
}

// Reset rebuilds the inner connection regardless of the current state,
// running the usual retry loop. It is how a failed wrapper is revived.
func (c *Connection) Reset(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	if c.closed.Load() {
		return ErrClosed
	}

	c.state.Store(int32(StateReconnecting))
	c.failures.Store(0)
	c.emit(Event{Kind: EventDisconnected, Reason: "reset requested"})
	return c.reconnect(ctx, c.current.Load())
}

// run executes op against the current inner connection, recovering and
// retrying once when the failure is a lost connection.
func run[T any](ctx context.Context, c *Connection, op func(conn.Connection) (T, error)) (T, error) {
	var zero T

	gen, err := c.ready(ctx)
	if err != nil {
		return zero, err
	}

	res, err := op(gen.c)
	if err == nil || !c.shouldReconnect(ctx, err) {
		return res, err
	}

	c.getLogger().Warn("connection lost, reconnecting",
		"driver", c.driver,
		"error", err,
	)

	if rerr := c.recoverFrom(ctx, gen, err); rerr != nil {
		return zero, rerr
	}
	if !c.cfg.retryOperation {
		return zero, fmt.Errorf("%w: %w", ErrConnectionRecovered, err)
	}

	gen, rerr := c.ready(ctx)
	if rerr != nil {
		return zero, rerr
	}
	return op(gen.c)
}

// ready returns a live generation, recovering first when the inner
// connection is already known to be closed.
func (c *Connection) ready(ctx context.Context) (*generation, error) {
	for range 2 {
		if c.closed.Load() {
			return nil, ErrClosed
		}
		if c.State() == StateFailed {
			return nil, ErrReconnectFailed
		}

		gen := c.current.Load()
		if c.State() == StateConnected && !gen.c.IsClosed() {
			return gen, nil
		}
		if err := c.recoverFrom(ctx, gen, conn.ErrConnectionClosed); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrReconnectFailed, conn.ErrConnectionClosed)
}

func (c *Connection) shouldReconnect(ctx context.Context, err error) bool {
	switch {
	case conn.IsConnectionLoss(err):
		return true
	case errors.Is(err, conn.ErrTimeout):
		// Driver-side timeout. A caller deadline leaves ctx.Err set.
		return ctx.Err() == nil
	case errors.Is(err, conn.ErrQueryFailed):
		return c.cfg.retryOnQueryError
	default:
		return false
	}
}

// recoverFrom replaces seen unless another caller already has.
func (c *Connection) recoverFrom(ctx context.Context, seen *generation, cause error) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	if c.closed.Load() {
		return ErrClosed
	}
	if c.current.Load() != seen {
		if c.State() == StateFailed {
			return ErrReconnectFailed
		}
		return nil
	}
	if c.State() == StateFailed {
		return ErrReconnectFailed
	}

	c.state.Store(int32(StateReconnecting))
	c.emit(Event{Kind: EventDisconnected, Reason: cause.Error()})
	return c.reconnect(ctx, seen)
}

// reconnect closes old and runs the create loop: one immediate attempt,
// then up to maxRetries attempts each preceded by a backoff sleep. The
// caller holds the recovery slot.
func (c *Connection) reconnect(ctx context.Context, old *generation) error {
	if err := old.close(); err != nil {
		c.getLogger().Debug("closing broken connection", "driver", c.driver, "error", err)
	}

	attempts := uint32(1)
	inner, err := c.factory.Create(ctx)
	for n := uint32(1); err != nil && n <= c.cfg.maxRetries; n++ {
		c.failures.Add(1)
		if cerr := ctx.Err(); cerr != nil {
			return conn.FromContext(cerr)
		}

		c.emit(Event{Kind: EventReconnecting, Attempt: n, Reason: err.Error()})
		delay := c.cfg.backoff.CalculateDelay(n - 1)
		c.getLogger().Info("reconnect attempt failed, backing off",
			"driver", c.driver,
			"attempt", n,
			"max_retries", c.cfg.maxRetries,
			"delay", delay,
			"error", err,
		)

		if werr := c.sleep(ctx, delay); werr != nil {
			return werr
		}
		attempts++
		inner, err = c.factory.Create(ctx)
	}

	if err != nil {
		c.failures.Add(1)
		if cerr := ctx.Err(); cerr != nil {
			return conn.FromContext(cerr)
		}
		c.state.Store(int32(StateFailed))
		c.emit(Event{Kind: EventFailed, Attempt: attempts, Reason: err.Error()})
		c.getLogger().Error("reconnect failed",
			"driver", c.driver,
			"attempts", attempts,
			"error", err,
		)
		return &ExhaustedError{Attempts: attempts, Err: err}
	}

	next := &generation{c: inner, seq: old.seq + 1}
	c.current.Store(next)
	if c.closed.Load() {
		// Close may have run before the store and closed only old.
		_ = next.close()
		return ErrClosed
	}
	c.failures.Store(0)
	c.reconnects.Add(1)
	c.state.Store(int32(StateConnected))
	c.emit(Event{Kind: EventReconnected, Attempt: attempts})
	c.getLogger().Info("reconnected",
		"driver", c.driver,
		"attempts", attempts,
	)
	return nil
}

func (c *Connection) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return conn.FromContext(ctx.Err())
	case <-c.closeCh:
		return ErrClosed
	}
}

func (c *Connection) acquire(ctx context.Context) error {
	select {
	case c.recovering <- struct{}{}:
		return nil
	case <-ctx.Done():
		return conn.FromContext(ctx.Err())
	case <-c.closeCh:
		return ErrClosed
	}
}

func (c *Connection) release() {
	<-c.recovering
}

func (c *Connection) emit(ev Event) {
	ev.MaxAttempts = c.cfg.maxRetries
	ev.At = time.Now()

	c.mu.RLock()
	fn := c.onEvent
	c.mu.RUnlock()
	if fn == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.getLogger().Error("reconnect event handler panic recovered",
				"kind", ev.Kind,
				"panic", r,
			)
		}
	}()
	fn(ev)
}

func (c *Connection) getLogger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// unconnected stands in for the inner connection of a Lazy wrapper.
type unconnected struct {
	driver string
}

func (u unconnected) DriverName() string { return u.driver }

func (unconnected) Execute(context.Context, string, ...any) (*conn.StatementResult, error) {
	return nil, conn.ErrConnectionClosed
}

func (unconnected) Query(context.Context, string, ...any) (*conn.QueryResult, error) {
	return nil, conn.ErrConnectionClosed
}

func (unconnected) BeginTransaction(context.Context) (conn.Transaction, error) {
	return nil, conn.ErrConnectionClosed
}

func (unconnected) Close() error   { return nil }
func (unconnected) IsClosed() bool { return true }

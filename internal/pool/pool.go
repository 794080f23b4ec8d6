package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/background"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
)

// Logger defines the logging interface for the pool.
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

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the pool's logger.
func WithLogger(logger Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

// WithGroup sets the background group the reaper runs on. Defaults to
// background.Default().
func WithGroup(g *background.Group) Option {
	return func(p *Pool) { p.group = g }
}

// WithName sets the name used in log lines.
func WithName(name string) Option {
	return func(p *Pool) { p.name = name }
}

// idleConn is a connection waiting in the idle list.
type idleConn struct {
	c         conn.Connection
	createdAt time.Time
	idleSince time.Time
}

// Pool is a bounded set of connections to one target.
type Pool struct {
	cfg     Config
	factory conn.Factory
	logger  Logger
	group   *background.Group
	name    string

	// slots caps leased plus opening connections at MaxSize. Idle
	// connections hold no slot, so idle+active never exceeds MaxSize.
	slots *semaphore.Weighted

	// closeCtx is cancelled by Close to abort pending acquires.
	closeCtx    context.Context
	closeCancel context.CancelFunc
	reaperDone  chan struct{}

	mu      sync.Mutex
	idle    []idleConn
	active  int
	waiting int
	closed  bool
}

// New creates a pool. No connections are opened until Warm, Acquire or the
// first reaper pass.
func New(cfg Config, factory conn.Factory, opts ...Option) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:         cfg,
		factory:     factory,
		logger:      noopLogger{},
		name:        "default",
		slots:       semaphore.NewWeighted(int64(cfg.maxSize)),
		closeCtx:    ctx,
		closeCancel: cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.group == nil {
		p.group = background.Default()
	}
	p.startReaper()
	return p
}

// Config returns the pool's configuration.
func (p *Pool) Config() Config {
	return p.cfg
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.name
}

// Acquire leases a connection, reusing an idle one when possible.
//
// It waits up to the acquire timeout for a free slot, and never past ctx.
func (p *Pool) Acquire(ctx context.Context) (*PooledConnection, error) {
	if err := p.waitSlot(ctx); err != nil {
		return nil, err
	}

	for {
		ic, stale := p.popIdle(time.Now())
		p.closeAll(stale, "expired")
		if ic == nil {
			break
		}
		if conn.Validate(ctx, p.factory, ic.c) {
			return newLease(p, ic.c, ic.createdAt), nil
		}
		p.closeAll([]conn.Connection{ic.c}, "failed validation")
	}

	c, err := p.factory.Create(ctx)
	if err != nil {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
		p.slots.Release(1)

		p.logger.Warn("pool failed to open connection",
			"pool", p.name,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}

	p.logger.Debug("pool opened connection", "pool", p.name)
	return newLease(p, c, time.Now()), nil
}

// waitSlot blocks until a slot is free and counts it as active.
func (p *Pool) waitSlot(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.waiting++
	p.mu.Unlock()

	err := p.acquireSlot(ctx)

	p.mu.Lock()
	p.waiting--
	switch {
	case err != nil:
		p.mu.Unlock()
	case p.closed:
		p.mu.Unlock()
		p.slots.Release(1)
		return ErrPoolClosed
	default:
		p.active++
		p.mu.Unlock()
		return nil
	}

	switch {
	case p.closeCtx.Err() != nil:
		return ErrPoolClosed
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", conn.ErrCancelled, ctx.Err())
	default:
		p.logger.Warn("pool acquire timed out",
			"pool", p.name,
			"timeout", p.cfg.acquireTimeout,
		)
		return ErrAcquireTimeout
	}
}

func (p *Pool) acquireSlot(ctx context.Context) error {
	if p.cfg.acquireTimeout <= 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !p.slots.TryAcquire(1) {
			return conn.ErrTimeout
		}
		return nil
	}

	actx, cancel := context.WithTimeout(ctx, p.cfg.acquireTimeout)
	defer cancel()
	stop := context.AfterFunc(p.closeCtx, cancel)
	defer stop()

	return p.slots.Acquire(actx, 1)
}

// popIdle takes the oldest usable idle connection, collecting expired ones
// for the caller to close. Like the reaper, it keeps idle-timed-out
// connections while the pool is at MinSize. The caller's slot is already
// counted in active but holds no connection yet.
func (p *Pool) popIdle(now time.Time) (*idleConn, []conn.Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := len(p.idle) + p.active - 1
	var stale []conn.Connection
	for len(p.idle) > 0 {
		ic := p.idle[0]
		p.idle[0] = idleConn{}
		p.idle = p.idle[1:]

		expired := ic.c.IsClosed() || p.pastLifetime(ic.createdAt, now) ||
			(p.pastIdle(ic.idleSince, now) && total > p.cfg.minSize)
		if expired {
			stale = append(stale, ic.c)
			total--
			continue
		}
		return &ic, stale
	}
	return nil, stale
}

func (p *Pool) pastLifetime(createdAt, now time.Time) bool {
	return p.cfg.maxLifetime > 0 && now.Sub(createdAt) >= p.cfg.maxLifetime
}

func (p *Pool) pastIdle(idleSince, now time.Time) bool {
	return p.cfg.idleTimeout > 0 && now.Sub(idleSince) >= p.cfg.idleTimeout
}

// put returns a leased connection. Closed or over-age connections, and all
// connections after Close, are dropped.
func (p *Pool) put(c conn.Connection, createdAt time.Time, broken bool) {
	now := time.Now()

	p.mu.Lock()
	p.active--
	drop := broken || p.closed || c.IsClosed() || p.pastLifetime(createdAt, now)
	if !drop {
		p.idle = append(p.idle, idleConn{c: c, createdAt: createdAt, idleSince: now})
	}
	p.mu.Unlock()

	// Release after the idle push so the next waiter finds the connection.
	p.slots.Release(1)

	if drop {
		p.closeAll([]conn.Connection{c}, "released unusable")
	}
}

func (p *Pool) closeAll(conns []conn.Connection, reason string) {
	for _, c := range conns {
		if err := c.Close(); err != nil {
			p.logger.Debug("pool close connection",
				"pool", p.name,
				"reason", reason,
				"error", err,
			)
		}
	}
	if len(conns) > 0 {
		p.logger.Debug("pool dropped connections",
			"pool", p.name,
			"count", len(conns),
			"reason", reason,
		)
	}
}

// With acquires a connection, calls fn with it and releases it on every
// exit path, including a panic in fn.
func (p *Pool) With(ctx context.Context, fn func(c conn.Connection) error) error {
	lease, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()
	return fn(lease)
}

// Stats returns a consistent snapshot of the pool.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	idle := len(p.idle)
	return NewStats(idle+p.active, idle, p.active, p.waiting)
}

// CloseIdle closes every idle connection. Leased connections are untouched.
func (p *Pool) CloseIdle() {
	p.mu.Lock()
	conns := p.drainIdle()
	p.mu.Unlock()
	p.closeAll(conns, "close idle")
}

// drainIdle empties the idle list. Caller holds p.mu.
func (p *Pool) drainIdle() []conn.Connection {
	conns := make([]conn.Connection, len(p.idle))
	for i, ic := range p.idle {
		conns[i] = ic.c
	}
	p.idle = nil
	return conns
}

// Close stops the reaper, closes idle connections and fails pending and
// future acquires with ErrPoolClosed. Leased connections are closed when
// released. Close is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	conns := p.drainIdle()
	p.mu.Unlock()

	p.closeCancel()
	if p.reaperDone != nil {
		<-p.reaperDone
	}

	var errs []error
	for _, c := range conns {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	p.logger.Info("pool closed", "pool", p.name, "closed_idle", len(conns))
	return errors.Join(errs...)
}

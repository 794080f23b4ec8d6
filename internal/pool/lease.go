package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
)

// PooledConnection is an exclusive lease on one pooled connection.
//
// It implements conn.Connection; Close is the same as Release. A lease that
// saw a connection-loss error is discarded on release instead of being
// returned to the idle list.
type PooledConnection struct {
	pool      *Pool
	c         conn.Connection
	createdAt time.Time

	released atomic.Bool
	broken   atomic.Bool
}

func newLease(p *Pool, c conn.Connection, createdAt time.Time) *PooledConnection {
	return &PooledConnection{pool: p, c: c, createdAt: createdAt}
}

// Conn returns the underlying connection. It must not be used after
// Release.
func (l *PooledConnection) Conn() conn.Connection {
	return l.c
}

// CreatedAt returns when the underlying connection was opened.
func (l *PooledConnection) CreatedAt() time.Time {
	return l.createdAt
}

// Release returns the connection to the pool. Calling it more than once is
// a no-op, so it is safe to defer alongside an explicit call.
func (l *PooledConnection) Release() {
	if !l.released.CompareAndSwap(false, true) {
		return
	}
	l.pool.put(l.c, l.createdAt, l.broken.Load())
}

// Discard closes the connection and frees its slot instead of returning it
// to the idle list.
func (l *PooledConnection) Discard() {
	if !l.released.CompareAndSwap(false, true) {
		return
	}
	l.pool.put(l.c, l.createdAt, true)
}

// IsReleased reports whether Release or Discard has been called.
func (l *PooledConnection) IsReleased() bool {
	return l.released.Load()
}

// DriverName implements conn.Connection.
func (l *PooledConnection) DriverName() string {
	return l.c.DriverName()
}

// Execute implements conn.Connection.
func (l *PooledConnection) Execute(ctx context.Context, sql string, args ...any) (*conn.StatementResult, error) {
	if l.released.Load() {
		return nil, ErrLeaseReleased
	}
	res, err := l.c.Execute(ctx, sql, args...)
	l.observe(err)
	return res, err
}

// Query implements conn.Connection.
func (l *PooledConnection) Query(ctx context.Context, sql string, args ...any) (*conn.QueryResult, error) {
	if l.released.Load() {
		return nil, ErrLeaseReleased
	}
	res, err := l.c.Query(ctx, sql, args...)
	l.observe(err)
	return res, err
}

// BeginTransaction implements conn.Connection.
func (l *PooledConnection) BeginTransaction(ctx context.Context) (conn.Transaction, error) {
	if l.released.Load() {
		return nil, ErrLeaseReleased
	}
	tx, err := l.c.BeginTransaction(ctx)
	l.observe(err)
	return tx, err
}

// Close implements conn.Connection by releasing the lease.
func (l *PooledConnection) Close() error {
	l.Release()
	return nil
}

// IsClosed implements conn.Connection. It is true once released.
func (l *PooledConnection) IsClosed() bool {
	return l.released.Load() || l.c.IsClosed()
}

// observe marks the lease broken on connection loss, unless the connection
// reports it has already recovered.
func (l *PooledConnection) observe(err error) {
	if conn.IsConnectionLoss(err) && !errors.Is(err, conn.ErrRecovered) {
		l.broken.Store(true)
	}
}

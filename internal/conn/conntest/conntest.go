// Package conntest provides scriptable in-memory implementations of
// conn.Connection and conn.Factory for tests.
//
// A Factory can be told to fail its next N Create calls, or to fail always,
// and remembers every Connection it created so tests can kill them:
//
//	f := conntest.NewFactory("sqlite")
//	f.FailNext(errDown, errDown) // two failures, then success
//	c, err := f.Create(ctx)
//
// Both types are safe for concurrent use.
package conntest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
)

// Connection is a mock conn.Connection.
type Connection struct {
	id     int
	driver string

	mu        sync.Mutex
	closed    bool
	latency   time.Duration
	queryErr  error
	failNext  []error
	queries   int
	executes  int
	closes    int
	lastSQL   string
	lastArgs  []any
	txBegun   int
	committed int
}

// NewConnection returns an open mock connection for the given driver name.
func NewConnection(driver string) *Connection {
	return &Connection{driver: driver}
}

// ID returns the creation sequence number assigned by a Factory, or 0.
func (c *Connection) ID() int { return c.id }

// DriverName implements conn.Connection.
func (c *Connection) DriverName() string { return c.driver }

// SetLatency makes every Query and Execute take d, or until ctx is done.
func (c *Connection) SetLatency(d time.Duration) {
	c.mu.Lock()
	c.latency = d
	c.mu.Unlock()
}

// FailQueries makes every subsequent Query and Execute return err.
// Pass nil to clear.
func (c *Connection) FailQueries(err error) {
	c.mu.Lock()
	c.queryErr = err
	c.mu.Unlock()
}

// FailNext makes the next len(errs) operations return errs in order.
func (c *Connection) FailNext(errs ...error) {
	c.mu.Lock()
	c.failNext = append(c.failNext, errs...)
	c.mu.Unlock()
}

// Kill marks the connection closed without a Close call, the way a driver
// notices the server went away.
func (c *Connection) Kill() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Queries returns the number of Query calls that reached the mock.
func (c *Connection) Queries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queries
}

// Executes returns the number of Execute calls that reached the mock.
func (c *Connection) Executes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executes
}

// CloseCalls returns how many times Close was called.
func (c *Connection) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// LastSQL returns the statement and args of the most recent operation.
func (c *Connection) LastSQL() (string, []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSQL, c.lastArgs
}

// Commits returns the number of committed transactions.
func (c *Connection) Commits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed
}

// Transactions returns the number of transactions begun.
func (c *Connection) Transactions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txBegun
}

// Execute implements conn.Connection.
func (c *Connection) Execute(ctx context.Context, sql string, args ...any) (*conn.StatementResult, error) {
	if err := c.op(ctx, sql, args, false); err != nil {
		return nil, err
	}
	return &conn.StatementResult{AffectedRows: 1}, nil
}

// Query implements conn.Connection. It returns a single row holding 1.
func (c *Connection) Query(ctx context.Context, sql string, args ...any) (*conn.QueryResult, error) {
	start := time.Now()
	if err := c.op(ctx, sql, args, true); err != nil {
		return nil, err
	}
	res := conn.NewQueryResult([]conn.ColumnMeta{{Name: "1", DataType: "INTEGER"}})
	res.Rows = append(res.Rows, []any{int64(1)})
	res.ExecutionTime = time.Since(start)
	return res, nil
}

// BeginTransaction implements conn.Connection.
func (c *Connection) BeginTransaction(ctx context.Context) (conn.Transaction, error) {
	if err := c.op(ctx, "BEGIN", nil, false); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.txBegun++
	c.mu.Unlock()
	return &transaction{c: c}, nil
}

// Close implements conn.Connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	c.closed = true
	c.closes++
	c.mu.Unlock()
	return nil
}

// IsClosed implements conn.Connection.
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connection) op(ctx context.Context, sql string, args []any, query bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return conn.ErrConnectionClosed
	}
	if query {
		c.queries++
	} else {
		c.executes++
	}
	c.lastSQL, c.lastArgs = sql, args
	latency := c.latency
	var err error
	if len(c.failNext) > 0 {
		err = c.failNext[0]
		c.failNext = c.failNext[1:]
	} else {
		err = c.queryErr
	}
	c.mu.Unlock()

	if latency > 0 {
		t := time.NewTimer(latency)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}

var errTxDone = errors.New("conntest: transaction already finished")

type transaction struct {
	c    *Connection
	done bool
}

func (t *transaction) Execute(ctx context.Context, sql string, args ...any) (*conn.StatementResult, error) {
	return t.c.Execute(ctx, sql, args...)
}

func (t *transaction) Query(ctx context.Context, sql string, args ...any) (*conn.QueryResult, error) {
	return t.c.Query(ctx, sql, args...)
}

func (t *transaction) Commit(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.c.mu.Lock()
	t.c.committed++
	t.c.mu.Unlock()
	return nil
}

func (t *transaction) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}

// Factory is a mock conn.Factory.
type Factory struct {
	driver string

	mu       sync.Mutex
	script   []error
	always   error
	delay    time.Duration
	calls    int
	created  []*Connection
	validate func(conn.Connection) bool
	onCreate func(*Connection)
}

// NewFactory returns a factory that succeeds until told otherwise.
func NewFactory(driver string) *Factory {
	return &Factory{driver: driver}
}

// FailNext makes the next len(errs) Create calls return errs in order.
// A nil entry lets that call succeed.
func (f *Factory) FailNext(errs ...error) {
	f.mu.Lock()
	f.script = append(f.script, errs...)
	f.mu.Unlock()
}

// FailAlways makes every Create call fail with err once the FailNext script
// is used up. Pass nil to clear.
func (f *Factory) FailAlways(err error) {
	f.mu.Lock()
	f.always = err
	f.mu.Unlock()
}

// SetDelay makes Create take d, or until ctx is done.
func (f *Factory) SetDelay(d time.Duration) {
	f.mu.Lock()
	f.delay = d
	f.mu.Unlock()
}

// SetValidate installs the function used by Validate. Nil accepts all.
func (f *Factory) SetValidate(fn func(conn.Connection) bool) {
	f.mu.Lock()
	f.validate = fn
	f.mu.Unlock()
}

// OnCreate registers fn to configure each new connection before it is
// returned.
func (f *Factory) OnCreate(fn func(*Connection)) {
	f.mu.Lock()
	f.onCreate = fn
	f.mu.Unlock()
}

// Create implements conn.Factory.
func (f *Factory) Create(ctx context.Context) (conn.Connection, error) {
	f.mu.Lock()
	f.calls++
	var err error
	if len(f.script) > 0 {
		err = f.script[0]
		f.script = f.script[1:]
	} else {
		err = f.always
	}
	delay := f.delay
	onCreate := f.onCreate
	f.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if err != nil {
		return nil, err
	}

	c := NewConnection(f.driver)
	if onCreate != nil {
		onCreate(c)
	}

	f.mu.Lock()
	f.created = append(f.created, c)
	c.id = len(f.created)
	f.mu.Unlock()
	return c, nil
}

// Validate implements conn.Validator.
func (f *Factory) Validate(_ context.Context, c conn.Connection) bool {
	f.mu.Lock()
	fn := f.validate
	f.mu.Unlock()
	if fn == nil {
		return true
	}
	return fn(c)
}

// Calls returns the number of Create calls, successful or not.
func (f *Factory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Created returns every connection the factory has produced, oldest first.
func (f *Factory) Created() []*Connection {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Connection, len(f.created))
	copy(out, f.created)
	return out
}

// Last returns the most recently created connection, or nil.
func (f *Factory) Last() *Connection {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}

// Open returns the number of created connections that are not closed.
func (f *Factory) Open() int {
	f.mu.Lock()
	created := make([]*Connection, len(f.created))
	copy(created, f.created)
	f.mu.Unlock()

	n := 0
	for _, c := range created {
		if !c.IsClosed() {
			n++
		}
	}
	return n
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
)

// Database configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// memoryPath opens a private in-memory database.
	memoryPath = ":memory:"
)

// Config contains SQLite connection options.
// These map to the sqlite section of a target in config.yaml.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// The directory will be created if it doesn't exist.
	Path string

	// WALMode enables Write-Ahead Logging for better concurrent access.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int

	// StatementCacheSize caps prepared statements per connection.
	// Zero means DefaultStatementCacheSize.
	StatementCacheSize int
}

func (cfg Config) dsn() string {
	path := cfg.Path
	// See: https://github.com/mattn/go-sqlite3#connection-string
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode && path != memoryPath {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}
	return connStr
}

// Connection is one physical SQLite connection.
type Connection struct {
	db    *sql.DB
	c     *sql.Conn
	stmts *stmtCache
	path  string

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

// Open opens path and verifies it with a ping.
//
// It performs the following setup:
//  1. Creates the database directory if it doesn't exist
//  2. Opens the database file (creates if not present)
//  3. Configures WAL mode and busy timeout
//  4. Sets appropriate file permissions (0600)
//  5. Verifies the connection with a ping
func Open(ctx context.Context, cfg Config) (*Connection, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: path is required", ErrOpenFailed)
	}

	onDisk := cfg.Path != memoryPath
	if onDisk {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
			return nil, fmt.Errorf("%w: creating database directory: %w", ErrOpenFailed, err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}

	// One physical connection per Connection; the pool above owns the count.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	c, err := db.Conn(ctx)
	if err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, classify("connect", err))
	}
	if err := c.PingContext(ctx); err != nil {
		c.Close()  //nolint:errcheck // Best effort cleanup on error path
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, classify("ping", err))
	}

	if onDisk {
		_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // File may not exist until first write
	}

	return &Connection{
		db:    db,
		c:     c,
		stmts: newStmtCache(cfg.StatementCacheSize),
		path:  cfg.Path,
	}, nil
}

// Path returns the database path.
func (s *Connection) Path() string {
	return s.path
}

// DriverName implements conn.Connection.
func (s *Connection) DriverName() string {
	return DriverName
}

// Execute implements conn.Connection.
func (s *Connection) Execute(ctx context.Context, query string, args ...any) (*conn.StatementResult, error) {
	stmt, err := s.statement(ctx, query)
	if err != nil {
		return nil, err
	}
	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return nil, s.fail("execute", query, err)
	}
	return statementResult(res), nil
}

// Query implements conn.Connection.
func (s *Connection) Query(ctx context.Context, query string, args ...any) (*conn.QueryResult, error) {
	stmt, err := s.statement(ctx, query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, s.fail("query", query, err)
	}
	result, err := collect(rows)
	if err != nil {
		return nil, s.fail("query", query, err)
	}
	result.ExecutionTime = time.Since(start)
	return result, nil
}

// BeginTransaction implements conn.Connection.
func (s *Connection) BeginTransaction(ctx context.Context) (conn.Transaction, error) {
	if s.closed.Load() {
		return nil, conn.ErrConnectionClosed
	}
	tx, err := s.c.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.fail("begin", "", err)
	}
	return &transaction{owner: s, tx: tx}, nil
}

// Ping checks the connection is alive.
func (s *Connection) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return conn.ErrConnectionClosed
	}
	if err := s.c.PingContext(ctx); err != nil {
		return s.fail("ping", "", err)
	}
	return nil
}

// CachedStatements returns the number of prepared statements held.
func (s *Connection) CachedStatements() int {
	return s.stmts.len()
}

// Close implements conn.Connection. It closes cached statements first.
func (s *Connection) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.stmts.purge()
		s.closeErr = errors.Join(s.c.Close(), s.db.Close())
	})
	return s.closeErr
}

// IsClosed implements conn.Connection.
func (s *Connection) IsClosed() bool {
	return s.closed.Load()
}

func (s *Connection) statement(ctx context.Context, query string) (*sql.Stmt, error) {
	if s.closed.Load() {
		return nil, conn.ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, classify("prepare", err)
	}
	stmt, err := s.stmts.prepare(ctx, s.c, query)
	if err != nil {
		return nil, s.fail("prepare", "", err)
	}
	return stmt, nil
}

// fail classifies err and marks the connection closed on transport loss.
// A statement that failed is dropped from the cache.
func (s *Connection) fail(op, query string, err error) error {
	err = classify(op, err)
	if query != "" {
		s.stmts.forget(query)
	}
	if conn.IsConnectionLoss(err) {
		s.Close() //nolint:errcheck // Already reporting the original failure
	}
	return err
}

func statementResult(res sql.Result) *conn.StatementResult {
	out := &conn.StatementResult{}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		out.AffectedRows = uint64(n)
	}
	return out
}

// transaction is a conn.Transaction over *sql.Tx. Cached statements are
// rebound to the transaction with Tx.StmtContext.
type transaction struct {
	owner *Connection
	tx    *sql.Tx
}

func (t *transaction) Execute(ctx context.Context, query string, args ...any) (*conn.StatementResult, error) {
	stmt, err := t.owner.statement(ctx, query)
	if err != nil {
		return nil, err
	}
	res, err := t.tx.StmtContext(ctx, stmt).ExecContext(ctx, args...)
	if err != nil {
		return nil, t.owner.fail("execute", query, err)
	}
	return statementResult(res), nil
}

func (t *transaction) Query(ctx context.Context, query string, args ...any) (*conn.QueryResult, error) {
	stmt, err := t.owner.statement(ctx, query)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := t.tx.StmtContext(ctx, stmt).QueryContext(ctx, args...)
	if err != nil {
		return nil, t.owner.fail("query", query, err)
	}
	result, err := collect(rows)
	if err != nil {
		return nil, t.owner.fail("query", query, err)
	}
	result.ExecutionTime = time.Since(start)
	return result, nil
}

func (t *transaction) Commit(context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return t.owner.fail("commit", "", err)
	}
	return nil
}

func (t *transaction) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil {
		return t.owner.fail("rollback", "", err)
	}
	return nil
}

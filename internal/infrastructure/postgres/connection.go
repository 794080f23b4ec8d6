package postgres

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
)

// closeTimeout bounds the terminate message sent by Close.
const closeTimeout = 5 * time.Second

// Connection is one PostgreSQL session. pgx.Conn is not safe for concurrent
// use, so operations are serialised.
type Connection struct {
	mu     sync.Mutex
	pg     *pgx.Conn
	closed atomic.Bool
}

// Connect opens a session described by dsn.
func Connect(ctx context.Context, dsn string) (*Connection, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDSN, err)
	}
	pg, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, classify("connect", err)
	}
	return &Connection{pg: pg}, nil
}

// DriverName implements conn.Connection.
func (c *Connection) DriverName() string {
	return DriverName
}

// ServerVersion returns the server_version parameter reported at startup.
func (c *Connection) ServerVersion() string {
	return c.pg.PgConn().ParameterStatus("server_version")
}

// Execute implements conn.Connection.
func (c *Connection) Execute(ctx context.Context, sql string, args ...any) (*conn.StatementResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.IsClosed() {
		return nil, conn.ErrConnectionClosed
	}

	tag, err := c.pg.Exec(ctx, sql, args...)
	if err != nil {
		return nil, c.fail("execute", err)
	}
	return statementResult(tag), nil
}

// Query implements conn.Connection.
func (c *Connection) Query(ctx context.Context, sql string, args ...any) (*conn.QueryResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.IsClosed() {
		return nil, conn.ErrConnectionClosed
	}

	start := time.Now()
	rows, err := c.pg.Query(ctx, sql, args...)
	if err != nil {
		return nil, c.fail("query", err)
	}
	result, err := collect(c.pg, rows)
	if err != nil {
		return nil, c.fail("query", err)
	}
	result.ExecutionTime = time.Since(start)
	return result, nil
}

// BeginTransaction implements conn.Connection. The returned transaction
// holds no lock; callers must not use the connection concurrently with it.
func (c *Connection) BeginTransaction(ctx context.Context) (conn.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.IsClosed() {
		return nil, conn.ErrConnectionClosed
	}

	tx, err := c.pg.Begin(ctx)
	if err != nil {
		return nil, c.fail("begin", err)
	}
	return &transaction{owner: c, tx: tx}, nil
}

// Ping sends an empty statement to the server.
func (c *Connection) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.IsClosed() {
		return conn.ErrConnectionClosed
	}
	if err := c.pg.Ping(ctx); err != nil {
		return c.fail("ping", err)
	}
	return nil
}

// Close implements conn.Connection.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return c.pg.Close(ctx)
}

// IsClosed implements conn.Connection. pgx marks the session closed when
// the server goes away.
func (c *Connection) IsClosed() bool {
	return c.closed.Load() || c.pg.IsClosed()
}

func (c *Connection) fail(op string, err error) error {
	err = classify(op, err)
	if conn.IsConnectionLoss(err) {
		c.closed.Store(true)
	}
	return err
}

func statementResult(tag pgconn.CommandTag) *conn.StatementResult {
	n := tag.RowsAffected()
	if n < 0 {
		n = 0
	}
	return &conn.StatementResult{AffectedRows: uint64(n)}
}

// collect reads all rows and closes them.
func collect(pg *pgx.Conn, rows pgx.Rows) (*conn.QueryResult, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]conn.ColumnMeta, len(fields))
	for i, fd := range fields {
		typeName := fmt.Sprintf("oid:%d", fd.DataTypeOID)
		if t, ok := pg.TypeMap().TypeForOID(fd.DataTypeOID); ok {
			typeName = t.Name
		}
		columns[i] = conn.ColumnMeta{
			Name:     fd.Name,
			DataType: typeName,
			Nullable: true,
			Ordinal:  i,
		}
	}

	result := conn.NewQueryResult(columns)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tag := rows.CommandTag()
	if !tag.Select() && tag.RowsAffected() > 0 {
		result.AffectedRows = uint64(tag.RowsAffected())
	}
	return result, nil
}

type transaction struct {
	owner *Connection
	tx    pgx.Tx
}

func (t *transaction) Execute(ctx context.Context, sql string, args ...any) (*conn.StatementResult, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return nil, t.owner.fail("execute", err)
	}
	return statementResult(tag), nil
}

func (t *transaction) Query(ctx context.Context, sql string, args ...any) (*conn.QueryResult, error) {
	start := time.Now()
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, t.owner.fail("query", err)
	}
	result, err := collect(t.owner.pg, rows)
	if err != nil {
		return nil, t.owner.fail("query", err)
	}
	result.ExecutionTime = time.Since(start)
	return result, nil
}

func (t *transaction) Commit(ctx context.Context) error {
	return t.owner.fail("commit", t.tx.Commit(ctx))
}

func (t *transaction) Rollback(ctx context.Context) error {
	return t.owner.fail("rollback", t.tx.Rollback(ctx))
}

package conn

import "context"

// Connection is an open handle to a database.
//
// Args are positional parameters for the driver's placeholder syntax
// (? for SQLite, $1 for PostgreSQL).
type Connection interface {
	// DriverName identifies the engine, e.g. "sqlite" or "postgres".
	DriverName() string

	// Execute runs a statement that modifies data (INSERT/UPDATE/DELETE/DDL).
	Execute(ctx context.Context, sql string, args ...any) (*StatementResult, error)

	// Query runs a statement that returns rows.
	Query(ctx context.Context, sql string, args ...any) (*QueryResult, error)

	// BeginTransaction starts a transaction. Drivers that cannot provide
	// transactions return ErrNotSupported.
	BeginTransaction(ctx context.Context) (Transaction, error)

	// Close releases the connection. Calling Close twice is not an error.
	Close() error

	// IsClosed reports whether the connection has been closed, either by
	// Close or because the driver detected the server went away.
	IsClosed() bool
}

// Transaction is a database transaction bound to one Connection.
type Transaction interface {
	Execute(ctx context.Context, sql string, args ...any) (*StatementResult, error)
	Query(ctx context.Context, sql string, args ...any) (*QueryResult, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Factory creates new connections to one logical database target.
//
// Create may be called any number of times and each call may fail.
type Factory interface {
	Create(ctx context.Context) (Connection, error)
}

// Validator is an optional interface a Factory can implement to check an
// idle connection before the pool hands it out again.
type Validator interface {
	Validate(ctx context.Context, c Connection) bool
}

// FactoryFunc adapts an ordinary function to the Factory interface.
type FactoryFunc func(ctx context.Context) (Connection, error)

// Create calls f(ctx).
func (f FactoryFunc) Create(ctx context.Context) (Connection, error) {
	return f(ctx)
}

// Validate reports whether c is still usable. A closed connection is never
// usable; otherwise the factory's Validator is consulted if it has one.
func Validate(ctx context.Context, factory Factory, c Connection) bool {
	if c == nil || c.IsClosed() {
		return false
	}
	if v, ok := factory.(Validator); ok {
		return v.Validate(ctx, c)
	}
	return true
}

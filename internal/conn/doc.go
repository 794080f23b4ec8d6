// Package conn defines the database connection capability shared by the
// pool, reconnect and health packages.
//
// Drivers for individual engines (SQLite, PostgreSQL, ...) implement
// Connection and Factory. Everything above this package depends only on
// these interfaces, never on a concrete driver type, so drivers are
// interchangeable and the resilience logic can be exercised with the mocks
// in package conntest.
//
// # Error Taxonomy
//
// Errors returned by drivers should wrap one of the sentinels in errors.go
// so callers can tell a lost connection from an application error:
//
//	res, err := c.Query(ctx, "SELECT * FROM users WHERE id = ?", 42)
//	if conn.IsConnectionLoss(err) {
//	    // transport failure, safe to reconnect
//	}
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. The pool never hands the
// same connection to two callers at once, but health checks and the
// reconnect wrapper may call IsClosed concurrently with other operations.
package conn

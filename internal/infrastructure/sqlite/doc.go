// Package sqlite implements conn.Connection and conn.Factory on top of
// github.com/mattn/go-sqlite3.
//
// Each Connection owns exactly one physical SQLite connection (a *sql.Conn
// taken from a private *sql.DB capped at one open connection), so the pool
// above it decides how many handles exist, not database/sql.
//
// This package manages:
//   - Opening the file with WAL mode, busy timeout and foreign keys
//   - A per-connection LRU cache of prepared statements
//   - Mapping driver errors onto the conn error taxonomy
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	factory := sqlite.NewFactory(sqlite.Config{
//	    Path:        "/var/lib/dbkeeper/local.db",
//	    WALMode:     true,
//	    BusyTimeout: 5,
//	})
//	c, err := factory.Create(ctx)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	res, err := c.Query(ctx, "SELECT id, name FROM users WHERE id = ?", 42)
//
// Use Path ":memory:" for a private in-memory database (tests).
package sqlite

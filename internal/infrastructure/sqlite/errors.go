package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
)

// DriverName is returned by Connection.DriverName.
const DriverName = "sqlite"

// ErrOpenFailed is returned when the database file cannot be opened.
var ErrOpenFailed = errors.New("sqlite: open failed")

// classify wraps a driver error in the matching conn sentinel.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("sqlite %s: %w", op, conn.FromContext(err))
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("sqlite %s: %w: %w", op, conn.ErrConnectionLost, err)
	}

	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code {
		case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
			return fmt.Errorf("sqlite %s: %w: %w", op, conn.ErrConnectionLost, err)
		case sqlite3.ErrInterrupt:
			return fmt.Errorf("sqlite %s: %w: %w", op, conn.ErrCancelled, err)
		}
	}
	return fmt.Errorf("sqlite %s: %w: %w", op, conn.ErrQueryFailed, err)
}

package conn

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
)

// Errors shared by every driver and by the layers built on top of them.
//
// Use errors.Is() to check for these errors in calling code:
//
//	if errors.Is(err, conn.ErrConnectionClosed) {
//	    // the handle was closed, get a new one
//	}
var (
	// ErrConnectionClosed is returned when an operation is attempted on a
	// closed connection.
	ErrConnectionClosed = errors.New("conn: connection is closed")

	// ErrConnectionLost is returned when the driver reports an I/O failure
	// talking to the server.
	ErrConnectionLost = errors.New("conn: connection lost")

	// ErrQueryFailed is returned when the server rejected a statement.
	// The connection itself is still usable.
	ErrQueryFailed = errors.New("conn: query failed")

	// ErrNotSupported is returned when the driver declines a capability.
	ErrNotSupported = errors.New("conn: not supported")

	// ErrTimeout is returned when an operation exceeded its deadline.
	ErrTimeout = errors.New("conn: timed out")

	// ErrCancelled is returned when the caller cancelled an in-flight wait.
	ErrCancelled = errors.New("conn: cancelled")

	// ErrRecovered wraps a connection-loss error that a self-healing
	// connection has already recovered from. The connection is usable again
	// even though IsConnectionLoss matches the error.
	ErrRecovered = errors.New("conn: connection recovered, operation not retried")
)

// IsConnectionLoss reports whether err means the transport to the server is
// gone, as opposed to an SQL or application error.
//
// Besides ErrConnectionClosed and ErrConnectionLost it recognises the
// standard library's driver.ErrBadConn, sql.ErrConnDone, io.EOF,
// io.ErrUnexpectedEOF and net.Error values that drivers commonly leak.
func IsConnectionLoss(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectionClosed) || errors.Is(err, ErrConnectionLost) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	// context.DeadlineExceeded satisfies net.Error; a caller deadline is
	// not a dead transport.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// FromContext maps a context error to the taxonomy: deadlines become
// ErrTimeout and cancellations become ErrCancelled. Other errors are
// returned unchanged.
func FromContext(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Join(ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return errors.Join(ErrCancelled, err)
	default:
		return err
	}
}

package reconnect

import (
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
)

var (
	// ErrRetriesExhausted is returned by the operation that triggered a
	// recovery which ran out of attempts. It wraps the last factory error.
	ErrRetriesExhausted = errors.New("reconnect: connection lost, giving up")

	// ErrReconnectFailed is returned by every operation once the wrapper is
	// in the failed state. Call Reset to try again.
	ErrReconnectFailed = errors.New("reconnect: connection failed")

	// ErrConnectionRecovered is returned when the connection was rebuilt but
	// the operation was not retried (WithRetryOperation(false)). It wraps the
	// error the operation originally failed with. It is conn.ErrRecovered, so
	// layers that only know package conn can tell the wrapper is healthy.
	ErrConnectionRecovered = conn.ErrRecovered

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("reconnect: connection closed")
)

// ExhaustedError is the concrete error behind ErrRetriesExhausted. It
// records how many create calls were made.
type ExhaustedError struct {
	Attempts uint32
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrRetriesExhausted, e.Attempts, e.Err)
}

// Unwrap exposes both ErrRetriesExhausted and the last factory error.
func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Err}
}

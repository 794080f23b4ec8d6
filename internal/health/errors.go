package health

import "errors"

var (
	// ErrPingConnectionClosed is returned when the connection was closed
	// before or during the ping.
	ErrPingConnectionClosed = errors.New("health: connection is closed")

	// ErrPingQueryFailed is returned when the ping query itself failed.
	ErrPingQueryFailed = errors.New("health: ping query failed")

	// ErrPingTimeout is returned when the ping did not finish in time.
	ErrPingTimeout = errors.New("health: ping timed out")

	// ErrAlreadyRunning is returned by Start and Run on a running checker.
	ErrAlreadyRunning = errors.New("health: checker already running")

	// ErrInvalidStatus is returned when decoding an unknown status name.
	ErrInvalidStatus = errors.New("health: invalid status")
)

package pool

import (
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
)

var (
	// ErrInvalidConfig is returned by NewConfig for impossible sizes.
	ErrInvalidConfig = errors.New("pool: invalid config")

	// ErrAcquireTimeout is returned when no connection became available
	// within the acquire timeout. It wraps conn.ErrTimeout.
	ErrAcquireTimeout = fmt.Errorf("pool: pool busy: %w", conn.ErrTimeout)

	// ErrCreateFailed wraps a factory error raised while acquiring.
	ErrCreateFailed = errors.New("pool: cannot reach database")

	// ErrPoolClosed is returned by Acquire after Close.
	ErrPoolClosed = errors.New("pool: pool is closed")

	// ErrLeaseReleased is returned by operations on a released lease.
	ErrLeaseReleased = errors.New("pool: connection already released")
)

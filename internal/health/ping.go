package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
)

const selectOne = "SELECT 1"

// PingQuery returns the round-trip query used to ping driver. SQLite,
// PostgreSQL, MySQL and SQL Server all accept SELECT 1, so it is currently
// the same for every driver.
func PingQuery(driver string) string {
	return selectOne
}

// Ping runs the driver's ping query on c and returns the round-trip time.
// A closed connection fails at once with ErrPingConnectionClosed.
func Ping(ctx context.Context, c conn.Connection) (time.Duration, error) {
	if c.IsClosed() {
		return 0, ErrPingConnectionClosed
	}

	start := time.Now()
	_, err := c.Query(ctx, PingQuery(c.DriverName()))
	latency := time.Since(start)

	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, conn.ErrTimeout):
			return latency, fmt.Errorf("%w: %w", ErrPingTimeout, err)
		case errors.Is(err, conn.ErrConnectionClosed):
			return latency, fmt.Errorf("%w: %w", ErrPingConnectionClosed, err)
		default:
			return latency, fmt.Errorf("%w: %w", ErrPingQueryFailed, err)
		}
	}
	return latency, nil
}

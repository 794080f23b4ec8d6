package supervisor

import (
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/health"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/pool"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/reconnect"
)

var (
	// ErrUnknownTarget is returned for a target name not in the config.
	ErrUnknownTarget = errors.New("supervisor: unknown target")

	// ErrUnknownDriver is returned when a target names an unsupported driver.
	ErrUnknownDriver = errors.New("supervisor: unknown driver")

	// ErrUnknownCommand is returned for an unrecognised MQTT command.
	ErrUnknownCommand = errors.New("supervisor: unknown command")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("supervisor: already started")
)

// Describe turns an error from the pool, reconnect or health layers into a
// short message for operators. It returns "" for nil.
func Describe(err error) string {
	var exhausted *reconnect.ExhaustedError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &exhausted):
		return fmt.Sprintf("connection lost, giving up after %d attempts", exhausted.Attempts)
	case errors.Is(err, pool.ErrAcquireTimeout):
		return "pool busy"
	case errors.Is(err, pool.ErrCreateFailed):
		return "cannot reach database"
	case errors.Is(err, reconnect.ErrReconnectFailed):
		return "connection lost, reset required"
	case errors.Is(err, reconnect.ErrConnectionRecovered):
		return "reconnected, operation not retried"
	case errors.Is(err, pool.ErrPoolClosed), errors.Is(err, reconnect.ErrClosed):
		return "shutting down"
	case errors.Is(err, health.ErrPingTimeout):
		return "health check timed out"
	case errors.Is(err, health.ErrPingConnectionClosed):
		return "connection closed"
	case errors.Is(err, conn.ErrTimeout):
		return "timed out"
	case errors.Is(err, conn.ErrCancelled):
		return "cancelled"
	case conn.IsConnectionLoss(err):
		return "connection lost"
	case errors.Is(err, conn.ErrQueryFailed), errors.Is(err, health.ErrPingQueryFailed):
		return "query failed"
	default:
		return err.Error()
	}
}

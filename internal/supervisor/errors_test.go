package supervisor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/health"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/pool"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/reconnect"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"exhausted", &reconnect.ExhaustedError{Attempts: 4, Err: conn.ErrConnectionLost}, "connection lost, giving up after 4 attempts"},
		{"wrapped exhausted", fmt.Errorf("%w: %w", health.ErrPingQueryFailed, &reconnect.ExhaustedError{Attempts: 1, Err: errors.New("refused")}), "connection lost, giving up after 1 attempts"},
		{"pool busy", pool.ErrAcquireTimeout, "pool busy"},
		{"create failed", fmt.Errorf("%w: %w", pool.ErrCreateFailed, conn.ErrConnectionLost), "cannot reach database"},
		{"failed wrapper", reconnect.ErrReconnectFailed, "connection lost, reset required"},
		{"recovered", fmt.Errorf("%w: %w", reconnect.ErrConnectionRecovered, conn.ErrConnectionLost), "reconnected, operation not retried"},
		{"pool closed", pool.ErrPoolClosed, "shutting down"},
		{"wrapper closed", reconnect.ErrClosed, "shutting down"},
		{"ping timeout", health.ErrPingTimeout, "health check timed out"},
		{"ping closed", health.ErrPingConnectionClosed, "connection closed"},
		{"timeout", conn.ErrTimeout, "timed out"},
		{"cancelled", conn.ErrCancelled, "cancelled"},
		{"lost", fmt.Errorf("%w: broken pipe", conn.ErrConnectionLost), "connection lost"},
		{"query failed", conn.ErrQueryFailed, "query failed"},
		{"ping query failed", health.ErrPingQueryFailed, "query failed"},
		{"other", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.err); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

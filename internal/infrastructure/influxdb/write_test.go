package influxdb

import (
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

func TestPoints(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	tests := []struct {
		name  string
		point *write.Point
		want  string
	}{
		{
			name: "health",
			point: healthPoint(HealthSample{
				Target: "local", Driver: "sqlite", Status: "degraded",
				Latency: 1500 * time.Microsecond, ConsecutiveFailures: 0, Success: true, At: at,
			}),
			want: "db_health,driver=sqlite,status=degraded,target=local failures=0i,latency_ms=1.5,success=true 1700000000000000000",
		},
		{
			name:  "pool",
			point: poolPoint(PoolSample{Target: "local", Total: 4, Idle: 1, Active: 3, Waiting: 2, Utilization: 0.75, At: at}),
			want:  "db_pool,target=local active=3i,idle=1i,total=4i,utilization=0.75,waiting=2i 1700000000000000000",
		},
		{
			name:  "reconnect",
			point: reconnectPoint("local", "failed", 3, at),
			want:  "db_reconnect,kind=failed,target=local attempt=3i 1700000000000000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.TrimSpace(write.PointToLineProtocol(tt.point, time.Nanosecond))
			if got != tt.want {
				t.Errorf("line = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTimestampOrNow(t *testing.T) {
	if timestampOrNow(time.Time{}).IsZero() {
		t.Error("timestampOrNow(zero) returned zero")
	}
	at := time.Unix(10, 0)
	if !timestampOrNow(at).Equal(at) {
		t.Error("timestampOrNow(at) changed the time")
	}
}

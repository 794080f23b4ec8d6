package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by dbkeeper.
const (
	MeasurementHealth    = "db_health"
	MeasurementPool      = "db_pool"
	MeasurementReconnect = "db_reconnect"
)

// HealthSample is one health check outcome for a target.
type HealthSample struct {
	Target              string
	Driver              string
	Status              string
	Latency             time.Duration
	ConsecutiveFailures int
	Success             bool
	At                  time.Time
}

// PoolSample is a snapshot of one target's pool.
type PoolSample struct {
	Target      string
	Total       int
	Idle        int
	Active      int
	Waiting     int
	Utilization float64
	At          time.Time
}

// WriteHealth queues one health check result.
//
// Example:
//
//	client.WriteHealth(influxdb.HealthSample{
//	    Target: "orders-db", Driver: "postgres", Status: "healthy",
//	    Latency: 4 * time.Millisecond, Success: true, At: time.Now(),
//	})
func (c *Client) WriteHealth(s HealthSample) {
	c.write(healthPoint(s))
}

// WritePoolStats queues one pool snapshot.
func (c *Client) WritePoolStats(s PoolSample) {
	c.write(poolPoint(s))
}

// WriteReconnectEvent queues one reconnect state change.
func (c *Client) WriteReconnectEvent(target, kind string, attempt int, at time.Time) {
	c.write(reconnectPoint(target, kind, attempt, at))
}

func healthPoint(s HealthSample) *write.Point {
	return write.NewPoint(
		MeasurementHealth,
		map[string]string{
			"target": s.Target,
			"driver": s.Driver,
			"status": s.Status,
		},
		map[string]any{
			"latency_ms": float64(s.Latency.Microseconds()) / 1000,
			"failures":   s.ConsecutiveFailures,
			"success":    s.Success,
		},
		timestampOrNow(s.At),
	)
}

func poolPoint(s PoolSample) *write.Point {
	return write.NewPoint(
		MeasurementPool,
		map[string]string{
			"target": s.Target,
		},
		map[string]any{
			"total":       s.Total,
			"idle":        s.Idle,
			"active":      s.Active,
			"waiting":     s.Waiting,
			"utilization": s.Utilization,
		},
		timestampOrNow(s.At),
	)
}

func reconnectPoint(target, kind string, attempt int, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementReconnect,
		map[string]string{
			"target": target,
			"kind":   kind,
		},
		map[string]any{
			"attempt": attempt,
		},
		timestampOrNow(at),
	)
}

func timestampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

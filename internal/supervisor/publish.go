package supervisor

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/health"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/pool"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/reconnect"
)

// HealthPayload is the retained message on a target's health topic.
type HealthPayload struct {
	Target              string    `json:"target"`
	Driver              string    `json:"driver"`
	Status              string    `json:"status"`
	State               string    `json:"state"`
	LatencyMs           float64   `json:"latency_ms"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
	Error               string    `json:"error,omitempty"`
	CheckedAt           time.Time `json:"checked_at"`
}

// PoolPayload is the retained message on a target's pool topic.
type PoolPayload struct {
	Target      string    `json:"target"`
	Total       int       `json:"total"`
	Idle        int       `json:"idle"`
	Active      int       `json:"active"`
	Waiting     int       `json:"waiting"`
	Utilization float64   `json:"utilization"`
	At          time.Time `json:"at"`
}

// TargetStatus is a point-in-time view of one target. Health is nil until
// the first check has run.
type TargetStatus struct {
	Name       string         `json:"name"`
	Driver     string         `json:"driver"`
	State      string         `json:"state"`
	Reconnects uint64         `json:"reconnects"`
	Health     *HealthPayload `json:"health,omitempty"`
	Pool       PoolPayload    `json:"pool"`
}

// EventPayload is a message on a target's events topic.
type EventPayload struct {
	ID     string `json:"id"`
	Target string `json:"target"`
	reconnect.Event
}

func newHealthPayload(t *Target, res health.Result) HealthPayload {
	return HealthPayload{
		Target:              t.Name,
		Driver:              t.Driver,
		Status:              res.Status.String(),
		State:               t.monitor.State().String(),
		LatencyMs:           float64(res.Latency.Microseconds()) / 1000,
		ConsecutiveFailures: res.ConsecutiveFailures,
		Error:               Describe(res.Err),
		CheckedAt:           res.CheckedAt,
	}
}

func newPoolPayload(name string, st pool.Stats, at time.Time) PoolPayload {
	return PoolPayload{
		Target:      name,
		Total:       st.Total,
		Idle:        st.Idle,
		Active:      st.Active,
		Waiting:     st.Waiting,
		Utilization: st.Utilization(),
		At:          at,
	}
}

// onResult fans one health result out to MQTT and InfluxDB.
func (s *Supervisor) onResult(res health.Result) {
	t := s.targets[res.Target]
	if t == nil {
		return
	}
	stats := t.pool.Stats()
	hp := newHealthPayload(t, res)
	pp := newPoolPayload(t.Name, stats, res.CheckedAt)

	if s.publisher != nil {
		topics := mqtt.Topics{}
		if err := s.publisher.PublishJSON(topics.TargetHealth(t.Name), hp, true); err != nil {
			s.logger.Debug("health publish failed", "target", t.Name, "error", err)
		}
		if err := s.publisher.PublishJSON(topics.TargetPool(t.Name), pp, true); err != nil {
			s.logger.Debug("pool publish failed", "target", t.Name, "error", err)
		}
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(ChannelHealth, t.Name, hp)
		s.broadcaster.Broadcast(ChannelPool, t.Name, pp)
	}

	if s.metrics != nil {
		s.metrics.WriteHealth(influxdb.HealthSample{
			Target:              t.Name,
			Driver:              t.Driver,
			Status:              res.Status.String(),
			Latency:             res.Latency,
			ConsecutiveFailures: int(res.ConsecutiveFailures),
			Success:             res.IsSuccess(),
			At:                  res.CheckedAt,
		})
		s.metrics.WritePoolStats(influxdb.PoolSample{
			Target:      t.Name,
			Total:       stats.Total,
			Idle:        stats.Idle,
			Active:      stats.Active,
			Waiting:     stats.Waiting,
			Utilization: stats.Utilization(),
			At:          res.CheckedAt,
		})
	}
}

// eventHandler returns the reconnect event hook for one target. Pooled
// connections and the monitor share it.
func (s *Supervisor) eventHandler(name string) func(reconnect.Event) {
	return func(ev reconnect.Event) {
		if ev.Kind == reconnect.EventFailed {
			s.logger.Error("target recovery gave up",
				"target", name,
				"attempts", ev.Attempt,
				"reason", ev.Reason,
			)
		}
		payload := EventPayload{ID: uuid.NewString(), Target: name, Event: ev}
		if s.publisher != nil {
			if err := s.publisher.PublishJSON(mqtt.Topics{}.TargetEvents(name), payload, false); err != nil {
				s.logger.Debug("event publish failed", "target", name, "error", err)
			}
		}
		if s.broadcaster != nil {
			s.broadcaster.Broadcast(ChannelEvent, name, payload)
		}
		if s.metrics != nil {
			s.metrics.WriteReconnectEvent(name, string(ev.Kind), int(ev.Attempt), ev.At)
		}
	}
}

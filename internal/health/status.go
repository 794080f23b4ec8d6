package health

import (
	"fmt"
	"time"
)

// Status is the health classification of a connection.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Default latency thresholds.
const (
	DefaultHealthyMs  = 100
	DefaultDegradedMs = 500
)

// Thresholds are the latency bounds for healthy and degraded.
type Thresholds struct {
	healthy  time.Duration
	degraded time.Duration
}

// NewThresholds returns thresholds in milliseconds. Degraded is raised to
// healthy when given lower.
func NewThresholds(healthyMs, degradedMs uint64) Thresholds {
	return Thresholds{
		healthy:  time.Duration(healthyMs) * time.Millisecond,
		degraded: time.Duration(max(degradedMs, healthyMs)) * time.Millisecond,
	}
}

// DefaultThresholds returns 100ms / 500ms.
func DefaultThresholds() Thresholds {
	return NewThresholds(DefaultHealthyMs, DefaultDegradedMs)
}

// Healthy returns the upper bound for StatusHealthy.
func (t Thresholds) Healthy() time.Duration { return t.healthy }

// Degraded returns the upper bound for StatusDegraded.
func (t Thresholds) Degraded() time.Duration { return t.degraded }

// Classify maps a latency to a status.
func (t Thresholds) Classify(latency time.Duration) Status {
	switch {
	case latency <= t.healthy:
		return StatusHealthy
	case latency <= t.degraded:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

// FromLatency classifies latency with the default thresholds.
func FromLatency(latency time.Duration) Status {
	return DefaultThresholds().Classify(latency)
}

// FromLatencyWithThresholds classifies latency with t.
func FromLatencyWithThresholds(latency time.Duration, t Thresholds) Status {
	return t.Classify(latency)
}

// IsUsable reports whether queries should still be sent (healthy or degraded).
func (s Status) IsUsable() bool {
	return s == StatusHealthy || s == StatusDegraded
}

// IsHealthy reports whether s is StatusHealthy.
func (s Status) IsHealthy() bool {
	return s == StatusHealthy
}

func (s Status) String() string {
	return string(s)
}

// UnmarshalText implements encoding.TextUnmarshaler, rejecting unknown names.
func (s *Status) UnmarshalText(text []byte) error {
	switch v := Status(text); v {
	case StatusHealthy, StatusDegraded, StatusUnhealthy:
		*s = v
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, text)
	}
}

package reconnect

import (
	"math"
	"math/rand/v2"
	"time"
)

// Default backoff bounds.
const (
	DefaultInitialDelayMs = 100
	DefaultMaxDelayMs     = 30_000
	DefaultMultiplier     = 2.0
)

// BackoffStrategy computes exponentially growing retry delays.
//
// It is a stateless value: the attempt number is passed to CalculateDelay
// and builder methods return modified copies.
type BackoffStrategy struct {
	initialMs  uint64
	maxMs      uint64
	multiplier float64
	jitter     bool
}

// NewBackoff returns a strategy starting at initialMs and capped at maxMs.
// Initial is raised to at least 1ms and max to at least initial.
func NewBackoff(initialMs, maxMs uint64) BackoffStrategy {
	initialMs = max(initialMs, 1)
	return BackoffStrategy{
		initialMs:  initialMs,
		maxMs:      max(maxMs, initialMs),
		multiplier: DefaultMultiplier,
	}
}

// DefaultBackoff returns 100ms initial, 30s max, doubling, no jitter.
func DefaultBackoff() BackoffStrategy {
	return NewBackoff(DefaultInitialDelayMs, DefaultMaxDelayMs)
}

// WithMultiplier sets the growth factor. Values below 1.0 are raised to 1.0.
func (b BackoffStrategy) WithMultiplier(m float64) BackoffStrategy {
	if math.IsNaN(m) || m < 1.0 {
		m = 1.0
	}
	b.multiplier = m
	return b
}

// WithJitter enables a random ±25% spread on every delay.
func (b BackoffStrategy) WithJitter(jitter bool) BackoffStrategy {
	b.jitter = jitter
	return b
}

// CalculateDelay returns the delay before retry number attempt, counting
// from zero: initial * multiplier^attempt, capped at the max delay.
//
// With jitter the result lies in [0.75*d, 1.25*d] where d is the capped
// delay, so it never exceeds 1.25 times the max.
func (b BackoffStrategy) CalculateDelay(attempt uint32) time.Duration {
	raw := float64(b.initialMs) * math.Pow(b.multiplier, float64(attempt))

	cappedMs := b.maxMs
	if raw < float64(b.maxMs) {
		cappedMs = uint64(raw)
	}

	if b.jitter {
		spread := cappedMs / 4
		if spread > 0 {
			cappedMs = cappedMs - spread + rand.Uint64N(2*spread+1)
		}
	}

	return time.Duration(cappedMs) * time.Millisecond
}

// Reset is a no-op. BackoffStrategy keeps no state between attempts.
func (b BackoffStrategy) Reset() {}

// InitialDelay returns the delay for attempt zero.
func (b BackoffStrategy) InitialDelay() time.Duration {
	return time.Duration(b.initialMs) * time.Millisecond
}

// MaxDelay returns the cap applied before jitter.
func (b BackoffStrategy) MaxDelay() time.Duration {
	return time.Duration(b.maxMs) * time.Millisecond
}

// Multiplier returns the growth factor.
func (b BackoffStrategy) Multiplier() float64 {
	return b.multiplier
}

// HasJitter reports whether jitter is enabled.
func (b BackoffStrategy) HasJitter() bool {
	return b.jitter
}

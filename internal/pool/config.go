package pool

import (
	"fmt"
	"time"
)

// Config defaults.
const (
	DefaultMinSize        = 1
	DefaultMaxSize        = 10
	DefaultAcquireTimeout = 30 * time.Second
	DefaultIdleTimeout    = 10 * time.Minute
	DefaultReapInterval   = 30 * time.Second
)

// Config holds pool sizing and timeouts. It is a value; the With methods
// return modified copies.
type Config struct {
	minSize        int
	maxSize        int
	acquireTimeout time.Duration
	idleTimeout    time.Duration
	maxLifetime    time.Duration
	reapInterval   time.Duration
}

// NewConfig returns a config for min..max connections with default timeouts.
func NewConfig(minSize, maxSize int) (Config, error) {
	switch {
	case maxSize <= 0:
		return Config{}, fmt.Errorf("%w: max size must be positive, got %d", ErrInvalidConfig, maxSize)
	case minSize < 0:
		return Config{}, fmt.Errorf("%w: min size must not be negative, got %d", ErrInvalidConfig, minSize)
	case minSize > maxSize:
		return Config{}, fmt.Errorf("%w: min size %d exceeds max size %d", ErrInvalidConfig, minSize, maxSize)
	}

	return Config{
		minSize:        minSize,
		maxSize:        maxSize,
		acquireTimeout: DefaultAcquireTimeout,
		idleTimeout:    DefaultIdleTimeout,
		reapInterval:   DefaultReapInterval,
	}, nil
}

// DefaultConfig returns 1..10 connections with default timeouts.
func DefaultConfig() Config {
	return Config{
		minSize:        DefaultMinSize,
		maxSize:        DefaultMaxSize,
		acquireTimeout: DefaultAcquireTimeout,
		idleTimeout:    DefaultIdleTimeout,
		reapInterval:   DefaultReapInterval,
	}
}

// WithAcquireTimeoutMs sets how long Acquire waits for a free slot. Zero
// means fail at once when the pool is exhausted.
func (c Config) WithAcquireTimeoutMs(ms uint64) Config {
	c.acquireTimeout = time.Duration(ms) * time.Millisecond
	return c
}

// WithIdleTimeoutMs sets how long a connection may sit idle. Zero disables
// idle eviction.
func (c Config) WithIdleTimeoutMs(ms uint64) Config {
	c.idleTimeout = time.Duration(ms) * time.Millisecond
	return c
}

// WithMaxLifetimeMs sets the maximum age of a connection. Zero means no
// limit.
func (c Config) WithMaxLifetimeMs(ms uint64) Config {
	c.maxLifetime = time.Duration(ms) * time.Millisecond
	return c
}

// WithReapInterval sets how often the reaper runs. Zero disables it.
func (c Config) WithReapInterval(d time.Duration) Config {
	c.reapInterval = d
	return c
}

// MinSize returns the number of connections the reaper keeps open.
func (c Config) MinSize() int { return c.minSize }

// MaxSize returns the cap on live connections.
func (c Config) MaxSize() int { return c.maxSize }

// AcquireTimeout returns the acquire wait bound.
func (c Config) AcquireTimeout() time.Duration { return c.acquireTimeout }

// IdleTimeout returns the idle eviction bound, zero when disabled.
func (c Config) IdleTimeout() time.Duration { return c.idleTimeout }

// MaxLifetime returns the maximum connection age and whether one is set.
func (c Config) MaxLifetime() (time.Duration, bool) {
	return c.maxLifetime, c.maxLifetime > 0
}

// ReapInterval returns the reaper cadence, zero when disabled.
func (c Config) ReapInterval() time.Duration { return c.reapInterval }

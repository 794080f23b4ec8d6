package reconnect

import (
	"context"
	"sync"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
)

// Factory produces reconnecting wrappers around connections from an inner
// factory. A pool built on it holds connections that heal themselves.
type Factory struct {
	inner conn.Factory
	cfg   Config

	mu      sync.RWMutex
	logger  Logger
	onEvent func(Event)
}

// NewFactory returns a factory whose connections reconnect through inner.
func NewFactory(inner conn.Factory, cfg Config) *Factory {
	return &Factory{
		inner:  inner,
		cfg:    cfg,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger handed to every new connection.
func (f *Factory) SetLogger(logger Logger) {
	f.mu.Lock()
	f.logger = logger
	f.mu.Unlock()
}

// SetOnEvent sets the event callback handed to every new connection.
func (f *Factory) SetOnEvent(fn func(Event)) {
	f.mu.Lock()
	f.onEvent = fn
	f.mu.Unlock()
}

// Create implements conn.Factory.
func (f *Factory) Create(ctx context.Context) (conn.Connection, error) {
	rc, err := New(ctx, f.inner, f.cfg)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	rc.SetLogger(f.logger)
	if f.onEvent != nil {
		rc.SetOnEvent(f.onEvent)
	}
	f.mu.RUnlock()
	return rc, nil
}

// Validate implements conn.Validator. A wrapper whose inner connection has
// dropped is still valid because it reconnects on use; otherwise the inner
// factory's check applies.
func (f *Factory) Validate(ctx context.Context, c conn.Connection) bool {
	if rc, ok := c.(*Connection); ok {
		if rc.IsClosed() {
			return false
		}
		inner := rc.Inner()
		if inner.IsClosed() {
			// Recovered on the next operation.
			return true
		}
		if v, ok := f.inner.(conn.Validator); ok {
			return v.Validate(ctx, inner)
		}
		return true
	}
	return conn.Validate(ctx, f.inner, c)
}

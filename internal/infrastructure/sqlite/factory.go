package sqlite

import (
	"context"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
)

// Factory opens Connections to one SQLite database.
type Factory struct {
	cfg Config
}

// NewFactory returns a factory for cfg.
func NewFactory(cfg Config) *Factory {
	return &Factory{cfg: cfg}
}

// Config returns the factory's configuration.
func (f *Factory) Config() Config {
	return f.cfg
}

// Create implements conn.Factory.
func (f *Factory) Create(ctx context.Context) (conn.Connection, error) {
	return Open(ctx, f.cfg)
}

// Validate implements conn.Validator by pinging c.
func (f *Factory) Validate(ctx context.Context, c conn.Connection) bool {
	s, ok := c.(*Connection)
	if !ok {
		return !c.IsClosed()
	}
	return s.Ping(ctx) == nil
}

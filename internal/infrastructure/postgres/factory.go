package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
)

// Settings mirrors the postgres section of a target in config.yaml.
type Settings struct {
	Host           string
	Port           int
	Database       string
	Username       string
	Password       string
	SSLMode        string
	Params         map[string]string
	ConnectTimeout time.Duration
}

// DSN builds the connection URL for s.
func (s Settings) DSN() (string, error) {
	b := NewDSNBuilder().
		Host(s.Host, s.Port).
		Auth(s.Username, s.Password).
		Database(s.Database).
		Params(s.Params).
		Param("sslmode", s.SSLMode)
	if s.ConnectTimeout > 0 {
		b.Param("connect_timeout", strconv.Itoa(int(s.ConnectTimeout/time.Second)))
	}
	return b.WithDefaults().Build()
}

// Factory opens Connections to one PostgreSQL database.
type Factory struct {
	dsn string
}

// NewFactory returns a factory for dsn.
func NewFactory(dsn string) *Factory {
	return &Factory{dsn: dsn}
}

// NewFactoryFromSettings builds the DSN from s.
func NewFactoryFromSettings(s Settings) (*Factory, error) {
	dsn, err := s.DSN()
	if err != nil {
		return nil, err
	}
	return NewFactory(dsn), nil
}

// String returns the redacted DSN.
func (f *Factory) String() string {
	return Redact(f.dsn)
}

// Create implements conn.Factory.
func (f *Factory) Create(ctx context.Context) (conn.Connection, error) {
	return Connect(ctx, f.dsn)
}

// Validate implements conn.Validator by pinging c.
func (f *Factory) Validate(ctx context.Context, c conn.Connection) bool {
	pc, ok := c.(*Connection)
	if !ok {
		return !c.IsClosed()
	}
	return pc.Ping(ctx) == nil
}

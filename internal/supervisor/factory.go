package supervisor

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/health"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/infrastructure/postgres"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/infrastructure/sqlite"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/pool"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/reconnect"
)

// FactoryBuilder returns the driver factory for a target.
type FactoryBuilder func(t config.TargetConfig) (conn.Factory, error)

// DriverFactory builds the sqlite or postgres factory named by t.Driver.
func DriverFactory(t config.TargetConfig) (conn.Factory, error) {
	switch t.Driver {
	case config.DriverSQLite:
		return sqlite.NewFactory(sqlite.Config{
			Path:        t.SQLite.Path,
			WALMode:     t.SQLite.WALMode,
			BusyTimeout: t.SQLite.BusyTimeout,
		}), nil
	case config.DriverPostgres:
		pg := t.Postgres
		f, err := postgres.NewFactoryFromSettings(postgres.Settings{
			Host:           pg.Host,
			Port:           pg.Port,
			Database:       pg.Database,
			Username:       pg.Username,
			Password:       pg.Password,
			SSLMode:        pg.SSLMode,
			Params:         pg.Params,
			ConnectTimeout: time.Duration(pg.ConnectTimeout) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, t.Driver)
	}
}

func poolConfig(p config.PoolConfig) (pool.Config, error) {
	cfg, err := pool.NewConfig(p.MinSize, p.MaxSize)
	if err != nil {
		return pool.Config{}, err
	}
	return cfg.
		WithAcquireTimeoutMs(p.AcquireTimeoutMs).
		WithIdleTimeoutMs(p.IdleTimeoutMs).
		WithMaxLifetimeMs(p.MaxLifetimeMs), nil
}

func reconnectConfig(r config.ReconnectConfig) reconnect.Config {
	backoff := reconnect.NewBackoff(r.InitialDelayMs, r.MaxDelayMs).
		WithMultiplier(r.Multiplier).
		WithJitter(r.Jitter)
	return reconnect.NewConfig(r.MaxRetries, backoff)
}

func checkConfig(h config.HealthConfig) health.CheckConfig {
	return health.NewCheckConfig(h.Interval).
		WithThresholds(health.NewThresholds(h.HealthyMs, h.DegradedMs)).
		WithPingTimeout(h.PingTimeout).
		WithFailureThreshold(h.FailureThreshold)
}

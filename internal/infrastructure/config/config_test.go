package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
logging:
  level: debug
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 1883
    client_id: "dbkeeper-test"
  qos: 1
health:
  interval: 10s
targets:
  - name: local
    driver: sqlite
    sqlite:
      path: "/tmp/local.db"
      wal_mode: true
  - name: orders-db
    driver: postgres
    postgres:
      host: "pg.local"
      database: "orders"
      username: "keeper"
      params:
        application_name: dbkeeper
    pool:
      min_size: 2
      max_size: 8
      max_lifetime_ms: 3600000
    reconnect:
      max_retries: 5
      jitter: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want default %q", cfg.Logging.Format, "json")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.Health.Interval != 10*time.Second {
		t.Errorf("Health.Interval = %v, want 10s", cfg.Health.Interval)
	}
	if cfg.Health.PingTimeout != 5*time.Second {
		t.Errorf("Health.PingTimeout = %v, want default 5s", cfg.Health.PingTimeout)
	}
	if len(cfg.Targets) != 2 {
		t.Fatalf("len(Targets) = %d, want 2", len(cfg.Targets))
	}
}

func TestLoad_TargetDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	local, ok := cfg.Target("local")
	if !ok {
		t.Fatal("Target(local) not found")
	}
	if local.SQLite.BusyTimeout != 5 {
		t.Errorf("SQLite.BusyTimeout = %d, want 5", local.SQLite.BusyTimeout)
	}
	if local.Pool.MinSize != 1 || local.Pool.MaxSize != 10 {
		t.Errorf("Pool = %d..%d, want 1..10", local.Pool.MinSize, local.Pool.MaxSize)
	}
	if local.Pool.AcquireTimeoutMs != 30_000 || local.Pool.IdleTimeoutMs != 600_000 {
		t.Errorf("Pool timeouts = %d/%d, want 30000/600000", local.Pool.AcquireTimeoutMs, local.Pool.IdleTimeoutMs)
	}
	if local.Reconnect.InitialDelayMs != 100 || local.Reconnect.MaxDelayMs != 30_000 || local.Reconnect.Multiplier != 2.0 {
		t.Errorf("Reconnect = %+v, want 100/30000/2.0", local.Reconnect)
	}

	orders, _ := cfg.Target("orders-db")
	if orders.Postgres.Port != 5432 {
		t.Errorf("Postgres.Port = %d, want 5432", orders.Postgres.Port)
	}
	if orders.Postgres.SSLMode != "prefer" {
		t.Errorf("Postgres.SSLMode = %q, want prefer", orders.Postgres.SSLMode)
	}
	if orders.Pool.MinSize != 2 || orders.Pool.MaxSize != 8 {
		t.Errorf("Pool = %d..%d, want 2..8", orders.Pool.MinSize, orders.Pool.MaxSize)
	}
	if orders.Reconnect.MaxRetries != 5 || !orders.Reconnect.Jitter {
		t.Errorf("Reconnect = %+v, want 5 retries with jitter", orders.Reconnect)
	}
	if orders.Postgres.Params["application_name"] != "dbkeeper" {
		t.Errorf("Postgres.Params = %v", orders.Postgres.Params)
	}

	if _, ok := cfg.Target("missing"); ok {
		t.Error("Target(missing) ok = true")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DBKEEPER_MQTT_HOST", "mqtt.override")
	t.Setenv("DBKEEPER_MQTT_PORT", "8883")
	t.Setenv("DBKEEPER_LOG_LEVEL", "warn")
	t.Setenv("DBKEEPER_HEALTH_INTERVAL", "1m")
	t.Setenv("DBKEEPER_TARGET_ORDERS_DB_PASSWORD", "s3cret")
	t.Setenv("DBKEEPER_API_PORT", "9100")

	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "mqtt.override" {
		t.Errorf("MQTT.Broker.Host = %q, want override", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Health.Interval != time.Minute {
		t.Errorf("Health.Interval = %v, want 1m", cfg.Health.Interval)
	}
	if cfg.API.Port != 9100 {
		t.Errorf("API.Port = %d, want 9100", cfg.API.Port)
	}
	orders, _ := cfg.Target("orders-db")
	if orders.Postgres.Password != "s3cret" {
		t.Errorf("Postgres.Password = %q, want env override", orders.Postgres.Password)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	sqliteTarget := TargetConfig{
		Name:      "local",
		Driver:    DriverSQLite,
		SQLite:    SQLiteConfig{Path: "/tmp/x.db"},
		Pool:      PoolConfig{MinSize: 1, MaxSize: 4},
		Reconnect: ReconnectConfig{Multiplier: 2},
	}
	base := func() *Config {
		cfg := defaultConfig()
		cfg.Targets = []TargetConfig{sqliteTarget}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "no targets",
			mutate:  func(c *Config) { c.Targets = nil },
			wantErr: "at least one target",
		},
		{
			name:    "bad qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Targets[0].Driver = "oracle" },
			wantErr: "driver must be",
		},
		{
			name: "duplicate names",
			mutate: func(c *Config) {
				c.Targets = append(c.Targets, sqliteTarget)
			},
			wantErr: "duplicated",
		},
		{
			name:    "wildcard in name",
			mutate:  func(c *Config) { c.Targets[0].Name = "a/b" },
			wantErr: "wildcards",
		},
		{
			name:    "min above max",
			mutate:  func(c *Config) { c.Targets[0].Pool.MinSize = 9 },
			wantErr: "min_size",
		},
		{
			name: "postgres missing host",
			mutate: func(c *Config) {
				c.Targets[0].Driver = DriverPostgres
				c.Targets[0].Postgres = PostgresConfig{Database: "x", Port: 5432}
			},
			wantErr: "postgres.host",
		},
		{
			name: "short jwt secret",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.JWTSecret = "short"
			},
			wantErr: "api.jwt_secret",
		},
		{
			name: "api port out of range",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Port = 70000
			},
			wantErr: "api.port",
		},
		{
			name:   "disabled api not validated",
			mutate: func(c *Config) { c.API.Port = -1 },
		},
		{
			name:    "influx without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.MQTT.QoS = 5
	cfg.Health.Interval = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	for _, want := range []string{"mqtt.qos", "health.interval", "at least one target"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %q, missing %q", err, want)
		}
	}
}

func TestConfig_APITimeouts(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 30*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetIdleTimeout(); got != time.Minute {
		t.Errorf("GetIdleTimeout() = %v, want 1m", got)
	}
	if cfg.API.Enabled {
		t.Error("API.Enabled = true by default, want false")
	}
}

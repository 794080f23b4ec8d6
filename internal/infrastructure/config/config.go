package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported target drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the root configuration structure for dbkeeper.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Health    HealthConfig    `yaml:"health"`
	Targets   []TargetConfig  `yaml:"targets"`
}

// APIConfig contains HTTP status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// JWTSecret signs operator tokens for mutating endpoints. When empty,
	// those endpoints are refused.
	JWTSecret string `yaml:"jwt_secret"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains live status stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds paho's reconnect backoff after a lost link.
type MQTTReconnectConfig struct {
	MaxDelay int `yaml:"max_delay"` // seconds
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// HealthConfig contains the periodic health check settings shared by all
// targets.
type HealthConfig struct {
	// Interval between checks. Default: 30s
	Interval time.Duration `yaml:"interval"`

	// PingTimeout bounds a single ping. Default: 5s
	PingTimeout time.Duration `yaml:"ping_timeout"`

	// FailureThreshold is the consecutive failures before a target is
	// reported unhealthy. Default: 3
	FailureThreshold uint32 `yaml:"failure_threshold"`

	// HealthyMs and DegradedMs are the latency thresholds. Default: 100/500
	HealthyMs  uint64 `yaml:"healthy_ms"`
	DegradedMs uint64 `yaml:"degraded_ms"`
}

// TargetConfig describes one monitored database.
type TargetConfig struct {
	Name      string          `yaml:"name"`
	Driver    string          `yaml:"driver"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Pool      PoolConfig      `yaml:"pool"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// SQLiteConfig contains SQLite database settings.
type SQLiteConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`

	// Params are extra connection string parameters, e.g. application_name.
	Params map[string]string `yaml:"params"`

	// ConnectTimeout in seconds. Default: 10
	ConnectTimeout int `yaml:"connect_timeout"`
}

// PoolConfig contains connection pool sizing.
type PoolConfig struct {
	MinSize          int    `yaml:"min_size"`
	MaxSize          int    `yaml:"max_size"`
	AcquireTimeoutMs uint64 `yaml:"acquire_timeout_ms"`
	IdleTimeoutMs    uint64 `yaml:"idle_timeout_ms"`

	// MaxLifetimeMs of 0 means connections never expire by age.
	MaxLifetimeMs uint64 `yaml:"max_lifetime_ms"`
}

// ReconnectConfig contains auto-reconnect settings.
type ReconnectConfig struct {
	MaxRetries     uint32  `yaml:"max_retries"`
	InitialDelayMs uint64  `yaml:"initial_delay_ms"`
	MaxDelayMs     uint64  `yaml:"max_delay_ms"`
	Multiplier     float64 `yaml:"multiplier"`
	Jitter         bool    `yaml:"jitter"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DBKEEPER_SECTION_KEY
// For example: DBKEEPER_MQTT_HOST, DBKEEPER_LOG_LEVEL.
// Per-target Postgres passwords use DBKEEPER_TARGET_<NAME>_PASSWORD with the
// target name upper-cased and dashes replaced by underscores.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes, applying defaults,
// environment overrides and validation exactly as Load does.
func Parse(data []byte) (*Config, error) {
	cfg := defaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyTargetDefaults()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "dbkeeper",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				MaxDelay: 60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Health: HealthConfig{
			Interval:         30 * time.Second,
			PingTimeout:      5 * time.Second,
			FailureThreshold: 3,
			HealthyMs:        100,
			DegradedMs:       500,
		},
	}
}

// applyTargetDefaults fills zero values in every target. Targets are a list,
// so their defaults cannot live in defaultConfig.
func (c *Config) applyTargetDefaults() {
	for i := range c.Targets {
		t := &c.Targets[i]

		if t.Driver == DriverSQLite && t.SQLite.BusyTimeout == 0 {
			t.SQLite.BusyTimeout = 5
		}
		if t.Driver == DriverPostgres {
			if t.Postgres.Port == 0 {
				t.Postgres.Port = 5432
			}
			if t.Postgres.SSLMode == "" {
				t.Postgres.SSLMode = "prefer"
			}
			if t.Postgres.ConnectTimeout == 0 {
				t.Postgres.ConnectTimeout = 10
			}
		}

		if t.Pool.MaxSize == 0 {
			t.Pool.MaxSize = 10
			if t.Pool.MinSize == 0 {
				t.Pool.MinSize = 1
			}
		}
		if t.Pool.AcquireTimeoutMs == 0 {
			t.Pool.AcquireTimeoutMs = 30_000
		}
		if t.Pool.IdleTimeoutMs == 0 {
			t.Pool.IdleTimeoutMs = 600_000
		}

		if t.Reconnect.InitialDelayMs == 0 {
			t.Reconnect.InitialDelayMs = 100
		}
		if t.Reconnect.MaxDelayMs == 0 {
			t.Reconnect.MaxDelayMs = 30_000
		}
		if t.Reconnect.Multiplier == 0 {
			t.Reconnect.Multiplier = 2.0
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DBKEEPER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Logging
	if v := os.Getenv("DBKEEPER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// API
	if v := os.Getenv("DBKEEPER_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("DBKEEPER_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("DBKEEPER_API_JWT_SECRET"); v != "" {
		cfg.API.JWTSecret = v
	}

	// MQTT
	if v := os.Getenv("DBKEEPER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DBKEEPER_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("DBKEEPER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DBKEEPER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("DBKEEPER_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("DBKEEPER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Health
	if v := os.Getenv("DBKEEPER_HEALTH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Health.Interval = d
		}
	}

	// Per-target secrets
	for i := range cfg.Targets {
		key := "DBKEEPER_TARGET_" + envName(cfg.Targets[i].Name) + "_PASSWORD"
		if v := os.Getenv(key); v != "" {
			cfg.Targets[i].Postgres.Password = v
		}
	}
}

func envName(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name))
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	// API validation
	const minJWTSecretLength = 32
	if c.API.Enabled {
		if c.API.Port < 0 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 0 and 65535")
		}
		if c.API.JWTSecret != "" && len(c.API.JWTSecret) < minJWTSecretLength {
			errs = append(errs, "api.jwt_secret must be at least 32 characters")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// Health validation
	if c.Health.Interval <= 0 {
		errs = append(errs, "health.interval must be positive")
	}
	if c.Health.PingTimeout <= 0 {
		errs = append(errs, "health.ping_timeout must be positive")
	}

	// Target validation
	if len(c.Targets) == 0 {
		errs = append(errs, "at least one target is required")
	}
	seen := make(map[string]bool, len(c.Targets))
	for i, t := range c.Targets {
		prefix := fmt.Sprintf("targets[%d]", i)
		if t.Name == "" {
			errs = append(errs, prefix+".name is required")
		} else {
			if seen[t.Name] {
				errs = append(errs, fmt.Sprintf("%s.name %q is duplicated", prefix, t.Name))
			}
			seen[t.Name] = true
			if strings.ContainsAny(t.Name, "/+#") {
				errs = append(errs, prefix+".name must not contain MQTT wildcards or slashes")
			}
		}

		switch t.Driver {
		case DriverSQLite:
			if t.SQLite.Path == "" {
				errs = append(errs, prefix+".sqlite.path is required")
			}
		case DriverPostgres:
			if t.Postgres.Host == "" {
				errs = append(errs, prefix+".postgres.host is required")
			}
			if t.Postgres.Database == "" {
				errs = append(errs, prefix+".postgres.database is required")
			}
			if t.Postgres.Port < 1 || t.Postgres.Port > 65535 {
				errs = append(errs, prefix+".postgres.port must be between 1 and 65535")
			}
		default:
			errs = append(errs, fmt.Sprintf("%s.driver must be %q or %q", prefix, DriverSQLite, DriverPostgres))
		}

		if t.Pool.MaxSize <= 0 {
			errs = append(errs, prefix+".pool.max_size must be positive")
		}
		if t.Pool.MinSize < 0 || t.Pool.MinSize > t.Pool.MaxSize {
			errs = append(errs, prefix+".pool.min_size must be between 0 and max_size")
		}
		if t.Reconnect.Multiplier < 1 {
			errs = append(errs, prefix+".reconnect.multiplier must be at least 1.0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// Target returns the target with the given name.
func (c *Config) Target(name string) (TargetConfig, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return TargetConfig{}, false
}

// dbkeeper keeps database connections alive.
//
// It holds a connection pool and a health-checked monitor connection for
// every configured SQLite or PostgreSQL target, reconnects with backoff when
// a target drops, and reports health and pool usage over MQTT and InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/api"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/supervisor"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// Default configuration file path
	defaultConfigPath = "configs/dbkeeper.yaml"

	// shutdownTimeout bounds pool and background task teardown.
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting dbkeeper",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"targets", len(cfg.Targets),
		"level", cfg.Logging.Level,
	)

	var opts []supervisor.Option

	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(ctx, cfg.MQTT, log.Component("mqtt"))
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		opts = append(opts, supervisor.WithPublisher(mqttClient))
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		opts = append(opts, supervisor.WithMetrics(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log.Component("api"))
		opts = append(opts, supervisor.WithBroadcaster(hub))
	}

	sup, err := supervisor.New(ctx, cfg, log.Component("supervisor"), opts...)
	if err != nil {
		return fmt.Errorf("creating supervisor: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := sup.Close(shutdownCtx); closeErr != nil {
			log.Error("error closing supervisor", "error", closeErr)
		}
	}()

	if err := sup.Start(ctx); err != nil {
		return fmt.Errorf("starting supervisor: %w", err)
	}

	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Logger:     log.Component("api"),
			Supervisor: sup,
			Hub:        hub,
			Version:    version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		if cfg.API.JWTSecret == "" {
			log.Warn("api.jwt_secret not set, reset endpoint disabled")
		}
	} else {
		log.Info("API disabled")
	}

	for _, res := range sup.CheckNow(ctx) {
		tlog := log.Target(res.Target)
		if !res.IsSuccess() {
			tlog.Warn("initial health check failed",
				"status", res.Status,
				"error", supervisor.Describe(res.Err),
			)
			continue
		}
		tlog.Info("initial health check",
			"status", res.Status,
			"latency", res.Latency,
		)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred closes run in reverse: API, supervisor, InfluxDB, MQTT.
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DBKEEPER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DBKEEPER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// Package influxdb provides InfluxDB connectivity for dbkeeper.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched metric writing and health monitoring.
//
// # Measurements
//
//	db_health,target,driver,status    latency_ms, failures, success
//	db_pool,target                    total, idle, active, waiting, utilization
//	db_reconnect,target,kind          attempt
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePoolStats(influxdb.PoolSample{Target: "orders-db", Total: 4, Idle: 3, Active: 1})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned
// directly.
package influxdb

// Package supervisor ties the resilience layer to configured database
// targets.
//
// For every target in the config it builds:
//   - the driver factory (sqlite or postgres), wrapped by reconnect.Factory
//     so pooled connections heal themselves
//   - a pool warmed to its minimum size
//   - a dedicated monitor connection registered with the health checker
//
// Every health result is published to MQTT and InfluxDB when those sinks
// are configured, together with the target's pool statistics. Reconnect
// events go to the target's events topic. A message on
// dbkeeper/command/{name}/reset revives a failed monitor and drops the
// pool's idle connections.
//
// Usage:
//
//	sup, err := supervisor.New(ctx, cfg, logger,
//	    supervisor.WithPublisher(mqttClient),
//	    supervisor.WithMetrics(influxClient),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := sup.Start(ctx); err != nil {
//	    return err
//	}
//	defer sup.Close(shutdownCtx)
//
//	err = sup.Pool("orders-db").With(ctx, func(c conn.Connection) error {
//	    _, err := c.Execute(ctx, "UPDATE orders SET state = $1 WHERE id = $2", "paid", id)
//	    return err
//	})
package supervisor

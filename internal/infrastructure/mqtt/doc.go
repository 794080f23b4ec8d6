// Package mqtt provides MQTT client connectivity for dbkeeper.
//
// dbkeeper publishes the health and pool state of every database target so
// dashboards and other services can watch them without polling, and accepts
// reset commands for targets whose reconnect budget is exhausted.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees (retained state topics)
//   - Command subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
//	dbkeeper/system/status              online/offline (retained, LWT)
//	dbkeeper/targets/{name}/health      latest health result (retained)
//	dbkeeper/targets/{name}/pool        pool statistics (retained)
//	dbkeeper/targets/{name}/events      reconnect events
//	dbkeeper/command/{name}/reset       reset a failed target
//
// # Security Considerations
//
//   - TLS should be enabled for production deployments (cfg.Broker.TLS=true)
//   - Anyone allowed to publish to dbkeeper/command/# can force reconnects;
//     restrict it in the broker ACL
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.TargetHealth("orders-db"), result, true)
package mqtt

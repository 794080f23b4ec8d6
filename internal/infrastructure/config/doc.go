// Package config loads the dbkeeper YAML file.
//
// Load applies built-in defaults, then the file, then DBKEEPER_* environment
// variables, and finally calls Validate, which reports every problem it finds
// in a single error. Each entry under targets names one database; pool and
// reconnect settings left at zero take per-target defaults.
//
// Secrets are best kept out of the file. DBKEEPER_TARGET_<NAME>_PASSWORD sets
// a Postgres target's password, where NAME is the target name upper-cased
// with dashes, dots and spaces turned into underscores. DBKEEPER_MQTT_PASSWORD,
// DBKEEPER_INFLUXDB_TOKEN and DBKEEPER_API_JWT_SECRET cover the sinks and the
// status API.
//
//	cfg, err := config.Load("configs/dbkeeper.yaml")
//	if err != nil {
//	    return err
//	}
//	orders, ok := cfg.Target("orders")
package config

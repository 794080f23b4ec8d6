// Package logging is dbkeeper's structured logger, a thin layer over
// log/slog.
//
// Every entry carries service=dbkeeper and the build version. Attributes
// named password, dsn, token, secret or jwt_secret are replaced with
// [REDACTED] before they are written, so a stray
//
//	log.Info("connecting", "dsn", dsn)
//
// cannot leak credentials. Prefer postgres.Redact when the host or database
// name is useful in the entry.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Components take a child logger:
//
//	log := logging.New(cfg.Logging, version)
//	sup, err := supervisor.New(ctx, cfg, log.Component("supervisor"))
package logging

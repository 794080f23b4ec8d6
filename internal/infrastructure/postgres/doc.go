// Package postgres implements conn.Connection and conn.Factory for
// PostgreSQL using github.com/jackc/pgx/v5.
//
// A Connection wraps a single *pgx.Conn, never a pgxpool: pooling is done by
// package pool so that pool limits, idle expiry and reconnection behave the
// same for every engine.
//
// Usage:
//
//	dsn, err := postgres.NewDSNBuilder().
//	    Host("db.internal", 5432).
//	    Auth("app", secret).
//	    Database("orders").
//	    WithDefaults().
//	    Build()
//	factory := postgres.NewFactory(dsn)
//	c, err := factory.Create(ctx)
//
// Log DSNs with Redact, never directly.
package postgres

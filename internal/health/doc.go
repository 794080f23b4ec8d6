// Package health classifies database connection quality from ping latency.
//
// A ping runs the cheapest round-trip query for the driver ("SELECT 1") and
// measures wall-clock time. The latency maps to a Status through a pair of
// thresholds:
//
//	latency <= healthy   → StatusHealthy
//	latency <= degraded  → StatusDegraded
//	otherwise            → StatusUnhealthy
//
// A failed ping is always StatusUnhealthy.
//
// # Checker
//
// Checker pings on demand (CheckConnection) or on a fixed cadence for a set
// of registered targets (Register + Start/Run). It counts consecutive
// failures so callers can tell a blip from an outage:
//
//	checker := health.NewChecker(health.DefaultCheckConfig())
//	checker.Register("orders", monitorConn)
//	checker.SetOnResult(func(r health.Result) {
//	    log.Info("health", "target", r.Target, "status", r.Status, "latency", r.Latency)
//	})
//	if err := checker.Start(); err != nil {
//	    return err
//	}
//	defer checker.Stop()
//
// Thread Safety:
//
// Checker is safe for concurrent use. Status and Thresholds are values.
package health

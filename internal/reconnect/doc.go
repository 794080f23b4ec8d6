// Package reconnect wraps a database connection so that it transparently
// recovers after the server goes away.
//
// A Connection delegates every operation to an inner conn.Connection. When
// an operation fails with a connection-loss error (see conn.IsConnectionLoss)
// or the inner connection reports IsClosed, the wrapper closes it, asks the
// factory for a new one and retries with exponential backoff:
//
//	disconnected ─▶ create ─ok─▶ reconnected
//	                  │fail
//	                  ▼
//	   reconnecting{1} ─sleep─▶ create ─ok─▶ reconnected
//	                  ...
//	   reconnecting{N} ─sleep─▶ create ─fail─▶ failed
//
// Once failed, every operation returns ErrReconnectFailed straight away
// until Reset is called.
//
// # Usage
//
//	cfg := reconnect.NewConfig(5, reconnect.NewBackoff(100, 10_000).WithJitter(true))
//	rc, err := reconnect.New(ctx, factory, cfg)
//	if err != nil {
//	    return err
//	}
//	defer rc.Close()
//
//	rc.SetOnEvent(func(ev reconnect.Event) {
//	    log.Info("connection event", "kind", ev.Kind, "attempt", ev.Attempt)
//	})
//
// # Retried Operations
//
// After a successful reconnect the failed operation is run once more on the
// new connection. An Execute that reached the server before the transport
// broke may therefore be applied twice. Use WithRetryOperation(false) to
// receive ErrConnectionRecovered instead and decide at the call site.
//
// Transactions are not carried across a reconnect: a Transaction returned by
// BeginTransaction belongs to the inner connection that created it.
//
// Thread Safety:
//
// All methods are safe for concurrent use. Recovery is single-flight: when
// several callers observe the same broken connection only one of them
// reconnects, the others wait for its outcome.
package reconnect

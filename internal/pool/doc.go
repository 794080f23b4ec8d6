// Package pool keeps a bounded set of database connections for one target
// and hands them out as exclusive leases.
//
// The pool never holds more than MaxSize live connections. Idle connections
// are reused in the order they were returned, after a validity check; those
// past their idle timeout or max lifetime are closed instead. A background
// reaper evicts stale idle connections (never dropping below MinSize for
// idle timeout alone) and tops the pool back up to MinSize.
//
// # Usage
//
//	cfg, err := pool.NewConfig(2, 10)
//	if err != nil {
//	    return err
//	}
//	p := pool.New(cfg.WithAcquireTimeoutMs(5_000), factory, pool.WithName("orders"))
//	defer p.Close()
//
//	err = p.With(ctx, func(c conn.Connection) error {
//	    _, err := c.Execute(ctx, "UPDATE orders SET state = ? WHERE id = ?", "paid", id)
//	    return err
//	})
//
// Or hold a lease explicitly:
//
//	lease, err := p.Acquire(ctx)
//	if err != nil {
//	    return err // ErrAcquireTimeout, ErrCreateFailed, conn.ErrCancelled, ErrPoolClosed
//	}
//	defer lease.Release()
//
// Thread Safety:
//
// All methods are safe for concurrent use. A single mutex guards the idle
// list and the counters; factory calls and connection Close calls are made
// without it. Waiters are served first come, first served.
package pool

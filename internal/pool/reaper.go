package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
)

func (p *Pool) startReaper() {
	if p.cfg.reapInterval <= 0 {
		return
	}

	done := make(chan struct{})
	err := p.group.Go("pool-reaper-"+p.name, func(ctx context.Context) {
		defer close(done)

		ticker := time.NewTicker(p.cfg.reapInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-p.closeCtx.Done():
				return
			case <-ticker.C:
				p.reap(p.closeCtx)
			}
		}
	})
	if err != nil {
		p.logger.Warn("pool reaper not started", "pool", p.name, "error", err)
		return
	}
	p.reaperDone = done
}

// reap evicts stale idle connections and refills to MinSize.
func (p *Pool) reap(ctx context.Context) {
	now := time.Now()

	p.mu.Lock()
	total := len(p.idle) + p.active
	keep := p.idle[:0]
	var evict []conn.Connection
	for _, ic := range p.idle {
		switch {
		case ic.c.IsClosed(), p.pastLifetime(ic.createdAt, now):
			evict = append(evict, ic.c)
			total--
		case p.pastIdle(ic.idleSince, now) && total > p.cfg.minSize:
			evict = append(evict, ic.c)
			total--
		default:
			keep = append(keep, ic)
		}
	}
	for i := len(keep); i < len(p.idle); i++ {
		p.idle[i] = idleConn{}
	}
	p.idle = keep
	p.mu.Unlock()

	p.closeAll(evict, "reaped")

	if n, err := p.fill(ctx); err != nil {
		p.logger.Warn("pool refill failed",
			"pool", p.name,
			"opened", n,
			"error", err,
		)
	}
}

// Warm opens connections until the pool holds MinSize. It returns the first
// factory error.
func (p *Pool) Warm(ctx context.Context) error {
	n, err := p.fill(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		p.logger.Info("pool warmed", "pool", p.name, "opened", n)
	}
	return nil
}

// fill opens idle connections while the pool is below MinSize, using only
// free slots. It returns the number opened.
func (p *Pool) fill(ctx context.Context) (int, error) {
	opened := 0
	for {
		if !p.slots.TryAcquire(1) {
			return opened, nil
		}

		p.mu.Lock()
		if p.closed || len(p.idle)+p.active >= p.cfg.minSize {
			p.mu.Unlock()
			p.slots.Release(1)
			return opened, nil
		}
		p.active++
		p.mu.Unlock()

		c, err := p.factory.Create(ctx)
		if err != nil {
			p.mu.Lock()
			p.active--
			p.mu.Unlock()
			p.slots.Release(1)
			return opened, fmt.Errorf("%w: %w", ErrCreateFailed, err)
		}

		p.put(c, time.Now(), false)
		opened++
	}
}

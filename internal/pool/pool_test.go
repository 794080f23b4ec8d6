package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/background"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn/conntest"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/reconnect"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errDown = errors.New("dial tcp 10.0.0.5:5432: connection refused")

func mustConfig(t *testing.T, minSize, maxSize int) Config {
	t.Helper()
	cfg, err := NewConfig(minSize, maxSize)
	if err != nil {
		t.Fatalf("NewConfig(%d, %d) error = %v", minSize, maxSize, err)
	}
	return cfg
}

// newTestPool builds a pool on its own background group and closes both
// when the test ends.
func newTestPool(t *testing.T, cfg Config, factory conn.Factory) *Pool {
	t.Helper()
	group := background.New()
	p := New(cfg, factory, WithGroup(group), WithName(t.Name()))
	t.Cleanup(func() {
		p.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		group.Shutdown(ctx)
	})
	return p
}

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name    string
		minSize int
		maxSize int
		wantErr bool
	}{
		{"valid", 2, 10, false},
		{"zero min", 0, 1, false},
		{"equal", 5, 5, false},
		{"zero max", 0, 0, true},
		{"negative max", 0, -1, true},
		{"negative min", -1, 5, true},
		{"min above max", 6, 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewConfig(tt.minSize, tt.maxSize)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("NewConfig() error = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewConfig() error = %v", err)
			}
			if cfg.MinSize() != tt.minSize || cfg.MaxSize() != tt.maxSize {
				t.Errorf("sizes = %d/%d, want %d/%d", cfg.MinSize(), cfg.MaxSize(), tt.minSize, tt.maxSize)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MinSize() != 1 || cfg.MaxSize() != 10 {
		t.Errorf("sizes = %d/%d, want 1/10", cfg.MinSize(), cfg.MaxSize())
	}
	if cfg.AcquireTimeout() != 30*time.Second {
		t.Errorf("AcquireTimeout() = %v, want 30s", cfg.AcquireTimeout())
	}
	if cfg.IdleTimeout() != 10*time.Minute {
		t.Errorf("IdleTimeout() = %v, want 10m", cfg.IdleTimeout())
	}
	if _, ok := cfg.MaxLifetime(); ok {
		t.Error("MaxLifetime() set by default")
	}

	cfg = cfg.WithAcquireTimeoutMs(250).WithIdleTimeoutMs(1000).WithMaxLifetimeMs(60_000)
	if cfg.AcquireTimeout() != 250*time.Millisecond {
		t.Errorf("AcquireTimeout() = %v, want 250ms", cfg.AcquireTimeout())
	}
	if cfg.IdleTimeout() != time.Second {
		t.Errorf("IdleTimeout() = %v, want 1s", cfg.IdleTimeout())
	}
	if d, ok := cfg.MaxLifetime(); !ok || d != time.Minute {
		t.Errorf("MaxLifetime() = %v, %v, want 1m, true", d, ok)
	}
}

func TestStats(t *testing.T) {
	tests := []struct {
		name     string
		stats    Stats
		wantUtil float64
		wantFull bool
	}{
		{"empty", NewStats(0, 0, 0, 0), 0, false},
		{"half", NewStats(4, 2, 2, 0), 0.5, false},
		{"full", NewStats(3, 0, 3, 2), 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stats.Utilization(); got != tt.wantUtil {
				t.Errorf("Utilization() = %v, want %v", got, tt.wantUtil)
			}
			if got := tt.stats.IsFull(); got != tt.wantFull {
				t.Errorf("IsFull() = %v, want %v", got, tt.wantFull)
			}
		})
	}
}

func TestPool_ReusesIdleConnection(t *testing.T) {
	f := conntest.NewFactory("mock")
	p := newTestPool(t, mustConfig(t, 0, 5), f)
	ctx := context.Background()

	for range 3 {
		lease, err := p.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if _, err := lease.Query(ctx, "SELECT 1"); err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		lease.Release()
	}

	if f.Calls() != 1 {
		t.Errorf("factory calls = %d, want 1", f.Calls())
	}
	if got := p.Stats(); got != NewStats(1, 1, 0, 0) {
		t.Errorf("Stats() = %+v, want total=1 idle=1", got)
	}
}

func TestPool_IdleReuseIsFIFO(t *testing.T) {
	f := conntest.NewFactory("mock")
	p := newTestPool(t, mustConfig(t, 0, 5), f)
	ctx := context.Background()

	a, _ := p.Acquire(ctx)
	b, _ := p.Acquire(ctx)
	a.Release()
	b.Release()

	next, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer next.Release()
	if next.Conn() != a.Conn() {
		t.Error("Acquire() did not return the longest-idle connection")
	}
}

func TestPool_AcquireTimeout(t *testing.T) {
	f := conntest.NewFactory("mock")
	p := newTestPool(t, mustConfig(t, 0, 2).WithAcquireTimeoutMs(30), f)
	ctx := context.Background()

	a, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer a.Release()
	b, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer b.Release()

	start := time.Now()
	_, err = p.Acquire(ctx)
	if !errors.Is(err, ErrAcquireTimeout) {
		t.Fatalf("Acquire() error = %v, want ErrAcquireTimeout", err)
	}
	if !errors.Is(err, conn.ErrTimeout) {
		t.Errorf("Acquire() error = %v, want it to wrap conn.ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("Acquire() returned after %v, want it to wait for the timeout", elapsed)
	}

	if got := p.Stats(); got.Total != 2 || got.Active != 2 || !got.IsFull() {
		t.Errorf("Stats() = %+v, want 2 active and full", got)
	}
	if f.Calls() != 2 {
		t.Errorf("factory calls = %d, want 2", f.Calls())
	}
}

func TestPool_ZeroAcquireTimeoutFailsFast(t *testing.T) {
	p := newTestPool(t, mustConfig(t, 0, 1).WithAcquireTimeoutMs(0), conntest.NewFactory("mock"))

	lease, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lease.Release()

	if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrAcquireTimeout) {
		t.Errorf("Acquire() error = %v, want ErrAcquireTimeout", err)
	}
}

func TestPool_WaiterServedOnRelease(t *testing.T) {
	f := conntest.NewFactory("mock")
	p := newTestPool(t, mustConfig(t, 0, 1), f)
	ctx := context.Background()

	held, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	got := make(chan *PooledConnection, 1)
	go func() {
		lease, err := p.Acquire(ctx)
		if err != nil {
			t.Errorf("waiting Acquire() error = %v", err)
		}
		got <- lease
	}()

	waitFor(t, func() bool { return p.Stats().Waiting == 1 })
	held.Release()

	select {
	case lease := <-got:
		if lease.Conn() != held.Conn() {
			t.Error("waiter did not receive the released connection")
		}
		lease.Release()
	case <-time.After(time.Second):
		t.Fatal("waiter was not served")
	}

	if f.Calls() != 1 {
		t.Errorf("factory calls = %d, want 1", f.Calls())
	}
	if p.Stats().Waiting != 0 {
		t.Errorf("Waiting = %d, want 0", p.Stats().Waiting)
	}
}

func TestPool_CancelledAcquire(t *testing.T) {
	p := newTestPool(t, mustConfig(t, 0, 1), conntest.NewFactory("mock"))

	held, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		errCh <- err
	}()

	waitFor(t, func() bool { return p.Stats().Waiting == 1 })
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, conn.ErrCancelled) || !errors.Is(err, context.Canceled) {
			t.Errorf("Acquire() error = %v, want ErrCancelled wrapping Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled Acquire() did not return")
	}
}

func TestPool_CreateFailedFreesSlot(t *testing.T) {
	f := conntest.NewFactory("mock")
	f.FailNext(errDown)
	p := newTestPool(t, mustConfig(t, 0, 1).WithAcquireTimeoutMs(50), f)

	_, err := p.Acquire(context.Background())
	if !errors.Is(err, ErrCreateFailed) || !errors.Is(err, errDown) {
		t.Fatalf("Acquire() error = %v, want ErrCreateFailed wrapping factory error", err)
	}
	if got := p.Stats(); got != NewStats(0, 0, 0, 0) {
		t.Errorf("Stats() after failure = %+v, want empty", got)
	}

	lease, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() after failure error = %v", err)
	}
	lease.Release()
}

func TestPool_ClosedConnectionDroppedOnRelease(t *testing.T) {
	f := conntest.NewFactory("mock")
	p := newTestPool(t, mustConfig(t, 0, 3), f)

	lease, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	f.Last().Kill()
	lease.Release()

	if got := p.Stats(); got.Total != 0 {
		t.Errorf("Stats() = %+v, want closed connection dropped", got)
	}
}

func TestPool_ConnectionLossDiscardsLease(t *testing.T) {
	f := conntest.NewFactory("mock")
	p := newTestPool(t, mustConfig(t, 0, 3), f)

	lease, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	f.Last().FailNext(conn.ErrConnectionLost)
	if _, err := lease.Execute(context.Background(), "INSERT INTO t VALUES (1)"); !errors.Is(err, conn.ErrConnectionLost) {
		t.Fatalf("Execute() error = %v, want ErrConnectionLost", err)
	}
	lease.Release()

	if got := p.Stats(); got.Total != 0 {
		t.Errorf("Stats() = %+v, want broken connection dropped", got)
	}
	if f.Last().CloseCalls() != 1 {
		t.Errorf("CloseCalls() = %d, want 1", f.Last().CloseCalls())
	}
}

func TestPool_MaxLifetime(t *testing.T) {
	f := conntest.NewFactory("mock")
	p := newTestPool(t, mustConfig(t, 0, 3).WithMaxLifetimeMs(20), f)

	lease, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	lease.Release()

	if got := p.Stats(); got.Total != 0 {
		t.Errorf("Stats() = %+v, want over-lifetime connection dropped", got)
	}
	if !f.Last().IsClosed() {
		t.Error("over-lifetime connection not closed")
	}
}

func TestPool_IdleTimeoutOnAcquire(t *testing.T) {
	f := conntest.NewFactory("mock")
	p := newTestPool(t, mustConfig(t, 0, 3).WithIdleTimeoutMs(20).WithReapInterval(0), f)
	ctx := context.Background()

	lease, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	first := lease.Conn()
	lease.Release()

	time.Sleep(30 * time.Millisecond)

	lease, err = p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lease.Release()

	if lease.Conn() == first {
		t.Error("Acquire() returned an idle-expired connection")
	}
	if !first.IsClosed() {
		t.Error("idle-expired connection not closed")
	}
}

func TestPool_IdleTimeoutKeepsMinSize(t *testing.T) {
	f := conntest.NewFactory("mock")
	p := newTestPool(t, mustConfig(t, 1, 3).WithIdleTimeoutMs(20).WithReapInterval(0), f)
	ctx := context.Background()

	if err := p.Warm(ctx); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	first := f.Last()

	time.Sleep(30 * time.Millisecond)

	lease, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lease.Release()

	if lease.Conn() != first {
		t.Error("Acquire() replaced the only connection at MinSize")
	}
	if first.IsClosed() {
		t.Error("connection at MinSize closed for idling")
	}
	if f.Calls() != 1 {
		t.Errorf("factory calls = %d, want 1", f.Calls())
	}
}

func TestPool_ValidationFailureSkipsConnection(t *testing.T) {
	f := conntest.NewFactory("mock")
	p := newTestPool(t, mustConfig(t, 0, 3), f)
	ctx := context.Background()

	lease, _ := p.Acquire(ctx)
	first := lease.Conn()
	lease.Release()

	f.SetValidate(func(c conn.Connection) bool { return c != first })

	lease, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lease.Release()
	if lease.Conn() == first {
		t.Error("Acquire() returned a connection that failed validation")
	}
	if !first.IsClosed() {
		t.Error("invalid connection not closed")
	}
}

func TestPool_LeaseAfterRelease(t *testing.T) {
	p := newTestPool(t, mustConfig(t, 0, 1), conntest.NewFactory("mock"))
	ctx := context.Background()

	lease, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	lease.Release()
	lease.Release()

	if !lease.IsReleased() || !lease.IsClosed() {
		t.Error("lease not marked released")
	}
	if _, err := lease.Query(ctx, "SELECT 1"); !errors.Is(err, ErrLeaseReleased) {
		t.Errorf("Query() error = %v, want ErrLeaseReleased", err)
	}
	if _, err := lease.Execute(ctx, "SELECT 1"); !errors.Is(err, ErrLeaseReleased) {
		t.Errorf("Execute() error = %v, want ErrLeaseReleased", err)
	}
	if _, err := lease.BeginTransaction(ctx); !errors.Is(err, ErrLeaseReleased) {
		t.Errorf("BeginTransaction() error = %v, want ErrLeaseReleased", err)
	}

	if got := p.Stats(); got != NewStats(1, 1, 0, 0) {
		t.Errorf("Stats() after double release = %+v, want one idle", got)
	}
}

func TestPool_Discard(t *testing.T) {
	f := conntest.NewFactory("mock")
	p := newTestPool(t, mustConfig(t, 0, 1), f)

	lease, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	lease.Discard()
	lease.Release()

	if got := p.Stats(); got.Total != 0 {
		t.Errorf("Stats() = %+v, want discarded connection gone", got)
	}
	if !f.Last().IsClosed() {
		t.Error("discarded connection not closed")
	}
}

func TestPool_WithReleasesOnPanic(t *testing.T) {
	p := newTestPool(t, mustConfig(t, 0, 1).WithAcquireTimeoutMs(50), conntest.NewFactory("mock"))

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("panic did not propagate")
			}
		}()
		_ = p.With(context.Background(), func(conn.Connection) error {
			panic("query builder bug")
		})
	}()

	if got := p.Stats(); got.Active != 0 {
		t.Errorf("Stats() after panic = %+v, want lease released", got)
	}

	errBoom := errors.New("boom")
	err := p.With(context.Background(), func(c conn.Connection) error {
		if _, err := c.Query(context.Background(), "SELECT 1"); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Errorf("With() error = %v, want fn error", err)
	}
	if got := p.Stats(); got.Active != 0 {
		t.Errorf("Stats() after With = %+v, want lease released", got)
	}
}

func TestPool_Warm(t *testing.T) {
	f := conntest.NewFactory("mock")
	p := newTestPool(t, mustConfig(t, 3, 5).WithReapInterval(0), f)

	if err := p.Warm(context.Background()); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	if got := p.Stats(); got != NewStats(3, 3, 0, 0) {
		t.Errorf("Stats() = %+v, want 3 idle", got)
	}

	// Already warm.
	if err := p.Warm(context.Background()); err != nil {
		t.Fatalf("second Warm() error = %v", err)
	}
	if f.Calls() != 3 {
		t.Errorf("factory calls = %d, want 3", f.Calls())
	}
}

func TestPool_WarmFailure(t *testing.T) {
	f := conntest.NewFactory("mock")
	f.FailNext(nil, errDown)
	p := newTestPool(t, mustConfig(t, 3, 5).WithReapInterval(0), f)

	err := p.Warm(context.Background())
	if !errors.Is(err, ErrCreateFailed) {
		t.Fatalf("Warm() error = %v, want ErrCreateFailed", err)
	}
	if got := p.Stats(); got != NewStats(1, 1, 0, 0) {
		t.Errorf("Stats() = %+v, want the one successful connection idle", got)
	}
}

func TestPool_ReaperEvictsAndRefills(t *testing.T) {
	f := conntest.NewFactory("mock")
	cfg := mustConfig(t, 1, 4).WithIdleTimeoutMs(20).WithReapInterval(5 * time.Millisecond)
	p := newTestPool(t, cfg, f)
	ctx := context.Background()

	leases := make([]*PooledConnection, 3)
	for i := range leases {
		lease, err := p.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		leases[i] = lease
	}
	for _, lease := range leases {
		lease.Release()
	}

	// Idle timeout shrinks the pool, but never below MinSize.
	waitFor(t, func() bool { return p.Stats().Total == 1 })
	time.Sleep(50 * time.Millisecond)
	if got := p.Stats().Total; got != 1 {
		t.Errorf("Total = %d, want MinSize 1", got)
	}

	// A dead idle connection is evicted and replaced.
	for _, c := range f.Created() {
		c.Kill()
	}
	calls := f.Calls()
	waitFor(t, func() bool { return f.Calls() > calls && p.Stats().Idle == 1 && f.Open() == 1 })
}

func TestPool_ReaperEvictsOverLifetime(t *testing.T) {
	f := conntest.NewFactory("mock")
	cfg := mustConfig(t, 1, 2).WithMaxLifetimeMs(20).WithReapInterval(5 * time.Millisecond)
	p := newTestPool(t, cfg, f)

	if err := p.Warm(context.Background()); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	first := f.Last()

	// Even at MinSize an over-lifetime connection is replaced.
	waitFor(t, func() bool { return first.IsClosed() && f.Calls() >= 2 })
}

func TestPool_Close(t *testing.T) {
	f := conntest.NewFactory("mock")
	p := newTestPool(t, mustConfig(t, 0, 2), f)
	ctx := context.Background()

	idle, _ := p.Acquire(ctx)
	leased, _ := p.Acquire(ctx)
	idle.Release()

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		if err == nil {
			// The waiter may win the idle connection before Close; give it back.
			_, err = p.Acquire(ctx)
		}
		errCh <- err
	}()

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrPoolClosed) {
			t.Errorf("pending Acquire() error = %v, want ErrPoolClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pending Acquire() not failed by Close()")
	}

	if _, err := p.Acquire(ctx); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Acquire() after Close error = %v, want ErrPoolClosed", err)
	}

	leasedConn := leased.Conn()
	leased.Release()
	if !leasedConn.IsClosed() {
		t.Error("connection released after Close was not closed")
	}

	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestPool_CloseIdle(t *testing.T) {
	f := conntest.NewFactory("mock")
	p := newTestPool(t, mustConfig(t, 2, 4).WithReapInterval(0), f)
	if err := p.Warm(context.Background()); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}

	leased, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer leased.Release()

	p.CloseIdle()

	if got := p.Stats(); got != NewStats(1, 0, 1, 0) {
		t.Errorf("Stats() = %+v, want only the leased connection", got)
	}
	if leased.IsClosed() {
		t.Error("CloseIdle() closed a leased connection")
	}
}

func TestPool_ConcurrentAcquireNeverExceedsMax(t *testing.T) {
	f := conntest.NewFactory("mock")
	p := newTestPool(t, mustConfig(t, 0, 3), f)

	var peak, current atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				err := p.With(context.Background(), func(c conn.Connection) error {
					n := current.Add(1)
					for {
						old := peak.Load()
						if n <= old || peak.CompareAndSwap(old, n) {
							break
						}
					}
					_, err := c.Query(context.Background(), "SELECT 1")
					current.Add(-1)
					return err
				})
				if err != nil {
					t.Errorf("With() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if peak.Load() > 3 {
		t.Errorf("peak concurrent leases = %d, want <= 3", peak.Load())
	}
	if f.Calls() > 3 {
		t.Errorf("factory calls = %d, want <= 3", f.Calls())
	}
	if got := p.Stats(); got.Active != 0 || got.Waiting != 0 || got.Total > 3 {
		t.Errorf("Stats() = %+v, want quiescent pool within max", got)
	}
}

func TestPool_ConcurrentAcquireTimesOutExcess(t *testing.T) {
	const maxSize, excess = 3, 4
	f := conntest.NewFactory("mock")
	p := newTestPool(t, mustConfig(t, 0, maxSize).WithAcquireTimeoutMs(200), f)

	var (
		mu       sync.Mutex
		leases   []*PooledConnection
		timeouts int
		other    []error
		wg       sync.WaitGroup
	)
	for range maxSize + excess {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := p.Acquire(context.Background())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				leases = append(leases, lease)
			case errors.Is(err, ErrAcquireTimeout):
				timeouts++
			default:
				other = append(other, err)
			}
		}()
	}

	waitFor(t, func() bool {
		st := p.Stats()
		return st.Waiting == excess && st.Active == maxSize
	})
	wg.Wait()

	if len(leases) != maxSize || timeouts != excess || len(other) != 0 {
		t.Errorf("leases = %d, timeouts = %d, other = %v, want %d, %d, none",
			len(leases), timeouts, other, maxSize, excess)
	}
	if got := p.Stats(); got.Waiting != 0 || got.Total != maxSize {
		t.Errorf("Stats() = %+v, want 0 waiting and %d total", got, maxSize)
	}
	if f.Calls() != maxSize {
		t.Errorf("factory calls = %d, want %d", f.Calls(), maxSize)
	}
	for _, lease := range leases {
		lease.Release()
	}
}

func TestPool_WithReconnectingConnections(t *testing.T) {
	inner := conntest.NewFactory("mock")
	factory := reconnect.NewFactory(inner, reconnect.NewConfig(2, reconnect.NewBackoff(1, 5)))
	p := newTestPool(t, mustConfig(t, 0, 1), factory)
	ctx := context.Background()

	lease, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	lease.Release()

	// The server drops the connection while it is idle.
	inner.Last().Kill()

	err = p.With(ctx, func(c conn.Connection) error {
		_, err := c.Query(ctx, "SELECT 1")
		return err
	})
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}
	if inner.Calls() != 2 {
		t.Errorf("inner factory calls = %d, want 2", inner.Calls())
	}
	if got := p.Stats(); got != NewStats(1, 1, 0, 0) {
		t.Errorf("Stats() = %+v, want the healed wrapper back in the pool", got)
	}
}

func TestPool_RecoveredWrapperKept(t *testing.T) {
	inner := conntest.NewFactory("mock")
	cfg := reconnect.NewConfig(2, reconnect.NewBackoff(1, 5)).WithRetryOperation(false)
	p := newTestPool(t, mustConfig(t, 0, 1), reconnect.NewFactory(inner, cfg))
	ctx := context.Background()

	lease, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	wrapper := lease.Conn()

	inner.Last().FailNext(conn.ErrConnectionLost)
	if _, err := lease.Query(ctx, "SELECT 1"); !errors.Is(err, reconnect.ErrConnectionRecovered) {
		t.Fatalf("Query() error = %v, want ErrConnectionRecovered", err)
	}
	lease.Release()

	if wrapper.IsClosed() {
		t.Error("recovered wrapper closed on release")
	}
	if got := p.Stats(); got != NewStats(1, 1, 0, 0) {
		t.Errorf("Stats() = %+v, want the recovered wrapper idle", got)
	}

	next, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer next.Release()
	if next.Conn() != wrapper {
		t.Error("Acquire() did not reuse the recovered wrapper")
	}
	if inner.Calls() != 2 {
		t.Errorf("inner factory calls = %d, want 2", inner.Calls())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}

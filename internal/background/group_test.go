package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGroup_ShutdownStopsTasks(t *testing.T) {
	g := New()

	var stopped atomic.Int32
	for range 3 {
		if err := g.Go("loop", func(ctx context.Context) {
			<-ctx.Done()
			stopped.Add(1)
		}); err != nil {
			t.Fatalf("Go() error = %v", err)
		}
	}

	if g.Running() != 3 {
		t.Errorf("Running() = %d, want 3", g.Running())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := g.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if stopped.Load() != 3 {
		t.Errorf("stopped = %d, want 3", stopped.Load())
	}
	if g.Running() != 0 {
		t.Errorf("Running() after Shutdown = %d, want 0", g.Running())
	}
}

func TestGroup_GoAfterShutdown(t *testing.T) {
	g := New()
	if err := g.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	err := g.Go("late", func(context.Context) {})
	if !errors.Is(err, ErrShutdown) {
		t.Errorf("Go() error = %v, want ErrShutdown", err)
	}

	// Second shutdown is harmless.
	if err := g.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestGroup_PanicRecovered(t *testing.T) {
	g := New()
	if err := g.Go("boom", func(context.Context) { panic("boom") }); err != nil {
		t.Fatalf("Go() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := g.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestGroup_ShutdownTimeout(t *testing.T) {
	g := New()
	release := make(chan struct{})
	if err := g.Go("stubborn", func(context.Context) { <-release }); err != nil {
		t.Fatalf("Go() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := g.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown() error = %v, want DeadlineExceeded", err)
	}

	close(release)
	if err := g.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() after release error = %v", err)
	}
}

func TestDefault_IsShared(t *testing.T) {
	if Default() != Default() {
		t.Error("Default() returned different groups")
	}
}

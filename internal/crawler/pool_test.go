package crawler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewWorkerPool(t *testing.T) {
	t.Parallel()

	t.Run("rejects zero workers", func(t *testing.T) {
		t.Parallel()

		if _, err := NewWorkerPool("test", 0, nil); err == nil {
			t.Error("expected error for zero workers")
		}
	})
}

func TestWorkerPool(t *testing.T) {
	t.Parallel()

	t.Run("runs every submitted job", func(t *testing.T) {
		t.Parallel()

		p, err := NewWorkerPool("test", 4, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var ran atomic.Int32
		for range 100 {
			if err := p.Submit(func(context.Context) { ran.Add(1) }); err != nil {
				t.Fatalf("unexpected submit error: %v", err)
			}
		}
		p.Shutdown()
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected wait error: %v", err)
		}

		if ran.Load() != 100 {
			t.Errorf("expected 100 jobs to run, got %d", ran.Load())
		}
	})

	t.Run("never exceeds its size", func(t *testing.T) {
		t.Parallel()

		p, _ := NewWorkerPool("test", 3, nil)

		var current, peak atomic.Int32
		for range 30 {
			_ = p.Submit(func(context.Context) {
				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				current.Add(-1)
			})
		}
		p.Shutdown()
		_ = p.Wait(context.Background())

		if peak.Load() > 3 {
			t.Errorf("expected at most 3 concurrent jobs, got %d", peak.Load())
		}
	})

	t.Run("jobs may submit more jobs", func(t *testing.T) {
		t.Parallel()

		p, _ := NewWorkerPool("test", 1, nil)

		var wg sync.WaitGroup
		wg.Add(2)
		_ = p.Submit(func(context.Context) {
			defer wg.Done()
			_ = p.Submit(func(context.Context) { wg.Done() })
		})
		wg.Wait()
		p.Shutdown()
	})

	t.Run("submit after shutdown fails", func(t *testing.T) {
		t.Parallel()

		p, _ := NewWorkerPool("test", 1, nil)
		p.Shutdown()

		err := p.Submit(func(context.Context) {})
		if !errors.Is(err, ErrPoolClosed) {
			t.Errorf("expected ErrPoolClosed, got %v", err)
		}
	})

	t.Run("survives panicking jobs", func(t *testing.T) {
		t.Parallel()

		p, _ := NewWorkerPool("test", 1, nil)

		done := make(chan struct{})
		_ = p.Submit(func(context.Context) { panic("boom") })
		_ = p.Submit(func(context.Context) { close(done) })

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("worker did not survive the panic")
		}
		p.Shutdown()
	})

	t.Run("wait times out and abort cancels running jobs", func(t *testing.T) {
		t.Parallel()

		p, _ := NewWorkerPool("test", 1, nil)

		started := make(chan struct{})
		_ = p.Submit(func(ctx context.Context) {
			close(started)
			<-ctx.Done()
		})
		<-started
		p.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}

		p.Abort()
		if err := p.Wait(context.Background()); err != nil {
			t.Errorf("expected workers to exit after abort, got %v", err)
		}
	})
}

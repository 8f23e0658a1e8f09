package daemon

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerInvokesTaskRepeatedly(t *testing.T) {
	sched := New(nil)
	var ticks int64
	sched.Add("count", 10*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&ticks, 1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	sched.Run(ctx)

	if atomic.LoadInt64(&ticks) < 3 {
		t.Errorf("ticks = %d, want at least 3 in 55ms at a 10ms cadence", ticks)
	}
}

func TestSchedulerStopsWithinOneCadenceOfShutdown(t *testing.T) {
	sched := New(nil)
	sched.Add("slow", 5*time.Second, func(ctx context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("scheduler did not exit promptly on shutdown")
	}
}

func TestSchedulerTaskErrorDoesNotStopScheduling(t *testing.T) {
	sched := New(nil)
	var calls int64
	sched.Add("flaky", 10*time.Millisecond, func(ctx context.Context) error {
		n := atomic.AddInt64(&calls, 1)
		if n == 1 {
			return context.DeadlineExceeded
		}
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()
	sched.Run(ctx)

	if atomic.LoadInt64(&calls) < 2 {
		t.Errorf("calls = %d, want at least 2 (a failing tick must not kill the daemon)", calls)
	}
}

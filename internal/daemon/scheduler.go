// Package daemon implements the periodic task scheduler shared by every
// maintenance loop in the DHT: invoke a named task, sleep the
// configured cadence, repeat, until cooperative shutdown.
package daemon

import (
	"context"
	"time"

	"github.com/kunwarpradip/distributedchord-dht/internal/logger"
)

// Task is one tick of a periodic job. An error is logged and the task
// is rescheduled for the next tick; it never terminates the scheduler.
type Task func(ctx context.Context) error

// job pairs a task with its own cadence and name.
type job struct {
	name     string
	interval time.Duration
	task     Task
}

// Scheduler runs a fixed set of named periodic tasks, each on its own
// cadence, each in its own goroutine, until the context supplied to Run
// is canceled.
type Scheduler struct {
	lgr  logger.Logger
	jobs []job
}

// New builds an empty scheduler. Register tasks with Add before Run.
func New(lgr logger.Logger) *Scheduler {
	if lgr == nil {
		lgr = logger.NopLogger{}
	}
	return &Scheduler{lgr: lgr}
}

// Add registers a named periodic task. Must be called before Run.
func (s *Scheduler) Add(name string, interval time.Duration, task Task) {
	s.jobs = append(s.jobs, job{name: name, interval: interval, task: task})
}

// Run starts every registered task on its own goroutine and blocks
// until ctx is canceled, at which point every task has observed
// shutdown and returned.
func (s *Scheduler) Run(ctx context.Context) {
	done := make(chan struct{}, len(s.jobs))
	for _, j := range s.jobs {
		j := j
		go func() {
			s.runJob(ctx, j)
			done <- struct{}{}
		}()
	}
	<-ctx.Done()
	for range s.jobs {
		<-done
	}
}

func (s *Scheduler) runJob(ctx context.Context, j job) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		if ctx.Err() != nil {
			return
		}
		if err := j.task(ctx); err != nil {
			s.lgr.Warn("daemon task failed, will retry next tick",
				logger.F("task", j.name), logger.F("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

package scheduler

import (
	"context"
	"time"
)

type Job interface{ Run(ctx context.Context) }

type FuncJob func(ctx context.Context)

func (f FuncJob) Run(ctx context.Context) { f(ctx) }

// Task 一次性定时任务句柄
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the task if it has not fired yet.
func (t *Task) Cancel() { t.cancel() }

// Done is closed once the task has fired or been cancelled.
func (t *Task) Done() <-chan struct{} { return t.done }

type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{ctx: ctx, cancel: cancel}
}

// Stop cancels every pending task.
func (s *Scheduler) Stop() { s.cancel() }

func (s *Scheduler) Every(d time.Duration, job Job) { go s.loopEvery(d, job) }

// After schedules job to run once after d. The returned handle can cancel
// the task before it fires; the job itself runs without any lock held.
func (s *Scheduler) After(d time.Duration, job Job) *Task {
	ctx, cancel := context.WithCancel(s.ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer cancel()
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
			job.Run(ctx)
		}
	}()
	return t
}

func (s *Scheduler) loopEvery(d time.Duration, job Job) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			job.Run(s.ctx)
		}
	}
}

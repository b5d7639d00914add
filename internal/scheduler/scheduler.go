// Package scheduler runs the periodic collection pipeline on a single worker
// loop. Tasks never overlap; the store-write mutex below the store boundary
// gives writes their total order.
package scheduler

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/avolkhov/logly/internal/logging"
)

// Task is one periodic unit of work.
type Task struct {
	Name     string
	Interval time.Duration
	Fn       func(ctx context.Context) error
}

// Scheduler drives a fixed task set. Not safe to Start twice.
type Scheduler struct {
	tasks []Task
	log   *zap.SugaredLogger

	// yield between loop passes; shortened in tests.
	tick time.Duration

	handleSignals bool
	stop          chan struct{}
}

// Option tunes a Scheduler.
type Option func(*Scheduler)

// WithSignalHandling installs INT/TERM handlers in Start. Off by default so
// test runs never touch process signal state.
func WithSignalHandling() Option {
	return func(s *Scheduler) { s.handleSignals = true }
}

// WithTick overrides the 1 s yield between loop passes.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) { s.tick = d }
}

// New builds a scheduler over the task list; declaration order is the RunOnce
// execution order.
func New(tasks []Task, log *zap.SugaredLogger, opts ...Option) *Scheduler {
	if log == nil {
		log = logging.Discard()
	}
	s := &Scheduler{
		tasks: tasks,
		log:   log,
		tick:  time.Second,
		stop:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start blocks, running every task immediately and then at its interval,
// until Stop is called, the context is cancelled, or (with signal handling)
// INT/TERM arrives. An in-flight task body always runs to completion.
func (s *Scheduler) Start(ctx context.Context) {
	if s.handleSignals {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer cancel()
	}

	next := make([]time.Time, len(s.tasks))
	now := time.Now()
	for i := range next {
		next[i] = now // run everything once at t=0
	}

	s.log.Infow("scheduler started", "tasks", len(s.tasks))
	for {
		now = time.Now()
		for i, t := range s.tasks {
			if now.Before(next[i]) {
				continue
			}
			s.runTask(ctx, t)
			next[i] = now.Add(t.Interval)
		}

		select {
		case <-s.stop:
			s.log.Infow("scheduler stopped")
			return
		case <-ctx.Done():
			s.log.Infow("scheduler cancelled", "reason", ctx.Err())
			return
		case <-time.After(s.tick):
		}
	}
}

// Stop asks the run loop to exit; it returns without waiting. The loop exits
// within one tick.
func (s *Scheduler) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// RunOnce executes every task body synchronously in declaration order. Used
// by the one-shot CLI and tests.
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, t := range s.tasks {
		s.runTask(ctx, t)
	}
}

// runTask isolates one task body: errors are logged, panics are recovered,
// and in both cases the task stays scheduled.
func (s *Scheduler) runTask(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("task panicked", "task", t.Name, "panic", r)
		}
	}()
	start := time.Now()
	if err := t.Fn(ctx); err != nil {
		s.log.Warnw("task failed", "task", t.Name, "err", err)
		return
	}
	s.log.Debugw("task completed", "task", t.Name, "elapsed", time.Since(start))
}

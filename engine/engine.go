// Package engine starts and supervises the bar, its module workers, and any
// auxiliary tasks, and coordinates their shutdown.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nomis52/barline/bar"
	"github.com/nomis52/barline/worker"
)

const defaultGracePeriod = 5 * time.Second

// Task is an auxiliary long-running job, such as a metrics pusher. It must
// return promptly once ctx is cancelled.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Engine owns the lifecycle of one bar instance.
type Engine struct {
	workers []*worker.Worker
	bar     *bar.Bar
	tasks   []Task
	logger  *slog.Logger
	grace   time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithGracePeriod bounds how long Run waits for goroutines to finish after
// shutdown begins.
func WithGracePeriod(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.grace = d
		}
	}
}

// WithTask adds an auxiliary task that runs alongside the workers.
func WithTask(name string, run func(ctx context.Context) error) Option {
	return func(e *Engine) {
		e.tasks = append(e.tasks, Task{Name: name, Run: run})
	}
}

// New creates an engine supervising the given workers and bar.
func New(workers []*worker.Worker, b *bar.Bar, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		workers: workers,
		bar:     b,
		logger:  logger.With("component", "engine"),
		grace:   defaultGracePeriod,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run starts every worker, the bar, and the auxiliary tasks, then blocks
// until ctx is cancelled and everything has stopped. A goroutine that fails
// to stop within the grace period is abandoned and an error is returned.
//
// Workers absorb their own module failures, so the only errors that surface
// here come from auxiliary tasks or the shutdown deadline.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("starting", "workers", len(e.workers), "tasks", len(e.tasks))

	g, gctx := errgroup.WithContext(ctx)

	for _, w := range e.workers {
		w := w
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	g.Go(func() error {
		return e.bar.Run(gctx)
	})
	for _, t := range e.tasks {
		t := t
		g.Go(func() error {
			if err := t.Run(gctx); err != nil {
				e.logger.Error("task failed", "task", t.Name, "error", err)
				return fmt.Errorf("task %s: %w", t.Name, err)
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	e.logger.Info("shutting down", "grace_period", e.grace)
	timer := time.NewTimer(e.grace)
	defer timer.Stop()

	select {
	case err := <-done:
		e.logger.Info("stopped")
		return err
	case <-timer.C:
		return fmt.Errorf("shutdown did not complete within %s", e.grace)
	}
}

// TerminalFailed reports whether any worker's module failed terminally.
// The process exit code is derived from this after Run returns.
func (e *Engine) TerminalFailed() bool {
	for _, w := range e.workers {
		if w.TerminalFailed() {
			return true
		}
	}
	return false
}

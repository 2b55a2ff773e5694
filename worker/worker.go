// Package worker runs one status module's wait/update/render cycle on its own
// goroutine, isolating its failures from every other module.
//
// Failure taxonomy:
//   - transient (network, timeout, temporary device absence): retried forever
//     with capped exponential backoff, the slot shows a degraded marker while
//     retrying.
//   - terminal (missing capability, misconfiguration): the worker stops for
//     good and the slot shows a fixed unavailable marker.
//
// Neither kind of failure ever propagates to the aggregator or to sibling
// workers.
package worker

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nomis52/barline/markup"
	"github.com/nomis52/barline/module"
	"github.com/nomis52/barline/theme"
)

// Status is the externally visible state of a worker's slot.
type Status int32

const (
	StatusStarting Status = iota
	StatusReady
	StatusRetrying
	StatusFailed
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusReady:
		return "ready"
	case StatusRetrying:
		return "retrying"
	case StatusFailed:
		return "failed"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// RenderEvent carries a module's newly computed display text to the bar.
// Events are consumed exactly once and not retained.
type RenderEvent struct {
	Slot int
	Text string
	Time time.Time
}

// Recorder counts update outcomes for monitoring. Implementations must be
// safe for concurrent use.
type Recorder interface {
	RecordUpdate(moduleName string)
	RecordFailure(moduleName string, terminal bool)
}

// Options tune a worker. Zero fields are replaced with defaults by New.
type Options struct {
	// UpdateTimeout bounds a single Update call. A module that exceeds it is
	// treated as having failed transiently.
	UpdateTimeout time.Duration
	// Backoff is the retry policy for transient failures.
	Backoff Backoff
	// DegradedText is shown while the module is retrying. Defaults to a
	// themed warning icon.
	DegradedText string
	// UnavailableText is shown once when the module fails terminally.
	// Defaults to a themed unavailable icon.
	UnavailableText string
	// Metrics receives update outcome counts. May be nil.
	Metrics Recorder
}

const defaultUpdateTimeout = 30 * time.Second

// Worker drives one module. The worker owns its slot's render text: no other
// component writes it.
type Worker struct {
	slot   int
	name   string
	mod    module.Module
	events chan<- RenderEvent
	logger *slog.Logger
	opts   Options

	backoff        Backoff
	status         atomic.Int32
	terminalFailed atomic.Bool

	// Render dedup state, touched only by Run's goroutine.
	lastText string
	emitted  bool
}

// New creates a worker for the module occupying the given display slot.
func New(slot int, name string, mod module.Module, events chan<- RenderEvent, logger *slog.Logger, opts Options) *Worker {
	if opts.UpdateTimeout <= 0 {
		opts.UpdateTimeout = defaultUpdateTimeout
	}
	if opts.Backoff == (Backoff{}) {
		opts.Backoff = DefaultBackoff()
	}
	if opts.DegradedText == "" {
		opts.DegradedText = markup.Fg(theme.IconWarning, theme.Notice)
	}
	if opts.UnavailableText == "" {
		opts.UnavailableText = markup.Fg(theme.IconUnavailable, theme.Critical)
	}
	return &Worker{
		slot:    slot,
		name:    name,
		mod:     mod,
		events:  events,
		logger:  logger.With("module", name, "slot", slot),
		opts:    opts,
		backoff: opts.Backoff,
	}
}

// Name returns the module's configured name.
func (w *Worker) Name() string { return w.name }

// Slot returns the worker's display order index.
func (w *Worker) Slot() int { return w.slot }

// Status returns the worker's current state.
func (w *Worker) Status() Status { return Status(w.status.Load()) }

// TerminalFailed reports whether the module failed terminally at any point.
// Used by the lifecycle controller to pick the process exit code.
func (w *Worker) TerminalFailed() bool { return w.terminalFailed.Load() }

// Run loops wait -> update-with-retry -> render until ctx is cancelled or the
// module fails terminally. It always returns nil: module failures are
// contained here and must not take down sibling workers.
func (w *Worker) Run(ctx context.Context) error {
	defer w.closeModule()
	defer w.status.Store(int32(StatusStopped))

	w.logger.Debug("worker started")

	for {
		if err := w.mod.WaitTrigger(ctx); err != nil {
			if module.IsCancellation(err) || ctx.Err() != nil {
				w.logger.Debug("worker stopping")
				return nil
			}
			if module.IsTerminal(err) {
				w.failTerminally(ctx, err)
				return nil
			}
			w.logger.Warn("trigger failed", "error", err)
			if !w.sleep(ctx, w.backoff.Next()) {
				return nil
			}
			continue
		}

		if !w.updateWithRetry(ctx) {
			return nil
		}
	}
}

// updateWithRetry applies the retry policy around a single recompute.
// It returns false when the worker must stop (cancellation or terminal
// failure), true when the loop should go back to waiting.
func (w *Worker) updateWithRetry(ctx context.Context) bool {
	for {
		err := w.update(ctx)
		if err == nil {
			w.backoff.Reset()
			w.status.Store(int32(StatusReady))
			if w.opts.Metrics != nil {
				w.opts.Metrics.RecordUpdate(w.name)
			}
			w.emit(ctx, w.mod.Render())
			return true
		}

		if module.IsCancellation(err) || ctx.Err() != nil {
			return false
		}

		if module.IsTerminal(err) {
			w.failTerminally(ctx, err)
			return false
		}

		delay := w.backoff.Next()
		w.status.Store(int32(StatusRetrying))
		if w.opts.Metrics != nil {
			w.opts.Metrics.RecordFailure(w.name, false)
		}
		w.logger.Warn("update failed, retrying",
			"error", err,
			"attempt", w.backoff.Attempts(),
			"delay", delay,
		)
		w.emit(ctx, w.opts.DegradedText)

		if !w.sleep(ctx, delay) {
			return false
		}
	}
}

// update runs a single recompute bounded by the configured timeout.
func (w *Worker) update(ctx context.Context) error {
	uctx, cancel := context.WithTimeout(ctx, w.opts.UpdateTimeout)
	defer cancel()
	return w.mod.Update(uctx)
}

// failTerminally records the permanent failure and renders the fixed
// unavailable marker exactly once.
func (w *Worker) failTerminally(ctx context.Context, err error) {
	w.status.Store(int32(StatusFailed))
	w.terminalFailed.Store(true)
	if w.opts.Metrics != nil {
		w.opts.Metrics.RecordFailure(w.name, true)
	}
	w.logger.Error("module failed permanently", "error", err)
	w.emit(ctx, w.opts.UnavailableText)
}

// emit publishes a render event unless the text is identical to the last one
// published. The first render is always published so the slot replaces its
// placeholder.
func (w *Worker) emit(ctx context.Context, text string) {
	if w.emitted && text == w.lastText {
		return
	}
	ev := RenderEvent{Slot: w.slot, Text: text, Time: time.Now()}
	select {
	case w.events <- ev:
		w.lastText = text
		w.emitted = true
	case <-ctx.Done():
	}
}

// sleep waits for d, returning false if ctx was cancelled first.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// closeModule releases module-held resources (listeners, watchers).
func (w *Worker) closeModule() {
	if c, ok := w.mod.(io.Closer); ok {
		if err := c.Close(); err != nil {
			w.logger.Warn("module close failed", "error", err)
		}
	}
}

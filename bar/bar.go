// Package bar collects render events from all module workers and composes the
// single status line written to the output boundary.
//
// The bar is the only consumer of render events and the only writer of the
// composed line, so slot state needs no locking: all mutation is funneled
// through one goroutine. Per-slot content is eventually consistent; the
// composed line always reflects whole segments, never a torn one.
package bar

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/nomis52/barline/worker"
)

// WriteRecorder counts physical writes for monitoring. May be nil.
type WriteRecorder interface {
	RecordWrite()
}

// Options tune composition.
type Options struct {
	// Separator joins adjacent segments.
	Separator string
	// Placeholder is shown for slots that have not rendered yet.
	Placeholder string
	// CoalesceWindow bounds how long the bar waits for more events after the
	// first one before recomposing, collapsing bursts into one write.
	CoalesceWindow time.Duration
	// Metrics receives write counts. May be nil.
	Metrics WriteRecorder
}

const defaultCoalesceWindow = 20 * time.Millisecond

// Bar owns the ordered slot list and the last rendered text per slot.
type Bar struct {
	names    []string
	texts    []string
	rendered []bool

	events <-chan worker.RenderEvent
	out    io.Writer
	logger *slog.Logger
	opts   Options

	lastLine string
	wrote    bool
}

// New creates a bar with one slot per module name, in display order.
func New(names []string, events <-chan worker.RenderEvent, out io.Writer, logger *slog.Logger, opts Options) *Bar {
	if opts.CoalesceWindow <= 0 {
		opts.CoalesceWindow = defaultCoalesceWindow
	}
	return &Bar{
		names:    names,
		texts:    make([]string, len(names)),
		rendered: make([]bool, len(names)),
		events:   events,
		out:      out,
		logger:   logger.With("component", "bar"),
		opts:     opts,
	}
}

// Run drains render events until ctx is cancelled. Each burst of events is
// coalesced into a single recomposition and at most one write.
func (b *Bar) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			b.logger.Debug("bar stopping")
			return nil
		case ev := <-b.events:
			b.apply(ev)
			b.coalesce(ctx)
			b.flush()
		}
	}
}

// apply stores an event's text in its slot.
func (b *Bar) apply(ev worker.RenderEvent) {
	if ev.Slot < 0 || ev.Slot >= len(b.texts) {
		b.logger.Warn("render event for unknown slot", "slot", ev.Slot)
		return
	}
	b.texts[ev.Slot] = ev.Text
	b.rendered[ev.Slot] = true
}

// coalesce absorbs further events until the window elapses, keeping only the
// most recent text per slot.
func (b *Bar) coalesce(ctx context.Context) {
	timer := time.NewTimer(b.opts.CoalesceWindow)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.events:
			b.apply(ev)
		case <-timer.C:
			return
		}
	}
}

// flush writes the composed line if it changed since the last write.
func (b *Bar) flush() {
	line := b.compose()
	if b.wrote && line == b.lastLine {
		return
	}
	if _, err := io.WriteString(b.out, line+"\n"); err != nil {
		// The output boundary failing is not a module failure; keep running
		// and retry on the next flush.
		b.logger.Error("writing status line failed", "error", err)
		return
	}
	b.lastLine = line
	b.wrote = true
	if b.opts.Metrics != nil {
		b.opts.Metrics.RecordWrite()
	}
}

// compose joins all slots in fixed order, substituting the placeholder for
// slots that have not rendered yet.
func (b *Bar) compose() string {
	segments := make([]string, len(b.texts))
	for i, text := range b.texts {
		if !b.rendered[i] {
			segments[i] = b.opts.Placeholder
			continue
		}
		segments[i] = text
	}
	return strings.Join(segments, b.opts.Separator)
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/barline/module"
)

// fakeModule is a scriptable module: WaitTrigger fires when the test sends on
// triggerCh, Update and Render behavior is controlled per update count.
type fakeModule struct {
	triggerCh chan struct{}
	updateFn  func(n int) error
	renderFn  func(n int) string

	mu      sync.Mutex
	updates int
	closed  atomic.Bool
}

func newFakeModule() *fakeModule {
	return &fakeModule{triggerCh: make(chan struct{})}
}

func (m *fakeModule) WaitTrigger(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.triggerCh:
		return nil
	}
}

func (m *fakeModule) Update(ctx context.Context) error {
	m.mu.Lock()
	m.updates++
	n := m.updates
	m.mu.Unlock()
	if m.updateFn != nil {
		return m.updateFn(n)
	}
	return nil
}

func (m *fakeModule) Render() string {
	m.mu.Lock()
	n := m.updates
	m.mu.Unlock()
	if m.renderFn != nil {
		return m.renderFn(n)
	}
	return fmt.Sprintf("update-%d", n)
}

func (m *fakeModule) Close() error {
	m.closed.Store(true)
	return nil
}

func (m *fakeModule) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fastBackoff() Backoff {
	return Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2}
}

func waitEvent(t *testing.T, events <-chan RenderEvent) RenderEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for render event")
		return RenderEvent{}
	}
}

func TestWorker_RendersOnTrigger(t *testing.T) {
	mod := newFakeModule()
	events := make(chan RenderEvent, 8)
	w := New(3, "fake", mod, events, testLogger(), Options{Backoff: fastBackoff()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, w.Run(ctx))
	}()

	mod.triggerCh <- struct{}{}
	ev := waitEvent(t, events)
	assert.Equal(t, 3, ev.Slot)
	assert.Equal(t, "update-1", ev.Text)
	assert.Equal(t, StatusReady, w.Status())

	cancel()
	<-done
	assert.Equal(t, StatusStopped, w.Status())
	assert.True(t, mod.closed.Load(), "worker must close the module on exit")
}

func TestWorker_SkipsIdenticalRenders(t *testing.T) {
	mod := newFakeModule()
	mod.renderFn = func(n int) string {
		if n < 3 {
			return "same"
		}
		return "changed"
	}
	events := make(chan RenderEvent, 8)
	w := New(0, "fake", mod, events, testLogger(), Options{Backoff: fastBackoff()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	mod.triggerCh <- struct{}{}
	assert.Equal(t, "same", waitEvent(t, events).Text)

	// Second trigger renders identical text: no event.
	mod.triggerCh <- struct{}{}
	// Third trigger renders different text: next event observed must be it.
	mod.triggerCh <- struct{}{}
	assert.Equal(t, "changed", waitEvent(t, events).Text)
	assert.Empty(t, events)
}

func TestWorker_TransientFailureRetriesForever(t *testing.T) {
	mod := newFakeModule()
	mod.updateFn = func(n int) error { return errors.New("flaky source") }
	events := make(chan RenderEvent, 8)
	rec := &countingRecorder{}
	w := New(0, "fake", mod, events, testLogger(), Options{
		Backoff:      fastBackoff(),
		DegradedText: "degraded",
		Metrics:      rec,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	mod.triggerCh <- struct{}{}
	assert.Equal(t, "degraded", waitEvent(t, events).Text)

	// The retry loop keeps attempting indefinitely.
	require.Eventually(t, func() bool { return mod.updateCount() >= 10 },
		5*time.Second, time.Millisecond)
	assert.Equal(t, StatusRetrying, w.Status())
	assert.False(t, w.TerminalFailed())
	assert.GreaterOrEqual(t, rec.transient.Load(), int64(10))

	// The degraded marker was published once, not once per attempt.
	assert.Empty(t, events)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestWorker_RecoversAfterTransientFailures(t *testing.T) {
	mod := newFakeModule()
	mod.updateFn = func(n int) error {
		if n < 3 {
			return errors.New("not yet")
		}
		return nil
	}
	mod.renderFn = func(n int) string { return "recovered" }
	events := make(chan RenderEvent, 8)
	w := New(0, "fake", mod, events, testLogger(), Options{
		Backoff:      fastBackoff(),
		DegradedText: "degraded",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	mod.triggerCh <- struct{}{}
	assert.Equal(t, "degraded", waitEvent(t, events).Text)
	assert.Equal(t, "recovered", waitEvent(t, events).Text)
	assert.Equal(t, StatusReady, w.Status())
}

func TestWorker_TerminalFailureStopsWorker(t *testing.T) {
	mod := newFakeModule()
	mod.updateFn = func(n int) error {
		return module.Terminal(errors.New("capability missing"))
	}
	events := make(chan RenderEvent, 8)
	rec := &countingRecorder{}
	w := New(0, "fake", mod, events, testLogger(), Options{
		Backoff:         fastBackoff(),
		UnavailableText: "unavailable",
		Metrics:         rec,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, w.Run(context.Background()))
	}()

	mod.triggerCh <- struct{}{}
	assert.Equal(t, "unavailable", waitEvent(t, events).Text)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after terminal failure")
	}

	assert.Equal(t, 1, mod.updateCount(), "no recompute attempts after terminal failure")
	assert.True(t, w.TerminalFailed())
	assert.Equal(t, int64(1), rec.terminal.Load())
	assert.True(t, mod.closed.Load())
}

func TestWorker_TerminalTriggerFailure(t *testing.T) {
	// A trigger that fails terminally, e.g. a listener that cannot bind.
	events := make(chan RenderEvent, 8)
	w := New(0, "fake", &terminalTriggerModule{}, events, testLogger(), Options{
		Backoff:         fastBackoff(),
		UnavailableText: "unavailable",
	})

	require.NoError(t, w.Run(context.Background()))
	assert.True(t, w.TerminalFailed())
	assert.Equal(t, "unavailable", waitEvent(t, events).Text)
}

type terminalTriggerModule struct{}

func (m *terminalTriggerModule) WaitTrigger(ctx context.Context) error {
	return module.Terminal(errors.New("bind: address already in use"))
}
func (m *terminalTriggerModule) Update(ctx context.Context) error { return nil }
func (m *terminalTriggerModule) Render() string                   { return "" }

func TestWorker_CancellationWhileWaiting(t *testing.T) {
	mod := newFakeModule()
	events := make(chan RenderEvent, 1)
	w := New(0, "fake", mod, events, testLogger(), Options{Backoff: fastBackoff()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("cancellation while waiting was not honored promptly")
	}
}

func TestWorker_UpdateTimeoutIsTransient(t *testing.T) {
	mod := newFakeModule()
	mod.updateFn = func(n int) error {
		if n == 1 {
			// Simulate a hung recompute that only stops at the deadline.
			return context.DeadlineExceeded
		}
		return nil
	}
	events := make(chan RenderEvent, 8)
	w := New(0, "fake", mod, events, testLogger(), Options{
		Backoff:       fastBackoff(),
		UpdateTimeout: 10 * time.Millisecond,
		DegradedText:  "degraded",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	mod.triggerCh <- struct{}{}
	assert.Equal(t, "degraded", waitEvent(t, events).Text)
	assert.Equal(t, "update-2", waitEvent(t, events).Text)
	assert.False(t, w.TerminalFailed())
}

type countingRecorder struct {
	updates   atomic.Int64
	transient atomic.Int64
	terminal  atomic.Int64
}

func (r *countingRecorder) RecordUpdate(string) {
	r.updates.Add(1)
}

func (r *countingRecorder) RecordFailure(_ string, terminal bool) {
	if terminal {
		r.terminal.Add(1)
	} else {
		r.transient.Add(1)
	}
}

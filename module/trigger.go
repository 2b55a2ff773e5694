package module

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
)

// ErrInvalidCronSpec is returned when a cron specification cannot be parsed.
var ErrInvalidCronSpec = errors.New("invalid cron spec")

// Trigger is the reusable blocking-wait building block modules embed to
// implement WaitTrigger. Wait blocks until a refresh is due or ctx is done.
type Trigger interface {
	Wait(ctx context.Context) error
}

// TickerTrigger fires at a fixed period. The first Wait fires immediately so
// a module renders without waiting a full period after startup.
type TickerTrigger struct {
	Period time.Duration

	started bool
}

// Wait blocks for the configured period, or returns ctx.Err() on cancellation.
func (t *TickerTrigger) Wait(ctx context.Context) error {
	if !t.started {
		t.started = true
		return ctx.Err()
	}
	timer := time.NewTimer(t.Period)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CronTrigger fires according to a cron schedule.
type CronTrigger struct {
	spec     string
	schedule cron.Schedule
	started  bool
}

// NewCronTrigger parses spec in standard cron format (5 fields: minute, hour,
// day, month, weekday). Returns ErrInvalidCronSpec if it cannot be parsed.
// Like TickerTrigger, the first Wait fires immediately.
func NewCronTrigger(spec string) (*CronTrigger, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronSpec, err)
	}
	return &CronTrigger{spec: spec, schedule: schedule}, nil
}

// Next returns the next scheduled fire time from now.
func (t *CronTrigger) Next() time.Time {
	return t.schedule.Next(time.Now())
}

// Wait blocks until the next scheduled time, or returns ctx.Err() on
// cancellation.
func (t *CronTrigger) Wait(ctx context.Context) error {
	if !t.started {
		t.started = true
		return ctx.Err()
	}
	timer := time.NewTimer(time.Until(t.Next()))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FileTrigger fires when a watched file changes. The parent directory is
// watched rather than the file itself, so editors that replace the file on
// save (write to temp, rename over) are still observed.
type FileTrigger struct {
	path    string
	watcher *fsnotify.Watcher
	started bool
}

// NewFileTrigger starts watching the directory containing path.
func NewFileTrigger(path string) (*FileTrigger, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return &FileTrigger{path: path, watcher: watcher}, nil
}

// Wait blocks until the watched file is created, written, renamed or removed.
// Events for sibling files in the same directory are ignored.
func (t *FileTrigger) Wait(ctx context.Context) error {
	if !t.started {
		t.started = true
		return ctx.Err()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-t.watcher.Events:
			if !ok {
				return errors.New("file watcher closed")
			}
			if filepath.Base(ev.Name) != filepath.Base(t.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				return nil
			}
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return errors.New("file watcher closed")
			}
			return fmt.Errorf("file watcher: %w", err)
		}
	}
}

// Close releases the underlying watcher.
func (t *FileTrigger) Close() error {
	return t.watcher.Close()
}

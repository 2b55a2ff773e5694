// Package modules contains the built-in status modules and the factory that
// constructs them from configuration.
package modules

import (
	"context"
	"time"

	"github.com/nomis52/barline/markup"
	"github.com/nomis52/barline/module"
	"github.com/nomis52/barline/theme"
)

const defaultDateTimeFormat = "Mon 2 Jan 15:04"

// DateTime shows the current local time. It re-evaluates every second and
// relies on render deduplication upstream, so a format without seconds still
// produces one write per minute.
type DateTime struct {
	trigger module.TickerTrigger
	format  string
	now     func() time.Time

	text string
}

// NewDateTime creates a clock module using the given time.Format layout.
func NewDateTime(format string) *DateTime {
	if format == "" {
		format = defaultDateTimeFormat
	}
	return &DateTime{
		trigger: module.TickerTrigger{Period: time.Second},
		format:  format,
		now:     time.Now,
	}
}

func (d *DateTime) WaitTrigger(ctx context.Context) error {
	return d.trigger.Wait(ctx)
}

func (d *DateTime) Update(ctx context.Context) error {
	d.text = d.now().Format(d.format)
	return nil
}

func (d *DateTime) Render() string {
	return markup.Fg(d.text, theme.Foreground)
}

// Package module defines the contract implemented by every status module.
//
// A module produces one segment of the composed status line. The engine never
// interprets a module's data; it only drives the wait/update/render cycle and
// concatenates the rendered segments.
//
// Each module runs on its own worker goroutine, so implementations only need
// to be safe against the single caller, with one exception: Render may be
// called after Update has returned, never concurrently with it.
package module

import "context"

// Module is the capability contract for a status producer.
//
// The engine calls the three operations in a loop: WaitTrigger blocks until a
// refresh is warranted, Update recomputes internal state, Render converts the
// current state to display text.
type Module interface {
	// WaitTrigger blocks until there is a reason to refresh (elapsed timer,
	// filesystem change, inbound message...). It must return promptly with
	// ctx.Err() once ctx is cancelled.
	WaitTrigger(ctx context.Context) error

	// Update recomputes the module's internal state. The caller bounds the
	// call with a deadline on ctx; implementations must honor it so a hung
	// external source cannot wedge the retry machinery.
	Update(ctx context.Context) error

	// Render converts current state to display text. It must not fail and
	// must not block. Modules are responsible for sanitizing their own
	// output (no control sequences, no newlines).
	Render() string
}

package module

import (
	"context"
	"errors"
	"fmt"
)

// terminalError marks a failure that cannot be retried: the module's
// capability is permanently unavailable or misconfigured.
type terminalError struct {
	err error
}

func (e *terminalError) Error() string {
	return fmt.Sprintf("terminal: %v", e.err)
}

func (e *terminalError) Unwrap() error {
	return e.err
}

// Terminal wraps err so the worker stops the module permanently instead of
// retrying. Wrapping nil returns nil.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether err (or anything it wraps) was marked Terminal.
func IsTerminal(err error) bool {
	var te *terminalError
	return errors.As(err, &te)
}

// IsCancellation reports whether err is a context cancellation rather than a
// real failure. Deadline expiry is not a cancellation: a timed out Update is
// a transient failure.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

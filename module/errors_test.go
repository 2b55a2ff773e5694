package module

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminal(t *testing.T) {
	base := errors.New("capability missing")

	err := Terminal(base)
	assert.True(t, IsTerminal(err))
	assert.ErrorIs(t, err, base)

	// Wrapping preserves the classification.
	wrapped := fmt.Errorf("module init: %w", err)
	assert.True(t, IsTerminal(wrapped))

	assert.False(t, IsTerminal(base))
	assert.Nil(t, Terminal(nil))
}

func TestIsCancellation(t *testing.T) {
	assert.True(t, IsCancellation(context.Canceled))
	assert.True(t, IsCancellation(fmt.Errorf("wait: %w", context.Canceled)))
	assert.False(t, IsCancellation(context.DeadlineExceeded))
	assert.False(t, IsCancellation(errors.New("boom")))
}

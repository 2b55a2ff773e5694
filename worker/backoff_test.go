package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_GrowthAndCap(t *testing.T) {
	b := Backoff{
		Initial: 100 * time.Millisecond,
		Max:     400 * time.Millisecond,
		Factor:  2,
	}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		400 * time.Millisecond,
		400 * time.Millisecond,
	}
	for i, w := range want {
		assert.Equal(t, w, b.Next(), "attempt %d", i)
	}
	assert.Equal(t, len(want), b.Attempts())
}

func TestBackoff_NonDecreasing(t *testing.T) {
	b := Backoff{
		Initial: time.Millisecond,
		Max:     time.Second,
		Factor:  1.5,
	}

	prev := time.Duration(0)
	for i := 0; i < 50; i++ {
		d := b.Next()
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, time.Second)
		prev = d
	}
	// Capped and constant from here on.
	assert.Equal(t, time.Second, b.Next())
	assert.Equal(t, time.Second, b.Next())
}

func TestBackoff_Reset(t *testing.T) {
	b := Backoff{Initial: 10 * time.Millisecond, Max: time.Second, Factor: 2}

	b.Next()
	b.Next()
	b.Reset()

	assert.Equal(t, 0, b.Attempts())
	assert.Equal(t, 10*time.Millisecond, b.Next())
}

func TestBackoff_JitterStaysBounded(t *testing.T) {
	b := Backoff{
		Initial: 100 * time.Millisecond,
		Max:     time.Second,
		Factor:  2,
		Jitter:  0.5,
	}

	for i := 0; i < 20; i++ {
		d := b.Next()
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, time.Second)
	}
}

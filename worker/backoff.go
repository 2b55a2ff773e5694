package worker

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes retry delays for transient update failures: exponential
// growth from Initial by Factor, capped at Max, with optional jitter. The
// zero value is not usable; use DefaultBackoff or fill all fields.
type Backoff struct {
	// Initial is the delay after the first failure.
	Initial time.Duration
	// Max caps the delay. Once reached the delay stays constant.
	Max time.Duration
	// Factor is the growth multiplier between consecutive failures.
	Factor float64
	// Jitter adds up to this fraction of the delay, randomly. The jittered
	// delay is still clipped at Max.
	Jitter float64

	attempt int
}

// DefaultBackoff returns the engine's default retry policy.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: time.Second,
		Max:     5 * time.Minute,
		Factor:  2,
		Jitter:  0.1,
	}
}

// Next returns the delay before the next retry and advances the attempt
// counter.
func (b *Backoff) Next() time.Duration {
	d := float64(b.Initial) * math.Pow(b.Factor, float64(b.attempt))
	b.attempt++
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d += d * b.Jitter * rand.Float64()
		if d > float64(b.Max) {
			d = float64(b.Max)
		}
	}
	return time.Duration(d)
}

// Attempts returns the number of consecutive failures recorded so far.
func (b *Backoff) Attempts() int {
	return b.attempt
}

// Reset clears the failure count after a successful update.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Package retry provides an exponential-backoff-with-jitter helper (Backoff)
// and the CheckIfRetry error heuristic. The rendezvous race and the
// orchestrator's relay attempts do not use Backoff.
package retry

import (
	"math/rand/v2"
	"time"
)

// Config controls backoff behavior between attempts.
type Config struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFrac    float64 // ±fraction of delay to randomize (e.g. 0.3 = ±30%)
}

// Default returns sensible defaults for peer-to-peer dial retries.
func Default() Config {
	return Config{
		MaxAttempts:   3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterFrac:    0.3,
	}
}

// Backoff produces successive jittered delays for cfg.MaxAttempts-1 retries.
type Backoff struct {
	cfg   Config
	delay time.Duration
}

// New creates a Backoff sequence starting at cfg.InitialDelay.
func New(cfg Config) *Backoff {
	return &Backoff{cfg: cfg, delay: cfg.InitialDelay}
}

// Next returns the jittered delay to wait before the next attempt and
// advances the internal delay by BackoffFactor, capped at MaxDelay.
func (b *Backoff) Next() time.Duration {
	jittered := applyJitter(b.delay, b.cfg.JitterFrac)
	b.delay = time.Duration(float64(b.delay) * b.cfg.BackoffFactor)
	if b.delay > b.cfg.MaxDelay {
		b.delay = b.cfg.MaxDelay
	}
	return jittered
}

// applyJitter adds ±frac random jitter to a duration, never negative.
func applyJitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	jitter := float64(d) * frac * (2*rand.Float64() - 1)
	result := time.Duration(float64(d) + jitter)
	if result < 0 {
		return 0
	}
	return result
}

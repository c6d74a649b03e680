package transport

import (
	"math"
	"math/rand"
	"time"
)

// Backoff spaces out dial attempts.
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

var DefaultBackoff = Backoff{
	InitialDelay: 100 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	Multiplier:   2,
	Jitter:       true,
}

// Delay returns the wait before retry number attempt (1-based).
func (b Backoff) Delay(attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return b.InitialDelay
	}
	if b.InitialDelay <= 0 {
		return 0
	}
	if b.Multiplier < 1.0 {
		b.Multiplier = 1.0
	}
	delay := float64(b.InitialDelay) * math.Pow(b.Multiplier, float64(attempt-1))
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	if b.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}

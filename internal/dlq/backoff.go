package dlq

import (
	"math"
	"math/rand"
	"time"

	"github.com/costwatch/costwatch/internal/config"
)

// Backoff computes the delay before attempt n (0-based count of completed
// attempts).
type Backoff interface {
	Delay(attempt int) time.Duration
}

// FixedBackoff waits a constant delay between attempts.
type FixedBackoff struct {
	Base time.Duration
}

func (b FixedBackoff) Delay(int) time.Duration {
	return b.Base
}

// LinearBackoff waits base + increment*n, capped at max.
type LinearBackoff struct {
	Base      time.Duration
	Increment time.Duration
	Max       time.Duration
}

func (b LinearBackoff) Delay(attempt int) time.Duration {
	delay := b.Base + time.Duration(attempt)*b.Increment
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	return delay
}

// ExponentialBackoff waits base * multiplier^n, capped at max, with an
// optional ±20% jitter to avoid thundering herds.
type ExponentialBackoff struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
	Jitter     bool
}

func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	delay := time.Duration(float64(b.Base) * math.Pow(b.Multiplier, float64(attempt)))
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	if b.Jitter && delay > 0 {
		// ±20% of the computed delay
		spread := float64(delay) * 0.2
		delay += time.Duration((rand.Float64()*2 - 1) * spread)
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}

// BackoffFromConfig builds the configured strategy, defaulting to
// exponential when the name is unknown.
func BackoffFromConfig(cfg *config.BackoffConfig) Backoff {
	switch cfg.Strategy {
	case "fixed":
		return FixedBackoff{Base: cfg.Base}
	case "linear":
		return LinearBackoff{Base: cfg.Base, Increment: cfg.Increment, Max: cfg.Max}
	default:
		return ExponentialBackoff{
			Base:       cfg.Base,
			Multiplier: cfg.Multiplier,
			Max:        cfg.Max,
			Jitter:     cfg.Jitter,
		}
	}
}

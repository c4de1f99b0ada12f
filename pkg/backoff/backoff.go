// Package backoff provides exponential backoff calculation with
// optional jitter.
package backoff

import (
	"math/rand/v2"
	"time"
)

// Config for exponential backoff. Zero values use defaults.
type Config struct {
	Initial time.Duration // default: 100ms
	Max     time.Duration // default: 5s
	Jitter  float64       // fraction of the delay randomized, 0..1 (default: 0)
}

// Exponential returns the delay before the given attempt. Attempt 1
// waits Initial, each following attempt doubles, capped at Max. With
// Jitter set, up to that fraction of the delay is randomly subtracted
// so concurrent pollers spread out.
func Exponential(attempt int, cfg *Config) time.Duration {
	c := Config{Initial: 100 * time.Millisecond, Max: 5 * time.Second}
	if cfg != nil {
		if cfg.Initial > 0 {
			c.Initial = cfg.Initial
		}
		if cfg.Max > 0 {
			c.Max = cfg.Max
		}
		if cfg.Jitter > 0 && cfg.Jitter <= 1 {
			c.Jitter = cfg.Jitter
		}
	}

	delay := c.Initial
	for i := 1; i < attempt && delay < c.Max; i++ {
		delay *= 2
	}
	if delay > c.Max {
		delay = c.Max
	}
	if c.Jitter > 0 {
		delay -= time.Duration(float64(delay) * c.Jitter * rand.Float64())
	}
	return delay
}

// Package circuitbreaker guards calls to flaky dependencies. A run of
// consecutive failures opens the breaker, which then rejects calls until
// a cooldown passes and a single probe is let through.
package circuitbreaker

import (
	"sync"
	"time"
)

// State is the breaker's position.
type State int

const (
	Closed   State = iota // calls allowed
	Open                  // calls rejected until the cooldown elapses
	HalfOpen              // one probe in flight
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Config tunes a breaker.
type Config struct {
	Threshold int           // consecutive failures that open the circuit (default 5)
	Cooldown  time.Duration // rejection window before a probe (default 30s)
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	return c
}

// Breaker tracks one resource. The zero state is closed.
type Breaker struct {
	mu        sync.Mutex
	cfg       Config
	state     State
	failures  int
	openUntil time.Time
}

// New creates a breaker, applying config defaults.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg.withDefaults()}
}

// Allow reports whether a call may proceed. An open breaker whose
// cooldown has elapsed moves to half-open and admits the call as a probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Open {
		return true
	}
	if time.Now().Before(b.openUntil) {
		return false
	}
	b.state = HalfOpen
	return true
}

// RecordSuccess closes the breaker and clears the failure run.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
}

// RecordFailure extends the failure run. Crossing the threshold, or any
// failure during a half-open probe, opens the circuit for a cooldown.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == HalfOpen || b.failures >= b.cfg.Threshold {
		b.state = Open
		b.openUntil = time.Now().Add(b.cfg.Cooldown)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
}

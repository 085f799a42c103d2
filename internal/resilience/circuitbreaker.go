// Package resilience keeps a session alive when an external speech service
// degrades. A [Breaker] guards the calls to one provider instance and stops
// hammering it after repeated failures; a [Chain] lines up a primary provider
// and its fallbacks so the pipeline moves to the next healthy backend instead
// of dropping the utterance.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrTripped is returned when a breaker rejects a call without forwarding it
// to the provider.
var ErrTripped = errors.New("resilience: breaker tripped")

// BreakerState is the operating mode of a [Breaker].
type BreakerState int

const (
	// BreakerClosed forwards every call.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects every call with [ErrTripped] until the retry
	// window has passed.
	BreakerOpen

	// BreakerProbing lets one call at a time through to test whether the
	// provider has recovered.
	BreakerProbing
)

// String returns the human-readable state name.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// BreakerConfig holds the tuning knobs for a [Breaker]. Zero values select the
// defaults.
type BreakerConfig struct {
	// Name labels the breaker in log output, typically the provider name.
	Name string

	// TripAfter is the consecutive-failure count that opens the breaker.
	// Default: 5.
	TripAfter int

	// RetryAfter is how long an open breaker rejects calls before it starts
	// probing. Default: 30s.
	RetryAfter time.Duration

	// Probes is the number of consecutive probe successes required to close
	// the breaker again. A single probe failure re-opens it. Default: 3.
	Probes int

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// now is the clock, injectable for tests.
	now func() time.Time
}

// Breaker guards the calls to one provider instance.
type Breaker struct {
	name       string
	tripAfter  int
	retryAfter time.Duration
	probes     int
	log        *slog.Logger
	now        func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int // consecutive failures while closed
	successes int // consecutive probe successes while probing
	probeBusy bool
	openedAt  time.Time
}

// NewBreaker creates a Breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.TripAfter <= 0 {
		cfg.TripAfter = 5
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 3
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	now := cfg.now
	if now == nil {
		now = time.Now
	}
	return &Breaker{
		name:       cfg.Name,
		tripAfter:  cfg.TripAfter,
		retryAfter: cfg.RetryAfter,
		probes:     cfg.Probes,
		log:        log,
		now:        now,
	}
}

// Do forwards fn unless the breaker is open, and feeds the outcome back into
// the trip accounting. While probing, only one call is in flight at a time;
// concurrent callers get [ErrTripped].
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.observe(err)
	return err
}

// State returns the breaker's current operating mode.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker back to [BreakerClosed], clearing all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.successes = 0
	b.probeBusy = false
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.retryAfter {
			return ErrTripped
		}
		b.state = BreakerProbing
		b.successes = 0
		b.probeBusy = true
		b.log.Info("breaker probing provider", "name", b.name)
	case BreakerProbing:
		if b.probeBusy {
			return ErrTripped
		}
		b.probeBusy = true
	}
	return nil
}

func (b *Breaker) observe(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerProbing {
		b.probeBusy = false
		if err != nil {
			b.state = BreakerOpen
			b.openedAt = b.now()
			b.log.Warn("breaker re-opened, probe failed", "name", b.name)
			return
		}
		b.successes++
		if b.successes >= b.probes {
			b.state = BreakerClosed
			b.failures = 0
			b.log.Info("breaker closed, provider recovered", "name", b.name)
		}
		return
	}

	if err != nil {
		b.failures++
		if b.failures >= b.tripAfter {
			b.state = BreakerOpen
			b.openedAt = b.now()
			b.log.Warn("breaker opened",
				"name", b.name, "consecutive_failures", b.failures)
		}
		return
	}
	b.failures = 0
}

package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted is returned by [Try] when every provider in the chain failed or
// had its breaker tripped.
var ErrExhausted = errors.New("resilience: every provider failed")

// FallbackConfig configures a [Chain].
type FallbackConfig struct {
	// Breaker is the template for the per-provider breakers. The Name field
	// is overwritten with each provider's own name.
	Breaker BreakerConfig

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// chainEntry pairs one provider with the breaker guarding it.
type chainEntry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain tries a primary provider first and walks the registered fallbacks in
// order when it fails. Each provider gets its own [Breaker], so a provider
// that keeps failing is skipped outright until its retry window passes.
type Chain[T any] struct {
	cfg     FallbackConfig
	log     *slog.Logger
	entries []chainEntry[T]
}

// NewChain creates a Chain with the given primary provider.
func NewChain[T any](name string, primary T, cfg FallbackConfig) *Chain[T] {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	cfg.Logger = log
	c := &Chain[T]{cfg: cfg, log: log}
	c.Add(name, primary)
	return c
}

// Add appends a fallback provider. Not safe to call concurrently with Try.
func (c *Chain[T]) Add(name string, value T) {
	bcfg := c.cfg.Breaker
	bcfg.Name = name
	bcfg.Logger = c.log
	c.entries = append(c.entries, chainEntry[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(bcfg),
	})
}

// Try runs fn against each provider in chain order until one succeeds,
// feeding every outcome through that provider's breaker. An error wrapped
// with [Permanent] stops the walk immediately and is returned unwrapped.
//
// Try is a package function rather than a method because methods cannot
// introduce the result type parameter.
func Try[T, R any](c *Chain[T], fn func(T) (R, error)) (R, error) {
	var zero R
	var lastErr error
	for i := range c.entries {
		e := &c.entries[i]
		var out R
		err := e.breaker.Do(func() error {
			var callErr error
			out, callErr = fn(e.value)
			return callErr
		})
		if err == nil {
			if i > 0 {
				c.log.Info("fallback provider served the request", "provider", e.name)
			}
			return out, nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		lastErr = err
		if errors.Is(err, ErrTripped) {
			c.log.Debug("provider skipped, breaker open", "provider", e.name)
			continue
		}
		c.log.Warn("provider failed, trying next",
			"provider", e.name, "error", err)
	}
	return zero, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}

// Permanent marks err as not worth retrying on another provider. [Try] stops
// walking the chain and returns the original err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

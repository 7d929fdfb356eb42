// Package retry provides bounded retry with exponential backoff and jitter.
// Used for transient persistence conflicts (losing writer of a snapshot
// replace re-applies its delete+insert once) and webhook delivery.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Config is the retry policy.
type Config struct {
	// MaxAttempts counts the first try too. The default of 2 means one
	// retry.
	MaxAttempts int

	// InitialDelay is the pause before the first retry (default 50ms).
	InitialDelay time.Duration

	// MaxDelay caps backoff growth (default 5s).
	MaxDelay time.Duration

	// Multiplier grows the delay after each failed attempt (default 2).
	Multiplier float64

	// JitterFactor spreads delays randomly, 0 for none up to 1 for a full
	// delay's worth (default 0.1).
	JitterFactor float64

	// RetryIf classifies errors. A nil predicate retries everything.
	RetryIf func(error) bool

	// OnRetry fires before each retry, for logging.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig is one quick retry with mild jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  2,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// Option adjusts the policy at construction.
type Option func(*Config)

// WithMaxAttempts sets the attempt budget. Non-positive values are ignored.
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

// WithInitialDelay sets the pause before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.InitialDelay = d
		}
	}
}

// WithRetryIf installs the predicate deciding whether an error is retried.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) {
		c.RetryIf = fn
	}
}

// WithOnRetry installs a callback fired before each retry.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) {
		c.OnRetry = fn
	}
}

// Retrier runs operations under one policy. Safe for concurrent use.
type Retrier struct {
	config Config
}

// New applies the options over DefaultConfig.
func New(opts ...Option) *Retrier {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &Retrier{config: config}
}

// Do runs the operation until it succeeds, exhausts the attempt budget,
// fails a RetryIf check, or the context ends. The operation's last error
// is what the caller gets.
func (r *Retrier) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return lastErr
			}
			return ctx.Err()
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			return nil
		}
		if r.config.RetryIf != nil && !r.config.RetryIf(lastErr) {
			return lastErr
		}
		if attempt >= r.config.MaxAttempts {
			return lastErr
		}

		delay := r.delayFor(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, lastErr, delay)
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}
	}
}

// delayFor is capped exponential backoff, jittered symmetrically around
// the nominal delay.
func (r *Retrier) delayFor(attempt int) time.Duration {
	d := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	d = math.Min(d, float64(r.config.MaxDelay))

	if r.config.JitterFactor > 0 {
		spread := d * r.config.JitterFactor
		d += spread * (rand.Float64() - 0.5)
	}
	return time.Duration(d)
}

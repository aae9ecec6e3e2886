// Package retry provides utilities for retrying operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Config holds retry configuration.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// RetryIf limits retries to errors it accepts. Nil retries every non-fatal error.
	RetryIf func(error) bool
	// OnRetry is called before each wait with the attempt number and the error.
	OnRetry func(attempt int, err error)
}

// Option is a functional option for retry configuration.
type Option func(*Config)

// WithExponentialBackoff executes the operation with exponential backoff retry.
// It retries the operation up to MaxRetries times, with exponentially increasing
// delays between attempts. Context cancellation is respected throughout.
//
// Errors wrapped with Fatal() are not retried.
func WithExponentialBackoff(ctx context.Context, operation func() error, opts ...Option) error {
	cfg := &Config{
		MaxRetries:   5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	backoff := goretry.WithCappedDuration(cfg.MaxDelay, multiplierBackoff(cfg.InitialDelay, cfg.Multiplier))
	if cfg.MaxRetries >= 0 {
		backoff = goretry.WithMaxRetries(uint64(cfg.MaxRetries), backoff)
	}

	attempts := 0
	terminal := false
	var lastErr error
	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempts++
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		// Check if error is fatal (non-retryable)
		if IsFatal(err) {
			terminal = true
			return fmt.Errorf("fatal error (not retrying): %w", err)
		}
		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			terminal = true
			return err
		}
		if cfg.OnRetry != nil && (cfg.MaxRetries < 0 || attempts <= cfg.MaxRetries) {
			cfg.OnRetry(attempts, err)
		}
		return goretry.RetryableError(err)
	})

	switch {
	case err == nil:
		return nil
	case terminal:
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("context cancelled after %d attempts: %w", attempts, ctx.Err())
	}
	return fmt.Errorf("operation failed after %d attempts: %w", attempts, lastErr)
}

// multiplierBackoff grows the delay by m after every attempt.
func multiplierBackoff(initial time.Duration, m float64) goretry.Backoff {
	if m < 1 {
		m = 1
	}
	var mu sync.Mutex
	next := initial
	return goretry.BackoffFunc(func() (time.Duration, bool) {
		mu.Lock()
		defer mu.Unlock()
		d := next
		next = time.Duration(float64(next) * m)
		if next < d {
			next = d
		}
		return d, false
	})
}

// WithMaxRetries sets the maximum number of retries. A negative n retries
// until the context ends.
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithInitialDelay sets the initial delay between retries.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		c.InitialDelay = d
	}
}

// WithMaxDelay sets the maximum delay between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		c.MaxDelay = d
	}
}

// WithMultiplier sets the backoff multiplier.
func WithMultiplier(m float64) Option {
	return func(c *Config) {
		c.Multiplier = m
	}
}

// WithRetryIf only retries errors accepted by fn.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) {
		c.RetryIf = fn
	}
}

// WithOnRetry registers a hook called before each retry.
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(c *Config) {
		c.OnRetry = fn
	}
}

// FatalError wraps an error to mark it as fatal (non-retryable).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks an error as fatal (non-retryable).
// Operations that encounter fatal errors will not be retried.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal checks if an error is fatal (non-retryable).
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}

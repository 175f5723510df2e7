// Package retry provides exponential backoff retry logic for broker
// reconnection and downstream publishing.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	// Thread-safe random source for jitter
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NonRetryableError wraps errors that should not be retried
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to indicate it should not be retried
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Config provides retry configuration
type Config struct {
	MaxAttempts  int           // Maximum number of attempts (0 = run once)
	InitialDelay time.Duration // Initial delay between attempts
	MaxDelay     time.Duration // Maximum delay between attempts
	Multiplier   float64       // Backoff multiplier (typically 2.0)
	AddJitter    bool          // Add randomness to prevent thundering herd
}

// DefaultConfig returns sensible defaults for retry operations
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Broker returns a config tuned for broker reconnection: the first wait is
// about a second (the underlying client may already retry internally), capped
// at 30s, retrying indefinitely until the context is cancelled.
func Broker() Config {
	return Config{
		MaxAttempts:  0, // unbounded, see Wait
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Quick returns a config for fast retries (useful during startup)
func Quick() Config {
	return Config{
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   1.5,
		AddJitter:    true,
	}
}

// Do executes fn with exponential backoff retry
func Do(ctx context.Context, cfg Config, fn func() error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsNonRetryable(err) {
			return err
		}

		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt, ctx.Err())
		}

		// Don't sleep after the last attempt
		if attempt == cfg.MaxAttempts {
			break
		}

		if err := sleep(ctx, jittered(cfg, delay)); err != nil {
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, err)
		}

		delay = cfg.next(delay)
	}

	return fmt.Errorf("retry failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// DoWithResult executes fn with retry and returns both result and error
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}

// Backoff tracks an unbounded backoff sequence. Unlike Do, it does not own
// the operation: callers wait between their own attempts, which suits loops
// that must keep running (the supervisor's reconnect cycle).
type Backoff struct {
	cfg   Config
	delay time.Duration
}

// NewBackoff creates a backoff sequence from cfg
func NewBackoff(cfg Config) *Backoff {
	cfg = cfg.withDefaults()
	return &Backoff{cfg: cfg, delay: cfg.InitialDelay}
}

// Wait sleeps for the current delay, then advances the sequence.
// Returns the context error if cancelled during the wait.
func (b *Backoff) Wait(ctx context.Context) error {
	if err := sleep(ctx, jittered(b.cfg, b.delay)); err != nil {
		return err
	}
	b.delay = b.cfg.next(b.delay)
	return nil
}

// Reset restores the initial delay after a successful operation
func (b *Backoff) Reset() {
	b.delay = b.cfg.InitialDelay
}

// Delay returns the next wait duration without jitter applied
func (b *Backoff) Delay() time.Duration {
	return b.delay
}

func (cfg Config) withDefaults() Config {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2.0
	}
	return cfg
}

// next calculates the following delay with overflow protection
func (cfg Config) next(delay time.Duration) time.Duration {
	nextDelay := float64(delay) * cfg.Multiplier
	if nextDelay > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(nextDelay)
}

// jittered adds up to 25% random jitter when configured
func jittered(cfg Config, delay time.Duration) time.Duration {
	if !cfg.AddJitter || delay < 4 {
		return delay
	}
	randMu.Lock()
	jitter := time.Duration(randSource.Int63n(int64(delay / 4)))
	randMu.Unlock()
	return delay + jitter
}

// sleep waits for d with context cancellation support
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Package retry runs collaborator calls with exponential backoff on transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	coreconfig "github.com/m3rciful/storebot/core/config"
	"github.com/m3rciful/storebot/core/logger"
)

// ErrExhausted marks a call that kept failing with transient errors.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Policy configures backoff for a single logical operation.
type Policy struct {
	Attempts      int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool

	// Retryable overrides IsTransient when set.
	Retryable func(error) bool
	// WaitHint returns the minimum wait an error asks for, e.g. a flood-control retry_after.
	WaitHint func(error) time.Duration
	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy mirrors the config defaults.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:      3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      3 * time.Second,
		BackoffFactor: 2,
		Jitter:        true,
	}
}

// FromConfig builds a policy from the retry config section.
func FromConfig(cfg coreconfig.RetryConfig) Policy {
	p := DefaultPolicy()
	if cfg.Attempts > 0 {
		p.Attempts = cfg.Attempts
	}
	if cfg.InitialDelay > 0 {
		p.InitialDelay = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		p.MaxDelay = cfg.MaxDelay
	}
	return p
}

// None performs a single attempt.
func None() Policy {
	return Policy{Attempts: 1}
}

// Do calls fn until it succeeds, returns a non-transient error or the attempts run out.
// The op name is used for logging only.
func (p Policy) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info(ctx, logger.CompRetry, "retry.success",
					slog.String("op", op),
					slog.Int("attempt", attempt),
				)
			}
			return nil
		}
		lastErr = err
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		delay := p.backoff(attempt)
		if p.WaitHint != nil {
			delay = max(delay, p.WaitHint(err))
		}
		logger.Debug(ctx, logger.CompRetry, "retry.backoff",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			logger.Err(err),
		)
		if err := sleep(ctx, delay); err != nil {
			return lastErr
		}
	}

	logger.Warn(ctx, logger.CompRetry, "retry.exhausted",
		slog.String("op", op),
		slog.Int("attempts", attempts),
		logger.Err(lastErr),
	)
	return fmt.Errorf("%s: %w: %w", op, ErrExhausted, lastErr)
}

// backoff returns the delay after the given failed attempt (1-based).
func (p Policy) backoff(attempt int) time.Duration {
	delay := p.InitialDelay
	if delay <= 0 {
		return 0
	}
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 2
	}
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * factor)
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if p.Jitter {
		// up to +/-20%
		spread := int64(delay) / 5
		if spread > 0 {
			delay += time.Duration(rand.Int64N(2*spread+1) - spread)
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Do runs fn with the policy p. Convenience for call sites holding a policy value.
func Do(ctx context.Context, p Policy, op string, fn func(context.Context) error) error {
	return p.Do(ctx, op, fn)
}

// Value runs fn with p and returns its result.
func Value[T any](ctx context.Context, p Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

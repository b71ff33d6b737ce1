// Package retry provides an exponential-backoff executor for rate-limited
// upstream calls, plus the error classification the agent uses to turn raw
// provider failures into user-facing messages.
//
// Only rate-limit failures are retried. Authentication and generic failures
// propagate immediately — retrying a bad API key never helps.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rowanv/stocktalk/internal/logging"
)

// ErrExhausted is wrapped into the error returned when every attempt failed
// with a rate-limit signal. Callers detect it with errors.Is.
var ErrExhausted = errors.New("retry: max retries exceeded")

const (
	// DefaultMaxAttempts is the attempt ceiling when Policy.MaxAttempts is zero.
	DefaultMaxAttempts = 3

	// defaultBase is the backoff base delay. The delay after attempt n
	// (1-based) is min(base << n, cap): 2s, 4s, 8s, ...
	defaultBase = time.Second

	// defaultCap is the hard ceiling on a single backoff delay.
	defaultCap = 30 * time.Second
)

// Policy configures a backoff executor. The zero value is usable and yields
// the defaults above.
type Policy struct {
	// MaxAttempts is the total number of invocation attempts (not re-tries).
	// Defaults to DefaultMaxAttempts if zero.
	MaxAttempts int

	// Base is the backoff base delay. Defaults to 1s if zero.
	Base time.Duration

	// Cap bounds any single delay. Defaults to 30s if zero.
	Cap time.Duration

	// sleep is the wait function, injectable by tests. Defaults to a
	// context-aware sleep.
	sleep func(ctx context.Context, d time.Duration) error
}

// withDefaults returns a copy of p with zero fields resolved.
func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Base <= 0 {
		p.Base = defaultBase
	}
	if p.Cap <= 0 {
		p.Cap = defaultCap
	}
	if p.sleep == nil {
		p.sleep = sleepCtx
	}
	return p
}

// delay returns the backoff delay applied after the given 1-based attempt:
// min(base << attempt, cap). No jitter is applied; concurrent callers sharing
// an upstream rate limit will wake in lockstep.
func (p Policy) delay(attempt int) time.Duration {
	d := p.Base << attempt
	if d > p.Cap || d <= 0 {
		d = p.Cap
	}
	return d
}

// Do invokes op with p's backoff policy and returns its result.
//
// Failures classified as rate limits are retried up to the attempt ceiling,
// sleeping between attempts and logging each delay. Any other failure is
// returned immediately from the attempt that produced it. When every attempt
// was rate-limited, the returned error wraps both ErrExhausted and the last
// upstream error.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	log := logging.FromContext(ctx)

	var zero T
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if Classify(err) != KindRateLimit {
			return zero, err
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}

		d := p.delay(attempt)
		log.Warn("retry: rate limited by upstream, backing off",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", p.MaxAttempts),
			slog.Duration("delay", d),
		)
		if err := p.sleep(ctx, d); err != nil {
			return zero, err
		}
	}

	if lastErr == nil {
		return zero, ErrExhausted
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.MaxAttempts, lastErr)
}

// sleepCtx blocks for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

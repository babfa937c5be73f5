// Package retry runs operations against remote services with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Class is the retry classification of a failure.
type Class int

const (
	// Fatal failures are returned immediately.
	Fatal Class = iota
	// Transient failures (remote internal errors) are retried with the standard backoff.
	Transient
	// RateLimited failures (quota exhausted) are retried with a doubled backoff.
	RateLimited
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case RateLimited:
		return "rate_limited"
	default:
		return "fatal"
	}
}

// Classifier is implemented by errors that know whether they may be retried.
type Classifier interface {
	RetryClass() Class
}

// Classify returns the class of the first error in err's chain implementing Classifier.
// Errors without a classification are Fatal.
func Classify(err error) Class {
	var c Classifier
	if errors.As(err, &c) {
		return c.RetryClass()
	}
	return Fatal
}

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxJitter   = time.Second

	// MaxBackoff caps the exponential term of a backoff; jitter is added on top.
	MaxBackoff = 5 * time.Minute
)

// Policy configures Do. The zero value uses the defaults above.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// MaxJitter bounds the random term added to each backoff. Negative disables jitter.
	MaxJitter time.Duration

	// Jitter returns a random duration in [0, max). Defaults to a uniform source.
	Jitter func(max time.Duration) time.Duration
	// Sleep waits for d or until ctx is done. Defaults to a timer-based wait.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *zap.Logger
}

// Backoff returns the delay after the failed attempt with zero-based index attempt.
func (p *Policy) Backoff(attempt int, class Class) time.Duration {
	base := p.baseDelay()
	if class == RateLimited {
		base *= 2
	}
	d := base
	for i := 0; i < attempt && d < MaxBackoff; i++ {
		d *= 2
	}
	d = min(d, MaxBackoff)
	if max := p.maxJitter(); max > 0 {
		d += p.jitter(max)
	}
	return d
}

// Do runs op until it succeeds, fails fatally, or the attempts are exhausted.
// After exhaustion the last error is returned unchanged so callers can inspect it.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var zero T
	var lastErr error
	for i := 0; i < attempts; i++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		class := Classify(err)
		if class == Fatal {
			return zero, err
		}
		if i == attempts-1 {
			break
		}

		delay := p.Backoff(i, class)
		logger.Info("call failed, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", attempts),
			zap.Stringer("class", class),
			zap.Duration("backoff", delay),
			zap.Error(err))
		if err := p.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	logger.Error("call failed after all retries", zap.Int("attempts", attempts), zap.Error(lastErr))
	return zero, lastErr
}

func (p *Policy) baseDelay() time.Duration {
	if p.BaseDelay > 0 {
		return p.BaseDelay
	}
	return DefaultBaseDelay
}

func (p *Policy) maxJitter() time.Duration {
	if p.MaxJitter != 0 {
		return p.MaxJitter
	}
	return DefaultMaxJitter
}

func (p *Policy) jitter(max time.Duration) time.Duration {
	if p.Jitter != nil {
		return p.Jitter(max)
	}
	return rand.N(max)
}

func (p *Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
)

// Policy is bounded exponential backoff with additive jitter.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Factor       float64
	MaxDelay     time.Duration
	Jitter       time.Duration

	// Retryable overrides the default classification when set.
	Retryable func(error) bool
	// OnRetry is called before each sleep; attempt is 1-based.
	OnRetry func(op string, attempt int, err error)
	// Sleep is replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error

	Log logrus.FieldLogger
}

func Default() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: 800 * time.Millisecond,
		Factor:       2,
		MaxDelay:     8 * time.Second,
		Jitter:       250 * time.Millisecond,
	}
}

// Do runs fn until it succeeds, fails permanently, or attempts run out.
// The last error is always returned on failure.
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	classify := p.Retryable
	if classify == nil {
		classify = Retryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	delay := p.InitialDelay
	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == attempts || !classify(err) || ctx.Err() != nil {
			break
		}

		wait := delay
		if p.Jitter > 0 {
			wait += rand.N(p.Jitter)
		}
		if p.Log != nil {
			p.Log.WithFields(logrus.Fields{
				"op":      op,
				"attempt": attempt,
				"wait":    wait.String(),
			}).WithError(err).Warn("retrying")
		}
		if p.OnRetry != nil {
			p.OnRetry(op, attempt, err)
		}
		if err := sleep(ctx, wait); err != nil {
			break
		}

		next := time.Duration(float64(delay) * p.Factor)
		if p.MaxDelay > 0 && next > p.MaxDelay {
			next = p.MaxDelay
		}
		delay = next
	}
	return zero, lastErr
}

// Run is Do for operations without a result value.
func Run(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

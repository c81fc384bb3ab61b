// Package retry runs an operation under a bounded exponential backoff policy.
// It knows nothing about what it wraps; callers decide which errors are
// retryable through the policy predicate.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Policy struct {
	// MaxAttempts counts the first call. Values below 1 mean one attempt.
	MaxAttempts int
	BaseDelay   time.Duration
	// MaxDelay caps a single backoff step; zero means uncapped.
	MaxDelay time.Duration
	// Retryable decides whether another attempt is worth making. Nil retries every error.
	Retryable func(error) bool
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
	// Sleep waits for d or until ctx is done. Defaults to the backoff timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// schedule is the doubling, unjittered interval sequence for the policy.
func (p Policy) schedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Duration(math.MaxInt64)
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Delay returns the backoff before attempt n+1 after n failed attempts (n >= 1).
func (p Policy) Delay(n int) time.Duration {
	b := p.schedule()
	d := b.NextBackOff()
	for i := 1; i < n; i++ {
		d = b.NextBackOff()
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. The last error is returned wrapped with the
// attempt count.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(p.schedule(), uint64(attempts-1)), ctx)

	var (
		last      error
		calls     int
		permanent bool
	)
	op := func() error {
		calls++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			permanent = true
			return backoff.Permanent(err)
		}
		last = err
		return err
	}
	notify := func(err error, d time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(calls, d, err)
		}
	}

	var timer backoff.Timer
	if p.Sleep != nil {
		timer = &sleepTimer{ctx: ctx, sleep: p.Sleep, c: make(chan time.Time, 1)}
	}

	err := backoff.RetryNotifyWithTimer(op, b, notify, timer)
	switch {
	case err == nil:
		return nil
	case permanent:
		return err
	case ctx.Err() != nil && last != nil:
		return fmt.Errorf("retry interrupted after %d attempts: %w", calls, last)
	default:
		return fmt.Errorf("gave up after %d attempts: %w", calls, err)
	}
}

// sleepTimer adapts a Sleep hook to backoff.Timer. Start blocks for the
// hook and then fires C unless the context ended meanwhile.
type sleepTimer struct {
	ctx   context.Context
	sleep func(ctx context.Context, d time.Duration) error
	c     chan time.Time
}

func (t *sleepTimer) Start(d time.Duration) {
	if err := t.sleep(t.ctx, d); err != nil && t.ctx.Err() != nil {
		// the retry loop sees ctx.Done instead
		return
	}
	select {
	case t.c <- time.Now():
	default:
	}
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time { return t.c }

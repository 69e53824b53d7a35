package agent

import (
	"context"
	"time"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/logbook"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// RetryPolicy bounds the retry loop around one outbound call.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrier retries transient failures with a linear backoff.
type Retrier struct {
	policy RetryPolicy
	sleep  SleepFunc
	log    *logbook.Logbook
}

// NewRetrier creates a Retrier that sleeps on the wall clock.
func NewRetrier(policy RetryPolicy, log *logbook.Logbook) *Retrier {
	return &Retrier{policy: policy, sleep: sleepContext, log: log}
}

// WithSleep returns a copy of r using sleep instead of the wall clock.
func (r *Retrier) WithSleep(sleep SleepFunc) *Retrier {
	cp := *r
	cp.sleep = sleep
	return &cp
}

// Delay returns the wait before retry number attempt (0-based):
// base*(attempt+1), capped at MaxDelay when set.
func (r *Retrier) Delay(attempt int) time.Duration {
	d := r.policy.BaseDelay * time.Duration(attempt+1)
	if r.policy.MaxDelay > 0 && d > r.policy.MaxDelay {
		return r.policy.MaxDelay
	}
	return d
}

// Do runs fn, retrying transient errors up to MaxRetries times. Any other
// error, or the last transient one, is returned as is.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, r, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call is Do for calls that return a value.
func Call[T any](ctx context.Context, r *Retrier, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !secondary.IsTransient(err) || attempt >= r.policy.MaxRetries {
			return v, err
		}

		delay := r.Delay(attempt)
		r.log.Warn("%s: transient failure (attempt %d/%d), retrying in %s: %v",
			op, attempt+1, r.policy.MaxRetries+1, delay, err)
		if serr := r.sleep(ctx, delay); serr != nil {
			return v, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

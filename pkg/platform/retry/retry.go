// Package retry provides a bounded fixed-delay retry loop. It is an explicit
// loop rather than a decorator so attempt counts and delays stay directly
// assertable in tests.
package retry

import (
	"context"
	"time"
)

// Policy controls a retry loop.
type Policy struct {
	// Attempts is the total number of tries, including the first. Values
	// below 1 are treated as 1.
	Attempts int

	// Delay is the fixed pause between consecutive attempts.
	Delay time.Duration

	// Sleep is called to wait between attempts. Defaults to time.Sleep;
	// tests inject a recorder.
	Sleep func(time.Duration)

	// Retryable decides whether a failure is worth another attempt. A nil
	// Retryable retries every error.
	Retryable func(error) bool
}

// Do runs fn until it succeeds, the attempt budget is exhausted, a
// non-retryable error occurs, or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if i < attempts-1 {
			sleep(p.Delay)
		}
	}
	return err
}

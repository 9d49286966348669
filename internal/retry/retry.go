// Package retry provides a small bounded-retry helper with a fixed delay
// between attempts.  It carries no business logic so callers can compose
// it at several tiers and tests can drive it with a zero delay.
package retry

import (
	"context"
	"time"
)

// sleep is swappable in tests to avoid real waiting.
var sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// Do calls fn up to attempts times, sleeping delay between attempts.  The
// delay is fixed, with no backoff growth.  It returns nil as soon as fn
// succeeds; after exhausting all attempts it returns the last error from
// fn, never swallowing it.  A cancelled context aborts the wait between
// attempts and returns the context error.
func Do(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var last error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}
		if last = fn(); last == nil {
			return nil
		}
	}
	return last
}

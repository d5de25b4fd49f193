package api

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// defaultMaxAttempts is the number of tries for a read request.
const defaultMaxAttempts = 3

// Backoff repeats idempotent backend reads. The wait before retry n is
// Base*2^n capped at Max, then scaled by a random factor in [0.5, 1).
type Backoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

func defaultBackoff(attempts int) Backoff {
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return Backoff{Attempts: attempts, Base: 500 * time.Millisecond, Max: 5 * time.Second}
}

// Do calls fn until it succeeds or the attempts are used up. An answer
// repeating cannot change (a non-temporary *StatusError) or a cancelled
// request is returned as is after the first try; otherwise the last failure
// comes back wrapped with the attempt count.
func (b Backoff) Do(ctx context.Context, fn func() error) error {
	var last error
	for attempt := 0; attempt < b.Attempts; attempt++ {
		if attempt > 0 {
			wait := time.NewTimer(b.delay(attempt - 1))
			select {
			case <-ctx.Done():
				wait.Stop()
				return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, ctx.Err())
			case <-wait.C:
			}
		} else if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		last = fn()
		if last == nil || final(last) {
			return last
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", b.Attempts, last)
}

// final reports whether retrying err is pointless.
func final(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && !se.Temporary()
}

func (b Backoff) delay(retry int) time.Duration {
	d := b.Max
	if retry < 30 {
		if exp := b.Base << retry; exp < b.Max {
			d = exp
		}
	}
	if d < 2 {
		return d
	}
	return d/2 + time.Duration(rand.Int63n(int64(d/2))) //nolint:gosec // jitter does not need crypto/rand
}

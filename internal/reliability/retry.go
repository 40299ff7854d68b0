// Package reliability provides the exponential-backoff retry helper used
// by every store writer. Narrowed from the teacher's backup-specific
// retry idiom (internal/reliability/maintenance_jobs.go) into a general
// primitive: transient store errors (timeout, connection reset) are
// retried with backoff; after the attempt budget is spent, the caller is
// expected to count the failure and keep going rather than abort the run.
package reliability

import (
	"context"
	"time"
)

// Do retries fn up to attempts times, sleeping base*2^(n-1) between tries.
// It stops retrying as soon as fn returns a nil error, or once ctx is
// cancelled. The last error is returned if every attempt fails.
func Do(ctx context.Context, attempts int, base time.Duration, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := base << (attempt - 1)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := fn(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// Policy is a named retry policy (base delay, attempt budget), shared
// across reliability.Do callers and internal/store.Backoff.
type Policy struct {
	Base     time.Duration
	Attempts int
}

// BasicsBackoff is the chunked-upsert retry policy for basics/quotes/
// financial writers: base 2s, up to 3 attempts.
var BasicsBackoff = Policy{Base: 2 * time.Second, Attempts: 3}

// HistoricalBackoff is the historical-bar writer's retry policy: batches
// are larger, so it gets a longer base and more attempts (base 3s, up to
// 5 attempts).
var HistoricalBackoff = Policy{Base: 3 * time.Second, Attempts: 5}

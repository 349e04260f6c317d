package database

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"gorm.io/gorm"
)

// ErrRetriesExhausted is returned once every attempt hit a unique violation
var ErrRetriesExhausted = errors.New("unique constraint retries exhausted")

// RetryPolicy bounds RetryOnConflict
type RetryPolicy struct {
	Attempts int
	// Backoff grows linearly per attempt with up to one extra Backoff of jitter
	Backoff time.Duration
	// OnRetry is called before sleeping after a conflicting attempt
	OnRetry func(attempt int, err error)
	// Permanent is consulted after each unique violation, with the savepoint already
	// rolled back so tx is usable again. A non-nil result is returned without retrying.
	Permanent func(tx *gorm.DB, err error) error
}

// RetryOnConflict runs fn in its own savepoint on tx. When fn fails with a unique
// violation the savepoint is rolled back and fn runs again, up to policy.Attempts times.
// Any other error is returned as is. PostgreSQL aborts the whole transaction on a
// constraint error, so the savepoint is what keeps tx usable between attempts.
func RetryOnConflict(ctx context.Context, tx *gorm.DB, policy RetryPolicy, fn func(tx *gorm.DB, attempt int) error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := tx.Transaction(func(sp *gorm.DB) error {
			return fn(sp, attempt)
		})
		if err == nil {
			return nil
		}
		if !IsUniqueViolation(err) {
			return err
		}
		if policy.Permanent != nil {
			if permanent := policy.Permanent(tx, err); permanent != nil {
				return permanent
			}
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err)
		}
		if err := sleep(ctx, backoff(policy.Backoff, attempt)); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
}

func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	return time.Duration(attempt)*base + rand.N(base)
}

func sleep(ctx context.Context, d time.Duration) error {
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

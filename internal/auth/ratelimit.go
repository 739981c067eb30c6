package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/mrlokans/gatekeeper/internal/cache"
)

// timerSuffix marks the twin key holding a bucket's lockout expiry.
// Counter and timer share one TTL, so a fully expired key resets itself
// without any sweep.
const timerSuffix = ":timer"

// RateLimiter tracks failed attempts per key in a TTL store and enforces
// a lockout window once a key reaches its attempt budget.
type RateLimiter struct {
	store cache.Store

	// Overridable for tests.
	now func() time.Time
}

// NewRateLimiter creates a limiter on the given attempt store.
func NewRateLimiter(store cache.Store) *RateLimiter {
	return &RateLimiter{
		store: store,
		now:   time.Now,
	}
}

// Attempts returns the current hit count for key, 0 if absent.
func (l *RateLimiter) Attempts(ctx context.Context, key string) (int, error) {
	hits, err := l.store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read attempts: %w", err)
	}
	return int(hits), nil
}

// Hit records a failed attempt for key. The lockout timer is refreshed to
// now+decay and both entries are saved with decay as their TTL. Returns
// the new hit count.
func (l *RateLimiter) Hit(ctx context.Context, key string, decay time.Duration) (int, error) {
	if decay <= 0 {
		decay = time.Minute
	}

	if err := l.store.Save(ctx, key+timerSuffix, l.availableAt(decay), decay); err != nil {
		return 0, fmt.Errorf("save lockout timer: %w", err)
	}

	hits, err := l.Attempts(ctx, key)
	if err != nil {
		return 0, err
	}
	hits++

	if err := l.store.Save(ctx, key, int64(hits), decay); err != nil {
		return 0, fmt.Errorf("save attempts: %w", err)
	}

	return hits, nil
}

// TooManyAttempts reports whether key has used up its attempt budget and
// is still inside an active lockout window. A key at the budget whose
// window has lapsed is reset and reported as not locked out.
func (l *RateLimiter) TooManyAttempts(ctx context.Context, key string, maxAttempts int) (bool, error) {
	attempts, err := l.Attempts(ctx, key)
	if err != nil {
		return false, err
	}

	if attempts >= maxAttempts {
		locked, err := l.store.Exists(ctx, key+timerSuffix)
		if err != nil {
			return false, fmt.Errorf("read lockout timer: %w", err)
		}
		if locked {
			remaining, err := l.AvailableIn(ctx, key)
			if err != nil {
				return false, err
			}
			if remaining > 0 {
				return true, nil
			}
		}

		if err := l.ResetAttempts(ctx, key); err != nil {
			return false, err
		}
	}

	return false, nil
}

// RetriesLeft returns maxAttempts minus the current hit count. The result
// may be negative; callers clamp as needed.
func (l *RateLimiter) RetriesLeft(ctx context.Context, key string, maxAttempts int) (int, error) {
	attempts, err := l.Attempts(ctx, key)
	if err != nil {
		return 0, err
	}
	return maxAttempts - attempts, nil
}

// AvailableIn returns how long until key accepts attempts again. Zero or
// negative means the lockout has expired (or never existed).
func (l *RateLimiter) AvailableIn(ctx context.Context, key string) (time.Duration, error) {
	availableAt, err := l.store.Get(ctx, key+timerSuffix)
	if err != nil {
		return 0, fmt.Errorf("read lockout timer: %w", err)
	}
	return time.Duration(availableAt-l.now().Unix()) * time.Second, nil
}

// availableAt computes the absolute unix timestamp d from now.
func (l *RateLimiter) availableAt(d time.Duration) int64 {
	return l.now().Add(d).Unix()
}

// ResetAttempts deletes the hit counter for key, leaving any timer alone.
func (l *RateLimiter) ResetAttempts(ctx context.Context, key string) error {
	if err := l.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("reset attempts: %w", err)
	}
	return nil
}

// Clear deletes both the hit counter and the lockout timer for key.
func (l *RateLimiter) Clear(ctx context.Context, key string) error {
	if err := l.ResetAttempts(ctx, key); err != nil {
		return err
	}
	if err := l.store.Delete(ctx, key+timerSuffix); err != nil {
		return fmt.Errorf("clear lockout timer: %w", err)
	}
	return nil
}

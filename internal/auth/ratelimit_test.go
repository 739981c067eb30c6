package auth

import (
	"context"
	"testing"
	"time"
)

// fakeClock drives both the limiter and the test store so TTL expiry can
// be simulated without sleeping.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type testEntry struct {
	value     int64
	expiresAt time.Time
}

// testStore is an in-memory attempt store honoring TTLs against the fake
// clock.
type testStore struct {
	clock   *fakeClock
	entries map[string]testEntry
}

func newTestStore(clock *fakeClock) *testStore {
	return &testStore{
		clock:   clock,
		entries: make(map[string]testEntry),
	}
}

func (s *testStore) live(key string) (testEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return testEntry{}, false
	}
	if !s.clock.Now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return testEntry{}, false
	}
	return entry, true
}

func (s *testStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.live(key)
	return ok, nil
}

func (s *testStore) Get(_ context.Context, key string) (int64, error) {
	entry, ok := s.live(key)
	if !ok {
		return 0, nil
	}
	return entry.value, nil
}

func (s *testStore) Save(_ context.Context, key string, value int64, ttl time.Duration) error {
	s.entries[key] = testEntry{value: value, expiresAt: s.clock.Now().Add(ttl)}
	return nil
}

func (s *testStore) Delete(_ context.Context, key string) error {
	delete(s.entries, key)
	return nil
}

func newTestLimiter(t *testing.T) (*RateLimiter, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	limiter := NewRateLimiter(newTestStore(clock))
	limiter.now = clock.Now
	return limiter, clock
}

func TestRateLimiter_AttemptBudget(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t)

	const key = "user|bob@example.com|127.0.0.1"
	const max = 5

	for i := 1; i < max; i++ {
		hits, err := limiter.Hit(ctx, key, 2*time.Minute)
		if err != nil {
			t.Fatalf("Hit() error = %v", err)
		}
		if hits != i {
			t.Fatalf("Hit() = %d, want %d", hits, i)
		}

		locked, err := limiter.TooManyAttempts(ctx, key, max)
		if err != nil {
			t.Fatalf("TooManyAttempts() error = %v", err)
		}
		if locked {
			t.Fatalf("locked out after %d of %d attempts", i, max)
		}
	}

	if _, err := limiter.Hit(ctx, key, 2*time.Minute); err != nil {
		t.Fatalf("Hit() error = %v", err)
	}

	locked, err := limiter.TooManyAttempts(ctx, key, max)
	if err != nil {
		t.Fatalf("TooManyAttempts() error = %v", err)
	}
	if !locked {
		t.Errorf("not locked out after %d attempts", max)
	}
}

func TestRateLimiter_LockoutLapses(t *testing.T) {
	ctx := context.Background()
	limiter, clock := newTestLimiter(t)

	const key = "user|bob@example.com|127.0.0.1"

	for i := 0; i < 5; i++ {
		if _, err := limiter.Hit(ctx, key, 2*time.Minute); err != nil {
			t.Fatalf("Hit() error = %v", err)
		}
	}

	locked, err := limiter.TooManyAttempts(ctx, key, 5)
	if err != nil {
		t.Fatalf("TooManyAttempts() error = %v", err)
	}
	if !locked {
		t.Fatal("expected lockout after five hits")
	}

	clock.Advance(2*time.Minute + time.Second)

	locked, err = limiter.TooManyAttempts(ctx, key, 5)
	if err != nil {
		t.Fatalf("TooManyAttempts() error = %v", err)
	}
	if locked {
		t.Error("still locked out after the decay window lapsed")
	}

	attempts, err := limiter.Attempts(ctx, key)
	if err != nil {
		t.Fatalf("Attempts() error = %v", err)
	}
	if attempts != 0 {
		t.Errorf("Attempts() = %d after lapse, want 0", attempts)
	}
}

func TestRateLimiter_Clear(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t)

	const key = "user|alice@example.com|10.0.0.1"

	if _, err := limiter.Hit(ctx, key, time.Minute); err != nil {
		t.Fatalf("Hit() error = %v", err)
	}

	if err := limiter.Clear(ctx, key); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	attempts, err := limiter.Attempts(ctx, key)
	if err != nil {
		t.Fatalf("Attempts() error = %v", err)
	}
	if attempts != 0 {
		t.Errorf("Attempts() = %d after Clear, want 0", attempts)
	}

	locked, err := limiter.TooManyAttempts(ctx, key, 1)
	if err != nil {
		t.Fatalf("TooManyAttempts() error = %v", err)
	}
	if locked {
		t.Error("locked out after Clear")
	}
}

func TestRateLimiter_AvailableInDecreases(t *testing.T) {
	ctx := context.Background()
	limiter, clock := newTestLimiter(t)

	const key = "user|carol@example.com|10.0.0.2"

	if _, err := limiter.Hit(ctx, key, 2*time.Minute); err != nil {
		t.Fatalf("Hit() error = %v", err)
	}

	first, err := limiter.AvailableIn(ctx, key)
	if err != nil {
		t.Fatalf("AvailableIn() error = %v", err)
	}

	clock.Advance(30 * time.Second)

	second, err := limiter.AvailableIn(ctx, key)
	if err != nil {
		t.Fatalf("AvailableIn() error = %v", err)
	}

	if second >= first {
		t.Errorf("AvailableIn() did not decrease: first %v, second %v", first, second)
	}
	if first != 2*time.Minute {
		t.Errorf("AvailableIn() right after Hit = %v, want %v", first, 2*time.Minute)
	}
}

func TestRateLimiter_RetriesLeft(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t)

	const key = "user|dave@example.com|10.0.0.3"

	left, err := limiter.RetriesLeft(ctx, key, 5)
	if err != nil {
		t.Fatalf("RetriesLeft() error = %v", err)
	}
	if left != 5 {
		t.Errorf("RetriesLeft() = %d, want 5", left)
	}

	for i := 0; i < 7; i++ {
		if _, err := limiter.Hit(ctx, key, time.Minute); err != nil {
			t.Fatalf("Hit() error = %v", err)
		}
	}

	// May go negative; clamping is the caller's concern.
	left, err = limiter.RetriesLeft(ctx, key, 5)
	if err != nil {
		t.Fatalf("RetriesLeft() error = %v", err)
	}
	if left != -2 {
		t.Errorf("RetriesLeft() = %d, want -2", left)
	}
}

func TestRateLimiter_HitRefreshesTimer(t *testing.T) {
	ctx := context.Background()
	limiter, clock := newTestLimiter(t)

	const key = "user|erin@example.com|10.0.0.4"

	if _, err := limiter.Hit(ctx, key, 2*time.Minute); err != nil {
		t.Fatalf("Hit() error = %v", err)
	}

	clock.Advance(90 * time.Second)

	if _, err := limiter.Hit(ctx, key, 2*time.Minute); err != nil {
		t.Fatalf("Hit() error = %v", err)
	}

	remaining, err := limiter.AvailableIn(ctx, key)
	if err != nil {
		t.Fatalf("AvailableIn() error = %v", err)
	}
	if remaining != 2*time.Minute {
		t.Errorf("AvailableIn() after refresh = %v, want %v", remaining, 2*time.Minute)
	}
}

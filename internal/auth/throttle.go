package auth

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

// Throttle defaults, applied when the corresponding config value is zero.
const (
	DefaultMaxAttempts   = 5
	DefaultAttemptDecay  = 2 * time.Minute
	DefaultUsernameField = "email"
)

// Throttle binds a RateLimiter to a guard's login flow. Each guard name,
// submitted identifier and client address triple gets its own attempt
// bucket. The HTTP layer checks it before Guard.Attempt, increments it on
// failure and clears it on success.
type Throttle struct {
	limiter       *RateLimiter
	guard         string
	usernameField string
	maxAttempts   int
	decay         time.Duration
}

// NewThrottle creates a throttle for the named guard.
func NewThrottle(limiter *RateLimiter, guard, usernameField string, maxAttempts int, decay time.Duration) *Throttle {
	if usernameField == "" {
		usernameField = DefaultUsernameField
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if decay <= 0 {
		decay = DefaultAttemptDecay
	}

	return &Throttle{
		limiter:       limiter,
		guard:         guard,
		usernameField: usernameField,
		maxAttempts:   maxAttempts,
		decay:         decay,
	}
}

// Key derives the attempt-bucket key for a request:
// lowercase(guard|identifier)|clientAddress.
func (t *Throttle) Key(r *http.Request) string {
	identifier := r.FormValue(t.usernameField)
	return strings.ToLower(t.guard+"|"+identifier) + "|" + clientAddress(r)
}

// TooManyLoginAttempts reports whether the request's bucket is locked out.
func (t *Throttle) TooManyLoginAttempts(ctx context.Context, r *http.Request) (bool, error) {
	return t.limiter.TooManyAttempts(ctx, t.Key(r), t.maxAttempts)
}

// IncrementLoginAttempts records a failed login for the request's bucket.
func (t *Throttle) IncrementLoginAttempts(ctx context.Context, r *http.Request) (int, error) {
	return t.limiter.Hit(ctx, t.Key(r), t.decay)
}

// ClearLoginAttempts removes the request's bucket after a successful login.
func (t *Throttle) ClearLoginAttempts(ctx context.Context, r *http.Request) error {
	return t.limiter.Clear(ctx, t.Key(r))
}

// AvailableIn returns how long the request's bucket stays locked out,
// for Retry-After headers.
func (t *Throttle) AvailableIn(ctx context.Context, r *http.Request) (time.Duration, error) {
	return t.limiter.AvailableIn(ctx, t.Key(r))
}

// clientAddress extracts the client IP from the request, dropping the port.
func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

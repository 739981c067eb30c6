// Package auth implements session/cookie authentication with optional
// "remember me" persistence and a login-attempt rate limiter.
//
// A Factory holds the configured guards ("user", "admin", ...) and the
// shared collaborators; per request it hands out a Guard bound to that
// request's cookie jar:
//
//	guard := factory.Guard(auth.NewHTTPJar(w, r, secureCookies))
//	ok, err := guard.Attempt(ctx, creds, remember)
//
// Login throttling composes separately via Throttle, which the HTTP
// layer consults before Attempt and updates afterwards:
//
//	locked, _ := throttle.TooManyLoginAttempts(ctx, r)  // before
//	throttle.IncrementLoginAttempts(ctx, r)             // on failure
//	throttle.ClearLoginAttempts(ctx, r)                 // on success
package auth

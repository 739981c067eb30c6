package auth

import (
	"net/http"
	"time"
)

// HTTPJar is a request-scoped CookieJar over net/http. Reads consult
// writes staged earlier in the same request before falling back to the
// request's Cookie header, so a value set and read within one request
// round-trips without the client's involvement.
type HTTPJar struct {
	r       *http.Request
	w       http.ResponseWriter
	secure  bool
	staged  map[string]string
	deleted map[string]bool
}

// NewHTTPJar creates a jar for one request/response pair.
func NewHTTPJar(w http.ResponseWriter, r *http.Request, secure bool) *HTTPJar {
	return &HTTPJar{
		r:       r,
		w:       w,
		secure:  secure,
		staged:  make(map[string]string),
		deleted: make(map[string]bool),
	}
}

// Has reports whether the named cookie is present.
func (j *HTTPJar) Has(name string) bool {
	if j.deleted[name] {
		return false
	}
	if _, ok := j.staged[name]; ok {
		return true
	}
	_, err := j.r.Cookie(name)
	return err == nil
}

// Get returns the named cookie's value, empty if absent.
func (j *HTTPJar) Get(name string) string {
	if j.deleted[name] {
		return ""
	}
	if value, ok := j.staged[name]; ok {
		return value
	}
	cookie, err := j.r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Set writes the named cookie with the given absolute expiry.
func (j *HTTPJar) Set(name, value string, expires time.Time) {
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteStrictMode,
	})
	j.staged[name] = value
	delete(j.deleted, name)
}

// Delete expires the named cookie. Deleting an absent cookie is a no-op
// on the client, so callers need not check first.
func (j *HTTPJar) Delete(name string) {
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteStrictMode,
	})
	j.deleted[name] = true
	delete(j.staged, name)
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mrlokans/gatekeeper/internal/config"
	"github.com/mrlokans/gatekeeper/internal/entities"
)

var (
	// ErrGuardNotDefined reports a guard name missing from the configured
	// guard set. A programmer error, surfaced immediately.
	ErrGuardNotDefined = errors.New("guard is not defined")

	// ErrMissingPasswordField reports credentials that lack the guard's
	// configured password field. Raised before any store lookup.
	ErrMissingPasswordField = errors.New("credentials are missing the password field")
)

// Credential is one field/value pair supplied by a login caller. Order is
// preserved when credentials become a store predicate.
type Credential struct {
	Field string
	Value any
}

// CredentialStore resolves and mutates user records. FindFirst returns
// (nil, nil) when no record matches; the guard never distinguishes that
// from a wrong password at its API boundary.
type CredentialStore interface {
	FindFirst(ctx context.Context, preds []Credential) (*entities.User, error)
	SaveRememberToken(ctx context.Context, user *entities.User, token string) error
}

// Hasher verifies a plaintext password against a stored hash.
type Hasher interface {
	CheckHash(password, hash string) bool
}

// TokenCipher is the symmetric primitive sealing remember-token payloads.
type TokenCipher interface {
	EncryptUnix(ts int64) (string, error)
	DecryptUnix(token string) (int64, error)
}

// SessionStore is per-request session state keyed off the request context.
type SessionStore interface {
	Has(ctx context.Context, key string) bool
	Get(ctx context.Context, key string) any
	Set(ctx context.Context, key string, value any)
	Remove(ctx context.Context, key string)
}

// CookieJar reads the current request's cookies and stages writes and
// deletions onto its response.
type CookieJar interface {
	Has(name string) bool
	Get(name string) string
	Set(name, value string, expires time.Time)
	Delete(name string)
}

// Factory holds the configured guard set and shared collaborators, and
// hands out request-scoped Guards. The default guard selector set by
// ShouldUse is process-wide state.
type Factory struct {
	guards  map[string]config.Guard
	stores  map[string]CredentialStore
	session SessionStore
	cipher  TokenCipher
	hasher  Hasher

	mu           sync.RWMutex
	defaultGuard string

	// Overridable for tests.
	now func() time.Time
}

// NewFactory creates a guard factory. stores maps guard names to their
// credential stores and must cover every configured guard.
func NewFactory(
	guards map[string]config.Guard,
	defaultGuard string,
	stores map[string]CredentialStore,
	session SessionStore,
	cipher TokenCipher,
	hasher Hasher,
) (*Factory, error) {
	if _, ok := guards[defaultGuard]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrGuardNotDefined, defaultGuard)
	}
	for name := range guards {
		if _, ok := stores[name]; !ok {
			return nil, fmt.Errorf("no credential store for guard %q", name)
		}
	}

	return &Factory{
		guards:       guards,
		stores:       stores,
		session:      session,
		cipher:       cipher,
		hasher:       hasher,
		defaultGuard: defaultGuard,
		now:          time.Now,
	}, nil
}

// ShouldUse persists name as the process-wide default guard. Guards
// created afterwards start on it.
func (f *Factory) ShouldUse(name string) error {
	if _, ok := f.guards[name]; !ok {
		return fmt.Errorf("%w: %q", ErrGuardNotDefined, name)
	}

	f.mu.Lock()
	f.defaultGuard = name
	f.mu.Unlock()
	return nil
}

// DefaultGuard returns the current process-wide default guard name.
func (f *Factory) DefaultGuard() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.defaultGuard
}

// Guard returns a guard bound to one request's cookie jar, active on the
// default guard. Guards live for a single request and are not safe for
// concurrent use.
func (f *Factory) Guard(jar CookieJar) *Guard {
	return &Guard{
		factory: f,
		jar:     jar,
		name:    f.DefaultGuard(),
	}
}

// Guard performs credential checks, session establishment, remember-me
// issuance/validation and logout for one request under one active guard.
type Guard struct {
	factory *Factory
	jar     CookieJar
	name    string
}

// Name returns the active guard name.
func (g *Guard) Name() string {
	return g.name
}

// Use switches the active guard. Unknown names fail with ErrGuardNotDefined.
func (g *Guard) Use(name string) error {
	if _, ok := g.factory.guards[name]; !ok {
		return fmt.Errorf("%w: %q", ErrGuardNotDefined, name)
	}
	g.name = name
	return nil
}

// Attempt verifies the supplied credentials. The guard's password field is
// stripped from the credentials and checked against the record's hash; the
// remaining fields become an equality-AND predicate. A missing record and
// a wrong password are both (false, nil) so the caller cannot leak which
// part was wrong. On success the session is established and, when
// remember is set, a remember-me environment is created.
func (g *Guard) Attempt(ctx context.Context, creds []Credential, remember bool) (bool, error) {
	passwordField := g.config().PasswordField
	if passwordField == "" {
		passwordField = "password"
	}

	password := ""
	havePassword := false
	preds := make([]Credential, 0, len(creds))
	for _, cred := range creds {
		if cred.Field == passwordField {
			password, _ = cred.Value.(string)
			havePassword = true
			continue
		}
		preds = append(preds, cred)
	}
	if !havePassword {
		return false, ErrMissingPasswordField
	}

	user, err := g.store().FindFirst(ctx, preds)
	if err != nil {
		return false, fmt.Errorf("find credentials: %w", err)
	}
	if user == nil {
		return false, nil
	}

	if !g.factory.hasher.CheckHash(password, user.PasswordHash) {
		return false, nil
	}

	g.loginSession(ctx, user)

	if remember {
		if err := g.createRememberEnvironment(ctx, user); err != nil {
			return false, err
		}
	}

	return true, nil
}

// Check reports whether the request is authenticated, either through the
// session flag or through a valid remember-me cookie pair. The latter
// re-establishes the session as a side effect.
func (g *Guard) Check(ctx context.Context) (bool, error) {
	if g.factory.session.Has(ctx, g.sessionKey("isAuthenticated")) {
		return true, nil
	}
	return g.loginWithRememberMe(ctx)
}

// User returns the user record held in the session, or nil. There is no
// remember-me fallback here; callers wanting silent re-login go through
// Check first.
func (g *Guard) User(ctx context.Context) *entities.User {
	value := g.factory.session.Get(ctx, g.sessionKey("user"))
	user, ok := value.(entities.User)
	if !ok {
		return nil
	}
	return &user
}

// Destroy clears the session flags and deletes both remember-me cookies.
// Idempotent: a second call on an already-destroyed state is a no-op.
func (g *Guard) Destroy(ctx context.Context) {
	g.factory.session.Remove(ctx, g.sessionKey("isAuthenticated"))
	g.factory.session.Remove(ctx, g.sessionKey("user"))
	g.jar.Delete(g.cookieName("RMU"))
	g.jar.Delete(g.cookieName("RMT"))
}

// RedirectIntended reads the guard's redirect key from the request and
// returns the target when it is a safe local path.
func (g *Guard) RedirectIntended(r *http.Request) (string, bool) {
	key := g.config().RedirectKey
	if key == "" {
		key = "redirect_to"
	}

	target := r.FormValue(key)
	if target == "" || !isLocalPath(target) {
		return "", false
	}
	return target, true
}

// loginSession marks the session authenticated and stores the user record.
func (g *Guard) loginSession(ctx context.Context, user *entities.User) {
	g.factory.session.Set(ctx, g.sessionKey("isAuthenticated"), true)
	g.factory.session.Set(ctx, g.sessionKey("user"), *user)
}

// createRememberEnvironment issues a remember-me token: the expiry
// timestamp sealed with the cipher, persisted on the user record and
// mirrored into the <guard>_RMU / <guard>_RMT cookie pair. Cookies are
// only set once the record persisted.
func (g *Guard) createRememberEnvironment(ctx context.Context, user *entities.User) error {
	expiry := g.config().RememberExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	expiresAt := g.factory.now().Add(expiry)

	token, err := g.factory.cipher.EncryptUnix(expiresAt.Unix())
	if err != nil {
		return fmt.Errorf("encrypt remember token: %w", err)
	}

	user.RememberToken = token
	if err := g.store().SaveRememberToken(ctx, user, token); err != nil {
		return fmt.Errorf("persist remember token: %w", err)
	}

	g.jar.Set(g.cookieName("RMU"), strconv.FormatUint(uint64(user.ID), 10), expiresAt)
	g.jar.Set(g.cookieName("RMT"), token, expiresAt)
	return nil
}

// loginWithRememberMe validates the remember-me cookie pair. The record
// must match id, token and activated together; the token's sealed expiry
// must still be in the future. A valid pair re-establishes the session
// and leaves the cookies in place for reuse until their own expiry. Any
// failure deletes both cookies.
func (g *Guard) loginWithRememberMe(ctx context.Context) (bool, error) {
	rmu, rmt := g.cookieName("RMU"), g.cookieName("RMT")

	if !g.jar.Has(rmu) || !g.jar.Has(rmt) {
		return false, nil
	}

	token := g.jar.Get(rmt)
	userID, idErr := strconv.ParseUint(g.jar.Get(rmu), 10, 64)
	if idErr == nil {
		user, err := g.store().FindFirst(ctx, []Credential{
			{Field: "id", Value: userID},
			{Field: "remember_token", Value: token},
			{Field: "activated", Value: true},
		})
		if err != nil {
			return false, fmt.Errorf("find remembered user: %w", err)
		}

		if user != nil {
			expiry, err := g.factory.cipher.DecryptUnix(user.RememberToken)
			if err == nil && g.factory.now().Unix() < expiry {
				g.loginSession(ctx, user)
				return true, nil
			}
		}
	}

	g.jar.Delete(rmu)
	g.jar.Delete(rmt)
	return false, nil
}

func (g *Guard) config() config.Guard {
	return g.factory.guards[g.name]
}

func (g *Guard) store() CredentialStore {
	return g.factory.stores[g.name]
}

func (g *Guard) sessionKey(suffix string) string {
	return g.name + "_" + suffix
}

func (g *Guard) cookieName(suffix string) string {
	return g.name + "_" + suffix
}

// isLocalPath validates that a redirect target is local, preventing open
// redirects through the intended-redirect mechanism.
func isLocalPath(path string) bool {
	if !strings.HasPrefix(path, "/") {
		return false
	}

	// Reject protocol-relative URLs (//evil.com)
	if strings.HasPrefix(path, "//") {
		return false
	}

	// Reject URLs with schemes
	if strings.Contains(path, "://") {
		return false
	}

	// Reject paths with backslashes (potential bypass attempts)
	if strings.Contains(path, "\\") {
		return false
	}

	return true
}

package http

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/gatekeeper/internal/auth"
	"github.com/mrlokans/gatekeeper/internal/config"
)

// AuthController handles the login, logout and identity endpoints.
type AuthController struct {
	factory *auth.Factory
	limiter *auth.RateLimiter
	config  config.Auth
}

// NewAuthController creates the controller around a guard factory and the
// shared login rate limiter.
func NewAuthController(factory *auth.Factory, limiter *auth.RateLimiter, cfg config.Auth) *AuthController {
	return &AuthController{
		factory: factory,
		limiter: limiter,
		config:  cfg,
	}
}

// RegisterRoutes registers authentication routes on the router.
func (ac *AuthController) RegisterRoutes(router *gin.Engine) {
	router.POST("/login", ac.Login)
	router.POST("/logout", ac.Logout)
	router.GET("/logout", ac.Logout) // Support GET for simple logout links
	router.GET("/me", ac.Me)
}

// guardFor binds a guard to the request, honoring an explicit "guard"
// form/query value over the process default.
func (ac *AuthController) guardFor(c *gin.Context) (*auth.Guard, error) {
	jar := auth.NewHTTPJar(c.Writer, c.Request, ac.config.SecureCookies)
	guard := ac.factory.Guard(jar)

	if name := c.Request.FormValue("guard"); name != "" {
		if err := guard.Use(name); err != nil {
			return nil, err
		}
	}
	return guard, nil
}

// throttleFor builds the login throttle for the active guard.
func (ac *AuthController) throttleFor(guard *auth.Guard) *auth.Throttle {
	return auth.NewThrottle(
		ac.limiter,
		guard.Name(),
		ac.config.UsernameField,
		ac.config.MaxLoginAttempts,
		ac.config.AttemptDecay,
	)
}

// Login handles the login form submission. The throttle is consulted
// before the credential check, incremented on failure and cleared on
// success.
func (ac *AuthController) Login(c *gin.Context) {
	ctx := c.Request.Context()

	guard, err := ac.guardFor(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	throttle := ac.throttleFor(guard)

	locked, err := throttle.TooManyLoginAttempts(ctx, c.Request)
	if err != nil {
		log.Printf("throttle check failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if locked {
		retryAfter, err := throttle.AvailableIn(ctx, c.Request)
		if err != nil {
			log.Printf("throttle lookup failed: %v", err)
		}
		c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "too many login attempts",
			"retry_after": int(retryAfter.Seconds()),
		})
		return
	}

	guardCfg := ac.config.Guards[guard.Name()]
	usernameField := ac.config.UsernameField
	if usernameField == "" {
		usernameField = auth.DefaultUsernameField
	}
	passwordField := guardCfg.PasswordField
	if passwordField == "" {
		passwordField = "password"
	}

	creds := []auth.Credential{
		{Field: usernameField, Value: c.PostForm(usernameField)},
		{Field: passwordField, Value: c.PostForm(passwordField)},
	}
	remember := isAffirmative(c.PostForm("remember"))

	ok, err := guard.Attempt(ctx, creds, remember)
	if err != nil {
		if errors.Is(err, auth.ErrMissingPasswordField) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("login attempt failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if !ok {
		if _, err := throttle.IncrementLoginAttempts(ctx, c.Request); err != nil {
			log.Printf("failed to record login attempt: %v", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if err := throttle.ClearLoginAttempts(ctx, c.Request); err != nil {
		log.Printf("failed to clear login attempts: %v", err)
	}

	if target, found := guard.RedirectIntended(c.Request); found {
		c.Redirect(http.StatusSeeOther, target)
		return
	}

	user := guard.User(ctx)
	c.JSON(http.StatusOK, gin.H{"message": "logged in", "user_id": user.ID})
}

// Logout destroys the session and remember-me cookies. Safe to call when
// already logged out.
func (ac *AuthController) Logout(c *gin.Context) {
	guard, err := ac.guardFor(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	guard.Destroy(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the authenticated user, letting a valid remember-me cookie
// pair silently re-establish the session.
func (ac *AuthController) Me(c *gin.Context) {
	ctx := c.Request.Context()

	guard, err := ac.guardFor(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ok, err := guard.Check(ctx)
	if err != nil {
		log.Printf("auth check failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	user := guard.User(ctx)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        user.ID,
		"email":     user.Email,
		"username":  user.Username,
		"activated": user.Activated,
	})
}

func isAffirmative(value string) bool {
	switch value {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

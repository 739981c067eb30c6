// Package http wires the authentication flows onto a gin router.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/gatekeeper/internal/auth"
	"github.com/mrlokans/gatekeeper/internal/config"
	"github.com/mrlokans/gatekeeper/internal/database"
)

// RouterConfig receives all router dependencies, keeping NewRouter
// testable with partial wiring.
type RouterConfig struct {
	Config         *config.Config
	Factory        *auth.Factory
	Limiter        *auth.RateLimiter
	SessionManager *auth.SessionManager
	Database       *database.Database
	CSRFSecret     []byte
	Version        string
}

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CSRF must run before the session middleware so the session context
	// is layered on top of CSRF's request replacement.
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.Config.Auth.SecureCookies))
	}

	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	authController := NewAuthController(cfg.Factory, cfg.Limiter, cfg.Config.Auth)
	authController.RegisterRoutes(router)

	healthController := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", healthController.Status)
	router.GET("/ping", func(c *gin.Context) { c.String(200, "pong") })

	return router
}

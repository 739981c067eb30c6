package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Redis
		Auth
	}

	HTTP struct {
		Port int32
		Host string
	}

	Global struct {
		ShutdownTimeoutInSeconds int
	}

	Database struct {
		Path string
	}

	Redis struct {
		Addr     string // Empty disables Redis; attempts are tracked in memory
		Password string
		DB       int
	}

	// Guard describes one named authentication context ("user", "admin").
	Guard struct {
		Model          string        // Table holding the credential records
		PasswordField  string        // Credentials key carrying the plaintext password
		RememberExpiry time.Duration // Lifetime of a remember-me token (default: 1h)
		RedirectKey    string        // Request key naming the post-login redirect target
	}

	Auth struct {
		DefaultGuard    string
		Guards          map[string]Guard
		EncryptionKey   string // base64-encoded 32-byte key for remember tokens
		SessionLifetime time.Duration
		BcryptCost      int
		SecureCookies   bool // Set to false for local dev without HTTPS
		CSRFSecret      string

		// Login throttling
		MaxLoginAttempts int           // Failed attempts before lockout (default: 5)
		AttemptDecay     time.Duration // Window shared by counter and lockout timer (default: 2m)
		UsernameField    string        // Credentials key used in throttle keys (default: "email")
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8199)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", "./gatekeeper.db")

	// Redis defaults (empty addr keeps attempt tracking in memory)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	// Auth defaults
	v.SetDefault("auth_default_guard", "user")
	v.SetDefault("auth_encryption_key", "") // Generated at startup if empty
	v.SetDefault("auth_session_lifetime", "24h")
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_secure_cookies", true)
	v.SetDefault("auth_csrf_secret", "")
	v.SetDefault("auth_max_login_attempts", 5)
	v.SetDefault("auth_attempt_decay", "2m")
	v.SetDefault("auth_username_field", "email")

	// Per-guard defaults
	v.SetDefault("auth_user_remember_expiry", "1h")
	v.SetDefault("auth_user_redirect_key", "redirect_to")
	v.SetDefault("auth_admin_remember_expiry", "1h")
	v.SetDefault("auth_admin_redirect_key", "redirect_to")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Redis: Redis{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Auth: Auth{
			DefaultGuard: v.GetString("AUTH_DEFAULT_GUARD"),
			Guards: map[string]Guard{
				"user": {
					Model:          "users",
					PasswordField:  "password",
					RememberExpiry: v.GetDuration("AUTH_USER_REMEMBER_EXPIRY"),
					RedirectKey:    v.GetString("AUTH_USER_REDIRECT_KEY"),
				},
				"admin": {
					Model:          "admins",
					PasswordField:  "password",
					RememberExpiry: v.GetDuration("AUTH_ADMIN_REMEMBER_EXPIRY"),
					RedirectKey:    v.GetString("AUTH_ADMIN_REDIRECT_KEY"),
				},
			},
			EncryptionKey:    v.GetString("AUTH_ENCRYPTION_KEY"),
			SessionLifetime:  v.GetDuration("AUTH_SESSION_LIFETIME"),
			BcryptCost:       v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:    v.GetBool("AUTH_SECURE_COOKIES"),
			CSRFSecret:       v.GetString("AUTH_CSRF_SECRET"),
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			AttemptDecay:     v.GetDuration("AUTH_ATTEMPT_DECAY"),
			UsernameField:    v.GetString("AUTH_USERNAME_FIELD"),
		},
	}
}

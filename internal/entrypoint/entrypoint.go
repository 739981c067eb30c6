package entrypoint

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/mrlokans/gatekeeper/internal/auth"
	"github.com/mrlokans/gatekeeper/internal/cache"
	"github.com/mrlokans/gatekeeper/internal/config"
	"github.com/mrlokans/gatekeeper/internal/crypto"
	"github.com/mrlokans/gatekeeper/internal/database"
	"github.com/mrlokans/gatekeeper/internal/database/users"
	http_controllers "github.com/mrlokans/gatekeeper/internal/http"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Run wires the service together and serves until interrupted.
func Run(cfg *config.Config, version string) {
	log.Printf("Starting Gatekeeper v%s", version)

	key := cfg.Auth.EncryptionKey
	if key == "" {
		generated, err := crypto.GenerateKey()
		if err != nil {
			log.Fatalf("Failed to generate encryption key: %v", err)
		}
		key = generated
		log.Printf("WARNING: AUTH_ENCRYPTION_KEY is not set. Generated an ephemeral key; remember-me tokens will not survive restarts.")
	}

	encryptor, err := crypto.NewEncryptorFromBase64(key)
	if err != nil {
		log.Fatalf("Invalid encryption key: %v", err)
	}

	tables := make([]string, 0, len(cfg.Auth.Guards))
	for _, guard := range cfg.Auth.Guards {
		tables = append(tables, guard.Model)
	}

	db, err := database.NewDatabase(cfg.Database.Path, tables)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	sqlDB, err := db.SQLDB()
	if err != nil {
		log.Fatalf("Failed to access database handle: %v", err)
	}

	sessionManager, err := auth.NewSessionManager(sqlDB, cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to initialize session manager: %v", err)
	}

	var attemptStore cache.Store
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		attemptStore = cache.NewRedis(client, "gatekeeper")
		log.Printf("Tracking login attempts in Redis at %s", cfg.Redis.Addr)
	} else {
		attemptStore = cache.NewMemory()
		log.Printf("REDIS_ADDR not set, tracking login attempts in memory")
	}

	limiter := auth.NewRateLimiter(attemptStore)

	stores := make(map[string]auth.CredentialStore, len(cfg.Auth.Guards))
	for name, guard := range cfg.Auth.Guards {
		stores[name] = users.NewRepository(db.DB, guard.Model)
	}

	factory, err := auth.NewFactory(
		cfg.Auth.Guards,
		cfg.Auth.DefaultGuard,
		stores,
		sessionManager,
		encryptor,
		auth.BcryptHasher{},
	)
	if err != nil {
		log.Fatalf("Failed to configure guards: %v", err)
	}

	csrfSecret := []byte(cfg.Auth.CSRFSecret)
	if len(csrfSecret) == 0 {
		csrfSecret = make([]byte, 32)
		if _, err := rand.Read(csrfSecret); err != nil {
			log.Fatalf("Failed to generate CSRF secret: %v", err)
		}
		log.Printf("WARNING: AUTH_CSRF_SECRET is not set. Generated an ephemeral secret; CSRF tokens will not survive restarts.")
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Config:         cfg,
		Factory:        factory,
		Limiter:        limiter,
		SessionManager: sessionManager,
		Database:       db,
		CSRFSecret:     csrfSecret,
		Version:        version,
	})

	Serve(router, cfg, nil)
}

// Serve runs the HTTP server with graceful shutdown on SIGINT/SIGTERM.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

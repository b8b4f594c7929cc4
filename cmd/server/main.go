package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yatube/yatube/internal/auth"
	"github.com/yatube/yatube/internal/cache"
	"github.com/yatube/yatube/internal/db"
	"github.com/yatube/yatube/internal/events"
	"github.com/yatube/yatube/internal/storage"
	"github.com/yatube/yatube/internal/web"
	"github.com/yatube/yatube/pkg/config"
	"github.com/yatube/yatube/pkg/logging"
	"github.com/yatube/yatube/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Yatube server")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Initialize database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	// Page cache store
	store, err := newCacheStore(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize page cache", zap.Error(err))
	}
	defer store.Close()
	pageCache := cache.NewPageCache(store, cfg.Cache.IndexKeyPrefix, cfg.Cache.IndexTTL)

	images, err := storage.NewLocalStore(cfg.Media.Root)
	if err != nil {
		logger.Fatal("Failed to initialize media storage", zap.Error(err))
	}

	publisher := events.NewPublisher(&cfg.Kafka)
	defer publisher.Close()

	identity := auth.New(&cfg.Auth, db.NewUserRepository(db.NewRepository(database.DB)))

	router, err := web.NewRouter(web.Options{
		DB:        database,
		PageCache: pageCache,
		Identity:  identity,
		Images:    images,
		Events:    publisher,
		LoginURL:  cfg.Auth.LoginURL,
		MediaRoot: cfg.Media.Root,
		MediaURL:  cfg.Media.URL,
	})
	if err != nil {
		logger.Fatal("Failed to initialize router", zap.Error(err))
	}

	// Create Gin router
	if strings.EqualFold(cfg.Logging.Level, "DEBUG") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	router.SetupRoutes(engine)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: engine,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// newCacheStore returns the Redis store when redis_url is set and the
// in-process store otherwise.
func newCacheStore(cfg *config.Config) (cache.Store, error) {
	if cfg.Redis.Enabled {
		return cache.NewRedisStore(&cfg.Redis)
	}
	logging.WithComponent("cache").Info("Using in-memory page cache")
	return cache.NewMemoryStore(cfg.Cache.JanitorInterval), nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-backend/config"
	"storefront-backend/database"
	"storefront-backend/logger"
	"storefront-backend/metrics"
	"storefront-backend/middleware"
	"storefront-backend/routes"
	"storefront-backend/session"
	"storefront-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load environment variables
	if err := config.LoadEnv(); err != nil {
		log.Fatal("Error loading .env file:", err)
	}

	// Validate critical environment variables
	if err := config.ValidateEnv(); err != nil {
		log.Fatal("Environment validation failed: ", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	logg := logger.New(logger.Options{
		ServiceName: "storefront-backend",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "server.exit", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	if err := database.Migrate(ctx, db, logg); err != nil {
		return multierr.Append(fmt.Errorf("running migrations: %w", err), database.Close(db))
	}

	// Create default admin user if not exists
	if err := database.CreateDefaultAdmin(ctx, db, cfg.Admin, logg); err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "default admin not created")
	}

	store, redisClient, err := newSessionStore(ctx, cfg, logg)
	if err != nil {
		return multierr.Append(err, database.Close(db))
	}
	sessions, err := session.NewManager(store, session.Options{
		CookieName:  cfg.Session.CookieName,
		IdleTimeout: cfg.Session.IdleTimeout,
		Secure:      cfg.App.IsProd(),
	})
	if err != nil {
		return multierr.Combine(err, closeRedis(redisClient), database.Close(db))
	}

	fileStorage, err := newFileStorage(ctx, cfg, logg)
	if err != nil {
		return multierr.Combine(err, closeRedis(redisClient), database.Close(db))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	go limiter.Run(ctx)

	if cfg.App.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// Limit multipart form memory to 10MB
	r.MaxMultipartMemory = 10 << 20

	if err := routes.SetupRoutes(r, routes.Deps{
		DB:         db,
		Storage:    fileStorage,
		Sessions:   sessions,
		Log:        logg,
		Metrics:    metrics.New(registry),
		Gatherer:   registry,
		Limiter:    limiter,
		Storefront: routes.OptionsFromConfig(cfg),
	}); err != nil {
		return multierr.Combine(err, closeRedis(redisClient), database.Close(db))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "port", cfg.App.Port), "server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logg.Info(context.Background(), "shutting down server")
	case err := <-serveErr:
		runErr = fmt.Errorf("listen: %w", err)
	}

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	runErr = multierr.Combine(
		runErr,
		srv.Shutdown(shutdownCtx),
		closeRedis(redisClient),
		database.Close(db),
	)
	if runErr == nil {
		logg.Info(context.Background(), "server exited gracefully")
	}
	return runErr
}

// newSessionStore picks Redis when REDIS_URL is set and process memory otherwise.
func newSessionStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (session.Store, *redis.Client, error) {
	if cfg.Redis.URL == "" {
		logg.Warn(ctx, "sessions kept in process memory")
		mem := session.NewMemoryStore()
		go sweepSessions(ctx, mem, logg)
		return mem, nil, nil
	}
	client, err := session.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return session.NewRedisStore(client), client, nil
}

func sweepSessions(ctx context.Context, mem *session.MemoryStore, logg *logger.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := mem.Sweep(); n > 0 {
				logg.Debug(logg.WithField(ctx, "expired", n), "sessions swept")
			}
		}
	}
}

func newFileStorage(ctx context.Context, cfg *config.Config, logg *logger.Logger) (storage.FileStorage, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendFirebase:
		return storage.NewFirebaseStorage(ctx, cfg.Storage, logg)
	default:
		return storage.NewLocalStorage(cfg.Storage.WebRoot)
	}
}

func closeRedis(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}

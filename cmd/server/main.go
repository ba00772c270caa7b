package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/segyhp/lead-intake/internal/auth"
	"github.com/segyhp/lead-intake/internal/broker"
	"github.com/segyhp/lead-intake/internal/config"
	"github.com/segyhp/lead-intake/internal/database"
	"github.com/segyhp/lead-intake/internal/handler"
	"github.com/segyhp/lead-intake/internal/logger"
	"github.com/segyhp/lead-intake/internal/metrics"
	"github.com/segyhp/lead-intake/internal/notifier"
	"github.com/segyhp/lead-intake/internal/repository"
	"github.com/segyhp/lead-intake/internal/review"
	"github.com/segyhp/lead-intake/internal/service"
)

// stores bundles the repositories of the selected driver.
type stores struct {
	applications repository.ApplicationRepository
	emailLogs    repository.EmailLogRepository
	outbox       repository.OutboxRepository
	admins       repository.AdminRepository
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zl.Sync()
	zap.ReplaceGlobals(zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	db, repos, err := initStores(cfg, zl)
	if err != nil {
		zl.Fatal("Failed to initialize store", zap.Error(err))
	}
	if db != nil {
		defer db.Close()
	}

	// Initialize Redis and the change broker
	redisClient, b, err := initBroker(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("Failed to initialize broker", zap.Error(err))
	}
	defer b.Close()
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Initialize admin authentication
	authenticator, err := initAuth(cfg, repos, zl)
	if err != nil {
		zl.Fatal("Failed to initialize admin authentication", zap.Error(err))
	}

	m := metrics.New()

	// Initialize notification delivery
	mailer, err := notifier.NewMailer(ctx, cfg.Mail, zl)
	if err != nil {
		zl.Fatal("Failed to initialize mailer", zap.Error(err))
	}
	n := notifier.New(mailer, repos.emailLogs, zl, m)
	dispatcher := notifier.NewDispatcher(repos.outbox, n, notifier.DispatcherConfigFrom(cfg.Notify), zl, m)
	go dispatcher.Run(ctx)

	// Sweep for retries and tasks left behind by a previous process
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.Notify.Schedule, dispatcher.Kick); err != nil {
		zl.Fatal("Failed to schedule outbox sweep", zap.Error(err))
	}

	var limiter *handler.RateLimiter
	if cfg.Server.RateLimitRPS > 0 {
		limiter = handler.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, zl)
		if _, err := sweeper.AddFunc("@every 10m", func() { limiter.Cleanup(30 * time.Minute) }); err != nil {
			zl.Fatal("Failed to schedule rate limiter cleanup", zap.Error(err))
		}
	}

	sweeper.Start()
	dispatcher.Kick()

	// Initialize service
	applicationService := service.NewApplicationService(repos.applications, b, dispatcher, zl, m)
	surface := review.NewSurface(applicationService, zl)

	router := handler.NewRouter(handler.Handlers{
		Applications: handler.NewApplicationHandler(applicationService, zl),
		Admin: handler.NewAdminHandler(authenticator, surface, zl, m, handler.AdminOptions{
			SecureCookie:  cfg.IsProduction(),
			AllowedOrigin: cfg.Server.CORSOrigin,
		}),
		Health:     handler.NewHealthHandler(db, redisClient),
		Sessions:   authenticator,
		Metrics:    m,
		RateLimit:  limiter,
		Logger:     zl,
		CORSOrigin: cfg.Server.CORSOrigin,
	})

	// Start server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		zl.Info("Server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Server.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	<-ctx.Done()
	zl.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	<-sweeper.Stop().Done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	zl.Info("Server exited")
}

func initStores(cfg *config.Config, zl *zap.Logger) (*sqlx.DB, stores, error) {
	if cfg.Database.Driver == "memory" {
		zl.Warn("using in-memory store, data is lost on restart")
		mem := repository.NewMemoryStore()
		return nil, stores{
			applications: mem.Applications(),
			emailLogs:    mem.EmailLogs(),
			outbox:       mem.Outbox(),
			admins:       mem.Admins(),
		}, nil
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, stores{}, err
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			db.Close()
			return nil, stores{}, err
		}
		zl.Info("database schema up to date")
	}

	return db, stores{
		applications: repository.NewApplicationRepository(db),
		emailLogs:    repository.NewEmailLogRepository(db),
		outbox:       repository.NewOutboxRepository(db),
		admins:       repository.NewAdminRepository(db),
	}, nil
}

func initBroker(ctx context.Context, cfg *config.Config, zl *zap.Logger) (*redis.Client, broker.Broker, error) {
	if cfg.Redis.URL == "" {
		zl.Info("REDIS_URL not set, live updates stay within this process")
		return nil, broker.NewMemory(), nil
	}

	client, err := database.OpenRedis(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	return client, broker.NewRedis(client, cfg.Redis.Channel, zl), nil
}

func initAuth(cfg *config.Config, repos stores, zl *zap.Logger) (*auth.Authenticator, error) {
	if cfg.UsesDefaultSecret() {
		zl.Warn("SESSION_SECRET not set, using the development secret")
	}
	tokens := auth.NewTokenManager(cfg.Session.Secret, cfg.Session.TTL)

	var store auth.CredentialStore
	switch cfg.Admin.CredentialSource {
	case "database":
		store = repos.admins
	default:
		static, err := auth.NewStaticCredentialStore(cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.PasswordHash)
		if err != nil {
			return nil, err
		}
		store = static
	}

	return auth.NewAuthenticator(store, tokens), nil
}

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/segyhp/lead-intake/internal/config"
	"github.com/segyhp/lead-intake/internal/database"
	"github.com/segyhp/lead-intake/internal/logger"
	"github.com/segyhp/lead-intake/internal/metrics"
	"github.com/segyhp/lead-intake/internal/notifier"
	"github.com/segyhp/lead-intake/internal/repository"
)

// The scheduler drains the notification outbox on its own, for deployments
// that keep email delivery out of the API process.
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

	if cfg.Database.Driver != "postgres" {
		zl.Fatal("scheduler requires STORE_DRIVER=postgres", zap.String("driver", cfg.Database.Driver))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database)
	if err != nil {
		zl.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	mailer, err := notifier.NewMailer(ctx, cfg.Mail, zl)
	if err != nil {
		zl.Fatal("Failed to initialize mailer", zap.Error(err))
	}

	m := metrics.New()
	n := notifier.New(mailer, repository.NewEmailLogRepository(db), zl, m)
	dispatcher := notifier.NewDispatcher(repository.NewOutboxRepository(db), n, notifier.DispatcherConfigFrom(cfg.Notify), zl, m)

	c := cron.New()
	setupCronJobs(ctx, c, cfg, dispatcher, zl)

	// Start the scheduler
	c.Start()
	zl.Info("Scheduler started", zap.String("schedule", cfg.Notify.Schedule))

	<-ctx.Done()
	zl.Info("Shutting down scheduler...")
	<-c.Stop().Done()
	zl.Info("Scheduler stopped")
}

func setupCronJobs(ctx context.Context, c *cron.Cron, cfg *config.Config, dispatcher *notifier.Dispatcher, zl *zap.Logger) {
	_, err := c.AddFunc(cfg.Notify.Schedule, func() {
		result, err := dispatcher.RunOnce(ctx)
		if err != nil {
			zl.Error("outbox pass failed", zap.Error(err))
			return
		}
		zl.Debug("outbox pass", zap.Int("claimed", result.Claimed), zap.Int("delivered", result.Delivered))
	})
	if err != nil {
		zl.Fatal("Error scheduling outbox job", zap.Error(err))
	}
}

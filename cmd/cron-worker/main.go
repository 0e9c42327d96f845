// Command cron-worker runs the scheduled sweeps: verification expiry and
// renewal notices, add-on expiry, and retention of old rows.
package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/railexchange-backend/internal/addons"
	"github.com/angelmondragon/railexchange-backend/internal/cron"
	"github.com/angelmondragon/railexchange-backend/internal/notifications"
	"github.com/angelmondragon/railexchange-backend/internal/users"
	"github.com/angelmondragon/railexchange-backend/internal/verification"
	"github.com/angelmondragon/railexchange-backend/pkg/bootstrap"
	"github.com/angelmondragon/railexchange-backend/pkg/config"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
	"github.com/angelmondragon/railexchange-backend/pkg/metrics"
	"github.com/angelmondragon/railexchange-backend/pkg/outbox"
)

func main() {
	proc := bootstrap.Start("cron-worker")
	defer proc.Close()
	cfg, logg := proc.Config, proc.Logger

	boot := context.Background()
	dbClient := proc.Database(boot)
	redisClient := proc.Redis(boot)
	// The lifecycle sweep never signs uploads but the service requires a signer.
	storageClient := proc.Storage(boot)

	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)
	outboxService := outbox.NewService(outboxRepo, logg)
	notificationsRepo := notifications.NewRepository(gormDB)

	usersService, err := users.NewService(users.NewRepository(gormDB), logg)
	proc.Must(err, "users.service_failed")
	notificationsService, err := notifications.NewService(notificationsRepo, outboxService)
	proc.Must(err, "notifications.service_failed")

	verificationService, err := verification.NewService(verification.ServiceParams{
		DB:       dbClient,
		Repo:     verification.NewRepository(gormDB),
		Users:    usersService,
		Notifier: notificationsService,
		Outbox:   outboxService,
		Signer:   storageClient,
		Metrics:  metrics.NewVerificationMetrics(prometheus.DefaultRegisterer),
		Logger:   logg,
		Config:   cfg.Verification,
	})
	proc.Must(err, "verification.service_failed")

	addOnService, err := addons.NewService(addons.ServiceParams{
		DB:       dbClient,
		Repo:     addons.NewRepository(gormDB),
		Notifier: notificationsService,
		Outbox:   outboxService,
		Logger:   logg,
	})
	proc.Must(err, "addons.service_failed")

	jobs, err := buildJobs(cfg, logg, verificationService, addOnService, outboxRepo, notificationsRepo)
	proc.Must(err, "cron.jobs_failed")
	registry, err := cron.NewRegistry(jobs...)
	proc.Must(err, "cron.registry_failed")

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locks:    cron.RedisLockFactory(redisClient, cfg.Cron.LockTTL),
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	proc.Must(err, "cron.service_failed")

	ctx, stop := proc.SignalContext(map[string]any{"jobs": registry.Names()})
	defer stop()
	logg.Info(ctx, "cron.starting")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Must(err, "cron.stopped")
	}
	logg.Info(ctx, "cron.stopped")
}

func buildJobs(
	cfg *config.Config,
	logg *logger.Logger,
	verifications *verification.Service,
	addOns *addons.Service,
	outboxRepo *outbox.Repository,
	notificationsRepo notifications.Repository,
) ([]cron.Job, error) {
	lifecycle, err := cron.NewVerificationLifecycleJob(cron.VerificationLifecycleJobParams{
		Logger:        logg,
		Verifications: verifications,
		BatchSize:     cfg.Verification.ExpiryBatchSize,
		RenewalWindow: cfg.Verification.RenewalWindow,
	})
	if err != nil {
		return nil, err
	}
	expiry, err := cron.NewAddOnExpiryJob(cron.AddOnExpiryJobParams{
		Logger:    logg,
		AddOns:    addOns,
		BatchSize: cfg.Verification.ExpiryBatchSize,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, err
	}
	cleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notificationsRepo,
	})
	if err != nil {
		return nil, err
	}
	return []cron.Job{lifecycle, expiry, retention, cleanup}, nil
}

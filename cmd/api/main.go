// Command api serves the HTTP surface: intake, review, checkout, webhooks,
// entitlements, ranking and notifications.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/railexchange-backend/api/controllers"
	"github.com/angelmondragon/railexchange-backend/api/routes"
	"github.com/angelmondragon/railexchange-backend/internal/addons"
	"github.com/angelmondragon/railexchange-backend/internal/checkout"
	"github.com/angelmondragon/railexchange-backend/internal/entitlements"
	"github.com/angelmondragon/railexchange-backend/internal/notifications"
	"github.com/angelmondragon/railexchange-backend/internal/users"
	"github.com/angelmondragon/railexchange-backend/internal/verification"
	stripewebhook "github.com/angelmondragon/railexchange-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/railexchange-backend/pkg/bootstrap"
	"github.com/angelmondragon/railexchange-backend/pkg/metrics"
	"github.com/angelmondragon/railexchange-backend/pkg/outbox"
	"github.com/angelmondragon/railexchange-backend/pkg/ratelimit"
	"github.com/angelmondragon/railexchange-backend/pkg/stripe"
)

const (
	stripeWebhookScope = "stripe-webhook"
	shutdownGrace      = 15 * time.Second
)

func main() {
	proc := bootstrap.Start("api")
	defer proc.Close()
	cfg, logg := proc.Config, proc.Logger

	if cfg.Sentry.Enabled() {
		proc.Must(sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.App.Env,
			EnableTracing:    cfg.Sentry.TracesSampleRate > 0,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
		}), "sentry.init_failed")
		defer sentry.Flush(2 * time.Second)
	}

	boot := context.Background()
	dbClient := proc.Database(boot)
	redisClient := proc.Redis(boot)
	storageClient := proc.Storage(boot)

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	usersService, err := users.NewService(users.NewRepository(gormDB), logg)
	proc.Must(err, "users.service_failed")
	notificationsService, err := notifications.NewService(notifications.NewRepository(gormDB), outboxService)
	proc.Must(err, "notifications.service_failed")

	verificationService, err := verification.NewService(verification.ServiceParams{
		DB:           dbClient,
		Repo:         verification.NewRepository(gormDB),
		Users:        usersService,
		Notifier:     notificationsService,
		Outbox:       outboxService,
		Signer:       storageClient,
		Metrics:      metrics.NewVerificationMetrics(prometheus.DefaultRegisterer),
		Logger:       logg,
		Config:       cfg.Verification,
		UploadURLTTL: cfg.GCS.UploadURLExpiry,
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

	entitlementService, err := entitlements.NewService(usersService, verificationService, addOnService, nil)
	proc.Must(err, "entitlements.service_failed")

	limiter, err := ratelimit.New(ratelimit.Params{
		Store:   redisClient,
		Burst:   cfg.RateLimit.LocalBurst,
		Metrics: metrics.NewRateLimitMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
	})
	proc.Must(err, "ratelimit.init_failed")

	deps := routes.Dependencies{
		Config: cfg,
		Logger: logg,
		Readiness: []controllers.ReadinessCheck{
			{Name: "postgres", Check: dbClient.Ping},
			{Name: "redis", Check: redisClient.Ping},
			{Name: "gcs", Check: storageClient.Ping},
		},
		Idempotency:   redisClient,
		Limiter:       limiter,
		Verifications: verificationService,
		AddOns:        addOnService,
		Entitlements:  entitlementService,
		Notifications: notificationsService,
		DeadLetters:   outbox.NewDLQRepository(gormDB),
		Documents:     storageClient,
	}
	if cfg.FeatureFlags.Metrics {
		deps.Metrics = promhttp.Handler()
	}

	// Checkout and the webhook stay unmounted until Stripe credentials exist.
	if stripeClient, err := stripe.NewClient(boot, cfg.Stripe, logg); err != nil {
		logg.Warn(logg.WithField(boot, "error", err.Error()), "stripe.disabled")
	} else {
		checkoutService, err := checkout.NewService(stripeClient, verificationService, cfg.Stripe, logg)
		proc.Must(err, "checkout.service_failed")
		webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
			Verifications: verificationService,
			AddOns:        addOnService,
			AddOnPeriod:   cfg.Verification.AddOnDefaultPeriod,
			Logger:        logg,
		})
		proc.Must(err, "webhook.service_failed")
		guard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Stripe.WebhookEventTTL, stripeWebhookScope)
		proc.Must(err, "webhook.guard_failed")

		deps.VerificationCheckout = checkoutService
		deps.AddOnCheckout = checkoutService
		deps.StripeClient = stripeClient
		deps.StripeWebhookService = webhookService
		deps.StripeWebhookGuard = guard
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := proc.SignalContext(map[string]any{"addr": server.Addr})
	defer stop()
	go func() {
		<-ctx.Done()
		drain, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(drain); err != nil {
			logg.Error(ctx, "http.shutdown_failed", err)
		}
	}()

	logg.Info(ctx, "http.listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		proc.Must(err, "http.serve_failed")
	}
	logg.Info(ctx, "http.stopped")
}

package routes

import (
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/railexchange-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/railexchange-backend/api/controllers/webhooks"
	"github.com/angelmondragon/railexchange-backend/api/middleware"
	"github.com/angelmondragon/railexchange-backend/internal/entitlements"
	"github.com/angelmondragon/railexchange-backend/internal/notifications"
	stripewebhook "github.com/angelmondragon/railexchange-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/railexchange-backend/pkg/config"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
	"github.com/angelmondragon/railexchange-backend/pkg/ratelimit"
	"github.com/angelmondragon/railexchange-backend/pkg/redis"
	"github.com/angelmondragon/railexchange-backend/pkg/stripe"
)

// Dependencies is everything the HTTP surface needs. A nil service answers 500
// on its routes; the Stripe webhook is only mounted when fully wired.
type Dependencies struct {
	Config *config.Config
	Logger *logger.Logger

	Readiness   []controllers.ReadinessCheck
	Metrics     http.Handler
	Idempotency redis.IdempotencyStore
	Limiter     *ratelimit.Limiter

	Verifications        verificationService
	VerificationCheckout controllers.VerificationCheckoutService
	AddOns               controllers.AddOnService
	AddOnCheckout        controllers.AddOnCheckoutService
	Entitlements         entitlements.Service
	Notifications        notifications.Service
	DeadLetters          controllers.DeadLetterReader
	Documents            controllers.DocumentLinkSigner
	Clock                func() time.Time

	StripeClient         *stripe.Client
	StripeWebhookService *stripewebhook.Service
	StripeWebhookGuard   *stripewebhook.IdempotencyGuard
}

type verificationService interface {
	controllers.VerificationOwnerService
	controllers.VerificationAdminService
}

type policies struct {
	standard ratelimit.Policy
	uploads  ratelimit.Policy
	submit   ratelimit.Policy
	admin    ratelimit.Policy
}

func policiesFor(cfg config.RateLimitConfig) policies {
	if !cfg.Enabled {
		return policies{}
	}
	return policies{
		standard: ratelimit.Policy{Name: "default", Limit: cfg.DefaultLimit, Window: cfg.Window},
		uploads:  ratelimit.Policy{Name: "uploads", Limit: cfg.UploadLimit, Window: cfg.Window},
		submit:   ratelimit.Policy{Name: "submit", Limit: cfg.SubmitLimit, Window: cfg.Window},
		admin:    ratelimit.Policy{Name: "admin", Limit: cfg.AdminLimit, Window: cfg.Window},
	}
}

func NewRouter(deps Dependencies) http.Handler {
	cfg, logg := deps.Config, deps.Logger
	limits := policiesFor(cfg.RateLimit)

	rateLimit := func(p ratelimit.Policy) func(http.Handler) http.Handler {
		if deps.Limiter == nil {
			return middleware.RateLimit(p, nil, logg)
		}
		return middleware.RateLimit(p, deps.Limiter, logg)
	}

	r := chi.NewRouter()
	if cfg.Sentry.Enabled() {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness...))
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.Ping("public"))
	})

	if deps.StripeWebhookService != nil && deps.StripeClient != nil && deps.StripeWebhookGuard != nil {
		r.Route("/api/v1/webhooks", func(r chi.Router) {
			r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhookService, deps.StripeClient, deps.StripeWebhookGuard, logg))
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Group(func(r chi.Router) {
			r.Use(rateLimit(limits.standard))
			r.Get("/ping", controllers.Ping("private"))

			r.Route("/v1/verifications", func(r chi.Router) {
				r.Get("/", controllers.ListMyVerifications(deps.Verifications, logg))
				r.Route("/{path}", func(r chi.Router) {
					r.Get("/", controllers.GetMyVerification(deps.Verifications, logg))
					r.With(rateLimit(limits.uploads)).Post("/documents", controllers.RequestDocumentUpload(deps.Verifications, logg))
					r.Put("/details", controllers.DeclareVerificationDetails(deps.Verifications, logg))
					r.With(rateLimit(limits.submit)).Post("/submit", controllers.SubmitVerification(deps.Verifications, logg))
					r.Post("/restart", controllers.RestartVerification(deps.Verifications, logg))
					r.Put("/tier", controllers.SelectVerificationTier(deps.Verifications, logg))
					r.Post("/checkout", controllers.StartVerificationCheckout(deps.VerificationCheckout, logg))
				})
			})

			r.Get("/v1/me/entitlements", controllers.MyEntitlements(deps.Entitlements, logg))

			r.Route("/v1/addons", func(r chi.Router) {
				r.Get("/", controllers.ListMyAddOns(deps.AddOns, logg))
				r.Post("/checkout", controllers.StartAddOnCheckout(deps.AddOnCheckout, logg))
				r.Delete("/{addOnId}", controllers.CancelAddOn(deps.AddOns, logg))
			})

			r.Post("/v1/ranking/compose", controllers.ComposeRanking(deps.Clock, logg))

			r.Route("/v1/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
			r.Use(rateLimit(limits.admin))
			r.Get("/ping", controllers.Ping("admin"))

			r.Route("/verifications", func(r chi.Router) {
				r.Get("/", controllers.AdminListVerifications(deps.Verifications, logg))
				r.Route("/{recordId}", func(r chi.Router) {
					r.Get("/", controllers.AdminGetVerification(deps.Verifications, logg))
					r.Get("/history", controllers.AdminVerificationHistory(deps.Verifications, logg))
					r.Get("/documents", controllers.AdminDocumentLinks(deps.Verifications, deps.Documents, cfg.GCS.DownloadURLExpiry, deps.Clock, logg))
					r.Post("/approve", controllers.AdminApproveVerification(deps.Verifications, logg))
					r.Post("/reject", controllers.AdminRejectVerification(deps.Verifications, logg))
					r.Post("/suspend", controllers.AdminSuspendVerification(deps.Verifications, logg))
					r.Post("/reinstate", controllers.AdminReinstateVerification(deps.Verifications, logg))
					r.Post("/revoke", controllers.AdminRevokeVerification(deps.Verifications, logg))
				})
			})

			r.Route("/outbox/dead-letters", func(r chi.Router) {
				r.Get("/", controllers.AdminListDeadLetters(deps.DeadLetters, logg))
				r.Get("/{eventId}", controllers.AdminGetDeadLetter(deps.DeadLetters, logg))
			})
		})
	})

	return r
}

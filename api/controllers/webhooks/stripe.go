// Package webhooks holds inbound provider callbacks. They authenticate by
// signature rather than by session, so they live outside the user routes.
package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/railexchange-backend/api/responses"
	stripewebhook "github.com/angelmondragon/railexchange-backend/internal/webhooks/stripe"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
)

const (
	signatureHeader = "Stripe-Signature"
	maxPayloadBytes = 1 << 16
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type eventGuard interface {
	Claim(ctx context.Context, eventID string) (stripewebhook.ClaimResult, error)
	Complete(ctx context.Context, eventID string) error
	Release(ctx context.Context, eventID string) error
}

type eventVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (stripe.Event, error)
}

type stripeEndpoint struct {
	svc      StripeWebhookService
	verifier eventVerifier
	guard    eventGuard
	logg     *logger.Logger
}

// StripeWebhook settles checkout sessions for verification tiers and add-ons.
// Each event id is applied at most once; a failed attempt releases its claim
// so Stripe's redelivery gets another try.
func StripeWebhook(svc StripeWebhookService, verifier eventVerifier, guard eventGuard, logg *logger.Logger) http.HandlerFunc {
	e := &stripeEndpoint{svc: svc, verifier: verifier, guard: guard, logg: logg}
	return e.serve
}

func (e *stripeEndpoint) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if e.svc == nil || e.verifier == nil || e.guard == nil {
		responses.WriteError(ctx, e.logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook not configured"))
		return
	}

	event, err := e.verify(w, r)
	if err != nil {
		responses.WriteError(ctx, e.logg, w, err)
		return
	}
	ctx = e.withEvent(ctx, event)

	claim, err := e.guard.Claim(ctx, event.ID)
	if err != nil {
		responses.WriteError(ctx, e.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim event"))
		return
	}
	switch claim {
	case stripewebhook.EventDuplicate:
		responses.WriteSuccess(w, map[string]bool{"duplicate": true})
		return
	case stripewebhook.EventInFlight:
		// Non-2xx: Stripe retries once the running attempt has settled.
		responses.WriteError(ctx, e.logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "event is already being processed"))
		return
	}

	if err := e.svc.HandleEvent(ctx, &event); err != nil {
		if relErr := e.guard.Release(context.WithoutCancel(ctx), event.ID); relErr != nil {
			e.logError(ctx, "stripe.release_failed", relErr)
		}
		responses.WriteError(ctx, e.logg, w, err)
		return
	}
	if err := e.guard.Complete(context.WithoutCancel(ctx), event.ID); err != nil {
		// Effects are committed; the service absorbs a redelivery on its own.
		e.logError(ctx, "stripe.complete_failed", err)
	}
	if e.logg != nil {
		e.logg.Info(ctx, "stripe.event_processed")
	}
	responses.WriteSuccess(w, nil)
}

func (e *stripeEndpoint) verify(w http.ResponseWriter, r *http.Request) (stripe.Event, error) {
	sig := r.Header.Get(signatureHeader)
	if sig == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	event, err := e.verifier.VerifyEvent(payload, sig)
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stripe signature")
	}
	return event, nil
}

func (e *stripeEndpoint) withEvent(ctx context.Context, event stripe.Event) context.Context {
	if e.logg == nil {
		return ctx
	}
	return e.logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID,
		"event_type": string(event.Type),
	})
}

func (e *stripeEndpoint) logError(ctx context.Context, msg string, err error) {
	if e.logg != nil {
		e.logg.Error(ctx, msg, err)
	}
}

package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/railexchange-backend/api/responses"
	"github.com/angelmondragon/railexchange-backend/api/validators"
	"github.com/angelmondragon/railexchange-backend/internal/addons"
	"github.com/angelmondragon/railexchange-backend/internal/checkout"
	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
)

// AddOnService lists and cancels the caller's add-on purchases.
type AddOnService interface {
	ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.AddOnPurchase, error)
	Cancel(ctx context.Context, ownerID, id uuid.UUID) (*models.AddOnPurchase, error)
}

// AddOnCheckoutService opens hosted payment for an add-on.
type AddOnCheckoutService interface {
	CreateAddOnCheckout(ctx context.Context, ownerID uuid.UUID, addOnType string) (*checkout.Session, error)
}

// ListMyAddOns returns every add-on the caller has bought, newest first.
func ListMyAddOns(svc AddOnService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "addon service unavailable"))
			return
		}
		ownerID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListForOwner(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, addons.ToDTOs(rows))
	}
}

type addOnCheckoutRequest struct {
	AddOnType string `json:"addOnType" validate:"required"`
}

// StartAddOnCheckout opens a Stripe checkout for one add-on.
func StartAddOnCheckout(svc AddOnCheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		ownerID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body addOnCheckoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sess, err := svc.CreateAddOnCheckout(r.Context(), ownerID, body.AddOnType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sess)
	}
}

// CancelAddOn stops a live add-on before its expiry.
func CancelAddOn(svc AddOnService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "addon service unavailable"))
			return
		}
		ownerID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "addOnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.Cancel(r.Context(), ownerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, addons.ToDTO(*row))
	}
}

package controllers

import (
	"net/http"
	"time"

	"github.com/angelmondragon/railexchange-backend/api/responses"
	"github.com/angelmondragon/railexchange-backend/api/validators"
	"github.com/angelmondragon/railexchange-backend/internal/entitlements"
	"github.com/angelmondragon/railexchange-backend/internal/ranking"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
)

// MyEntitlements resolves the caller's capabilities from their role,
// verifications and add-ons.
func MyEntitlements(svc entitlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlements service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		caps, err := svc.ForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, caps)
	}
}

type composeRequest struct {
	Candidates []ranking.Candidate `json:"candidates" validate:"max=500"`
}

// ComposeRanking orders the posted candidates for placement.
func ComposeRanking(now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body composeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ranking.Compose(body.Candidates, now()))
	}
}

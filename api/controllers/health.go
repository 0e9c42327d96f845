package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/railexchange-backend/api/responses"
	"github.com/angelmondragon/railexchange-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
)

const envHeader = "X-RailExchange-Env"

// ReadinessCheck pings one backing dependency.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every dependency answers within two seconds.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for _, check := range checks {
			if err := check.Check(ctx); err != nil {
				logg.Warn(logg.WithFields(r.Context(), map[string]any{
					"dependency": check.Name,
					"error":      err.Error(),
				}), "health.not_ready")
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.Name+" unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}

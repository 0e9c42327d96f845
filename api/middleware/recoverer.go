package middleware

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/angelmondragon/railexchange-backend/api/responses"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
)

// Recoverer answers a panicking handler with a 500. http.ErrAbortHandler is
// re-raised so net/http can drop the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer recoverTo(w, r, logg)
			next.ServeHTTP(w, r)
		})
	}
}

func recoverTo(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	rec := recover()
	switch rec {
	case nil:
		return
	case http.ErrAbortHandler:
		panic(rec)
	}

	ctx := r.Context()
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.RecoverWithContext(ctx, rec)
	}
	err := fmt.Errorf("panic: %v", rec)
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"panic": fmt.Sprint(rec), "route": r.Method + " " + r.URL.Path})
		logg.Error(ctx, "panic.recovered", err)
	}
	responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
}

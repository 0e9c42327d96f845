package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"

	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
)

// WriteSuccess writes data inside the {"data": ...} envelope with 200.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Success{Data: data})
}

// WriteError maps err onto the error envelope. Client errors log at warn with
// the caller's message; server errors log the full chain at error level, are
// reported to Sentry when a hub is bound to ctx, and hide the message.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())
	serverSide := meta.HTTPStatus >= http.StatusInternalServerError

	body := ErrorBody{Code: string(typed.Code()), Message: meta.PublicMessage}
	if !serverSide && typed.Message() != "" {
		body.Message = typed.Message()
	}
	if meta.DetailsAllowed && typed.Details() != nil {
		body.Details = typed.Details()
	}

	if logg != nil {
		logError(ctx, logg, err, serverSide)
	}
	if serverSide {
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			hub.CaptureException(err)
		}
	}

	writeJSON(w, meta.HTTPStatus, Failure{Error: body})
}

func logError(ctx context.Context, logg *logger.Logger, err error, serverSide bool) {
	ctx = logg.WithFields(ctx, pkgerrors.Diagnose(err).Fields(serverSide))
	if !serverSide {
		logg.Warn(ctx, "request.rejected")
		return
	}
	logg.Error(ctx, "request.error", err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, `{"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/railexchange-backend/api/middleware"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "controllers-test", Output: io.Discard})
}

func withUser(req *http.Request, userID uuid.UUID) *http.Request {
	p := middleware.Principal{UserID: userID, Role: enums.RoleUser}
	return req.WithContext(middleware.WithPrincipal(req.Context(), p))
}

// addRouteParam sets a chi URL param without routing the request.
func addRouteParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

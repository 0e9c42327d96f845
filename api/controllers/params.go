package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/railexchange-backend/api/middleware"
	"github.com/angelmondragon/railexchange-backend/internal/verification"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
)

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return p.UserID, nil
}

func actorFromRequest(r *http.Request) (verification.Actor, error) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		return verification.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return verification.Actor{UserID: p.UserID, Role: p.Role}, nil
}

func pathParam(r *http.Request) (enums.VerificationPath, error) {
	path, err := enums.ParseVerificationPath(strings.TrimSpace(chi.URLParam(r, "path")))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid verification path")
	}
	return path, nil
}

func uuidParam(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s is required", key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key)
	}
	return id, nil
}

package controllers

import (
	"net/http"

	"github.com/angelmondragon/railexchange-backend/api/middleware"
	"github.com/angelmondragon/railexchange-backend/api/responses"
)

type pong struct {
	Scope  string `json:"scope"`
	Status string `json:"status"`
	UserID string `json:"userId,omitempty"`
	Role   string `json:"role,omitempty"`
}

// Ping answers on each route group so a client can check that its token
// passes that group's guards. Behind auth it echoes who the caller is.
func Ping(scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := pong{Scope: scope, Status: "ok"}
		if p, ok := middleware.PrincipalFrom(r.Context()); ok {
			out.UserID = p.UserID.String()
			out.Role = string(p.Role)
		}
		responses.WriteSuccess(w, out)
	}
}

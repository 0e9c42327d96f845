package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/railexchange-backend/pkg/enums"
)

type principalKey struct{}

// Principal is the caller Auth resolved from the bearer token.
type Principal struct {
	UserID uuid.UUID
	Role   enums.Role
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID != uuid.Nil
}

// callerKey is the user id for authenticated requests and "" otherwise.
func callerKey(ctx context.Context) string {
	if p, ok := PrincipalFrom(ctx); ok {
		return p.UserID.String()
	}
	return ""
}

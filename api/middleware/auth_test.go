package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/railexchange-backend/pkg/auth"
	"github.com/angelmondragon/railexchange-backend/pkg/config"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
)

var railJWT = config.JWTConfig{Secret: "rail-secret", Issuer: "railx", ExpirationMinutes: 60}

func signedFor(t *testing.T, cfg config.JWTConfig, role enums.Role, userID uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{UserID: userID, Role: role})
	require.NoError(t, err)
	return token
}

func status(h http.Handler, authz string) int {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

var noContent = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestAuthRejectsBadCredentials(t *testing.T) {
	foreign := railJWT
	foreign.Issuer = "another-exchange"
	resigned := railJWT
	resigned.Secret = "leaked"

	h := Auth(railJWT, nil)(noContent)
	cases := map[string]string{
		"missing header":  "",
		"empty bearer":    "Bearer ",
		"garbage":         "Bearer not-a-jwt",
		"foreign issuer":  "Bearer " + signedFor(t, foreign, enums.RoleUser, uuid.New()),
		"wrong signature": "Bearer " + signedFor(t, resigned, enums.RoleUser, uuid.New()),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, status(h, header))
		})
	}
}

func TestAuthStoresPrincipal(t *testing.T) {
	userID := uuid.New()
	var got Principal
	var ok bool
	h := Auth(railJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	require.Equal(t, http.StatusNoContent, status(h, "bearer "+signedFor(t, railJWT, enums.RoleAdmin, userID)))
	require.True(t, ok)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, enums.RoleAdmin, got.Role)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"BEARER   abc ", "abc", true},
		{"abc", "abc", true},
		{"Bearer", "Bearer", true},
		{"   ", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(nil, enums.RoleAdmin)(noContent)
	tests := []struct {
		name      string
		principal *Principal
		want      int
	}{
		{"anonymous", nil, http.StatusForbidden},
		{"seller", &Principal{UserID: uuid.New(), Role: enums.RoleUser}, http.StatusForbidden},
		{"admin", &Principal{UserID: uuid.New(), Role: enums.RoleAdmin}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/verifications", nil)
			if tt.principal != nil {
				req = req.WithContext(WithPrincipal(req.Context(), *tt.principal))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

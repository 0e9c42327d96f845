package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/railexchange-backend/pkg/config"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "railx", ExpirationMinutes: 30}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{UserID: userID, Role: enums.RoleAdmin})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if !claims.IsAdmin() {
		t.Fatalf("expected admin role, got %s", claims.Role)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatalf("expected generated jti")
	}
}

func TestParseAccessTokenRejectsWrongIssuerAndExpiry(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{UserID: userID, Role: enums.RoleUser})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatalf("expected expired token to fail")
	}

	fresh, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: userID, Role: enums.RoleUser})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, fresh); err == nil {
		t.Fatalf("expected issuer mismatch")
	}

	tampered := fresh[:len(fresh)-2] + "xx"
	if _, err := ParseAccessToken(cfg, tampered); err == nil {
		t.Fatalf("expected signature failure")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	cfg := testJWTConfig()
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{Role: enums.RoleUser}); err == nil {
		t.Fatalf("expected missing user error")
	}
	_, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: "owner"})
	if err == nil || !strings.Contains(err.Error(), "invalid role") {
		t.Fatalf("expected invalid role error, got %v", err)
	}
}

func TestParseAccessTokenChecksClaimsConsistency(t *testing.T) {
	cfg := testJWTConfig()
	sign := func(claims AccessTokenClaims) string {
		t.Helper()
		claims.Issuer = cfg.Issuer
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Minute))
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return token
	}

	userID := uuid.New()
	cases := map[string]AccessTokenClaims{
		"subject mismatch": {UserID: userID, Role: enums.RoleUser, RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()}},
		"unknown role":     {UserID: userID, Role: "owner"},
		"missing user":     {Role: enums.RoleUser},
	}
	for name, claims := range cases {
		if _, err := ParseAccessToken(cfg, sign(claims)); err == nil {
			t.Fatalf("%s: expected rejection", name)
		}
	}
}

func TestParseAccessTokenToleratesSmallSkew(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(5*time.Second), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleUser})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err != nil {
		t.Fatalf("token issued slightly in the future should parse: %v", err)
	}
}

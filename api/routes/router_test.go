package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/railexchange-backend/api/controllers"
	pkgAuth "github.com/angelmondragon/railexchange-backend/pkg/auth"
	"github.com/angelmondragon/railexchange-backend/pkg/config"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
	"github.com/angelmondragon/railexchange-backend/pkg/ratelimit"
	"github.com/angelmondragon/railexchange-backend/pkg/redis"
)

type countingWindow struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (c *countingWindow) FixedWindow(_ context.Context, scope string, limit int64, window time.Duration) (redis.WindowResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int64{}
	}
	c.counts[scope]++
	n := c.counts[scope]
	return redis.WindowResult{Allowed: n <= limit, Count: n, Remaining: max(limit-n, 0), ResetIn: window}, nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]string{}
	}
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	switch v := value.(type) {
	case string:
		m.data[key] = v
	case []byte:
		m.data[key] = string(v)
	}
	return true, nil
}

func (m *memoryIdempotency) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]string{}
	}
	if v, ok := value.(string); ok {
		m.data[key] = v
	}
	return nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string {
	return "rx:idempotency:" + scope + ":" + id
}

func (m *memoryIdempotency) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type failingCheck struct{}

func (failingCheck) Ping(context.Context) error { return errors.New("connection refused") }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
		RateLimit: config.RateLimitConfig{
			Enabled:      true,
			Window:       time.Minute,
			DefaultLimit: 100,
			UploadLimit:  100,
			SubmitLimit:  2,
			AdminLimit:   100,
		},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config, mutate func(*Dependencies)) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	limiter, err := ratelimit.New(ratelimit.Params{Store: &countingWindow{}, Logger: logg})
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}
	deps := Dependencies{
		Config:      cfg,
		Logger:      logg,
		Limiter:     limiter,
		Idempotency: &memoryIdempotency{},
		Clock:       func() time.Time { return time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC) },
	}
	if mutate != nil {
		mutate(&deps)
	}
	return NewRouter(deps)
}

func buildToken(t *testing.T, cfg *config.Config, role enums.Role) string {
	t.Helper()
	return buildTokenWithUserID(t, cfg, role, uuid.New())
}

func buildTokenWithUserID(t *testing.T, cfg *config.Config, role enums.Role, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(t, testConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-RateLimit-Limit") != "100" {
		t.Fatalf("expected rate limit headers, got %v", resp.Header())
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, nil)

	nonAdmin := httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil)
	nonAdmin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, nonAdmin)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestAdminVerificationQueueRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/verifications/"+uuid.NewString()+"/approve", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestSubmitRouteHasItsOwnBudget(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, nil)
	token := buildToken(t, cfg, enums.RoleUser)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/verifications/seller/submit", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		last = httptest.NewRecorder()
		router.ServeHTTP(last, req)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on third submit got %d", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestAddOnCheckoutRequiresIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/addons/checkout", strings.NewReader(`{"addOnType":"placement_boost"}`))
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestComposeRankingRoute(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ranking/compose", strings.NewReader(`{"candidates":[]}`))
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestStripeWebhookNotMountedWithoutDependencies(t *testing.T) {
	router := newTestRouter(t, testConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized && resp.Code != http.StatusNotFound {
		t.Fatalf("expected the webhook route to be absent, got %d", resp.Code)
	}
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t, testConfig(), func(d *Dependencies) {
		d.Readiness = []controllers.ReadinessCheck{{Name: "redis", Check: failingCheck{}.Ping}}
		d.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	})

	live := httptest.NewRecorder()
	router.ServeHTTP(live, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if live.Code != http.StatusOK || live.Header().Get("X-RailExchange-Env") != "test" {
		t.Fatalf("unexpected live response %d %v", live.Code, live.Header())
	}

	ready := httptest.NewRecorder()
	router.ServeHTTP(ready, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if ready.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when a dependency is down, got %d", ready.Code)
	}

	metricsResp := httptest.NewRecorder()
	router.ServeHTTP(metricsResp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if metricsResp.Code != http.StatusOK {
		t.Fatalf("expected metrics handler, got %d", metricsResp.Code)
	}
}

func TestDeadLetterRoutesRequireAdmin(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/outbox/dead-letters", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

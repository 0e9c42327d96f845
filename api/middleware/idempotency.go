package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/railexchange-backend/api/responses"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/railexchange-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	idempotencyHeader      = "Idempotency-Key"
)

type idempotencyRule struct {
	method   string
	match    func(pattern string) bool
	ttl      time.Duration
	required bool
}

var idempotencyRules = []idempotencyRule{
	// Payment initiation must never open two sessions for one click.
	{method: http.MethodPost, match: pathBetween("/api/v1/verifications/", "/checkout"), ttl: criticalIdempotencyTTL, required: true},
	{method: http.MethodPost, match: exactPath("/api/v1/addons/checkout"), ttl: criticalIdempotencyTTL, required: true},
	{method: http.MethodPost, match: pathBetween("/api/v1/verifications/", "/submit"), ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, match: pathBetween("/api/v1/verifications/", "/restart"), ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, match: pathBetween("/api/v1/verifications/", "/documents"), ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, match: pathBetween("/api/v1/notifications/", "/read"), ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, match: exactPath("/api/v1/notifications/read-all"), ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, match: pathBetween("/api/admin/verifications/", ""), ttl: defaultIdempotencyTTL},
}

func exactPath(path string) func(string) bool {
	return func(pattern string) bool { return pattern == path }
}

func pathBetween(prefix, suffix string) func(string) bool {
	return func(pattern string) bool {
		return strings.HasPrefix(pattern, prefix) && strings.HasSuffix(pattern, suffix)
	}
}

// storedResponse is what a key holds in Redis. Pending marks a reservation
// whose first request has not finished yet.
type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the first response for a repeated Idempotency-Key on
// covered routes. The key is reserved before the handler runs so concurrent
// retries cannot both reach it; 5xx outcomes release the key.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := ruleFor(r.Method, routePattern(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				if rule.required {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			hash := hex.EncodeToString(sum[:])
			key := store.IdempotencyKey(requestScope(r), clientKey)

			reserved, err := reserve(ctx, store, key, hash, rule.ttl)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayOrReject(ctx, store, key, hash, logg, w)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			if capture.status >= http.StatusInternalServerError {
				if delErr := store.Del(ctx, key); delErr != nil {
					logIdempotencyFailure(ctx, logg, "release idempotency key", delErr)
				}
				return
			}
			final := storedResponse{
				RequestHash: hash,
				Status:      capture.statusOrOK(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			}
			if err := save(ctx, store, key, final, rule.ttl); err != nil {
				logIdempotencyFailure(ctx, logg, "persist idempotency record", err)
			}
		})
	}
}

func reserve(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(storedResponse{Pending: true, RequestHash: hash})
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, string(payload), ttl)
}

func save(ctx context.Context, store pkgredis.IdempotencyStore, key string, rec storedResponse, ttl time.Duration) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, string(payload), ttl)
}

func replayOrReject(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string, logg *logger.Logger, w http.ResponseWriter) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// Released between our reservation attempt and the read.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "request with this idempotency key is being retried; try again"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	}

	var rec storedResponse
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case rec.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case rec.Pending:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "request with this idempotency key is still in progress"))
	default:
		if rec.ContentType != "" {
			w.Header().Set("Content-Type", rec.ContentType)
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(rec.Status)
		_, _ = w.Write(rec.Body)
	}
}

// requestScope keys records per caller and concrete path.
func requestScope(r *http.Request) string {
	return strings.Join([]string{callerKey(r.Context()), r.Method, r.URL.Path}, "|")
}

func routePattern(r *http.Request) string {
	// Group-level middleware only sees a partial pattern ending in "/*".
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return pattern
		}
	}
	return r.URL.Path
}

func ruleFor(method, pattern string) (idempotencyRule, bool) {
	for _, rule := range idempotencyRules {
		if rule.method == method && rule.match(pattern) {
			return rule, true
		}
	}
	return idempotencyRule{}, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func logIdempotencyFailure(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil {
		return
	}
	logg.Error(ctx, msg, err)
}

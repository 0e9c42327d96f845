package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/railexchange-backend/api/responses"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
	"github.com/angelmondragon/railexchange-backend/pkg/ratelimit"
)

type requestLimiter interface {
	Allow(ctx context.Context, policy ratelimit.Policy, identity string) ratelimit.Decision
}

// RateLimit counts each request against policy, keyed by the authenticated
// user when present and the client IP otherwise, per route pattern.
func RateLimit(policy ratelimit.Policy, limiter requestLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || !policy.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity := callerKey(ctx)
			if identity == "" {
				identity = "ip:" + clientIP(r)
			}
			identity = identity + ":" + r.Method + " " + routePattern(r)

			decision := limiter.Allow(ctx, policy, identity)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(policy.Limit))
			if decision.Allowed {
				w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
				next.ServeHTTP(w, r)
				return
			}

			retry := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			if logg != nil {
				logg.Warn(logg.WithFields(ctx, map[string]any{
					"policy":      policy.Name,
					"route":       routePattern(r),
					"retry_after": retry,
					"degraded":    decision.Degraded,
				}), "ratelimit.blocked")
			}
			responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded").
				WithDetails(map[string]any{"retryAfterSeconds": retry}))
		})
	}
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

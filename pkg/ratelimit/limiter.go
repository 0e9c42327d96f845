// Package ratelimit enforces fixed-window request budgets in Redis and falls
// back to an in-process token bucket while Redis is unreachable.
package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/angelmondragon/railexchange-backend/pkg/logger"
	"github.com/angelmondragon/railexchange-backend/pkg/metrics"
	"github.com/angelmondragon/railexchange-backend/pkg/redis"
)

const (
	defaultBurst = 10
	// maxLocalBuckets caps fallback memory; the map is reset when it fills.
	maxLocalBuckets = 10000
)

// Policy is one named budget, e.g. "uploads" at 20 per minute.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

func (p Policy) Enabled() bool { return p.Limit > 0 && p.Window > 0 }

func (p Policy) name() string {
	if n := strings.TrimSpace(p.Name); n != "" {
		return n
	}
	return "default"
}

// Decision is the outcome for one request.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
	Degraded   bool
}

type windowStore interface {
	FixedWindow(ctx context.Context, scope string, limit int64, window time.Duration) (redis.WindowResult, error)
}

type Params struct {
	Store   windowStore
	Burst   int
	Metrics *metrics.RateLimitMetrics
	Logger  *logger.Logger
}

type Limiter struct {
	store   windowStore
	burst   int
	metrics *metrics.RateLimitMetrics
	logg    *logger.Logger

	mu       sync.Mutex
	local    map[string]*rate.Limiter
	degraded atomic.Bool
}

func New(p Params) (*Limiter, error) {
	if p.Store == nil {
		return nil, errors.New("rate limit store required")
	}
	burst := p.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	return &Limiter{
		store:   p.Store,
		burst:   burst,
		metrics: p.Metrics,
		logg:    p.Logger,
		local:   make(map[string]*rate.Limiter),
	}, nil
}

// Allow counts one request by identity against policy. It never returns an
// error: Redis failures switch the decision to the local bucket.
func (l *Limiter) Allow(ctx context.Context, policy Policy, identity string) Decision {
	if !policy.Enabled() {
		return Decision{Allowed: true}
	}
	scope := policy.name() + ":" + identity

	res, err := l.store.FixedWindow(ctx, scope, int64(policy.Limit), policy.Window)
	if err == nil {
		if l.degraded.CompareAndSwap(true, false) && l.logg != nil {
			l.logg.Info(ctx, "ratelimit.redis_recovered")
		}
		d := Decision{Allowed: res.Allowed, Remaining: res.Remaining}
		if !res.Allowed {
			d.RetryAfter = res.ResetIn
			l.metrics.IncBlocked(policy.name())
		}
		return d
	}

	if l.degraded.CompareAndSwap(false, true) && l.logg != nil {
		l.logg.Error(l.logg.WithField(ctx, "policy", policy.name()), "ratelimit.redis_unavailable", err)
	}
	l.metrics.IncDegraded()
	return l.allowLocal(policy, scope)
}

func (l *Limiter) allowLocal(policy Policy, scope string) Decision {
	l.mu.Lock()
	bucket, ok := l.local[scope]
	if !ok {
		if len(l.local) >= maxLocalBuckets {
			l.local = make(map[string]*rate.Limiter)
		}
		every := policy.Window / time.Duration(policy.Limit)
		bucket = rate.NewLimiter(rate.Every(every), min(l.burst, policy.Limit))
		l.local[scope] = bucket
	}
	l.mu.Unlock()

	r := bucket.Reserve()
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		l.metrics.IncBlocked(policy.name())
		return Decision{Allowed: false, RetryAfter: delay, Degraded: true}
	}
	return Decision{Allowed: true, Remaining: int64(bucket.Tokens()), Degraded: true}
}

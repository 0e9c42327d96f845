package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/railexchange-backend/pkg/redis"
)

const (
	eventProcessing = "processing"
	eventDone       = "done"

	// A claim that outlives this is assumed abandoned by a crashed instance.
	defaultClaimTTL = 2 * time.Minute
)

// ClaimResult says what a delivery should do with an event id.
type ClaimResult int

const (
	EventClaimed ClaimResult = iota
	EventDuplicate
	EventInFlight
)

// IdempotencyGuard records Stripe event ids so redeliveries are acknowledged
// without re-applying their effects. An id is claimed while a handler runs
// and only marked done once the handler succeeds.
type IdempotencyGuard struct {
	store    redis.IdempotencyStore
	doneTTL  time.Duration
	claimTTL time.Duration
	scope    string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	claimTTL := defaultClaimTTL
	if ttl > 0 && ttl < claimTTL {
		claimTTL = ttl
	}
	return &IdempotencyGuard{store: store, doneTTL: ttl, claimTTL: claimTTL, scope: scope}, nil
}

func (g *IdempotencyGuard) key(eventID string) (string, error) {
	if eventID == "" {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(g.scope, eventID), nil
}

// Claim reserves eventID for the caller. A lost race reports whether the
// other holder already finished or is still working.
func (g *IdempotencyGuard) Claim(ctx context.Context, eventID string) (ClaimResult, error) {
	key, err := g.key(eventID)
	if err != nil {
		return EventClaimed, err
	}
	ok, err := g.store.SetNX(ctx, key, eventProcessing, g.claimTTL)
	if err != nil {
		return EventClaimed, fmt.Errorf("claim event: %w", err)
	}
	if ok {
		return EventClaimed, nil
	}

	state, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		// Claim expired between the two calls; let the sender retry.
		return EventInFlight, nil
	case err != nil:
		return EventClaimed, fmt.Errorf("read event state: %w", err)
	case state == eventDone:
		return EventDuplicate, nil
	default:
		return EventInFlight, nil
	}
}

// Complete marks a claimed event as applied for the full retention ttl.
func (g *IdempotencyGuard) Complete(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	if err := g.store.Set(ctx, key, eventDone, g.doneTTL); err != nil {
		return fmt.Errorf("complete event: %w", err)
	}
	return nil
}

// Release drops a claim after a failed handler so the redelivery is processed.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

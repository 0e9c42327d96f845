package stripewebhook

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type ledgerEntry struct {
	value string
	ttl   time.Duration
}

type ledgerStore struct {
	data   map[string]ledgerEntry
	getErr error
}

func newLedgerStore() *ledgerStore { return &ledgerStore{data: map[string]ledgerEntry{}} }

func (s *ledgerStore) Get(_ context.Context, key string) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}
	e, ok := s.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return e.value, nil
}

func (s *ledgerStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.data[key] = ledgerEntry{value: value.(string), ttl: ttl}
	return nil
}

func (s *ledgerStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = ledgerEntry{value: value.(string), ttl: ttl}
	return true, nil
}

func (s *ledgerStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (s *ledgerStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func TestGuardClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newLedgerStore()
	guard, err := NewIdempotencyGuard(store, 24*time.Hour, "stripe")
	if err != nil {
		t.Fatalf("NewIdempotencyGuard: %v", err)
	}

	if res, err := guard.Claim(ctx, "evt_1"); err != nil || res != EventClaimed {
		t.Fatalf("first claim = %v, %v", res, err)
	}
	if got := store.data["stripe:evt_1"]; got.value != eventProcessing || got.ttl != defaultClaimTTL {
		t.Fatalf("unexpected claim entry %+v", got)
	}
	if res, _ := guard.Claim(ctx, "evt_1"); res != EventInFlight {
		t.Fatalf("expected in-flight while claimed, got %v", res)
	}

	if err := guard.Complete(ctx, "evt_1"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := store.data["stripe:evt_1"]; got.value != eventDone || got.ttl != 24*time.Hour {
		t.Fatalf("unexpected done entry %+v", got)
	}
	if res, _ := guard.Claim(ctx, "evt_1"); res != EventDuplicate {
		t.Fatalf("expected duplicate after completion, got %v", res)
	}
}

func TestGuardReleaseAllowsRetry(t *testing.T) {
	ctx := context.Background()
	guard, _ := NewIdempotencyGuard(newLedgerStore(), time.Hour, "stripe")
	if _, err := guard.Claim(ctx, "evt_2"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := guard.Release(ctx, "evt_2"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if res, _ := guard.Claim(ctx, "evt_2"); res != EventClaimed {
		t.Fatalf("expected a fresh claim after release, got %v", res)
	}
}

func TestGuardShortTTLBoundsClaim(t *testing.T) {
	store := newLedgerStore()
	guard, _ := NewIdempotencyGuard(store, 30*time.Second, "stripe")
	if _, err := guard.Claim(context.Background(), "evt_3"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if ttl := store.data["stripe:evt_3"].ttl; ttl != 30*time.Second {
		t.Fatalf("expected claim ttl capped to 30s, got %s", ttl)
	}
}

func TestGuardErrors(t *testing.T) {
	if _, err := NewIdempotencyGuard(nil, time.Hour, "stripe"); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewIdempotencyGuard(newLedgerStore(), time.Hour, ""); err == nil {
		t.Fatal("expected error for blank scope")
	}

	store := newLedgerStore()
	guard, _ := NewIdempotencyGuard(store, time.Hour, "stripe")
	if _, err := guard.Claim(context.Background(), ""); err == nil {
		t.Fatal("expected error for blank event id")
	}

	_, _ = guard.Claim(context.Background(), "evt_4")
	store.getErr = errors.New("redis down")
	if _, err := guard.Claim(context.Background(), "evt_4"); err == nil {
		t.Fatal("expected read error to surface")
	}
}

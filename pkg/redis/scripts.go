package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// windowScript increments the counter, arms the expiry on the first hit and
// returns {count, pttl} in one round trip.
var windowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// releaseScript deletes KEYS[1] only while it still holds ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// WindowResult is the outcome of one fixed-window check.
type WindowResult struct {
	Allowed   bool
	Count     int64
	Remaining int64
	ResetIn   time.Duration
}

// FixedWindow counts one hit against scope and reports whether it fits in limit.
func (c *Client) FixedWindow(ctx context.Context, scope string, limit int64, window time.Duration) (WindowResult, error) {
	vals, err := run(c, func(s cmdable) ([]int64, error) {
		return windowScript.Run(ctx, s, []string{c.RateLimitKey(scope)}, window.Milliseconds()).Int64Slice()
	})
	if err != nil {
		return WindowResult{}, fmt.Errorf("rate window %s: %w", scope, err)
	}
	if len(vals) != 2 {
		return WindowResult{}, fmt.Errorf("rate window %s: unexpected reply %v", scope, vals)
	}

	count, reset := vals[0], time.Duration(vals[1])*time.Millisecond
	if reset <= 0 {
		reset = window
	}
	return WindowResult{
		Allowed:   count <= limit,
		Count:     count,
		Remaining: max(limit-count, 0),
		ResetIn:   reset,
	}, nil
}

// DelIfValue removes key only when it still holds value, reporting whether it did.
func (c *Client) DelIfValue(ctx context.Context, key, value string) (bool, error) {
	n, err := run(c, func(s cmdable) (int64, error) {
		return releaseScript.Run(ctx, s, []string{key}, value).Int64()
	})
	if err != nil {
		return false, fmt.Errorf("release %s: %w", key, err)
	}
	return n == 1, nil
}

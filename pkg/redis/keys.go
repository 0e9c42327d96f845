package redis

import "strings"

const (
	keyNamespace      = "rx"
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	lockPrefix        = "lock"
)

// IdempotencyKey is rx:idempotency:<scope>:<id>.
func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(idempotencyPrefix, scope, id)
}

// RateLimitKey is rx:rate_limit:<scope>.
func (c *Client) RateLimitKey(scope string) string {
	return buildKey(rateLimitPrefix, scope)
}

// LockKey is rx:<owner>:lock:<name>.
func (c *Client) LockKey(owner, name string) string {
	return buildKey(owner, lockPrefix, name)
}

// buildKey drops blank parts so optional segments never leave "::" behind.
func buildKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}

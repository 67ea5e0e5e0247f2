// Package rediscache backs the email verification cache with Redis.
// Entries expire on their own TTL; the durable store never sees them.
package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "email_verify:"

// consumeLua atomically compares the stored token with the presented
// one and deletes the key only on a match, so a verification token is
// usable exactly once even under concurrent attempts.
var consumeLua = redis.NewScript(`
local stored = redis.call('GET', KEYS[1])
if not stored then
  return 0
end
if stored ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

type Cache struct {
	client redis.UniversalClient
}

// New returns a verification cache on top of the given Redis client.
func New(client redis.UniversalClient) *Cache {
	return &Cache{client: client}
}

func key(userID uuid.UUID) string {
	return keyPrefix + userID.String()
}

// SetVerificationToken stores the token for the user with the given
// TTL. A token issued while another is still outstanding overwrites
// it (last write wins).
func (c *Cache) SetVerificationToken(ctx context.Context, userID uuid.UUID, token string, ttl time.Duration) error {
	const op = "storage.rediscache.SetVerificationToken"

	if err := c.client.Set(ctx, key(userID), token, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ConsumeVerificationToken reports whether the presented token matches
// the stored one, deleting it on a match. Absence (expired or never
// issued) is false, not an error.
func (c *Cache) ConsumeVerificationToken(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	const op = "storage.rediscache.ConsumeVerificationToken"

	res, err := consumeLua.Run(ctx, c.client, []string{key(userID)}, token).Int()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return res == 1, nil
}

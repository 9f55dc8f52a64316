package revocation

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "gate:revoked:"

// revokeScript sets the entry only when it would extend the remaining TTL, so
// a second revocation with an earlier deadline cannot shorten the first.
// PTTL returns -2 for a missing key, which always loses the comparison.
var revokeScript = redis.NewScript(`
local remaining = redis.call("PTTL", KEYS[1])
local ttl = tonumber(ARGV[1])
if remaining < ttl then
  redis.call("SET", KEYS[1], "1", "PX", ttl)
end
return 1
`)

// RedisStore is a Store backed by a shared Redis instance, giving every gate
// replica the same revocation view.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisStore returns a Store using the given client. The client's own
// dial/read timeouts bound the latency of each lookup.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// Revoke marks id revoked until the deadline. A deadline at or before now is
// a no-op: every token the entry would invalidate has already expired.
func (s *RedisStore) Revoke(ctx context.Context, id string, until time.Time) error {
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return revokeScript.Run(ctx, s.client, []string{keyPrefix + id}, ttl.Milliseconds()).Err()
}

// IsRevoked reports whether id has a live revocation entry.
func (s *RedisStore) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

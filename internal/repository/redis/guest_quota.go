package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nextlogic/remix-api/internal/repository"
)

// consumeScript seeds the counter on first use, then takes one use if any is left.
// DECR keeps the TTL set at creation, so a guest session never outlives it.
var consumeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
	v = tonumber(ARGV[1])
	redis.call('SET', KEYS[1], v, 'EX', ARGV[2])
else
	v = tonumber(v)
end
if v <= 0 then
	return {0, 0}
end
return {1, redis.call('DECR', KEYS[1])}
`)

type guestQuotaStore struct {
	client      *redis.Client
	prefix      string
	defaultUses int
	ttl         time.Duration
}

func NewGuestQuotaStore(client *redis.Client, prefix string, defaultUses int, ttl time.Duration) repository.GuestQuotaStore {
	return &guestQuotaStore{
		client:      client,
		prefix:      prefix,
		defaultUses: defaultUses,
		ttl:         ttl,
	}
}

func (s *guestQuotaStore) key(guestID string) string {
	return s.prefix + "guest:" + guestID + ":uses"
}

func (s *guestQuotaStore) Peek(ctx context.Context, guestID string) (int, error) {
	v, err := s.client.Get(ctx, s.key(guestID)).Result()
	if errors.Is(err, redis.Nil) {
		return s.defaultUses, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read guest quota: %w", err)
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("corrupt guest quota %q: %w", v, err)
	}
	return n, nil
}

func (s *guestQuotaStore) Consume(ctx context.Context, guestID string) (int, bool, error) {
	ttl := int64(s.ttl / time.Second)
	if ttl <= 0 {
		ttl = 1
	}

	res, err := consumeScript.Run(ctx, s.client, []string{s.key(guestID)}, s.defaultUses, ttl).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("failed to consume guest quota: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("unexpected guest quota reply %v", res)
	}
	return int(res[1]), res[0] == 1, nil
}

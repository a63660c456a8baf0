package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nextlogic/remix-api/internal/repository"
)

type sessionRevocationStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewSessionRevocationStore(client *redis.Client, prefix string) repository.SessionRevocationStore {
	return &sessionRevocationStore{client: client, prefix: prefix, now: time.Now}
}

func (s *sessionRevocationStore) key(tokenID string) string {
	return s.prefix + "revoked:" + tokenID
}

// Revoke is a no-op for tokens that have already expired.
func (s *sessionRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.key(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (s *sessionRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session revocation: %w", err)
	}
	return n > 0, nil
}

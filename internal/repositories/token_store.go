package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"caffemacao/pkg/apperror"
)

const (
	revokedTokenKey   = "auth:revoked:%s"
	processedEventKey = "events:processed:%s:%s"
)

// TokenStore keeps the ids of revoked access tokens until they expire.
type TokenStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisTokenStore is a Redis implementation of TokenStore.
type RedisTokenStore struct {
	client *redis.Client
}

// NewRedisTokenStore creates a new RedisTokenStore.
func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

// Revoke marks tokenID as revoked for ttl. A non-positive ttl is a no-op since
// the token has already expired.
func (s *RedisTokenStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, fmt.Sprintf(revokedTokenKey, tokenID), "revoked", ttl).Err(); err != nil {
		return apperror.Internal(err, "failed to revoke token")
	}
	return nil
}

func (s *RedisTokenStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, fmt.Sprintf(revokedTokenKey, tokenID)).Result()
	if err != nil {
		return false, apperror.Internal(err, "failed to check token revocation")
	}
	return n > 0, nil
}

// RedisEventLog remembers which events a consumer has already handled.
type RedisEventLog struct {
	client   *redis.Client
	consumer string
	ttl      time.Duration
}

// NewRedisEventLog creates a RedisEventLog for the named consumer.
func NewRedisEventLog(client *redis.Client, consumer string, ttl time.Duration) *RedisEventLog {
	return &RedisEventLog{client: client, consumer: consumer, ttl: ttl}
}

// FirstSeen records eventID and reports whether it was not recorded before.
func (l *RedisEventLog) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, fmt.Sprintf(processedEventKey, l.consumer, eventID), "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record event %s: %w", eventID, err)
	}
	return ok, nil
}

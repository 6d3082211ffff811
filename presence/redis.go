package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore implements Store using Redis. Online records carry a TTL so a
// crashed instance cannot leave users marked online forever.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

func presenceKey(userID string) string {
	return fmt.Sprintf("presence:%s", userID)
}

func (s *RedisStore) SetOnline(ctx context.Context, userID, serverID string) error {
	now := time.Now()
	status := Status{
		UserID:     userID,
		ServerID:   serverID,
		OnlineAt:   now,
		LastOnline: now,
	}
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal presence status: %w", err)
	}
	return s.client.Set(ctx, presenceKey(userID), data, s.ttl).Err()
}

func (s *RedisStore) SetOffline(ctx context.Context, userID string) error {
	// Keep a short-lived tombstone so "last online" survives the disconnect.
	status := Status{
		UserID:     userID,
		LastOnline: time.Now(),
	}
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal presence status: %w", err)
	}
	return s.client.Set(ctx, presenceKey(userID), data, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*Status, error) {
	data, err := s.client.Get(ctx, presenceKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // never seen or expired; not an error
		}
		return nil, err
	}

	var status Status
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence status: %w", err)
	}
	return &status, nil
}

func (s *RedisStore) RefreshTTL(ctx context.Context, userID string) error {
	// Expire on a missing key is a no-op, which is fine.
	return s.client.Expire(ctx, presenceKey(userID), s.ttl).Err()
}

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore implements Store using Redis.
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

func recordKey(clientID string) string {
	return fmt.Sprintf("session:%s", clientID)
}

// Create stores a new record in Redis with a TTL.
func (s *RedisStore) Create(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}
	return s.client.Set(ctx, recordKey(rec.ClientID), data, s.ttl).Err()
}

// Get retrieves a record from Redis; nil when absent.
func (s *RedisStore) Get(ctx context.Context, clientID string) (*Record, error) {
	data, err := s.client.Get(ctx, recordKey(clientID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session record: %w", err)
	}
	return &rec, nil
}

// Delete removes a record from Redis.
func (s *RedisStore) Delete(ctx context.Context, clientID string) error {
	return s.client.Del(ctx, recordKey(clientID)).Err()
}

// RefreshTTL extends the record's lifetime.
func (s *RedisStore) RefreshTTL(ctx context.Context, clientID string) error {
	ok, err := s.client.Expire(ctx, recordKey(clientID), s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session record for %s not found", clientID)
	}
	return nil
}

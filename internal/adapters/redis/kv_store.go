package redis

// Package redis provides the Redis-backed KeyValue adapter used for durable
// token storage. TTL semantics mirror cookie retention: each key carries its
// own expiry, and a non-positive retention deletes immediately.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/civicloop/portal-auth/internal/ports"
)

// KeyValue is a Redis-based KeyValue store for production use.
type KeyValue struct {
	client redis.UniversalClient
	prefix string
}

// NewKeyValue creates a Redis-backed store with the default key prefix.
func NewKeyValue(client redis.UniversalClient) *KeyValue {
	return &KeyValue{client: client, prefix: "authtoken:"}
}

// NewKeyValueWithPrefix creates a Redis-backed store with a custom key prefix.
func NewKeyValueWithPrefix(client redis.UniversalClient, prefix string) *KeyValue {
	return &KeyValue{client: client, prefix: prefix}
}

func (s *KeyValue) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if ttl <= 0 {
		return s.Delete(ctx, key)
	}
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *KeyValue) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ports.ErrNotFound
	}
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ports.ErrNotFound
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

func (s *KeyValue) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil // Nothing to delete
	}
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *KeyValue) Available() bool { return s.client != nil }

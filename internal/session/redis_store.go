package session

import (
	"context"
	"fmt"
)

// RedisBackend is the subset of client.RedisClient the store needs.
type RedisBackend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) error
}

// RedisStore keeps session entries in Redis under a key prefix, so several CLI hosts can share
// one login.
type RedisStore struct {
	backend RedisBackend
	prefix  string
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(backend RedisBackend, prefix string) *RedisStore {
	return &RedisStore{backend: backend, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.backend.Get(ctx, s.prefix+key)
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, ok, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.backend.Set(ctx, s.prefix+key, value); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.prefix + k
	}
	if err := s.backend.Del(ctx, prefixed...); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	// Namespace is a prefix for all keys
	Namespace string

	// TTL applied on Set, zero keeps values until removed
	TTL time.Duration

	// MaxRetries is the maximum number of attempts for a write
	MaxRetries int

	// RetryDelay is the delay between attempts
	RetryDelay time.Duration
}

// DefaultRedisOptions returns default store options
func DefaultRedisOptions() *RedisOptions {
	return &RedisOptions{
		Namespace:  "expenseflow",
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
	}
}

// RedisStore implements KeyValue on Redis strings.
type RedisStore struct {
	client  *redis.Client
	options *RedisOptions
	keys    *KeyBuilder
}

func NewRedisStore(client *redis.Client, opts *RedisOptions) *RedisStore {
	if opts == nil {
		opts = DefaultRedisOptions()
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}

	return &RedisStore{
		client:  client,
		options: opts,
		keys:    NewKeyBuilder(opts.Namespace),
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.keys.Build(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis get error: %w", err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	key = s.keys.Build(key)

	err := s.retryOperation(ctx, func() error {
		return s.client.Set(ctx, key, value, s.options.TTL).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	key = s.keys.Build(key)

	err := s.retryOperation(ctx, func() error {
		return s.client.Del(ctx, key).Err()
	})
	if err != nil {
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}

// Ping checks if redis is available
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) retryOperation(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i < s.options.MaxRetries; i++ {
		if err = fn(); err == nil {
			return nil
		}

		if i < s.options.MaxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.options.RetryDelay):
			}
		}
	}
	return err
}

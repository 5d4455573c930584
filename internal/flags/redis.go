// Package flags keeps per-user administrative flags in Redis, one hash per
// user at flags:<userId>.
package flags

import (
	"context"
	"errors"
	"fmt"

	"settlement-ledger-go/internal/store"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const KeyUserFlags = "flags:%s"

type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects and pings Redis.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// GetFlag returns "" for an unset flag.
func (s *RedisStore) GetFlag(ctx context.Context, userId, key string) (string, error) {
	value, err := s.client.HGet(ctx, fmt.Sprintf(KeyUserFlags, userId), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: get flag %s for %s: %v", store.ErrExternalUnavailable, key, userId, err)
	}
	return value, nil
}

// SetFlag stores a flag; an empty value removes it.
func (s *RedisStore) SetFlag(ctx context.Context, userId, key, value string) error {
	hash := fmt.Sprintf(KeyUserFlags, userId)

	var err error
	if value == "" {
		err = s.client.HDel(ctx, hash, key).Err()
	} else {
		err = s.client.HSet(ctx, hash, key, value).Err()
	}
	if err != nil {
		return fmt.Errorf("%w: set flag %s for %s: %v", store.ErrExternalUnavailable, key, userId, err)
	}

	zap.L().Info("Admin flag updated",
		zap.String("user_id", userId),
		zap.String("flag", key),
		zap.String("value", value))
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

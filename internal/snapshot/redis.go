package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps each snapshot as a string value. A positive ttl makes
// idle snapshots expire; every write renews it.
type RedisStorage struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisStorage(client redis.Cmdable, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, ttl: ttl}
}

func (r *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sferrors.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot from redis: %w", err)
	}
	return data, nil
}

func (r *RedisStorage) Put(ctx context.Context, key string, data []byte) error {
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot in redis: %w", err)
	}
	return nil
}

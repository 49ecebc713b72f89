package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type (
	RedisService struct {
		rdb *redis.Client
	}
)

func NewRedis(rdb *redis.Client) *RedisService {
	return &RedisService{
		rdb: rdb,
	}
}

func (r *RedisService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r *RedisService) Get(ctx context.Context, key string) (string, error) {
	return r.rdb.Get(ctx, key).Result()
}

// QueueAppend pushes values onto the tail of a list key.
func (r *RedisService) QueueAppend(ctx context.Context, key string, values ...any) error {
	return r.rdb.RPush(ctx, key, values...).Err()
}

// QueueDrain atomically reads and deletes a whole list key.
func (r *RedisService) QueueDrain(ctx context.Context, key string) ([]string, error) {
	pipe := r.rdb.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return rangeCmd.Result()
}

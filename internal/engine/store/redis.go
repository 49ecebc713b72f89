package store

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"group_chat/internal/service/redis"
)

type (
	// Redis keeps the engine snapshot under a per-identity key, the same
	// way the client persists session state elsewhere.
	Redis struct {
		svc      *redis.RedisService
		identity string
	}
)

func NewRedis(svc *redis.RedisService, identity string) *Redis {
	return &Redis{
		svc:      svc,
		identity: identity,
	}
}

func (r *Redis) key() string {
	return fmt.Sprintf("engine-state: %s", r.identity)
}

func (r *Redis) Load(ctx context.Context) ([]byte, error) {
	v, err := r.svc.Get(ctx, r.key())
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}

func (r *Redis) Save(ctx context.Context, data []byte) error {
	// engine state never expires on its own
	return r.svc.Set(ctx, r.key(), data, 0)
}

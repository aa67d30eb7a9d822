package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const nameCacheKeyPrefix = "partsmarket:name:"

// RedisNameCache keeps participant labels in Redis with a TTL. Profile
// updates call Forget so renamed users show up right away.
type RedisNameCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisNameCache(client *redis.Client, ttl time.Duration) *RedisNameCache {
	return &RedisNameCache{client: client, ttl: ttl}
}

func (c *RedisNameCache) Get(ctx context.Context, userID uuid.UUID) (string, bool) {
	name, err := c.client.Get(ctx, nameCacheKeyPrefix+userID.String()).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("name cache: get failed")
		}
		return "", false
	}
	return name, true
}

func (c *RedisNameCache) Set(ctx context.Context, userID uuid.UUID, name string) {
	if err := c.client.Set(ctx, nameCacheKeyPrefix+userID.String(), name, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("name cache: set failed")
	}
}

func (c *RedisNameCache) Forget(ctx context.Context, userID uuid.UUID) {
	if err := c.client.Del(ctx, nameCacheKeyPrefix+userID.String()).Err(); err != nil {
		log.Warn().Err(err).Msg("name cache: delete failed")
	}
}

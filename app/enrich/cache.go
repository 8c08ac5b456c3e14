package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Translations older than this are re-requested from the backend.
const cacheTTL = 7 * 24 * time.Hour

// Cache is the durable read-through store for completed translations.
// A hit short-circuits the enrichment job entirely.
type Cache interface {
	Get(ctx context.Context, articleID string) (string, bool, error)
	Set(ctx context.Context, articleID, text string) error
}

var _ Cache = (*RedisCache)(nil)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

func cacheKey(articleID string) string {
	return "translation:" + articleID
}

func (c *RedisCache) Get(ctx context.Context, articleID string) (string, bool, error) {
	val, err := c.client.Get(ctx, cacheKey(articleID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get cached translation: %w", err)
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, articleID, text string) error {
	if err := c.client.Set(ctx, cacheKey(articleID), text, cacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache translation: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

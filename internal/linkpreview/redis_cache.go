package linkpreview

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores previews in Redis with a TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed preview cache.
func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisCacheWithClient(client, ttl), nil
}

// NewRedisCacheWithClient creates a cache from an existing Redis client.
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{
		client: client,
		prefix: "preview:",
		ttl:    ttl,
	}
}

func (c *RedisCache) key(url string) string {
	return c.prefix + url
}

func (c *RedisCache) Get(ctx context.Context, url string) (Preview, bool) {
	jsonData, err := c.client.Get(ctx, c.key(url)).Result()
	if err == redis.Nil {
		return Preview{}, false
	}
	if err != nil {
		log.Printf("linkpreview: cache get: %v", err)
		return Preview{}, false
	}

	var p Preview
	if err := json.Unmarshal([]byte(jsonData), &p); err != nil {
		return Preview{}, false
	}
	return p, true
}

func (c *RedisCache) Set(ctx context.Context, url string, p Preview) {
	jsonData, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(url), jsonData, c.ttl).Err(); err != nil {
		log.Printf("linkpreview: cache set: %v", err)
	}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

package directory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisCache shares directory entries across control-plane replicas, so an
// invalidation on one node is visible to all of them.
type RedisCache struct {
	client *redis.Client
	prefix string
	log    *logrus.Logger
}

func NewRedisCache(client *redis.Client, log *logrus.Logger) *RedisCache {
	return &RedisCache{client: client, prefix: "controlplane:directory:v1:", log: log}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Entry, bool) {
	raw, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).Warn("directory: redis get failed")
		}
		cacheMisses.WithLabelValues("redis").Inc()
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.log.WithError(err).Warn("directory: corrupt cache entry")
		cacheMisses.WithLabelValues("redis").Inc()
		return nil, false
	}
	cacheHits.WithLabelValues("redis").Inc()
	return &entry, true
}

func (c *RedisCache) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) {
	raw, err := json.Marshal(entry)
	if err != nil {
		c.log.WithError(err).Warn("directory: marshal cache entry")
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		c.log.WithError(err).Warn("directory: redis set failed")
	}
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) {
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = c.prefix + key
	}
	if err := c.client.Del(ctx, prefixed...).Err(); err != nil {
		c.log.WithError(err).Warn("directory: redis delete failed")
	}
}

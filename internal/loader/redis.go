package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is the key prefix for template sources stored in Redis
const DefaultRedisPrefix = "template:source:"

// stringGetter is the part of the Redis client the loader needs
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisLoader reads template sources from Redis string keys
type RedisLoader struct {
	client stringGetter
	prefix string
}

// NewRedisLoader creates a loader reading <prefix><name> keys
func NewRedisLoader(client redis.Cmdable, prefix string) *RedisLoader {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisLoader{client: client, prefix: prefix}
}

// Key returns the Redis key holding the named template
func (l *RedisLoader) Key(name string) string {
	return l.prefix + name
}

// Load implements template.Loader
func (l *RedisLoader) Load(ctx context.Context, name string) (string, bool, error) {
	src, err := l.client.Get(ctx, l.Key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load template %q from redis: %w", name, err)
	}
	return src, true, nil
}

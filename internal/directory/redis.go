package directory

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/koltyakov/wsedge/internal/domain"
)

const redisKeyPrefix = "wsedge:alias:"

// RedisSource reads alias candidates from Redis lists keyed by
// "wsedge:alias:<code>".
type RedisSource struct {
	client redis.UniversalClient
}

// NewRedisSource creates a source from a redis:// or rediss:// URL.
func NewRedisSource(rawURL string) (*RedisSource, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	return &RedisSource{client: redis.NewClient(opts)}, nil
}

func (s *RedisSource) Lookup(ctx context.Context, alias string) ([]string, error) {
	candidates, err := s.client.LRange(ctx, RedisKey(alias), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrAliasNotFound
		}
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, domain.ErrAliasNotFound
	}
	return candidates, nil
}

// Close releases the Redis connection pool.
func (s *RedisSource) Close() error {
	return s.client.Close()
}

// RedisKey returns the list key holding candidates for alias.
func RedisKey(alias string) string {
	return redisKeyPrefix + alias
}

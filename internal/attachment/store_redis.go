package attachment

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "attachment:"

// RedisStore checks references against the key space the upload service
// maintains. The engine only ever asks "does this ref exist"; blob bytes
// never pass through it.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Exists(ctx context.Context, ref string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+ref).Result()
	if err != nil {
		return false, fmt.Errorf("check attachment %s: %w", ref, err)
	}
	return n > 0, nil
}

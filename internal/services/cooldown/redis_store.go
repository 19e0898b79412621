package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/trendreel/internal/common"
	"github.com/ternarybob/trendreel/internal/interfaces"
)

// RedisStore claims cooldown keys with SET NX and a TTL.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

var _ interfaces.CooldownStore = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg common.RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return newRedisStore(rdb, cfg.KeyPrefix), nil
}

func newRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// Claim sets the channel's key unless it already exists.
func (s *RedisStore) Claim(ctx context.Context, channelID string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.prefix+channelID, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Close closes the underlying redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

package embedding

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "knight:embedding:"

// RedisTier is the shared fast tier. Vectors are stored JSON-encoded under a
// namespaced key with a per-entry TTL.
type RedisTier struct {
	client *redis.Client
	logger *slog.Logger
}

// RedisOptions carries the connection settings for the fast tier.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
}

func NewRedisTier(opts RedisOptions, logger *slog.Logger) *RedisTier {
	if opts.Address == "" {
		opts.Address = "localhost:6379"
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &RedisTier{client: client, logger: logger}
}

func (t *RedisTier) Ping(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}

func (t *RedisTier) Close() error {
	return t.client.Close()
}

func (t *RedisTier) Get(ctx context.Context, key string) ([]float32, bool) {
	data, err := t.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			t.logger.Warn("cache_redis_get_failed", "key", key, "error", err)
		}
		return nil, false
	}

	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil {
		t.logger.Warn("cache_redis_entry_corrupt", "key", key, "error", err)
		_ = t.client.Del(ctx, redisKeyPrefix+key).Err()
		return nil, false
	}
	return vector, true
}

func (t *RedisTier) Put(ctx context.Context, key string, vector []float32, ttl time.Duration) {
	data, err := json.Marshal(vector)
	if err != nil {
		t.logger.Warn("cache_redis_encode_failed", "key", key, "error", err)
		return
	}
	if err := t.client.Set(ctx, redisKeyPrefix+key, data, ttl).Err(); err != nil {
		t.logger.Warn("cache_redis_set_failed", "key", key, "error", err)
	}
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safar/go-price-resolver/internal/config"
	"github.com/safar/go-price-resolver/internal/models"
)

const keyPrefix = "pricing:calc:"

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
}

// PriceCache keeps ranked resolution results in Redis.
type PriceCache struct {
	store cmdable
	raw   *redis.Client
	ttl   time.Duration
}

// New connects to Redis and verifies connectivity.
func New(ctx context.Context, cfg config.CacheConfig) (*PriceCache, error) {
	if cfg.RedisURL == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &PriceCache{store: raw, raw: raw, ttl: cfg.TTL}, nil
}

func newWithStore(store cmdable, ttl time.Duration) *PriceCache {
	return &PriceCache{store: store, ttl: ttl}
}

// Get returns the cached rows for key. A missing key is not an error.
func (c *PriceCache) Get(ctx context.Context, key string) ([]models.CalculatedPrice, bool, error) {
	payload, err := c.store.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var rows []models.CalculatedPrice
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, false, fmt.Errorf("decode cached prices: %w", err)
	}
	if rows == nil {
		rows = []models.CalculatedPrice{}
	}
	return rows, true, nil
}

func (c *PriceCache) Set(ctx context.Context, key string, rows []models.CalculatedPrice) error {
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode prices: %w", err)
	}
	if err := c.store.Set(ctx, keyPrefix+key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *PriceCache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx).Err()
}

func (c *PriceCache) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

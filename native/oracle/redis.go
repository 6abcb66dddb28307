package oracle

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection parameters for the Redis price feed.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	// MaxAge rejects quotes older than this. Zero disables the check.
	MaxAge time.Duration
}

// Redis reads prices published by an external feeder. Each asset lives in a
// hash at "price:{lowercase hex address}" with fields "price" (decimal
// string) and "ts" (unix nanoseconds).
type Redis struct {
	rdb    *redis.Client
	maxAge time.Duration
	now    func() time.Time
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return NewRedisFromClient(rdb, cfg.MaxAge), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(rdb *redis.Client, maxAge time.Duration) *Redis {
	return &Redis{rdb: rdb, maxAge: maxAge, now: time.Now}
}

func priceKey(asset common.Address) string {
	return "price:" + strings.ToLower(asset.Hex())
}

// Publish stores a decimal price for asset. Used by feeders and tests.
func (r *Redis) Publish(ctx context.Context, asset common.Address, price string, ts time.Time) error {
	if _, err := ParsePrice(price); err != nil {
		return err
	}
	fields := map[string]interface{}{
		"price": price,
		"ts":    fmt.Sprintf("%d", ts.UnixNano()),
	}
	if err := r.rdb.HSet(ctx, priceKey(asset), fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", asset.Hex(), err)
	}
	return nil
}

func (r *Redis) Price(ctx context.Context, asset common.Address) (*big.Int, error) {
	vals, err := r.rdb.HGetAll(ctx, priceKey(asset)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get price %s: %w", asset.Hex(), err)
	}
	raw, ok := vals["price"]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPrice, asset.Hex())
	}
	if r.maxAge > 0 {
		var nanos int64
		if _, err := fmt.Sscanf(vals["ts"], "%d", &nanos); err != nil {
			return nil, fmt.Errorf("redis: parse ts %s: %w", asset.Hex(), err)
		}
		if age := r.now().Sub(time.Unix(0, nanos)); age > r.maxAge {
			return nil, fmt.Errorf("%w: %s quote is %s old", ErrNoPrice, asset.Hex(), age.Truncate(time.Second))
		}
	}
	return ParsePrice(raw)
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

package idempotency

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imrishuroy/go-listing-sync/internal/events"
)

const redisKeyPrefix = "listing-sync:ledger:"

// RedisConfig addresses the Redis instance backing a shared ledger.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisLedger shares processed fingerprints between instances. Expiry is
// delegated to Redis key TTLs.
type RedisLedger struct {
	client  *redis.Client
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewRedisLedger connects to Redis and verifies the connection.
func NewRedisLedger(ctx context.Context, cfg RedisConfig) (*RedisLedger, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect Redis: %w", err)
	}
	return &RedisLedger{client: rdb, ttl: DefaultTTL, nowFunc: time.Now}, nil
}

func (l *RedisLedger) IsDuplicate(ctx context.Context, fp events.Fingerprint) (bool, error) {
	n, err := l.client.Exists(ctx, redisKeyPrefix+string(fp)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Claim relies on SET NX so exactly one instance wins a fingerprint.
func (l *RedisLedger) Claim(ctx context.Context, fp events.Fingerprint) (bool, error) {
	processedAt := strconv.FormatInt(l.nowFunc().UnixMilli(), 10)
	ok, err := l.client.SetNX(ctx, redisKeyPrefix+string(fp), processedAt, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (l *RedisLedger) MarkProcessed(ctx context.Context, fp events.Fingerprint) error {
	processedAt := strconv.FormatInt(l.nowFunc().UnixMilli(), 10)
	if err := l.client.Set(ctx, redisKeyPrefix+string(fp), processedAt, l.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}

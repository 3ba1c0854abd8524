// Package leader decides which instance runs the cluster-wide periodic jobs.
package leader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisElector holds leadership as a key with a TTL. The holder extends the
// TTL on every check; if it stops checking, another instance takes over once
// the key expires.
type RedisElector struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	owner  string
	logger *slog.Logger
}

func NewRedisElector(client *redis.Client, key string, ttl time.Duration, logger *slog.Logger) *RedisElector {
	return &RedisElector{
		client: client,
		key:    key,
		ttl:    ttl,
		owner:  uuid.NewString(),
		logger: logger,
	}
}

// IsLeader renews the lease if this instance holds it, or tries to take it.
// Redis errors count as not leader.
func (e *RedisElector) IsLeader(ctx context.Context) bool {
	renewed, err := renewScript.Run(ctx, e.client, []string{e.key}, e.owner, e.ttl.Milliseconds()).Int()
	if err != nil {
		e.logger.Warn("leader lease renewal failed", "key", e.key, "error", err)
		return false
	}
	if renewed == 1 {
		return true
	}

	acquired, err := e.client.SetNX(ctx, e.key, e.owner, e.ttl).Result()
	if err != nil {
		e.logger.Warn("leader lease acquisition failed", "key", e.key, "error", err)
		return false
	}
	if acquired {
		e.logger.Info("acquired leadership", "key", e.key, "owner", e.owner)
	}
	return acquired
}

// Resign releases the lease if this instance holds it.
func (e *RedisElector) Resign(ctx context.Context) error {
	if err := releaseScript.Run(ctx, e.client, []string{e.key}, e.owner).Err(); err != nil {
		return fmt.Errorf("release leader lease: %w", err)
	}
	return nil
}

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionKeyTTL bounds how long a crashed process's sessions linger in
// the shared registry.
const sessionKeyTTL = 24 * time.Hour

// RedisSessionPool is the shared per-user session registry used when
// multiple processes host socket connections for the same deployment.
type RedisSessionPool struct {
	rdb *redis.Client
}

// NewRedisSessionPool connects to Redis using a redis:// URL.
func NewRedisSessionPool(url string) (*RedisSessionPool, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis session pool connected")
	return &RedisSessionPool{rdb: rdb}, nil
}

func sessionKey(userID string) string {
	return "promptsched:sessions:" + userID
}

// Add registers a session for a user.
func (p *RedisSessionPool) Add(ctx context.Context, userID, sessionID string) error {
	pipe := p.rdb.TxPipeline()
	pipe.SAdd(ctx, sessionKey(userID), sessionID)
	pipe.Expire(ctx, sessionKey(userID), sessionKeyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Remove drops a session for a user.
func (p *RedisSessionPool) Remove(ctx context.Context, userID, sessionID string) error {
	return p.rdb.SRem(ctx, sessionKey(userID), sessionID).Err()
}

// Sessions returns the user's registered session IDs across processes.
// Errors degrade to an empty slice; the in-process registry still
// serves local sessions.
func (p *RedisSessionPool) Sessions(ctx context.Context, userID string) []string {
	ids, err := p.rdb.SMembers(ctx, sessionKey(userID)).Result()
	if err != nil {
		slog.Warn("shared session lookup failed", "user", userID, "error", err)
		return nil
	}
	return ids
}

// Close releases the Redis connection.
func (p *RedisSessionPool) Close() error {
	return p.rdb.Close()
}

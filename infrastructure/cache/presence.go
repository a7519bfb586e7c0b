// Package cache holds the ephemeral presence store: a best-effort
// online/offline flag per user. Delivery never consults it; the routing
// table is the only authority for fan-out.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence records which users currently hold a live connection.
// Entries carry a TTL refreshed by the connection heartbeat, so a user
// that drops without a clean close goes offline within one TTL.
type Presence interface {
	// Set marks the user online, extending the entry's TTL.
	Set(ctx context.Context, userId string) error
	// Clear marks the user offline.
	Clear(ctx context.Context, userId string) error
	// IsOnline reports the current flag. Informational only.
	IsOnline(ctx context.Context, userId string) (bool, error)
}

const presenceKeyPrefix = "presence:"

// RedisPresence stores presence flags in Redis, shared across server
// instances.
type RedisPresence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPresence(client *redis.Client, ttl time.Duration) *RedisPresence {
	return &RedisPresence{
		client: client,
		ttl:    ttl,
	}
}

func (p *RedisPresence) Set(ctx context.Context, userId string) error {
	return p.client.Set(ctx, presenceKeyPrefix+userId, "1", p.ttl).Err()
}

func (p *RedisPresence) Clear(ctx context.Context, userId string) error {
	return p.client.Del(ctx, presenceKeyPrefix+userId).Err()
}

func (p *RedisPresence) IsOnline(ctx context.Context, userId string) (bool, error) {
	n, err := p.client.Exists(ctx, presenceKeyPrefix+userId).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

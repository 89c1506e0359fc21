package domain

import (
	"context"
	"time"
)

// Cache stores encoded responses for idempotent replay.
// Get returns nil, nil when the key is absent.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `mapstructure:"type" json:"type"`

	LocalMaxSize int           `mapstructure:"local_max_size" json:"localMaxSize"`
	LocalTTL     time.Duration `mapstructure:"local_ttl" json:"localTtl"`

	RedisAddr     string `mapstructure:"redis_addr" json:"redisAddr"`
	RedisPassword string `mapstructure:"redis_password" json:"-"`
	RedisDB       int    `mapstructure:"redis_db" json:"redisDb"`

	// EnableTwoPhase checks the local LRU before Redis.
	EnableTwoPhase bool `mapstructure:"enable_two_phase" json:"enableTwoPhase"`

	// ReplayTTL is how long an Idempotency-Key response is kept.
	ReplayTTL time.Duration `mapstructure:"replay_ttl" json:"replayTtl"`
}

// Package cache provides the TTL key/value stores shared by the intel
// clients. MemoryStore is the default; RedisStore lets several API replicas
// share one cache.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Store is a TTL key/value cache. Get returns ErrCacheMiss for absent or
// expired keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Expire(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Backend    string
	TTL        time.Duration
	RedisAddr  string
	RedisDB    int
	RedisPass  string
	KeyPrefix  string
	MaxEntries int
}

// New builds the store described by cfg.
func New(cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendMemory:
		return NewMemoryStore(cfg.TTL, cfg.MaxEntries), nil
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("cache: redis backend requires an address")
		}
		return NewRedisStore(RedisOptions{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPass,
			DB:         cfg.RedisDB,
			KeyPrefix:  cfg.KeyPrefix,
			DefaultTTL: cfg.TTL,
		}), nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}

// GetJSON reads key and decodes it into a T.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, error) {
	var out T
	raw, err := s.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return out, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw, ttl)
}

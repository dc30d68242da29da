// Package cache stores serialized prediction responses keyed by request.
// Predictions are deterministic for a loaded artifact set, so a hit is always
// identical to a fresh computation.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string) error
}

type Config struct {
	Backend   string
	Size      int
	TTL       time.Duration
	RedisAddr string
	// Namespace prefixes every key so a restart with new artifacts does not
	// read responses computed by an older model set.
	Namespace string
}

func New(cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "", "none":
		return Noop{}, nil
	case "lru":
		return NewLRU(cfg.Size, cfg.TTL), nil
	case "redis":
		return NewRedis(cfg.RedisAddr, cfg.TTL, cfg.Namespace), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

type Noop struct{}

func (Noop) Get(context.Context, string) (string, bool) { return "", false }

func (Noop) Set(context.Context, string, string) error { return nil }

// LRU is an in-process, size-bounded cache with optional expiry.
type LRU struct {
	entries *expirable.LRU[string, string]
}

func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = 1024
	}
	return &LRU{entries: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (c *LRU) Get(_ context.Context, key string) (string, bool) {
	return c.entries.Get(key)
}

func (c *LRU) Set(_ context.Context, key string, value string) error {
	c.entries.Add(key, value)
	return nil
}

func (c *LRU) Len() int {
	return c.entries.Len()
}

type Redis struct {
	client    *redis.Client
	ttl       time.Duration
	namespace string
}

func NewRedis(addr string, ttl time.Duration, namespace string) *Redis {
	return &Redis{
		client:    redis.NewClient(&redis.Options{Addr: addr}),
		ttl:       ttl,
		namespace: namespace,
	}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key string, value string) error {
	return r.client.Set(ctx, r.key(key), value, r.ttl).Err()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) key(key string) string {
	if r.namespace == "" {
		return "spendwise:" + key
	}
	return "spendwise:" + r.namespace + ":" + key
}

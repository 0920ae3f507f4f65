package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	pkgredis "github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/resilience"
)

// Backend stores encoded search results by key.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Flush drops every cached result and reports how many were removed.
	Flush(ctx context.Context) (int64, error)
}

// LocalBackend is an in-process LRU with a fixed TTL for every entry.
type LocalBackend struct {
	lru *expirable.LRU[string, []byte]
}

func NewLocalBackend(size int, ttl time.Duration) *LocalBackend {
	if size <= 0 {
		size = 1024
	}
	return &LocalBackend{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (b *LocalBackend) Name() string { return "memory" }

func (b *LocalBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := b.lru.Get(key)
	return v, ok, nil
}

func (b *LocalBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	b.lru.Add(key, value)
	return nil
}

func (b *LocalBackend) Flush(context.Context) (int64, error) {
	n := b.lru.Len()
	b.lru.Purge()
	return int64(n), nil
}

func (b *LocalBackend) Len() int { return b.lru.Len() }

// KV is the subset of *pkgredis.Client the Redis backend uses.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// RedisBackend shares results between searcher replicas. Calls go through a
// circuit breaker so a Redis outage degrades to cache misses instead of
// slow queries.
type RedisBackend struct {
	kv      KV
	breaker *resilience.Breaker
	logger  *slog.Logger
}

func NewRedisBackend(kv KV, breaker *resilience.Breaker) *RedisBackend {
	if breaker == nil {
		breaker = resilience.NewBreaker("redis-cache", resilience.BreakerConfig{})
	}
	return &RedisBackend{
		kv:      kv,
		breaker: breaker,
		logger:  slog.Default().With("component", "redis-cache"),
	}
}

func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := resilience.Call(ctx, b.breaker, func(ctx context.Context) ([]byte, error) {
		v, err := b.kv.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil, nil
		}
		return v, err
	})
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, data != nil, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := b.breaker.Do(ctx, func(ctx context.Context) error {
		return b.kv.Set(ctx, key, value, ttl)
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (b *RedisBackend) Flush(ctx context.Context) (int64, error) {
	deleted, err := resilience.Call(ctx, b.breaker, func(ctx context.Context) (int64, error) {
		return b.kv.FlushByPattern(ctx, keyPrefix+"*")
	})
	if err != nil {
		return deleted, fmt.Errorf("redis flush: %w", err)
	}
	return deleted, nil
}

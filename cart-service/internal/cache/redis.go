package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// redisJSON stores JSON-encoded values under prefix:id with a jittered TTL.
type redisJSON[T any] struct {
	client  *redis.Client
	prefix  string
	baseTTL time.Duration
}

func (r redisJSON[T]) key(id string) string {
	return fmt.Sprintf("%s:%s", r.prefix, id)
}

func (r redisJSON[T]) get(ctx context.Context, id string) (*T, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var v T
	if err2 := json.Unmarshal(data, &v); err2 != nil {
		return nil, fmt.Errorf("unmarshal %s failed: %w", r.prefix, err2)
	}
	return &v, nil
}

func (r redisJSON[T]) set(ctx context.Context, id string, v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", r.prefix, err)
	}

	// spread expiries so entries written together do not expire together
	ttl := r.baseTTL
	if spread := int64(r.baseTTL / 10); spread > 0 {
		ttl += time.Duration(rand.Int63n(spread))
	}
	if err := r.client.Set(ctx, r.key(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r redisJSON[T]) del(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

type RedisCartCache struct {
	store redisJSON[domain.Cart]
}

func NewRedisCartCache(client *redis.Client, ttl time.Duration) *RedisCartCache {
	return &RedisCartCache{store: redisJSON[domain.Cart]{client: client, prefix: "cart", baseTTL: ttl}}
}

func (r *RedisCartCache) Get(ctx context.Context, cartID string) (*domain.Cart, error) {
	return r.store.get(ctx, cartID)
}

func (r *RedisCartCache) Set(ctx context.Context, cart *domain.Cart) error {
	return r.store.set(ctx, cart.CartID, cart)
}

func (r *RedisCartCache) Delete(ctx context.Context, cartID string) error {
	return r.store.del(ctx, cartID)
}

type RedisTerminalCache struct {
	store redisJSON[domain.TerminalInfo]
}

func NewRedisTerminalCache(client *redis.Client, ttl time.Duration) *RedisTerminalCache {
	return &RedisTerminalCache{store: redisJSON[domain.TerminalInfo]{client: client, prefix: "terminal", baseTTL: ttl}}
}

func (r *RedisTerminalCache) Get(ctx context.Context, terminalID string) (*domain.TerminalInfo, error) {
	return r.store.get(ctx, terminalID)
}

func (r *RedisTerminalCache) Set(ctx context.Context, info *domain.TerminalInfo) error {
	return r.store.set(ctx, info.TerminalID, info)
}

package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and a client pointing at it
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, mr, cleanup
}

func testCart(id string) *domain.Cart {
	c := &domain.Cart{CartID: id, State: domain.StatePaying, Etag: "e1"}
	c.AddLineItem(domain.LineItem{ItemCode: "4901", UnitPrice: decimal.RequireFromString("100.5"), Quantity: 2})
	return c
}

func TestCartCache_GetSuccess(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	cache := NewRedisCartCache(client, 15*time.Minute)
	ctx := context.Background()

	cartJSON, err := json.Marshal(testCart("cart-1"))
	require.NoError(t, err)
	require.NoError(t, mr.Set("cart:cart-1", string(cartJSON)))

	result, err := cache.Get(ctx, "cart-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePaying, result.State)
	require.Len(t, result.LineItems, 1)
	assert.True(t, decimal.RequireFromString("100.5").Equal(result.LineItems[0].UnitPrice))
}

func TestCartCache_Miss(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()
	cache := NewRedisCartCache(client, 15*time.Minute)

	result, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestCartCache_InvalidJSON(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	cache := NewRedisCartCache(client, 15*time.Minute)

	require.NoError(t, mr.Set("cart:cart-1", `{"cart_id":`))

	_, err := cache.Get(context.Background(), "cart-1")
	require.ErrorContains(t, err, "unmarshal cart failed")
}

func TestCartCache_SetAppliesJitteredTTL(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	cache := NewRedisCartCache(client, 15*time.Minute)

	require.NoError(t, cache.Set(context.Background(), testCart("cart-2")))

	require.True(t, mr.Exists("cart:cart-2"))
	ttl := mr.TTL("cart:cart-2")
	assert.GreaterOrEqual(t, ttl, 15*time.Minute)
	assert.Less(t, ttl, 17*time.Minute)

	mr.FastForward(18 * time.Minute)
	_, err := cache.Get(context.Background(), "cart-2")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCartCache_Delete(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	cache := NewRedisCartCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, testCart("cart-3")))
	require.NoError(t, cache.Delete(ctx, "cart-3"))
	assert.False(t, mr.Exists("cart:cart-3"))

	// deleting a missing key is not an error
	assert.NoError(t, cache.Delete(ctx, "cart-3"))
}

func TestCartCache_RedisDown(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	cache := NewRedisCartCache(client, time.Minute)
	mr.Close()

	_, err := cache.Get(context.Background(), "cart-1")
	assert.ErrorContains(t, err, "redis get failed")
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestTerminalCache_RoundTrip(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	cache := NewRedisTerminalCache(client, 5*time.Minute)
	ctx := context.Background()

	info := &domain.TerminalInfo{TerminalID: "T1-S1-1", TenantID: "T1", StoreCode: "S1", TerminalNo: 1, BusinessDate: "20240501"}
	require.NoError(t, cache.Set(ctx, info))
	assert.True(t, mr.Exists("terminal:T1-S1-1"))

	got, err := cache.Get(ctx, "T1-S1-1")
	require.NoError(t, err)
	assert.Equal(t, info, got)
}

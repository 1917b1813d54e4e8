package catalogo

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the minimal redis surface the cache uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedStore decorates a ProductStore with a read-through redis cache on
// Get. Writes invalidate the cached entry. Cache errors degrade to the
// underlying store, never to the caller.
type CachedStore struct {
	store  ProductStore
	client RedisClient
	ttl    time.Duration
	logf   func(format string, args ...any)
}

// NewCachedStore constructs the decorator.
func NewCachedStore(store ProductStore, client RedisClient, ttl time.Duration, logf func(format string, args ...any)) *CachedStore {
	if logf == nil {
		logf = log.Printf
	}
	return &CachedStore{store: store, client: client, ttl: ttl, logf: logf}
}

func cacheKey(id int64) string {
	return "producto:" + strconv.FormatInt(id, 10)
}

func (c *CachedStore) Get(ctx context.Context, id int64) (Product, error) {
	key := cacheKey(id)

	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var product Product
		if err := json.Unmarshal([]byte(raw), &product); err == nil {
			return product, nil
		}
		c.logf("catalogo: cache entry corrupta para %s, se descarta", key)
	} else if !errors.Is(err, redis.Nil) {
		c.logf("catalogo: cache get %s: %v", key, err)
	}

	product, err := c.store.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}

	if data, err := json.Marshal(product); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logf("catalogo: cache set %s: %v", key, err)
		}
	}
	return product, nil
}

func (c *CachedStore) Create(ctx context.Context, nombre string, precio float64) (Product, error) {
	return c.store.Create(ctx, nombre, precio)
}

func (c *CachedStore) List(ctx context.Context) ([]Product, error) {
	return c.store.List(ctx)
}

func (c *CachedStore) Update(ctx context.Context, id int64, nombre *string, precio *float64) error {
	if err := c.store.Update(ctx, id, nombre, precio); err != nil {
		return err
	}
	if err := c.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		c.logf("catalogo: cache del %s: %v", cacheKey(id), err)
	}
	return nil
}

func (c *CachedStore) Delete(ctx context.Context, id int64) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := c.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		c.logf("catalogo: cache del %s: %v", cacheKey(id), err)
	}
	return nil
}

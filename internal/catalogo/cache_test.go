package catalogo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type countingStore struct {
	product Product
	err     error
	gets    int
}

func (s *countingStore) Create(ctx context.Context, nombre string, precio float64) (Product, error) {
	return s.product, s.err
}

func (s *countingStore) Get(ctx context.Context, id int64) (Product, error) {
	s.gets++
	return s.product, s.err
}

func (s *countingStore) List(ctx context.Context) ([]Product, error) {
	return []Product{s.product}, s.err
}

func (s *countingStore) Update(ctx context.Context, id int64, nombre *string, precio *float64) error {
	return s.err
}

func (s *countingStore) Delete(ctx context.Context, id int64) error {
	return s.err
}

func newCacheFixture(t *testing.T) (*CachedStore, *countingStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &countingStore{product: Product{ID: 1, Nombre: "yerba", Precio: 15000}}
	cached := NewCachedStore(store, client, time.Minute, func(string, ...any) {})
	return cached, store, mr
}

func TestCachedStore_ReadThrough(t *testing.T) {
	cached, store, _ := newCacheFixture(t)
	ctx := context.Background()

	product, err := cached.Get(ctx, 1)
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if product.Nombre != "yerba" {
		t.Fatalf("unexpected product: %+v", product)
	}

	if _, err := cached.Get(ctx, 1); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if store.gets != 1 {
		t.Fatalf("expected 1 store hit, got %d", store.gets)
	}
}

func TestCachedStore_UpdateInvalidates(t *testing.T) {
	cached, store, mr := newCacheFixture(t)
	ctx := context.Background()

	if _, err := cached.Get(ctx, 1); err != nil {
		t.Fatalf("get: %v", err)
	}
	if !mr.Exists("producto:1") {
		t.Fatalf("expected cache entry after read")
	}

	precio := 16000.0
	if err := cached.Update(ctx, 1, nil, &precio); err != nil {
		t.Fatalf("update: %v", err)
	}
	if mr.Exists("producto:1") {
		t.Fatalf("expected cache entry invalidated after update")
	}

	if _, err := cached.Get(ctx, 1); err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if store.gets != 2 {
		t.Fatalf("expected refetch after invalidation, got %d hits", store.gets)
	}
}

func TestCachedStore_DeleteInvalidates(t *testing.T) {
	cached, _, mr := newCacheFixture(t)
	ctx := context.Background()

	if _, err := cached.Get(ctx, 1); err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := cached.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("producto:1") {
		t.Fatalf("expected cache entry invalidated after delete")
	}
}

func TestCachedStore_MissDoesNotCacheErrors(t *testing.T) {
	cached, store, mr := newCacheFixture(t)
	store.err = ErrProductNotFound
	ctx := context.Background()

	if _, err := cached.Get(ctx, 1); err != ErrProductNotFound {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if mr.Exists("producto:1") {
		t.Fatalf("errors must not be cached")
	}
}

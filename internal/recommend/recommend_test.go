package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Avaneesh27/Haathse-Marketplace/internal/store"
)

type fakeCatalog struct {
	products []store.ProductListItem
	err      error
	calls    int
}

func (f *fakeCatalog) ListProducts(ctx context.Context, category string, limit int) ([]store.ProductListItem, error) {
	f.calls++
	return f.products, f.err
}

type fakeCache struct {
	values map[string]json.RawMessage
	getErr error
	setErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]json.RawMessage)}
}

func (f *fakeCache) GetValue(ctx context.Context, key string) (*store.KVEntry, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &store.KVEntry{Key: key, Value: v}, nil
}

func (f *fakeCache) SetValue(ctx context.Context, key string, value json.RawMessage) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = value
	return nil
}

func catalogOf(n int) []store.ProductListItem {
	items := make([]store.ProductListItem, n)
	for i := range items {
		items[i].ID = string(rune('a' + i))
		items[i].Name = "Product " + string(rune('A'+i))
		items[i].Price = (i + 1) * 100
		items[i].Unit = "piece"
		items[i].Category = "handicrafts"
	}
	return items
}

func newTestService(catalog *fakeCatalog, cache *fakeCache) *Service {
	return New(catalog, cache, log.New(os.Stderr, "", 0))
}

func TestGet_BuildsAndCachesOnMiss(t *testing.T) {
	catalog := &fakeCatalog{products: catalogOf(5)}
	cache := newFakeCache()
	svc := newTestService(catalog, cache)

	entries, err := svc.Get(context.Background(), 20)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("got %d entries, want 5", len(entries))
	}
	if _, ok := cache.values[cacheKey]; !ok {
		t.Error("expected ranked set to be written to cache")
	}

	// Second call must serve from cache.
	if _, err := svc.Get(context.Background(), 20); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if catalog.calls != 1 {
		t.Errorf("catalog listed %d times, want 1", catalog.calls)
	}
}

func TestGet_RespectsLimit(t *testing.T) {
	svc := newTestService(&fakeCatalog{products: catalogOf(10)}, newFakeCache())

	entries, err := svc.Get(context.Background(), 3)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("got %d entries, want 3", len(entries))
	}
}

func TestGet_RebuildsStaleCache(t *testing.T) {
	catalog := &fakeCatalog{products: catalogOf(4)}
	cache := newFakeCache()
	svc := newTestService(catalog, cache)

	stale := time.Now().Add(-2 * time.Hour)
	raw, _ := json.Marshal(cachedSet{GeneratedAt: stale, Entries: []Entry{{ProductID: "old"}}})
	cache.values[cacheKey] = raw

	entries, err := svc.Get(context.Background(), 20)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4 from rebuild", len(entries))
	}
	for _, e := range entries {
		if e.ProductID == "old" {
			t.Error("stale entry survived the rebuild")
		}
	}
	if catalog.calls != 1 {
		t.Errorf("catalog listed %d times, want 1", catalog.calls)
	}
}

func TestGet_ShuffleIsStableWithinWindow(t *testing.T) {
	catalog := &fakeCatalog{products: catalogOf(8)}
	svc := newTestService(catalog, newFakeCache())
	fixed := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	first, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	second, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	for i := range first.Entries {
		if first.Entries[i].ProductID != second.Entries[i].ProductID {
			t.Fatalf("order differs at %d within the same hour: %q vs %q",
				i, first.Entries[i].ProductID, second.Entries[i].ProductID)
		}
	}
}

func TestGet_CatalogErrorSurfaces(t *testing.T) {
	svc := newTestService(&fakeCatalog{err: errors.New("db down")}, newFakeCache())

	if _, err := svc.Get(context.Background(), 20); err == nil {
		t.Fatal("expected error when catalog is unavailable")
	}
}

func TestRefresh_ServesDespiteCacheWriteFailure(t *testing.T) {
	cache := newFakeCache()
	cache.setErr = errors.New("kv unavailable")
	svc := newTestService(&fakeCatalog{products: catalogOf(3)}, cache)

	set, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if len(set.Entries) != 3 {
		t.Errorf("got %d entries, want 3", len(set.Entries))
	}
}

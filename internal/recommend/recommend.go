// Package recommend serves product recommendations for the marketplace
// home screen. Ranking is a deterministic shuffle of the active catalog,
// reseeded hourly so every buyer sees the same rotation within a window
// and sellers get fair exposure over time. The ranked list is cached in
// the kv store so serving a request never walks the full catalog.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/Avaneesh27/Haathse-Marketplace/internal/store"
)

const (
	cacheKey    = "recommendations"
	freshness   = time.Hour
	catalogSize = 500
)

// Entry is one recommended product.
type Entry struct {
	ProductID  string  `json:"product_id"`
	Name       string  `json:"name"`
	Price      int     `json:"price"`
	Unit       string  `json:"unit"`
	Category   string  `json:"category"`
	SellerName *string `json:"seller_name,omitempty"`
	Village    *string `json:"village,omitempty"`
	PhotoURL   *string `json:"photo_url,omitempty"`
}

type cachedSet struct {
	GeneratedAt time.Time `json:"generated_at"`
	Entries     []Entry   `json:"entries"`
}

// Catalog is the product source for recommendation builds.
type Catalog interface {
	ListProducts(ctx context.Context, category string, limit int) ([]store.ProductListItem, error)
}

// Cache persists the ranked list between refreshes.
type Cache interface {
	GetValue(ctx context.Context, key string) (*store.KVEntry, error)
	SetValue(ctx context.Context, key string, value json.RawMessage) error
}

// Service builds and serves cached recommendations.
type Service struct {
	catalog Catalog
	cache   Cache
	logger  *log.Logger
	now     func() time.Time
}

// New creates a recommendation service. logger must not be nil.
func New(catalog Catalog, cache Cache, logger *log.Logger) *Service {
	return &Service{catalog: catalog, cache: cache, logger: logger, now: time.Now}
}

// Get returns up to limit recommendations, rebuilding the cached set when
// it is older than an hour or missing.
func (s *Service) Get(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	set, err := s.load(ctx)
	if err != nil {
		s.logger.Printf("recommend: cache read failed, rebuilding: %v", err)
	}
	if set == nil || s.now().Sub(set.GeneratedAt) > freshness {
		set, err = s.Refresh(ctx)
		if err != nil {
			return nil, err
		}
	}

	if len(set.Entries) > limit {
		return set.Entries[:limit], nil
	}
	return set.Entries, nil
}

// Refresh rebuilds the ranked list from the catalog and writes it to the
// cache. It returns the new set so callers can serve it immediately.
func (s *Service) Refresh(ctx context.Context) (*cachedSet, error) {
	products, err := s.catalog.ListProducts(ctx, "", catalogSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	now := s.now()
	entries := make([]Entry, 0, len(products))
	for _, p := range products {
		entries = append(entries, Entry{
			ProductID:  p.ID,
			Name:       p.Name,
			Price:      p.Price,
			Unit:       p.Unit,
			Category:   p.Category,
			SellerName: p.SellerName,
			Village:    p.Village,
			PhotoURL:   p.PhotoURL,
		})
	}
	shuffle(entries, now)

	set := &cachedSet{GeneratedAt: now, Entries: entries}
	if err := s.save(ctx, set); err != nil {
		// Serving still works from the in-memory set.
		s.logger.Printf("recommend: cache write failed: %v", err)
	}
	s.logger.Printf("recommend: refreshed %d entries", len(entries))
	return set, nil
}

// shuffle reorders entries with a seed derived from the current hour, so
// the rotation is stable within the freshness window.
func shuffle(entries []Entry, now time.Time) {
	seed := now.Truncate(freshness).Unix()
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(entries), func(i, j int) {
		entries[i], entries[j] = entries[j], entries[i]
	})
}

func (s *Service) load(ctx context.Context) (*cachedSet, error) {
	entry, err := s.cache.GetValue(ctx, cacheKey)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var set cachedSet
	if err := json.Unmarshal(entry.Value, &set); err != nil {
		return nil, fmt.Errorf("failed to decode cached recommendations: %w", err)
	}
	return &set, nil
}

func (s *Service) save(ctx context.Context, set *cachedSet) error {
	raw, err := json.Marshal(set)
	if err != nil {
		return err
	}
	return s.cache.SetValue(ctx, cacheKey, raw)
}

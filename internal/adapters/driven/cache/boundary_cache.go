package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BoundaryCache = (*BoundaryCache)(nil)

// DefaultBoundaryEntries is how many paginations are kept by default
const DefaultBoundaryEntries = 32

// BoundaryCache keeps page spans of recently paginated documents in process
type BoundaryCache struct {
	entries *lru.Cache
}

// NewBoundaryCache creates an in-memory boundary cache holding up to size
// paginations
func NewBoundaryCache(size int) (*BoundaryCache, error) {
	if size <= 0 {
		size = DefaultBoundaryEntries
	}
	entries, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create boundary cache: %w", err)
	}
	return &BoundaryCache{entries: entries}, nil
}

// Get returns a copy of the cached spans
func (c *BoundaryCache) Get(ctx context.Context, key string) ([]domain.Page, error) {
	v, ok := c.entries.Get(key)
	if !ok {
		return nil, domain.ErrNotFound
	}
	pages := v.([]domain.Page)
	out := make([]domain.Page, len(pages))
	copy(out, pages)
	return out, nil
}

// Put stores the spans of a complete pagination, dropping any page text
func (c *BoundaryCache) Put(ctx context.Context, key string, pages []domain.Page) error {
	spans := make([]domain.Page, len(pages))
	for i, p := range pages {
		spans[i] = p.Span()
	}
	c.entries.Add(key, spans)
	return nil
}

package mocks

import (
	"context"
	"sync"

	"github.com/appnyang/leafreader/internal/core/domain"
)

// MockBoundaryCache is a mock implementation of BoundaryCache for testing
type MockBoundaryCache struct {
	mu    sync.RWMutex
	spans map[string][]domain.Page
	puts  int
}

// NewMockBoundaryCache creates a new MockBoundaryCache
func NewMockBoundaryCache() *MockBoundaryCache {
	return &MockBoundaryCache{
		spans: make(map[string][]domain.Page),
	}
}

func (m *MockBoundaryCache) Get(ctx context.Context, key string) ([]domain.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pages, ok := m.spans[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]domain.Page, len(pages))
	copy(out, pages)
	return out, nil
}

func (m *MockBoundaryCache) Put(ctx context.Context, key string, pages []domain.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]domain.Page, len(pages))
	copy(stored, pages)
	m.spans[key] = stored
	m.puts++
	return nil
}

// Puts returns the number of Put calls
func (m *MockBoundaryCache) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

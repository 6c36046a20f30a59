package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/appnyang/leafreader/internal/core/domain"
)

// MockBookmarkStore is a mock implementation of BookmarkStore for testing
type MockBookmarkStore struct {
	mu       sync.RWMutex
	custom   map[string][]*domain.Bookmark
	lastRead map[string]*domain.Bookmark

	// Optional injected failure for every call
	Err error
}

// NewMockBookmarkStore creates a new MockBookmarkStore
func NewMockBookmarkStore() *MockBookmarkStore {
	return &MockBookmarkStore{
		custom:   make(map[string][]*domain.Bookmark),
		lastRead: make(map[string]*domain.Bookmark),
	}
}

func (m *MockBookmarkStore) LoadBookmarks(ctx context.Context, uri string) ([]*domain.Bookmark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]*domain.Bookmark, len(m.custom[uri]))
	copy(out, m.custom[uri])
	sort.Slice(out, func(i, j int) bool { return out[i].CharacterIndex < out[j].CharacterIndex })
	return out, nil
}

func (m *MockBookmarkStore) CreateBookmark(ctx context.Context, bookmark *domain.Bookmark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, b := range m.custom[bookmark.URI] {
		if b.CharacterIndex == bookmark.CharacterIndex {
			return domain.ErrDuplicateOffset
		}
	}
	m.custom[bookmark.URI] = append(m.custom[bookmark.URI], bookmark)
	return nil
}

func (m *MockBookmarkStore) DeleteBookmark(ctx context.Context, uri, title string, characterIndex int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	list := m.custom[uri]
	for i, b := range list {
		if b.Title == title && b.CharacterIndex == characterIndex {
			m.custom[uri] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MockBookmarkStore) LoadLastRead(ctx context.Context, uri string) (*domain.Bookmark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	b, ok := m.lastRead[uri]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

func (m *MockBookmarkStore) SaveLastRead(ctx context.Context, uri, title string, characterIndex int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.lastRead[uri] = domain.NewLastReadBookmark(uri, title, characterIndex)
	return nil
}

// MockHistoryStore is a mock implementation of HistoryStore for testing
type MockHistoryStore struct {
	mu      sync.RWMutex
	entries map[string]*domain.HistoryEntry
}

// NewMockHistoryStore creates a new MockHistoryStore
func NewMockHistoryStore() *MockHistoryStore {
	return &MockHistoryStore{
		entries: make(map[string]*domain.HistoryEntry),
	}
}

func (m *MockHistoryStore) UpsertHistory(ctx context.Context, entry *domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := *entry
	if e.OpenedAt.IsZero() {
		e.OpenedAt = time.Now()
	}
	m.entries[entry.URI] = &e
	return nil
}

func (m *MockHistoryStore) GetHistory(ctx context.Context, uri string) (*domain.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[uri]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

func (m *MockHistoryStore) ListHistory(ctx context.Context, limit int) ([]*domain.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.HistoryEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

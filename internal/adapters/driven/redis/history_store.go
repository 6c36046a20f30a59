package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.HistoryStore = (*HistoryStore)(nil)

const (
	historyKey       = "leaf:history"        // hash: uri -> entry JSON
	historyRecentKey = "leaf:history:recent" // sorted set: uri scored by opened_at millis
)

// HistoryStore implements driven.HistoryStore using Redis
type HistoryStore struct {
	client *redis.Client
}

// NewHistoryStore creates a new Redis-backed HistoryStore
func NewHistoryStore(client *redis.Client) *HistoryStore {
	return &HistoryStore{client: client}
}

// UpsertHistory creates or replaces the entry of a document
func (s *HistoryStore) UpsertHistory(ctx context.Context, entry *domain.HistoryEntry) error {
	e := *entry
	if e.OpenedAt.IsZero() {
		e.OpenedAt = time.Now()
	}
	data, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, historyKey, e.URI, data)
	pipe.ZAdd(ctx, historyRecentKey, redis.Z{Score: float64(e.OpenedAt.UnixMilli()), Member: e.URI})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save history entry: %w", err)
	}
	return nil
}

// GetHistory returns the entry of a document
func (s *HistoryStore) GetHistory(ctx context.Context, uri string) (*domain.HistoryEntry, error) {
	data, err := s.client.HGet(ctx, historyKey, uri).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history entry: %w", err)
	}

	var e domain.HistoryEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history entry: %w", err)
	}
	return &e, nil
}

// ListHistory returns entries most recently opened first
func (s *HistoryStore) ListHistory(ctx context.Context, limit int) ([]*domain.HistoryEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	uris, err := s.client.ZRevRange(ctx, historyRecentKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	if len(uris) == 0 {
		return []*domain.HistoryEntry{}, nil
	}

	values, err := s.client.HMGet(ctx, historyKey, uris...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history entries: %w", err)
	}

	entries := make([]*domain.HistoryEntry, 0, len(values))
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			// Recency index points at a removed entry
			continue
		}
		var e domain.HistoryEntry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BookmarkStore = (*BookmarkStore)(nil)

// maxDeleteAttempts bounds retries of a delete whose watched hash changed
const maxDeleteAttempts = 3

// deleteMatched runs between matching a bookmark and deleting it (test hook)
var deleteMatched = func() {}

const (
	// Key prefixes for Redis
	bookmarksPrefix = "leaf:bookmarks:" // hash: char_index -> bookmark JSON
	lastReadPrefix  = "leaf:lastread:"  // string: bookmark JSON
)

// BookmarkStore implements driven.BookmarkStore using Redis.
// Custom bookmarks of a document live in one hash keyed by offset, so HSETNX
// enforces one bookmark per offset.
type BookmarkStore struct {
	client *redis.Client
}

// NewBookmarkStore creates a new Redis-backed BookmarkStore
func NewBookmarkStore(client *redis.Client) *BookmarkStore {
	return &BookmarkStore{client: client}
}

// LoadBookmarks returns the custom bookmarks of a document ordered by offset
func (s *BookmarkStore) LoadBookmarks(ctx context.Context, uri string) ([]*domain.Bookmark, error) {
	values, err := s.client.HGetAll(ctx, bookmarksPrefix+uri).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load bookmarks: %w", err)
	}

	bookmarks := make([]*domain.Bookmark, 0, len(values))
	for _, data := range values {
		var b domain.Bookmark
		if err := json.Unmarshal([]byte(data), &b); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bookmark: %w", err)
		}
		bookmarks = append(bookmarks, &b)
	}
	sort.Slice(bookmarks, func(i, j int) bool {
		return bookmarks[i].CharacterIndex < bookmarks[j].CharacterIndex
	})
	return bookmarks, nil
}

// CreateBookmark stores a custom bookmark
func (s *BookmarkStore) CreateBookmark(ctx context.Context, bookmark *domain.Bookmark) error {
	b := *bookmark
	b.Type = domain.BookmarkTypeCustom
	data, err := json.Marshal(&b)
	if err != nil {
		return fmt.Errorf("failed to marshal bookmark: %w", err)
	}

	created, err := s.client.HSetNX(ctx, bookmarksPrefix+b.URI, offsetField(b.CharacterIndex), data).Result()
	if err != nil {
		return fmt.Errorf("failed to create bookmark: %w", err)
	}
	if !created {
		return domain.ErrDuplicateOffset
	}
	return nil
}

// DeleteBookmark removes a custom bookmark. The entry is watched between
// reading its title and deleting it, so a bookmark re-created at the same offset
// in between is left alone.
func (s *BookmarkStore) DeleteBookmark(ctx context.Context, uri, title string, characterIndex int64) error {
	key := bookmarksPrefix + uri
	field := offsetField(characterIndex)

	for attempt := 0; attempt < maxDeleteAttempts; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.HGet(ctx, key, field).Bytes()
			if err == redis.Nil {
				return domain.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to get bookmark: %w", err)
			}

			var b domain.Bookmark
			if err := json.Unmarshal(data, &b); err != nil {
				return fmt.Errorf("failed to unmarshal bookmark: %w", err)
			}
			if b.Title != title {
				return domain.ErrNotFound
			}
			deleteMatched()

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HDel(ctx, key, field)
				return nil
			})
			return err
		}, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("failed to delete bookmark: %w", redis.TxFailedErr)
}

// LoadLastRead returns the last-read bookmark of a document
func (s *BookmarkStore) LoadLastRead(ctx context.Context, uri string) (*domain.Bookmark, error) {
	data, err := s.client.Get(ctx, lastReadPrefix+uri).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last read: %w", err)
	}

	var b domain.Bookmark
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bookmark: %w", err)
	}
	return &b, nil
}

// SaveLastRead replaces the last-read bookmark of a document
func (s *BookmarkStore) SaveLastRead(ctx context.Context, uri, title string, characterIndex int64) error {
	data, err := json.Marshal(domain.NewLastReadBookmark(uri, title, characterIndex))
	if err != nil {
		return fmt.Errorf("failed to marshal bookmark: %w", err)
	}
	if err := s.client.Set(ctx, lastReadPrefix+uri, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save last read: %w", err)
	}
	return nil
}

func offsetField(characterIndex int64) string {
	return strconv.FormatInt(characterIndex, 10)
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appnyang/leafreader/internal/core/domain"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "leafreader.db")
	db, err := Open(context.Background(), DefaultConfig(path))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_SchemaIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.InitSchema(context.Background()))
}

func TestBookmarkStore_CustomBookmarks(t *testing.T) {
	store := NewBookmarkStore(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.CreateBookmark(ctx, domain.NewBookmark("book.txt", "later", 300)))
	require.NoError(t, store.CreateBookmark(ctx, domain.NewBookmark("book.txt", "earlier", 20)))
	require.NoError(t, store.CreateBookmark(ctx, domain.NewBookmark("other.txt", "elsewhere", 20)))

	got, err := store.LoadBookmarks(ctx, "book.txt")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "earlier", got[0].Title)
	assert.Equal(t, int64(20), got[0].CharacterIndex)
	assert.Equal(t, domain.BookmarkTypeCustom, got[0].Type)
	assert.Equal(t, "later", got[1].Title)

	err = store.CreateBookmark(ctx, domain.NewBookmark("book.txt", "again", 300))
	assert.ErrorIs(t, err, domain.ErrDuplicateOffset)

	require.NoError(t, store.DeleteBookmark(ctx, "book.txt", "later", 300))
	err = store.DeleteBookmark(ctx, "book.txt", "later", 300)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err = store.LoadBookmarks(ctx, "book.txt")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestBookmarkStore_LastRead(t *testing.T) {
	store := NewBookmarkStore(setupTestDB(t))
	ctx := context.Background()

	_, err := store.LoadLastRead(ctx, "book.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.SaveLastRead(ctx, "book.txt", domain.LastReadTitle, 100))
	require.NoError(t, store.SaveLastRead(ctx, "book.txt", domain.LastReadTitle, 250))

	b, err := store.LoadLastRead(ctx, "book.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(250), b.CharacterIndex)
	assert.True(t, b.IsLastRead())

	// A custom bookmark may share the offset of the last-read position
	require.NoError(t, store.CreateBookmark(ctx, domain.NewBookmark("book.txt", "here", 250)))
	custom, err := store.LoadBookmarks(ctx, "book.txt")
	require.NoError(t, err)
	assert.Len(t, custom, 1)
}

func TestHistoryStore(t *testing.T) {
	store := NewHistoryStore(setupTestDB(t))
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, store.UpsertHistory(ctx, &domain.HistoryEntry{URI: "a.txt", Title: "a", OpenedAt: base}))
	require.NoError(t, store.UpsertHistory(ctx, &domain.HistoryEntry{URI: "b.txt", Title: "b", OpenedAt: base.Add(time.Minute)}))
	require.NoError(t, store.UpsertHistory(ctx, &domain.HistoryEntry{URI: "a.txt", Title: "a", LastOffset: 42, OpenedAt: base.Add(2 * time.Minute)}))

	e, err := store.GetHistory(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(42), e.LastOffset)
	assert.Equal(t, base.Add(2*time.Minute).UnixMilli(), e.OpenedAt.UnixMilli())

	list, err := store.ListHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a.txt", list[0].URI)
	assert.Equal(t, "b.txt", list[1].URI)

	list, err = store.ListHistory(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = store.GetHistory(ctx, "missing.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

package driven

import (
	"context"

	"github.com/appnyang/leafreader/internal/core/domain"
)

// BookmarkStore handles bookmark persistence.
// Custom bookmarks are unique per (uri, character index); each uri has at most
// one last-read bookmark.
type BookmarkStore interface {
	// LoadBookmarks returns the custom bookmarks of a document ordered by character index
	LoadBookmarks(ctx context.Context, uri string) ([]*domain.Bookmark, error)

	// CreateBookmark stores a custom bookmark.
	// Returns domain.ErrDuplicateOffset if the offset is already bookmarked.
	CreateBookmark(ctx context.Context, bookmark *domain.Bookmark) error

	// DeleteBookmark removes the custom bookmark with that title and offset
	DeleteBookmark(ctx context.Context, uri, title string, characterIndex int64) error

	// LoadLastRead returns the last-read bookmark or domain.ErrNotFound
	LoadLastRead(ctx context.Context, uri string) (*domain.Bookmark, error)

	// SaveLastRead replaces the last-read bookmark of a document
	SaveLastRead(ctx context.Context, uri, title string, characterIndex int64) error
}

// HistoryStore handles the list of previously opened documents
type HistoryStore interface {
	// UpsertHistory creates or replaces the entry for entry.URI
	UpsertHistory(ctx context.Context, entry *domain.HistoryEntry) error

	// GetHistory returns the entry of a document or domain.ErrNotFound
	GetHistory(ctx context.Context, uri string) (*domain.HistoryEntry, error)

	// ListHistory returns entries most recently opened first
	ListHistory(ctx context.Context, limit int) ([]*domain.HistoryEntry, error)
}

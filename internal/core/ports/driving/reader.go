package driving

import (
	"context"

	"github.com/appnyang/leafreader/internal/core/domain"
)

// ReaderService is the reading surface: one open book at a time, its pages,
// bookmarks and reading history.
type ReaderService interface {
	// Open opens a document, resuming at its last-read position if one was saved.
	// Returns once the first batch of pages is available.
	Open(ctx context.Context, uri string, params domain.LayoutParams) (*domain.ReaderStatus, error)

	// OpenAt opens a document positioned at a character offset
	OpenAt(ctx context.Context, uri string, params domain.LayoutParams, offset int64) (*domain.ReaderStatus, error)

	// OpenFromHistory reopens a document at the offset recorded in its history entry.
	// Returns domain.ErrNotFound if the document was never opened.
	OpenFromHistory(ctx context.Context, uri string, params domain.LayoutParams) (*domain.ReaderStatus, error)

	// Close saves the last-read position and history of the open book and stops pagination
	Close(ctx context.Context) error

	// Status returns the state of the open book
	Status() (*domain.ReaderStatus, error)

	// GoToPage moves to a page index, clamped to the pages produced so far
	GoToPage(page int) (*domain.ReaderStatus, error)

	// GoToOffset moves to the page containing a character offset, possibly deferred
	GoToOffset(offset int64) (*domain.ReaderStatus, error)

	// NextPage moves one page forward
	NextPage() (*domain.ReaderStatus, error)

	// PrevPage moves one page back
	PrevPage() (*domain.ReaderStatus, error)

	// PageText returns the text of a page of the open book
	PageText(ctx context.Context, page int) (string, error)

	// AddBookmark bookmarks the start of the current page.
	// An empty title is derived from the page text.
	AddBookmark(ctx context.Context, title string) (*domain.Bookmark, error)

	// DeleteBookmark removes a custom bookmark of the open book
	DeleteBookmark(ctx context.Context, title string, characterIndex int64) error

	// Bookmarks lists the custom bookmarks of the open book
	Bookmarks(ctx context.Context) ([]*domain.Bookmark, error)

	// History lists recently opened documents, most recent first
	History(ctx context.Context, limit int) ([]*domain.HistoryEntry, error)

	// Subscribe streams page events of the open book. The returned function unsubscribes.
	Subscribe() (<-chan domain.PageEvent, func())
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BookmarkStore = (*BookmarkStore)(nil)

const bookmarkColumns = `id, uri, title, char_index, type, created_at`

// Custom bookmarks are unique per (uri, char_index) and the last-read
// bookmark per uri, through the partial indexes in schema.sql.
const (
	loadBookmarksSQL = `SELECT ` + bookmarkColumns + ` FROM bookmarks
		WHERE uri = $1 AND type = 'CUSTOM'
		ORDER BY char_index`
	createBookmarkSQL = `INSERT INTO bookmarks (` + bookmarkColumns + `)
		VALUES ($1, $2, $3, $4, 'CUSTOM', $5)`
	deleteBookmarkSQL = `DELETE FROM bookmarks
		WHERE uri = $1 AND title = $2 AND char_index = $3 AND type = 'CUSTOM'`
	loadLastReadSQL = `SELECT ` + bookmarkColumns + ` FROM bookmarks
		WHERE uri = $1 AND type = 'LAST_READ'`
	clearLastReadSQL  = `DELETE FROM bookmarks WHERE uri = $1 AND type = 'LAST_READ'`
	insertLastReadSQL = `INSERT INTO bookmarks (` + bookmarkColumns + `)
		VALUES ($1, $2, $3, $4, 'LAST_READ', $5)`
)

// BookmarkStore implements driven.BookmarkStore using PostgreSQL
type BookmarkStore struct {
	db *DB
}

// NewBookmarkStore creates a new BookmarkStore
func NewBookmarkStore(db *DB) *BookmarkStore {
	return &BookmarkStore{db: db}
}

// LoadBookmarks returns the custom bookmarks of a document ordered by offset
func (s *BookmarkStore) LoadBookmarks(ctx context.Context, uri string) ([]*domain.Bookmark, error) {
	rows, err := s.db.QueryContext(ctx, loadBookmarksSQL, uri)
	if err != nil {
		return nil, fmt.Errorf("load bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []*domain.Bookmark
	for rows.Next() {
		var b domain.Bookmark
		if err := rows.Scan(&b.ID, &b.URI, &b.Title, &b.CharacterIndex, &b.Type, &b.CreatedAt); err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, &b)
	}
	return bookmarks, rows.Err()
}

// CreateBookmark stores a custom bookmark
func (s *BookmarkStore) CreateBookmark(ctx context.Context, bookmark *domain.Bookmark) error {
	_, err := s.db.ExecContext(ctx, createBookmarkSQL,
		bookmark.ID,
		bookmark.URI,
		bookmark.Title,
		bookmark.CharacterIndex,
		bookmark.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateOffset
	}
	return err
}

// DeleteBookmark removes a custom bookmark
func (s *BookmarkStore) DeleteBookmark(ctx context.Context, uri, title string, characterIndex int64) error {
	result, err := s.db.ExecContext(ctx, deleteBookmarkSQL, uri, title, characterIndex)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// LoadLastRead returns the last-read bookmark of a document
func (s *BookmarkStore) LoadLastRead(ctx context.Context, uri string) (*domain.Bookmark, error) {
	var b domain.Bookmark
	err := s.db.QueryRowContext(ctx, loadLastReadSQL, uri).Scan(
		&b.ID,
		&b.URI,
		&b.Title,
		&b.CharacterIndex,
		&b.Type,
		&b.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// SaveLastRead replaces the last-read bookmark of a document
func (s *BookmarkStore) SaveLastRead(ctx context.Context, uri, title string, characterIndex int64) error {
	b := domain.NewLastReadBookmark(uri, title, characterIndex)
	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, clearLastReadSQL, uri); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, insertLastReadSQL, b.ID, b.URI, b.Title, b.CharacterIndex, b.CreatedAt)
		return err
	})
}

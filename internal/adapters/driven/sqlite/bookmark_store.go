package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BookmarkStore = (*BookmarkStore)(nil)

// BookmarkStore implements driven.BookmarkStore using SQLite
type BookmarkStore struct {
	db *DB
}

// NewBookmarkStore creates a new BookmarkStore
func NewBookmarkStore(db *DB) *BookmarkStore {
	return &BookmarkStore{db: db}
}

// LoadBookmarks returns the custom bookmarks of a document ordered by offset
func (s *BookmarkStore) LoadBookmarks(ctx context.Context, uri string) ([]*domain.Bookmark, error) {
	query := `
		SELECT id, uri, title, char_index, type, created_at
		FROM bookmarks
		WHERE uri = ? AND type = 'CUSTOM'
		ORDER BY char_index
	`

	rows, err := s.db.QueryContext(ctx, query, uri)
	if err != nil {
		return nil, fmt.Errorf("load bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []*domain.Bookmark
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

// CreateBookmark stores a custom bookmark
func (s *BookmarkStore) CreateBookmark(ctx context.Context, bookmark *domain.Bookmark) error {
	query := `
		INSERT INTO bookmarks (id, uri, title, char_index, type, created_at)
		VALUES (?, ?, ?, ?, 'CUSTOM', ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		bookmark.ID,
		bookmark.URI,
		bookmark.Title,
		bookmark.CharacterIndex,
		bookmark.CreatedAt.UnixMilli(),
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateOffset
	}
	return err
}

// DeleteBookmark removes a custom bookmark
func (s *BookmarkStore) DeleteBookmark(ctx context.Context, uri, title string, characterIndex int64) error {
	query := `DELETE FROM bookmarks WHERE uri = ? AND title = ? AND char_index = ? AND type = 'CUSTOM'`

	result, err := s.db.ExecContext(ctx, query, uri, title, characterIndex)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// LoadLastRead returns the last-read bookmark of a document
func (s *BookmarkStore) LoadLastRead(ctx context.Context, uri string) (*domain.Bookmark, error) {
	query := `
		SELECT id, uri, title, char_index, type, created_at
		FROM bookmarks
		WHERE uri = ? AND type = 'LAST_READ'
	`

	b, err := scanBookmark(s.db.QueryRowContext(ctx, query, uri))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return b, err
}

// SaveLastRead replaces the last-read bookmark of a document
func (s *BookmarkStore) SaveLastRead(ctx context.Context, uri, title string, characterIndex int64) error {
	b := domain.NewLastReadBookmark(uri, title, characterIndex)
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bookmarks WHERE uri = ? AND type = 'LAST_READ'`, uri); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bookmarks (id, uri, title, char_index, type, created_at)
			VALUES (?, ?, ?, ?, 'LAST_READ', ?)
		`, b.ID, b.URI, b.Title, b.CharacterIndex, b.CreatedAt.UnixMilli())
		return err
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBookmark(row scanner) (*domain.Bookmark, error) {
	var b domain.Bookmark
	var createdAt int64
	if err := row.Scan(&b.ID, &b.URI, &b.Title, &b.CharacterIndex, &b.Type, &createdAt); err != nil {
		return nil, err
	}
	b.CreatedAt = time.UnixMilli(createdAt)
	return &b, nil
}

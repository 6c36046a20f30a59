package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.HistoryStore = (*HistoryStore)(nil)

// HistoryStore implements driven.HistoryStore using SQLite
type HistoryStore struct {
	db *DB
}

// NewHistoryStore creates a new HistoryStore
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// UpsertHistory creates or replaces the entry of a document
func (s *HistoryStore) UpsertHistory(ctx context.Context, entry *domain.HistoryEntry) error {
	openedAt := entry.OpenedAt
	if openedAt.IsZero() {
		openedAt = time.Now()
	}

	query := `
		INSERT INTO history (uri, title, last_offset, opened_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (uri) DO UPDATE SET
			title = excluded.title,
			last_offset = excluded.last_offset,
			opened_at = excluded.opened_at
	`
	_, err := s.db.ExecContext(ctx, query, entry.URI, entry.Title, entry.LastOffset, openedAt.UnixMilli())
	return err
}

// GetHistory returns the entry of a document
func (s *HistoryStore) GetHistory(ctx context.Context, uri string) (*domain.HistoryEntry, error) {
	query := `SELECT uri, title, last_offset, opened_at FROM history WHERE uri = ?`

	e, err := scanHistory(s.db.QueryRowContext(ctx, query, uri))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return e, err
}

// ListHistory returns entries most recently opened first
func (s *HistoryStore) ListHistory(ctx context.Context, limit int) ([]*domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT uri, title, last_offset, opened_at FROM history ORDER BY opened_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.HistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanHistory(row scanner) (*domain.HistoryEntry, error) {
	var e domain.HistoryEntry
	var openedAt int64
	if err := row.Scan(&e.URI, &e.Title, &e.LastOffset, &openedAt); err != nil {
		return nil, err
	}
	e.OpenedAt = time.UnixMilli(openedAt)
	return &e, nil
}

package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.HistoryStore = (*HistoryStore)(nil)

const (
	upsertHistorySQL = `INSERT INTO history (uri, title, last_offset, opened_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (uri) DO UPDATE SET
			title = EXCLUDED.title,
			last_offset = EXCLUDED.last_offset,
			opened_at = EXCLUDED.opened_at`
	getHistorySQL  = `SELECT uri, title, last_offset, opened_at FROM history WHERE uri = $1`
	listHistorySQL = `SELECT uri, title, last_offset, opened_at FROM history ORDER BY opened_at DESC`
)

// listHistoryQuery bounds the listing only for a positive limit
func listHistoryQuery(limit int) (string, []any) {
	if limit <= 0 {
		return listHistorySQL, nil
	}
	return listHistorySQL + ` LIMIT $1`, []any{limit}
}

// HistoryStore implements driven.HistoryStore using PostgreSQL
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

	_, err := s.db.ExecContext(ctx, upsertHistorySQL, entry.URI, entry.Title, entry.LastOffset, openedAt)
	return err
}

// GetHistory returns the entry of a document
func (s *HistoryStore) GetHistory(ctx context.Context, uri string) (*domain.HistoryEntry, error) {
	var e domain.HistoryEntry
	err := s.db.QueryRowContext(ctx, getHistorySQL, uri).Scan(&e.URI, &e.Title, &e.LastOffset, &e.OpenedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListHistory returns entries most recently opened first
func (s *HistoryStore) ListHistory(ctx context.Context, limit int) ([]*domain.HistoryEntry, error) {
	query, args := listHistoryQuery(limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		if err := rows.Scan(&e.URI, &e.Title, &e.LastOffset, &e.OpenedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

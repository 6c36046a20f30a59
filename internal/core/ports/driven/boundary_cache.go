package driven

import (
	"context"

	"github.com/appnyang/leafreader/internal/core/domain"
)

// BoundaryCache keeps the page boundaries of fully paginated documents.
// Keys are layout fingerprints; values are page spans without text.
type BoundaryCache interface {
	// Get returns the cached spans or domain.ErrNotFound
	Get(ctx context.Context, key string) ([]domain.Page, error)

	// Put stores the spans of a complete pagination
	Put(ctx context.Context, key string, pages []domain.Page) error
}

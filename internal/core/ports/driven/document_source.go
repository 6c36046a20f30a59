package driven

import (
	"context"
	"io"

	"github.com/appnyang/leafreader/internal/core/domain"
)

// DocumentSource provides streaming access to plain-text documents by URI.
// Readers yield the document as UTF-8; byte offsets refer to that decoded stream.
type DocumentSource interface {
	// Stat describes the document without reading it
	Stat(ctx context.Context, uri string) (*domain.DocumentInfo, error)

	// Open returns a sequential reader positioned at the start of the document
	Open(ctx context.Context, uri string) (io.ReadCloser, error)

	// OpenAt returns a reader positioned at a byte offset of the decoded stream.
	// Returns domain.ErrSeekUnsupported when the source can only be read from the start.
	OpenAt(ctx context.Context, uri string, byteOffset int64) (io.ReadCloser, error)
}

package mocks

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/appnyang/leafreader/internal/core/domain"
)

// ErrInjectedRead is returned by readers of a MockDocumentSource configured with FailAfter
var ErrInjectedRead = errors.New("injected read failure")

// MockDocumentSource is an in-memory DocumentSource for testing
type MockDocumentSource struct {
	mu    sync.RWMutex
	docs  map[string]string
	mtime map[string]time.Time

	// Seekable controls whether OpenAt is supported
	Seekable bool
	// FailAfter, when positive, makes readers fail after that many bytes
	FailAfter int
	// Opens counts calls to Open and OpenAt
	Opens int
	// Decoding is reported by Stat
	Decoding string
}

// NewMockDocumentSource creates a new seekable MockDocumentSource
func NewMockDocumentSource() *MockDocumentSource {
	return &MockDocumentSource{
		docs:     make(map[string]string),
		mtime:    make(map[string]time.Time),
		Seekable: true,
	}
}

// Put adds or replaces a document
func (m *MockDocumentSource) Put(uri, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[uri] = text
	m.mtime[uri] = time.Unix(int64(len(m.mtime)+1), 0)
}

func (m *MockDocumentSource) Stat(ctx context.Context, uri string) (*domain.DocumentInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.docs[uri]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.DocumentInfo{
		URI:      uri,
		Title:    uri,
		Size:     int64(len(text)),
		ModTime:  m.mtime[uri],
		Decoding: m.Decoding,
	}, nil
}

func (m *MockDocumentSource) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	return m.OpenAt(ctx, uri, 0)
}

func (m *MockDocumentSource) OpenAt(ctx context.Context, uri string, byteOffset int64) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if byteOffset > 0 && !m.Seekable {
		return nil, domain.ErrSeekUnsupported
	}
	text, ok := m.docs[uri]
	if !ok {
		return nil, domain.ErrNotFound
	}
	m.Opens++
	if byteOffset > int64(len(text)) {
		byteOffset = int64(len(text))
	}
	var r io.Reader = strings.NewReader(text[byteOffset:])
	if m.FailAfter > 0 {
		r = io.MultiReader(io.LimitReader(r, int64(m.FailAfter)), failingReader{})
	}
	return io.NopCloser(r), nil
}

// OpenCount returns how many readers have been opened
func (m *MockDocumentSource) OpenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Opens
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, ErrInjectedRead }

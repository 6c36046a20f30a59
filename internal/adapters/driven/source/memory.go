package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentSource = (*MemorySource)(nil)

// MemoryScheme prefixes URIs served by a MemorySource
const MemoryScheme = "mem://"

type memDoc struct {
	data    []byte
	modTime time.Time
}

// MemorySource serves documents held in memory, such as text piped on stdin
type MemorySource struct {
	mu   sync.RWMutex
	docs map[string]memDoc
}

// NewMemorySource creates an empty memory source
func NewMemorySource() *MemorySource {
	return &MemorySource{
		docs: make(map[string]memDoc),
	}
}

// Put stores a document and returns its URI
func (s *MemorySource) Put(name string, data []byte) string {
	uri := MemoryScheme + strings.TrimPrefix(name, MemoryScheme)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = memDoc{data: bytes.TrimPrefix(data, bomUTF8), modTime: time.Now()}
	return uri
}

// Load reads r to the end and stores it as a document
func (s *MemorySource) Load(name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrDocumentUnreadable, err)
	}
	return s.Put(name, data), nil
}

func (s *MemorySource) get(uri string) (memDoc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	if !ok {
		return memDoc{}, fmt.Errorf("%s: %w", uri, domain.ErrNotFound)
	}
	return doc, nil
}

func (s *MemorySource) Stat(ctx context.Context, uri string) (*domain.DocumentInfo, error) {
	doc, err := s.get(uri)
	if err != nil {
		return nil, err
	}
	return &domain.DocumentInfo{
		URI:      uri,
		Title:    strings.TrimPrefix(uri, MemoryScheme),
		Size:     int64(len(doc.data)),
		ModTime:  doc.modTime,
		Decoding: "utf-8",
	}, nil
}

func (s *MemorySource) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	return s.OpenAt(ctx, uri, 0)
}

func (s *MemorySource) OpenAt(ctx context.Context, uri string, byteOffset int64) (io.ReadCloser, error) {
	doc, err := s.get(uri)
	if err != nil {
		return nil, err
	}
	if byteOffset < 0 || byteOffset > int64(len(doc.data)) {
		return nil, fmt.Errorf("%w: offset %d outside document", domain.ErrInvalidInput, byteOffset)
	}
	return io.NopCloser(bytes.NewReader(doc.data[byteOffset:])), nil
}

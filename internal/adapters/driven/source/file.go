package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentSource = (*FileSource)(nil)

const defaultSniffSize = 8 * 1024

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// FileSourceConfig holds configuration for the local file source
type FileSourceConfig struct {
	// FallbackEncoding decodes files that are not valid UTF-8 (e.g. "euc-kr", "shift_jis").
	// Empty means invalid bytes are replaced with U+FFFD.
	FallbackEncoding string
	SniffSize        int // Bytes inspected to detect the encoding (default: 8 KiB)

	// DocumentRoot, when set, confines documents to this directory. Relative paths
	// resolve against it; paths leaving it, directly or through symlinks, are rejected.
	DocumentRoot string

	Logger *slog.Logger
}

// FileSource reads plain-text documents from the local filesystem.
// UTF-8 files are seekable; files that need transcoding are not.
type FileSource struct {
	fallback     encoding.Encoding
	fallbackName string
	sniffSize    int
	root         string // Absolute, symlinks evaluated; empty means unconfined
	logger       *slog.Logger
}

// NewFileSource creates a file source
func NewFileSource(cfg FileSourceConfig) (*FileSource, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SniffSize <= 0 {
		cfg.SniffSize = defaultSniffSize
	}

	s := &FileSource{
		sniffSize: cfg.SniffSize,
		logger:    logger.With("component", "file_source"),
	}
	if cfg.FallbackEncoding != "" {
		enc, err := htmlindex.Get(cfg.FallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown encoding %q", domain.ErrInvalidInput, cfg.FallbackEncoding)
		}
		s.fallback = enc
		s.fallbackName = cfg.FallbackEncoding
	}
	if cfg.DocumentRoot != "" {
		root, err := filepath.Abs(cfg.DocumentRoot)
		if err == nil {
			root, err = filepath.EvalSymlinks(root)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: document root: %w", domain.ErrInvalidInput, err)
		}
		s.root = root
	}
	return s, nil
}

// textEncoding is what sniffing concluded about a file
type textEncoding struct {
	name    string
	skip    int64             // Leading BOM bytes not part of the text
	decoder *encoding.Decoder // nil for UTF-8
}

func (e textEncoding) seekable() bool {
	return e.decoder == nil
}

// Stat describes the file at uri, including the decoding Open will apply
func (s *FileSource) Stat(ctx context.Context, uri string) (*domain.DocumentInfo, error) {
	path, err := s.resolve(uri)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, statError(uri, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrDocumentUnreadable, uri)
	}

	f, enc, err := s.open(uri)
	if err != nil {
		return nil, err
	}
	f.Close()

	return &domain.DocumentInfo{
		URI:      uri,
		Title:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Size:     fi.Size(),
		ModTime:  fi.ModTime(),
		Decoding: enc.name,
	}, nil
}

// Open returns a UTF-8 reader over the whole document
func (s *FileSource) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	f, enc, err := s.open(uri)
	if err != nil {
		return nil, err
	}
	if enc.skip > 0 {
		if _, err := f.Seek(enc.skip, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("skip byte order mark: %w", err)
		}
	}
	if enc.decoder != nil {
		s.logger.Debug("transcoding document", "uri", uri, "encoding", enc.name)
		return &readCloser{Reader: enc.decoder.Reader(f), Closer: f}, nil
	}
	return f, nil
}

// OpenAt returns a reader positioned at byteOffset of the decoded stream
func (s *FileSource) OpenAt(ctx context.Context, uri string, byteOffset int64) (io.ReadCloser, error) {
	f, enc, err := s.open(uri)
	if err != nil {
		return nil, err
	}
	if !enc.seekable() && byteOffset > 0 {
		f.Close()
		return nil, domain.ErrSeekUnsupported
	}
	if !enc.seekable() {
		return &readCloser{Reader: enc.decoder.Reader(f), Closer: f}, nil
	}
	if _, err := f.Seek(enc.skip+byteOffset, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: seek to %d: %w", domain.ErrDocumentUnreadable, byteOffset, err)
	}
	return f, nil
}

func (s *FileSource) open(uri string) (*os.File, textEncoding, error) {
	path, err := s.resolve(uri)
	if err != nil {
		return nil, textEncoding{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, textEncoding{}, statError(uri, err)
	}

	enc, err := s.sniff(f)
	if err != nil {
		f.Close()
		return nil, textEncoding{}, fmt.Errorf("%s: %w", uri, err)
	}
	return f, enc, nil
}

// sniff inspects the head of the file to choose a decoder
func (s *FileSource) sniff(f *os.File) (textEncoding, error) {
	head := make([]byte, s.sniffSize)
	n, err := f.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return textEncoding{}, fmt.Errorf("%w: %w", domain.ErrDocumentUnreadable, withoutPath(err))
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, bomUTF8):
		return textEncoding{name: "utf-8", skip: int64(len(bomUTF8))}, nil
	case bytes.HasPrefix(head, bomUTF16LE):
		return textEncoding{name: "utf-16le", decoder: unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()}, nil
	case bytes.HasPrefix(head, bomUTF16BE):
		return textEncoding{name: "utf-16be", decoder: unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()}, nil
	case bytes.IndexByte(head, 0) >= 0:
		return textEncoding{}, fmt.Errorf("%w: binary content", domain.ErrDocumentUnreadable)
	case validUTF8Head(head, n < s.sniffSize):
		return textEncoding{name: "utf-8"}, nil
	case s.fallback != nil:
		return textEncoding{name: s.fallbackName, decoder: s.fallback.NewDecoder()}, nil
	default:
		return textEncoding{name: "utf-8"}, nil
	}
}

// validUTF8Head reports whether head is valid UTF-8, allowing a rune cut off by
// the end of the sniff window.
func validUTF8Head(head []byte, complete bool) bool {
	if utf8.Valid(head) {
		return true
	}
	if complete {
		return false
	}
	for cut := 1; cut < utf8.UTFMax && cut <= len(head); cut++ {
		if utf8.Valid(head[:len(head)-cut]) {
			return true
		}
	}
	return false
}

// resolve maps uri to a filesystem path inside the document root
func (s *FileSource) resolve(uri string) (string, error) {
	path, err := pathFromURI(uri)
	if err != nil || s.root == "" {
		return path, err
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	path = filepath.Clean(path)
	if !within(s.root, path) {
		return "", fmt.Errorf("%w: %s is outside the document root", domain.ErrInvalidInput, uri)
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", statError(uri, err)
	}
	if !within(s.root, resolved) {
		return "", fmt.Errorf("%w: %s is outside the document root", domain.ErrInvalidInput, uri)
	}
	return resolved, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func pathFromURI(uri string) (string, error) {
	if uri == "" {
		return "", fmt.Errorf("%w: empty uri", domain.ErrInvalidInput)
	}
	if !strings.HasPrefix(uri, "file://") {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return u.Path, nil
}

// statError reports err against the uri the caller asked for, so resolved
// filesystem paths stay out of messages
func statError(uri string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", uri, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", uri, domain.ErrDocumentUnreadable, withoutPath(err))
}

func withoutPath(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	return err
}

type readCloser struct {
	io.Reader
	io.Closer
}

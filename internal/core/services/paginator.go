package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"

	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driven"
)

const (
	defaultChunkSize       = 32 * 1024
	defaultFirstBatchPages = 4
	defaultEventBuffer     = 16
	defaultTextCacheSize   = 256
)

// PaginatorConfig holds configuration for the pagination engine
type PaginatorConfig struct {
	Source          driven.DocumentSource
	Measurer        driven.LayoutMeasurer
	Cache           driven.BoundaryCache // Optional: reuse boundaries of unchanged documents
	Logger          *slog.Logger
	ChunkSize       int // Bytes decoded per unit of work (default: 32 KiB)
	FirstBatchPages int // Minimum pages in the first batch (default: 4)
	EventBuffer     int // Capacity of a session's event channel (default: 16)
	TextCacheSize   int // Page texts kept in memory per session (default: 256)
}

// Paginator splits documents into viewport-sized pages.
// Each Open starts an independent Session.
type Paginator struct {
	source          driven.DocumentSource
	measurer        driven.LayoutMeasurer
	cache           driven.BoundaryCache
	logger          *slog.Logger
	chunkSize       int
	firstBatchPages int
	eventBuffer     int
	textCacheSize   int
}

// NewPaginator creates a new pagination engine
func NewPaginator(cfg PaginatorConfig) *Paginator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.FirstBatchPages <= 0 {
		cfg.FirstBatchPages = defaultFirstBatchPages
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	if cfg.TextCacheSize <= 0 {
		cfg.TextCacheSize = defaultTextCacheSize
	}

	return &Paginator{
		source:          cfg.Source,
		measurer:        cfg.Measurer,
		cache:           cfg.Cache,
		logger:          logger.With("component", "paginator"),
		chunkSize:       cfg.ChunkSize,
		firstBatchPages: cfg.FirstBatchPages,
		eventBuffer:     cfg.EventBuffer,
		textCacheSize:   cfg.TextCacheSize,
	}
}

// MeasurerID returns the identifier of the configured layout measurer
func (p *Paginator) MeasurerID() string {
	return p.measurer.ID()
}

// Open starts paginating uri against params. The returned session emits exactly one
// first batch containing the page at resumeOffset, then appends until the document is
// complete or the session fails or is closed.
// Errors opening the document are returned directly and no session is created.
func (p *Paginator) Open(ctx context.Context, uri string, params domain.LayoutParams, resumeOffset int64) (*Session, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if v, ok := p.measurer.(driven.LayoutValidator); ok {
		if err := v.Validate(params); err != nil {
			return nil, err
		}
	}
	if resumeOffset < 0 {
		resumeOffset = 0
	}

	info, err := p.source.Stat(ctx, uri)
	if err != nil {
		return nil, unreadable(err, "stat %s", uri)
	}

	texts, err := lru.New(p.textCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create page text cache: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		id:              uuid.NewString(),
		uri:             uri,
		info:            *info,
		params:          params,
		resume:          resumeOffset,
		source:          p.source,
		measurer:        p.measurer,
		cache:           p.cache,
		chunkSize:       p.chunkSize,
		firstBatchPages: p.firstBatchPages,
		index:           newPositionIndex(),
		texts:           texts,
		events:          make(chan domain.PageEvent, p.eventBuffer),
		cancel:          cancel,
		done:            make(chan struct{}),
	}
	s.logger = p.logger.With("session_id", s.id, "uri", uri)

	if p.cache != nil && info.Size >= 0 {
		s.cacheKey = layoutFingerprint(info, params, p.measurer.ID())
		spans, err := p.cache.Get(ctx, s.cacheKey)
		switch {
		case err == nil && len(spans) > 0:
			s.logger.Info("reusing cached page boundaries", "pages", len(spans))
			go s.runCached(runCtx, spans)
			return s, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			s.logger.Warn("boundary cache lookup failed", "error", err)
		}
	}

	rc, err := p.source.Open(ctx, uri)
	if err != nil {
		cancel()
		return nil, unreadable(err, "open %s", uri)
	}
	s.reader = bufio.NewReaderSize(rc, p.chunkSize)
	s.closer = rc

	go s.run(runCtx)
	return s, nil
}

// unreadable wraps err so that it matches domain.ErrDocumentUnreadable unless the
// document does not exist or the request itself was invalid.
func unreadable(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrDocumentUnreadable) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, domain.ErrDocumentUnreadable, err)
}

// Session is one pagination run of one document against one layout.
// All mutable pagination state is owned by the session goroutine; other goroutines
// observe progress through Events and Index.
type Session struct {
	id       string
	uri      string
	info     domain.DocumentInfo
	params   domain.LayoutParams
	resume   int64
	cacheKey string

	source          driven.DocumentSource
	measurer        driven.LayoutMeasurer
	cache           driven.BoundaryCache
	logger          *slog.Logger
	chunkSize       int
	firstBatchPages int

	index  *PositionIndex
	texts  *lru.Cache
	events chan domain.PageEvent

	// Pagination state, session goroutine only
	reader    *bufio.Reader
	closer    io.Closer
	buf       []rune
	sizes     []uint8 // Encoded UTF-8 length of each buffered rune
	scanChars int64   // Character offset of buf[0]
	scanBytes int64   // Byte offset of buf[0]
	eof       bool

	forced atomic.Int64

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	mu  sync.RWMutex
	err error
}

// ID returns the session identifier carried by every event of this session
func (s *Session) ID() string { return s.id }

// URI returns the document URI
func (s *Session) URI() string { return s.uri }

// Info returns the document metadata captured at open time
func (s *Session) Info() domain.DocumentInfo { return s.info }

// Params returns the layout the session paginates against
func (s *Session) Params() domain.LayoutParams { return s.params }

// ResumeOffset returns the character offset the session was opened at
func (s *Session) ResumeOffset() int64 { return s.resume }

// Events returns the session's event stream. The channel is closed when the
// session stops for any reason.
func (s *Session) Events() <-chan domain.PageEvent { return s.events }

// Index returns the position index backed by the session's pages
func (s *Session) Index() *PositionIndex { return s.index }

// IsComplete reports whether the whole document has been paginated
func (s *Session) IsComplete() bool { return s.index.Complete() }

// ForcedBreaks returns how many times the measurer reported no progress
func (s *Session) ForcedBreaks() int64 { return s.forced.Load() }

// Done is closed once the session goroutine has exited
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the error that failed the session, if any
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Close cancels pagination and waits for the session goroutine to exit.
// Events still buffered when Close is called are discarded.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		for range s.events {
		}
		s.logger.Debug("session closed", "pages", s.index.Len())
	})
}

// PageText returns the text of page i, reloading it from the source when it is no
// longer cached.
func (s *Session) PageText(ctx context.Context, i int) (string, error) {
	page, ok := s.index.Page(i)
	if !ok {
		return "", fmt.Errorf("%w: page %d", domain.ErrNotFound, i)
	}
	if v, ok := s.texts.Get(i); ok {
		return v.(string), nil
	}

	text, err := s.loadText(ctx, page)
	if err != nil {
		return "", err
	}
	s.texts.Add(i, text)
	return text, nil
}

func (s *Session) loadText(ctx context.Context, page domain.Page) (string, error) {
	rc, err := s.source.OpenAt(ctx, s.uri, page.ByteStart)
	if errors.Is(err, domain.ErrSeekUnsupported) {
		return s.rescanText(ctx, page)
	}
	if err != nil {
		return "", unreadable(err, "reopen %s at byte %d", s.uri, page.ByteStart)
	}
	defer rc.Close()

	r := bufio.NewReader(io.LimitReader(rc, page.ByteEnd-page.ByteStart))
	return readRunes(r, page.Len())
}

// rescanText decodes the document from the start up to the page, for sources whose
// decoded stream cannot be seeked.
func (s *Session) rescanText(ctx context.Context, page domain.Page) (string, error) {
	s.logger.Debug("re-scanning document for page text", "page", page.Index, "start", page.Start)

	rc, err := s.source.Open(ctx, s.uri)
	if err != nil {
		return "", unreadable(err, "reopen %s", s.uri)
	}
	defer rc.Close()

	r := bufio.NewReader(rc)
	for skipped := int64(0); skipped < page.Start; skipped++ {
		if skipped%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}
		if _, _, err := r.ReadRune(); err != nil {
			return "", unreadable(err, "skip to character %d", page.Start)
		}
	}
	return readRunes(r, page.Len())
}

func readRunes(r *bufio.Reader, n int64) (string, error) {
	var sb strings.Builder
	for i := int64(0); i < n; i++ {
		ch, _, err := r.ReadRune()
		if err == io.EOF {
			return "", fmt.Errorf("%w: document shorter than paginated", domain.ErrDocumentUnreadable)
		}
		if err != nil {
			return "", unreadable(err, "read page text")
		}
		sb.WriteRune(ch)
	}
	return sb.String(), nil
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)
	defer s.closer.Close()

	start := time.Now()
	s.logger.Info("pagination started", "resume_offset", s.resume, "measurer", s.measurer.ID())

	// First batch: enough pages to render and to cover the resume offset
	var first []domain.Page
	for !s.eof && !s.firstBatchReady() {
		pages, err := s.step(ctx)
		first = append(first, pages...)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Debug("pagination cancelled before first batch")
				return
			}
			s.fail(ctx, err, false, first)
			return
		}
	}
	if s.eof {
		s.index.markComplete()
	}

	if !s.emit(ctx, s.firstBatchEvent(first)) {
		return
	}
	s.logger.Debug("first batch emitted",
		"pages", len(first),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	// Background: one chunk per unit, one event per unit
	for !s.eof {
		pages, err := s.step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Debug("pagination cancelled", "pages", s.index.Len())
				return
			}
			s.fail(ctx, err, true, nil)
			return
		}
		if s.eof {
			s.index.markComplete()
		}
		if len(pages) == 0 && !s.eof {
			continue
		}
		if !s.emit(ctx, domain.PageEvent{
			SessionID: s.id,
			Kind:      domain.PageEventPagesAppended,
			Pages:     pages,
			PageCount: s.index.Len(),
			Complete:  s.eof,
		}) {
			return
		}
	}

	s.logger.Info("pagination complete",
		"pages", s.index.Len(),
		"characters", s.index.Length(),
		"forced_breaks", s.forced.Load(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.storeBoundaries(ctx)
}

// runCached replays boundaries from the cache as a single complete first batch
func (s *Session) runCached(ctx context.Context, spans []domain.Page) {
	defer close(s.done)
	defer close(s.events)

	s.index.append(spans)
	s.index.markComplete()
	s.emit(ctx, s.firstBatchEvent(s.index.Pages(0, s.index.Len())))
}

func (s *Session) firstBatchReady() bool {
	n := s.index.Len()
	if n < s.firstBatchPages {
		return false
	}
	last, _ := s.index.Page(n - 1)
	return last.End > s.resume
}

func (s *Session) firstBatchEvent(pages []domain.Page) domain.PageEvent {
	resumePage, ok := s.index.PageForOffset(s.resume)
	if !ok {
		resumePage = s.index.Len() - 1
	}
	if resumePage < 0 {
		resumePage = 0
	}
	return domain.PageEvent{
		SessionID:  s.id,
		Kind:       domain.PageEventFirstBatch,
		Pages:      pages,
		ResumePage: resumePage,
		PageCount:  s.index.Len(),
		Complete:   s.index.Complete(),
	}
}

// step runs one unit of work: decode one chunk and cut every page that is certain
func (s *Session) step(ctx context.Context) ([]domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.fill(); err != nil {
		return nil, err
	}
	return s.cutPages(), nil
}

func (s *Session) fill() error {
	read := 0
	for read < s.chunkSize {
		r, size, err := s.reader.ReadRune()
		if err == io.EOF {
			s.eof = true
			return nil
		}
		if err != nil {
			return unreadable(err, "read %s at byte %d", s.uri, s.scanBytes+int64(s.bufferedBytes()))
		}
		s.buf = append(s.buf, r)
		s.sizes = append(s.sizes, uint8(size))
		read += size
	}
	return nil
}

func (s *Session) bufferedBytes() int {
	n := 0
	for _, sz := range s.sizes {
		n += int(sz)
	}
	return n
}

// cutPages consumes measured pages from the front of the buffer. A page that would
// consume the whole buffer before end of input is held back, since more text could
// still fit on it.
func (s *Session) cutPages() []domain.Page {
	var pages []domain.Page
	base := s.index.Len()

	for len(s.buf) > 0 {
		n := s.measurer.Measure(s.buf, s.params)
		if n <= 0 {
			n = 1
			if s.forced.Add(1) == 1 {
				s.logger.Warn("measurer made no progress, forcing one character onto the page",
					"offset", s.scanChars,
				)
			} else {
				s.logger.Debug("forced page break", "offset", s.scanChars)
			}
		}
		if n > len(s.buf) {
			n = len(s.buf)
		}
		if n == len(s.buf) && !s.eof {
			break
		}

		var nbytes int64
		for _, sz := range s.sizes[:n] {
			nbytes += int64(sz)
		}
		page := domain.Page{
			Index:     base + len(pages),
			Start:     s.scanChars,
			End:       s.scanChars + int64(n),
			ByteStart: s.scanBytes,
			ByteEnd:   s.scanBytes + nbytes,
			Text:      string(s.buf[:n]),
		}
		pages = append(pages, page)
		s.texts.Add(page.Index, page.Text)

		s.buf = s.buf[n:]
		s.sizes = s.sizes[n:]
		s.scanChars = page.End
		s.scanBytes = page.ByteEnd
	}

	if len(pages) > 0 {
		s.buf = append(make([]rune, 0, len(s.buf)+s.chunkSize), s.buf...)
		s.sizes = append(make([]uint8, 0, len(s.sizes)+s.chunkSize), s.sizes...)
	}
	s.index.append(pages)
	return pages
}

// emit delivers ev unless the session has been cancelled
func (s *Session) emit(ctx context.Context, ev domain.PageEvent) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Session) fail(ctx context.Context, err error, firstSent bool, partial []domain.Page) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	s.logger.Error("pagination failed", "error", err, "pages", s.index.Len())

	// Pages produced before the failure stay valid; the first batch still leads
	if !firstSent {
		if !s.emit(ctx, s.firstBatchEvent(partial)) {
			return
		}
	}
	s.emit(ctx, domain.PageEvent{
		SessionID: s.id,
		Kind:      domain.PageEventFailed,
		PageCount: s.index.Len(),
		Err:       err,
	})
}

func (s *Session) storeBoundaries(ctx context.Context) {
	if s.cache == nil || s.cacheKey == "" {
		return
	}
	spans := s.index.Pages(0, s.index.Len())
	if err := s.cache.Put(ctx, s.cacheKey, spans); err != nil {
		s.logger.Warn("failed to cache page boundaries", "error", err)
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driven"
	"github.com/appnyang/leafreader/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.ReaderService = (*Reader)(nil)

const (
	defaultHistoryLimit     = 20
	defaultSubscriberBuffer = 64
)

// ReaderConfig holds configuration for the reader service
type ReaderConfig struct {
	Paginator     *Paginator
	Bookmarks     driven.BookmarkStore
	History       driven.HistoryStore
	Logger        *slog.Logger
	HistoryLimit  int             // Default limit for History (default: 20)
	OnPageChanged func(page int) // Optional: must not call back into the reader
}

// Reader implements the ReaderService interface
type Reader struct {
	paginator     *Paginator
	bookmarks     driven.BookmarkStore
	history       driven.HistoryStore
	logger        *slog.Logger
	historyLimit  int
	onPageChanged func(page int)

	// Serializes Open and Close
	openMu sync.Mutex

	mu      sync.Mutex
	book    *openBook
	subs    map[int]chan domain.PageEvent
	nextSub int
}

type openBook struct {
	session   *Session
	nav       *Navigator
	title     string
	ready     chan struct{} // Closed once the first batch has been applied
	readyOnce sync.Once
	pumpDone  chan struct{}
}

func (b *openBook) markReady() {
	b.readyOnce.Do(func() { close(b.ready) })
}

// NewReader creates a new reader service
func NewReader(cfg ReaderConfig) *Reader {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	return &Reader{
		paginator:     cfg.Paginator,
		bookmarks:     cfg.Bookmarks,
		history:       cfg.History,
		logger:        logger.With("component", "reader"),
		historyLimit:  cfg.HistoryLimit,
		onPageChanged: cfg.OnPageChanged,
		subs:          make(map[int]chan domain.PageEvent),
	}
}

// Open opens uri at its saved last-read position, or at the start
func (r *Reader) Open(ctx context.Context, uri string, params domain.LayoutParams) (*domain.ReaderStatus, error) {
	var resume int64
	last, err := r.bookmarks.LoadLastRead(ctx, uri)
	switch {
	case err == nil:
		resume = last.CharacterIndex
	case !errors.Is(err, domain.ErrNotFound):
		r.logger.Warn("failed to load last-read position", "uri", uri, "error", err)
	}
	return r.OpenAt(ctx, uri, params, resume)
}

// OpenFromHistory reopens a previously opened document at the offset its
// history entry recorded
func (r *Reader) OpenFromHistory(ctx context.Context, uri string, params domain.LayoutParams) (*domain.ReaderStatus, error) {
	entry, err := r.history.GetHistory(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", uri, err)
	}
	return r.OpenAt(ctx, uri, params, entry.LastOffset)
}

// OpenAt opens uri positioned at the page containing offset
func (r *Reader) OpenAt(ctx context.Context, uri string, params domain.LayoutParams, offset int64) (*domain.ReaderStatus, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: uri is required", domain.ErrInvalidInput)
	}

	r.openMu.Lock()
	defer r.openMu.Unlock()

	if err := r.closeBook(ctx); err != nil {
		r.logger.Warn("failed to save progress of previous book", "error", err)
	}

	session, err := r.paginator.Open(ctx, uri, params, offset)
	if err != nil {
		return nil, err
	}

	title := session.Info().Title
	if title == "" {
		title = path.Base(uri)
	}
	book := &openBook{
		session:  session,
		title:    title,
		ready:    make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
	book.nav = NewNavigator(NavigatorConfig{
		SessionID:     session.ID(),
		Index:         session.Index(),
		OnPageChanged: r.onPageChanged,
		Logger:        r.logger,
	})

	r.mu.Lock()
	r.book = book
	r.mu.Unlock()
	go r.pump(book)

	if err := r.history.UpsertHistory(ctx, &domain.HistoryEntry{
		URI:        uri,
		Title:      title,
		LastOffset: offset,
		OpenedAt:   time.Now(),
	}); err != nil {
		r.logger.Warn("failed to record history", "uri", uri, "error", err)
	}

	r.logger.Info("book opened", "uri", uri, "session_id", session.ID(), "resume_offset", offset)

	select {
	case <-book.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := session.Err(); err != nil && book.nav.PageCount() == 0 {
		r.mu.Lock()
		r.book = nil
		r.mu.Unlock()
		session.Close()
		<-book.pumpDone
		return nil, err
	}
	return r.Status()
}

// pump applies session events to the navigator and fans them out to subscribers.
// Events from a session that is no longer current are dropped.
func (r *Reader) pump(book *openBook) {
	defer close(book.pumpDone)
	defer book.markReady()

	for ev := range book.session.Events() {
		r.mu.Lock()
		if r.book != book || ev.SessionID != book.session.ID() {
			r.mu.Unlock()
			r.logger.Debug("dropping event of stale session", "session_id", ev.SessionID, "kind", ev.Kind)
			continue
		}
		book.nav.HandleEvent(ev)
		r.publish(ev)
		r.mu.Unlock()

		switch ev.Kind {
		case domain.PageEventFirstBatch:
			book.markReady()
		case domain.PageEventFailed:
			r.logger.Error("pagination of open book failed", "uri", book.session.URI(), "error", ev.Err)
		}
	}
}

// publish must be called with r.mu held
func (r *Reader) publish(ev domain.PageEvent) {
	for id, ch := range r.subs {
		select {
		case ch <- ev:
		default:
			r.logger.Warn("subscriber not keeping up, event dropped", "subscriber", id, "kind", ev.Kind)
		}
	}
}

// Subscribe streams page events of the current book
func (r *Reader) Subscribe() (<-chan domain.PageEvent, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSub
	r.nextSub++
	ch := make(chan domain.PageEvent, defaultSubscriberBuffer)
	r.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			close(ch)
			r.mu.Unlock()
		})
	}
}

// Close saves progress of the open book and stops its pagination
func (r *Reader) Close(ctx context.Context) error {
	r.openMu.Lock()
	defer r.openMu.Unlock()
	return r.closeBook(ctx)
}

func (r *Reader) closeBook(ctx context.Context) error {
	r.mu.Lock()
	book := r.book
	r.book = nil
	r.mu.Unlock()
	if book == nil {
		return nil
	}

	err := r.saveProgress(ctx, book)
	book.session.Close()
	<-book.pumpDone

	r.logger.Info("book closed", "uri", book.session.URI(), "session_id", book.session.ID())
	return err
}

func (r *Reader) saveProgress(ctx context.Context, book *openBook) error {
	uri := book.session.URI()
	offset, ok := book.nav.CurrentOffset()
	if !ok {
		// Nothing was paginated; keep the position the book was opened at
		offset = book.session.ResumeOffset()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := r.bookmarks.SaveLastRead(gctx, uri, domain.LastReadTitle, offset); err != nil {
			return fmt.Errorf("save last read: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := r.history.UpsertHistory(gctx, &domain.HistoryEntry{
			URI:        uri,
			Title:      book.title,
			LastOffset: offset,
			OpenedAt:   time.Now(),
		}); err != nil {
			return fmt.Errorf("update history: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (r *Reader) current() (*openBook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.book == nil {
		return nil, domain.ErrNoOpenBook
	}
	return r.book, nil
}

// Status returns the state of the open book
func (r *Reader) Status() (*domain.ReaderStatus, error) {
	book, err := r.current()
	if err != nil {
		return nil, err
	}
	return book.status(), nil
}

func (b *openBook) status() *domain.ReaderStatus {
	offset, _ := b.nav.CurrentOffset()
	st := &domain.ReaderStatus{
		SessionID:     b.session.ID(),
		URI:           b.session.URI(),
		Title:         b.title,
		CurrentPage:   b.nav.CurrentPage(),
		PageCount:     b.nav.PageCount(),
		CurrentOffset: offset,
		Length:        b.session.Index().Length(),
		SizeBytes:     b.session.Info().Size,
		Complete:      b.session.IsComplete(),
		Pending:       b.nav.Pending(),
		ForcedBreaks:  b.session.ForcedBreaks(),
	}
	if err := b.session.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

// GoToPage moves to page, clamped to the pages produced so far
func (r *Reader) GoToPage(page int) (*domain.ReaderStatus, error) {
	book, err := r.current()
	if err != nil {
		return nil, err
	}
	book.nav.GoToPage(page)
	return book.status(), nil
}

// GoToOffset moves to the page containing offset
func (r *Reader) GoToOffset(offset int64) (*domain.ReaderStatus, error) {
	book, err := r.current()
	if err != nil {
		return nil, err
	}
	book.nav.GoToOffset(offset)
	return book.status(), nil
}

// NextPage moves one page forward
func (r *Reader) NextPage() (*domain.ReaderStatus, error) {
	book, err := r.current()
	if err != nil {
		return nil, err
	}
	book.nav.GoToPage(book.nav.CurrentPage() + 1)
	return book.status(), nil
}

// PrevPage moves one page back
func (r *Reader) PrevPage() (*domain.ReaderStatus, error) {
	book, err := r.current()
	if err != nil {
		return nil, err
	}
	book.nav.GoToPage(book.nav.CurrentPage() - 1)
	return book.status(), nil
}

// PageText returns the text of page
func (r *Reader) PageText(ctx context.Context, page int) (string, error) {
	book, err := r.current()
	if err != nil {
		return "", err
	}
	return book.session.PageText(ctx, page)
}

// AddBookmark bookmarks the first character of the current page
func (r *Reader) AddBookmark(ctx context.Context, title string) (*domain.Bookmark, error) {
	book, err := r.current()
	if err != nil {
		return nil, err
	}

	page := book.nav.CurrentPage()
	offset, ok := book.nav.CurrentOffset()
	if !ok {
		return nil, fmt.Errorf("%w: no page to bookmark yet", domain.ErrInvalidInput)
	}
	if title == "" {
		text, err := book.session.PageText(ctx, page)
		if err != nil {
			return nil, err
		}
		title = domain.TitleFromText(text)
	}

	bookmark := domain.NewBookmark(book.session.URI(), title, offset)
	if err := r.bookmarks.CreateBookmark(ctx, bookmark); err != nil {
		return nil, err
	}
	r.logger.Debug("bookmark added", "uri", bookmark.URI, "offset", offset)
	return bookmark, nil
}

// DeleteBookmark removes a custom bookmark of the open book
func (r *Reader) DeleteBookmark(ctx context.Context, title string, characterIndex int64) error {
	book, err := r.current()
	if err != nil {
		return err
	}
	return r.bookmarks.DeleteBookmark(ctx, book.session.URI(), title, characterIndex)
}

// Bookmarks lists the custom bookmarks of the open book
func (r *Reader) Bookmarks(ctx context.Context) ([]*domain.Bookmark, error) {
	book, err := r.current()
	if err != nil {
		return nil, err
	}
	return r.bookmarks.LoadBookmarks(ctx, book.session.URI())
}

// History lists recently opened documents
func (r *Reader) History(ctx context.Context, limit int) ([]*domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = r.historyLimit
	}
	return r.history.ListHistory(ctx, limit)
}

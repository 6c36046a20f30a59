package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driven/mocks"
)

const quickBrownFox = "The quick brown fox jumps."

var testParams = domain.LayoutParams{Width: 10, Height: 1}

// wrapMeasurer breaks pages after the last space within width characters
func wrapMeasurer(width int) *mocks.MockMeasurer {
	m := mocks.NewMockMeasurer(width)
	m.Func = func(text []rune, _ domain.LayoutParams) int {
		if len(text) <= width {
			return len(text)
		}
		for i := width; i > 0; i-- {
			if text[i-1] == ' ' {
				return i
			}
		}
		return width
	}
	return m
}

func drainEvents(t *testing.T, s *Session) []domain.PageEvent {
	t.Helper()
	var events []domain.PageEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for session events")
			return nil
		}
	}
}

func allPages(events []domain.PageEvent) []domain.Page {
	var pages []domain.Page
	for _, ev := range events {
		pages = append(pages, ev.Pages...)
	}
	return pages
}

func openSession(t *testing.T, p *Paginator, uri string, resume int64) *Session {
	t.Helper()
	s, err := p.Open(context.Background(), uri, testParams, resume)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestPaginator_QuickBrownFox(t *testing.T) {
	src := mocks.NewMockDocumentSource()
	src.Put("mem://fox", quickBrownFox)
	p := NewPaginator(PaginatorConfig{
		Source:          src,
		Measurer:        mocks.NewMockMeasurer(10),
		ChunkSize:       8,
		FirstBatchPages: 1,
	})

	s := openSession(t, p, "mem://fox", 15)
	events := drainEvents(t, s)

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}
	first := events[0]
	if first.Kind != domain.PageEventFirstBatch {
		t.Fatalf("expected first batch, got %s", first.Kind)
	}
	if first.ResumePage != 1 {
		t.Errorf("expected resume page 1, got %d", first.ResumePage)
	}
	if first.Complete {
		t.Error("first batch should not be complete")
	}
	if events[1].Kind != domain.PageEventPagesAppended || !events[1].Complete {
		t.Errorf("expected final complete append, got %+v", events[1])
	}

	want := [][2]int64{{0, 10}, {10, 20}, {20, 26}}
	pages := allPages(events)
	if len(pages) != len(want) {
		t.Fatalf("expected %d pages, got %d", len(want), len(pages))
	}
	for i, w := range want {
		if pages[i].Index != i || pages[i].Start != w[0] || pages[i].End != w[1] {
			t.Errorf("page %d: expected [%d,%d), got %+v", i, w[0], w[1], pages[i])
		}
	}
	if pages[2].Text != "jumps." {
		t.Errorf("expected last page text %q, got %q", "jumps.", pages[2].Text)
	}
	if !s.IsComplete() {
		t.Error("session should be complete")
	}
}

func TestPaginator_ResumeSameOffsetTwice(t *testing.T) {
	src := mocks.NewMockDocumentSource()
	src.Put("mem://fox", quickBrownFox)
	p := NewPaginator(PaginatorConfig{Source: src, Measurer: mocks.NewMockMeasurer(10)})

	for i := 0; i < 2; i++ {
		s := openSession(t, p, "mem://fox", 15)
		events := drainEvents(t, s)
		if events[0].ResumePage != 1 {
			t.Errorf("open %d: expected resume page 1, got %d", i, events[0].ResumePage)
		}
		s.Close()
	}
}

func TestPaginator_LosslessAndDeterministic(t *testing.T) {
	var sb strings.Builder
	words := []string{"lorem", "ipsum", "다람쥐", "헌", "쳇바퀴에", "타고파", "naïve", "café", "\n", "日本語"}
	for i := 0; i < 600; i++ {
		sb.WriteString(words[(i*7)%len(words)])
		sb.WriteByte(' ')
	}
	text := sb.String()

	src := mocks.NewMockDocumentSource()
	src.Put("mem://long", text)

	var reference []domain.Page
	for _, chunk := range []int{16, 100, 4096, 1 << 20} {
		p := NewPaginator(PaginatorConfig{
			Source:          src,
			Measurer:        wrapMeasurer(23),
			ChunkSize:       chunk,
			FirstBatchPages: 2,
		})
		s := openSession(t, p, "mem://long", 0)
		events := drainEvents(t, s)
		pages := allPages(events)

		var rebuilt strings.Builder
		var next int64
		for i, page := range pages {
			if page.Index != i {
				t.Fatalf("chunk %d: page %d has index %d", chunk, i, page.Index)
			}
			if page.Start != next {
				t.Fatalf("chunk %d: page %d starts at %d, expected %d", chunk, i, page.Start, next)
			}
			if page.End <= page.Start {
				t.Fatalf("chunk %d: empty page %d", chunk, i)
			}
			next = page.End
			rebuilt.WriteString(page.Text)
		}
		if rebuilt.String() != text {
			t.Fatalf("chunk %d: pages do not reproduce the document", chunk)
		}
		if next != int64(len([]rune(text))) {
			t.Fatalf("chunk %d: pages cover %d characters, expected %d", chunk, next, len([]rune(text)))
		}

		if reference == nil {
			reference = pages
			continue
		}
		if len(pages) != len(reference) {
			t.Fatalf("chunk %d: %d pages, expected %d", chunk, len(pages), len(reference))
		}
		for i := range pages {
			if pages[i].Span() != reference[i].Span() {
				t.Fatalf("chunk %d: page %d differs: %+v vs %+v", chunk, i, pages[i].Span(), reference[i].Span())
			}
		}
	}
}

func TestPaginator_ResumePageContainsOffset(t *testing.T) {
	text := strings.Repeat("abcdefghij", 50)
	src := mocks.NewMockDocumentSource()
	src.Put("mem://doc", text)
	p := NewPaginator(PaginatorConfig{
		Source:          src,
		Measurer:        mocks.NewMockMeasurer(7),
		ChunkSize:       32,
		FirstBatchPages: 1,
	})

	for _, offset := range []int64{0, 1, 6, 7, 99, 250, 499} {
		s := openSession(t, p, "mem://doc", offset)
		events := drainEvents(t, s)
		first := events[0]
		if first.Kind != domain.PageEventFirstBatch {
			t.Fatalf("offset %d: expected first batch, got %s", offset, first.Kind)
		}
		page, ok := s.Index().Page(first.ResumePage)
		if !ok || !page.Contains(offset) {
			t.Errorf("offset %d: resume page %d (%+v) does not contain it", offset, first.ResumePage, page)
		}
		found := false
		for _, pg := range first.Pages {
			if pg.Index == first.ResumePage {
				found = true
			}
		}
		if !found {
			t.Errorf("offset %d: first batch does not include resume page %d", offset, first.ResumePage)
		}
		s.Close()
	}
}

func TestPaginator_ResumeBeyondEnd(t *testing.T) {
	src := mocks.NewMockDocumentSource()
	src.Put("mem://fox", quickBrownFox)
	p := NewPaginator(PaginatorConfig{Source: src, Measurer: mocks.NewMockMeasurer(10)})

	for _, offset := range []int64{26, 1000} {
		s := openSession(t, p, "mem://fox", offset)
		events := drainEvents(t, s)
		if events[0].ResumePage != 2 {
			t.Errorf("offset %d: expected last page 2, got %d", offset, events[0].ResumePage)
		}
		s.Close()
	}
}

func TestPaginator_EmptyDocument(t *testing.T) {
	src := mocks.NewMockDocumentSource()
	src.Put("mem://empty", "")
	p := NewPaginator(PaginatorConfig{Source: src, Measurer: mocks.NewMockMeasurer(10)})

	s := openSession(t, p, "mem://empty", 5)
	events := drainEvents(t, s)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Kind != domain.PageEventFirstBatch || !ev.Complete || len(ev.Pages) != 0 || ev.ResumePage != 0 {
		t.Errorf("unexpected event for empty document: %+v", ev)
	}
}

func TestPaginator_ForcedProgress(t *testing.T) {
	src := mocks.NewMockDocumentSource()
	src.Put("mem://wide", "abcdef")
	m := mocks.NewMockMeasurer(1)
	m.Func = func([]rune, domain.LayoutParams) int { return 0 }
	p := NewPaginator(PaginatorConfig{Source: src, Measurer: m})

	s := openSession(t, p, "mem://wide", 0)
	pages := allPages(drainEvents(t, s))

	if len(pages) != 6 {
		t.Fatalf("expected one page per character, got %d", len(pages))
	}
	for i, page := range pages {
		if page.Len() != 1 {
			t.Errorf("page %d has %d characters", i, page.Len())
		}
	}
	if s.ForcedBreaks() != 6 {
		t.Errorf("expected 6 forced breaks, got %d", s.ForcedBreaks())
	}
}

func TestPaginator_OversizedResultClamped(t *testing.T) {
	src := mocks.NewMockDocumentSource()
	src.Put("mem://fox", quickBrownFox)
	m := mocks.NewMockMeasurer(1)
	m.Func = func(text []rune, _ domain.LayoutParams) int { return len(text) + 100 }
	p := NewPaginator(PaginatorConfig{Source: src, Measurer: m})

	s := openSession(t, p, "mem://fox", 0)
	pages := allPages(drainEvents(t, s))

	if len(pages) != 1 || pages[0].End != 26 {
		t.Errorf("expected a single page covering the document, got %+v", pages)
	}
}

func TestPaginator_FailureKeepsPartialPages(t *testing.T) {
	src := mocks.NewMockDocumentSource()
	src.Put("mem://doc", strings.Repeat("x", 100))
	src.FailAfter = 45
	p := NewPaginator(PaginatorConfig{
		Source:          src,
		Measurer:        mocks.NewMockMeasurer(10),
		ChunkSize:       16,
		FirstBatchPages: 1,
	})

	s := openSession(t, p, "mem://doc", 0)
	events := drainEvents(t, s)

	if events[0].Kind != domain.PageEventFirstBatch {
		t.Fatalf("expected first batch first, got %s", events[0].Kind)
	}
	last := events[len(events)-1]
	if last.Kind != domain.PageEventFailed {
		t.Fatalf("expected failed event last, got %s", last.Kind)
	}
	if !errors.Is(last.Err, domain.ErrDocumentUnreadable) || !errors.Is(last.Err, mocks.ErrInjectedRead) {
		t.Errorf("unexpected failure error: %v", last.Err)
	}
	if !errors.Is(s.Err(), domain.ErrDocumentUnreadable) {
		t.Errorf("expected session error, got %v", s.Err())
	}
	if s.IsComplete() {
		t.Error("failed session must not be complete")
	}

	pages := allPages(events)
	// Text read in the failing unit is not paginated
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages before the failure, got %d", len(pages))
	}
	if pages[2].End != 30 {
		t.Errorf("expected partial pages to end at 30, got %d", pages[2].End)
	}
	if s.Index().Len() != 3 {
		t.Errorf("expected index to hold the partial pages, got %d", s.Index().Len())
	}
}

func TestPaginator_FailureBeforeFirstPage(t *testing.T) {
	src := mocks.NewMockDocumentSource()
	src.Put("mem://doc", strings.Repeat("x", 100))
	src.FailAfter = 5
	p := NewPaginator(PaginatorConfig{Source: src, Measurer: mocks.NewMockMeasurer(10)})

	s := openSession(t, p, "mem://doc", 0)
	events := drainEvents(t, s)

	if len(events) != 2 {
		t.Fatalf("expected first batch and failure, got %+v", events)
	}
	if events[0].Kind != domain.PageEventFirstBatch || len(events[0].Pages) != 0 {
		t.Errorf("expected empty first batch, got %+v", events[0])
	}
	if events[1].Kind != domain.PageEventFailed {
		t.Errorf("expected failure, got %s", events[1].Kind)
	}
}

func TestPaginator_OpenErrors(t *testing.T) {
	src := mocks.NewMockDocumentSource()
	p := NewPaginator(PaginatorConfig{Source: src, Measurer: mocks.NewMockMeasurer(10)})

	_, err := p.Open(context.Background(), "mem://missing", testParams, 0)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	src.Put("mem://fox", quickBrownFox)
	_, err = p.Open(context.Background(), "mem://fox", domain.LayoutParams{Width: 0, Height: 3}, 0)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSession_CloseStopsEvents(t *testing.T) {
	src := mocks.NewMockDocumentSource()
	src.Put("mem://big", strings.Repeat("0123456789", 20000))
	p := NewPaginator(PaginatorConfig{
		Source:          src,
		Measurer:        mocks.NewMockMeasurer(10),
		ChunkSize:       16,
		FirstBatchPages: 1,
		EventBuffer:     1,
	})

	s := openSession(t, p, "mem://big", 0)
	s.Close()

	select {
	case <-s.Done():
	default:
		t.Fatal("session goroutine still running after Close")
	}
	if _, ok := <-s.Events(); ok {
		t.Error("received an event after Close")
	}
	if s.IsComplete() {
		t.Error("cancelled session should not be complete")
	}

	// Closing twice is harmless
	s.Close()
}

func TestSession_PageTextReload(t *testing.T) {
	text := "가나다라마바사아자차카타파하 and some ascii tail"
	runes := []rune(text)

	for _, seekable := range []bool{true, false} {
		src := mocks.NewMockDocumentSource()
		src.Seekable = seekable
		src.Put("mem://ko", text)
		p := NewPaginator(PaginatorConfig{
			Source:        src,
			Measurer:      mocks.NewMockMeasurer(5),
			TextCacheSize: 1,
		})

		s := openSession(t, p, "mem://ko", 0)
		drainEvents(t, s)

		for i := 0; i < s.Index().Len(); i++ {
			page, _ := s.Index().Page(i)
			got, err := s.PageText(context.Background(), i)
			if err != nil {
				t.Fatalf("seekable=%v page %d: unexpected error: %v", seekable, i, err)
			}
			want := string(runes[page.Start:page.End])
			if got != want {
				t.Errorf("seekable=%v page %d: expected %q, got %q", seekable, i, want, got)
			}
		}

		if _, err := s.PageText(context.Background(), 999); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown page, got %v", err)
		}
		s.Close()
	}
}

func TestPaginator_BoundaryCache(t *testing.T) {
	src := mocks.NewMockDocumentSource()
	src.Put("mem://fox", quickBrownFox)
	cache := mocks.NewMockBoundaryCache()
	p := NewPaginator(PaginatorConfig{
		Source:          src,
		Measurer:        mocks.NewMockMeasurer(10),
		Cache:           cache,
		ChunkSize:       8,
		FirstBatchPages: 1,
	})

	s := openSession(t, p, "mem://fox", 0)
	first := allPages(drainEvents(t, s))
	if cache.Puts() != 1 {
		t.Fatalf("expected boundaries to be cached once, got %d", cache.Puts())
	}
	s.Close()

	opens := src.OpenCount()
	s = openSession(t, p, "mem://fox", 21)
	events := drainEvents(t, s)

	if len(events) != 1 || !events[0].Complete {
		t.Fatalf("expected a single complete first batch, got %+v", events)
	}
	if events[0].ResumePage != 2 {
		t.Errorf("expected resume page 2, got %d", events[0].ResumePage)
	}
	if src.OpenCount() != opens {
		t.Error("cached open should not read the document")
	}
	for i, page := range events[0].Pages {
		if page.Span() != first[i].Span() {
			t.Errorf("page %d differs from original pagination", i)
		}
	}

	text, err := s.PageText(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "brown fox " {
		t.Errorf("expected %q, got %q", "brown fox ", text)
	}

	// A different layout misses the cache
	s2, err := p.Open(context.Background(), "mem://fox", domain.LayoutParams{Width: 20, Height: 1}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s2.Close()
	drainEvents(t, s2)
	if cache.Puts() != 2 {
		t.Errorf("expected a second cache entry, got %d puts", cache.Puts())
	}
}

func TestPaginator_RejectsUnsupportedLayout(t *testing.T) {
	src := mocks.NewMockDocumentSource()
	src.Put("mem://fox", quickBrownFox)
	m := mocks.NewMockMeasurer(10)
	m.ValidateErr = fmt.Errorf("%w: unknown font family", domain.ErrInvalidInput)
	p := NewPaginator(PaginatorConfig{Source: src, Measurer: m})

	_, err := p.Open(context.Background(), "mem://fox", testParams, 0)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if src.OpenCount() != 0 || m.Calls() != 0 {
		t.Error("a rejected layout should not read or measure the document")
	}
}

func TestPaginator_BoundaryCacheKeyedByDecoding(t *testing.T) {
	// Same uri, size and modification time, decoded two different ways
	legacy := mocks.NewMockDocumentSource()
	legacy.Decoding = "euc-kr"
	legacy.Put("file:///book.txt", "가나다라마바")
	plain := mocks.NewMockDocumentSource()
	plain.Decoding = "utf-8"
	plain.Put("file:///book.txt", strings.Repeat("x", len("가나다라마바")))

	cache := mocks.NewMockBoundaryCache()
	open := func(src *mocks.MockDocumentSource) []domain.Page {
		p := NewPaginator(PaginatorConfig{Source: src, Measurer: mocks.NewMockMeasurer(4), Cache: cache})
		s := openSession(t, p, "file:///book.txt", 0)
		return allPages(drainEvents(t, s))
	}

	if got := open(legacy); len(got) != 2 {
		t.Fatalf("expected 2 pages of six characters, got %d", len(got))
	}
	pages := open(plain)
	if plain.OpenCount() == 0 {
		t.Fatal("boundaries of another decoding must not be reused")
	}
	if len(pages) != 5 || pages[len(pages)-1].End != 18 {
		t.Errorf("expected 5 pages covering 18 characters, got %+v", pages)
	}
	if cache.Puts() != 2 {
		t.Errorf("expected one cache entry per decoding, got %d puts", cache.Puts())
	}
}

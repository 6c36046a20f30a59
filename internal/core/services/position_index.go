package services

import (
	"sort"
	"sync"

	"github.com/appnyang/leafreader/internal/core/domain"
)

// PositionIndex maps character offsets to page indices for one pagination session.
// It is append-only: once an offset resolves to a page, that answer never changes.
// Safe for concurrent readers; only the owning session appends.
type PositionIndex struct {
	mu       sync.RWMutex
	pages    []domain.Page // spans only, no text
	complete bool
}

func newPositionIndex() *PositionIndex {
	return &PositionIndex{}
}

// append adds contiguous pages produced by the session
func (x *PositionIndex) append(pages []domain.Page) {
	if len(pages) == 0 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, p := range pages {
		x.pages = append(x.pages, p.Span())
	}
}

func (x *PositionIndex) markComplete() {
	x.mu.Lock()
	x.complete = true
	x.mu.Unlock()
}

// Len returns the number of pages produced so far
func (x *PositionIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.pages)
}

// Complete reports whether the whole document has been paginated
func (x *PositionIndex) Complete() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.complete
}

// Length returns the number of characters covered by the pages produced so far.
// Once Complete, this is the document length.
func (x *PositionIndex) Length() int64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if len(x.pages) == 0 {
		return 0
	}
	return x.pages[len(x.pages)-1].End
}

// Page returns the span of page i
func (x *PositionIndex) Page(i int) (domain.Page, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if i < 0 || i >= len(x.pages) {
		return domain.Page{}, false
	}
	return x.pages[i], true
}

// Pages returns a copy of the spans in [from, to)
func (x *PositionIndex) Pages(from, to int) []domain.Page {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if from < 0 {
		from = 0
	}
	if to > len(x.pages) {
		to = len(x.pages)
	}
	if from >= to {
		return nil
	}
	out := make([]domain.Page, to-from)
	copy(out, x.pages[from:to])
	return out
}

// OffsetForPage returns the first character offset of page i.
// ok is false when page i has not been produced (yet).
func (x *PositionIndex) OffsetForPage(i int) (offset int64, ok bool) {
	p, ok := x.Page(i)
	if !ok {
		return 0, false
	}
	return p.Start, true
}

// PageForOffset returns the page containing offset.
// ok is false while the offset lies beyond pagination progress (pending); callers
// re-query after the next batch. Negative offsets resolve to page 0 and offsets at
// or past the end of a completely paginated document clamp to the last page.
func (x *PositionIndex) PageForOffset(offset int64) (page int, ok bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	n := len(x.pages)
	if n == 0 {
		return 0, x.complete
	}
	if offset >= x.pages[n-1].End {
		if x.complete {
			return n - 1, true
		}
		return 0, false
	}
	return sort.Search(n, func(i int) bool { return x.pages[i].End > offset }), true
}

package services

import (
	"log/slog"
	"sync"

	"github.com/appnyang/leafreader/internal/core/domain"
)

// NavigatorConfig holds configuration for a page navigator
type NavigatorConfig struct {
	SessionID     string
	Index         *PositionIndex
	OnPageChanged func(page int) // Optional: called after the current page actually changes
	Logger        *slog.Logger
}

// Navigator tracks the current page of one session and resolves jumps to character
// offsets, deferring those that lie beyond pagination progress.
type Navigator struct {
	mu        sync.Mutex
	sessionID string
	index     *PositionIndex
	onChange  func(page int)
	logger    *slog.Logger

	current int
	ready   bool // First batch applied

	// Latest unresolved request; a newer one replaces it
	pending   bool
	byOffset  bool
	reqOffset int64
	reqPage   int
}

// NewNavigator creates a navigator bound to one session
func NewNavigator(cfg NavigatorConfig) *Navigator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{
		sessionID: cfg.SessionID,
		index:     cfg.Index,
		onChange:  cfg.OnPageChanged,
		logger:    logger.With("session_id", cfg.SessionID),
	}
}

// CurrentPage returns the page being displayed
func (n *Navigator) CurrentPage() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// PageCount returns the number of pages produced so far
func (n *Navigator) PageCount() int {
	return n.index.Len()
}

// Pending reports whether a jump is waiting for pagination to catch up
func (n *Navigator) Pending() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pending
}

// CurrentOffset returns the first character offset of the current page.
// ok is false while no page exists.
func (n *Navigator) CurrentOffset() (int64, bool) {
	return n.index.OffsetForPage(n.CurrentPage())
}

// GoToPage makes page i current, clamped to the pages produced so far.
// Returns whether the current page changed. Before the first batch the request is
// queued and applied when it arrives.
func (n *Navigator) GoToPage(i int) bool {
	n.mu.Lock()
	if !n.ready {
		n.queue(false, 0, i)
		n.mu.Unlock()
		return false
	}
	n.pending = false
	changed := n.setCurrent(n.clamp(i))
	page := n.current
	n.mu.Unlock()

	n.notify(changed, page)
	return changed
}

// GoToOffset makes the page containing offset current. When the offset lies beyond
// pagination progress the jump is deferred and resolved by a later batch; deferred
// reports that case.
func (n *Navigator) GoToOffset(offset int64) (page int, deferred bool) {
	n.mu.Lock()
	if !n.ready {
		n.queue(true, offset, 0)
		page = n.current
		n.mu.Unlock()
		return page, true
	}

	target, ok := n.index.PageForOffset(offset)
	if !ok {
		n.queue(true, offset, 0)
		page = n.current
		n.mu.Unlock()
		n.logger.Debug("jump deferred until pagination reaches offset", "offset", offset)
		return page, true
	}

	n.pending = false
	changed := n.setCurrent(target)
	page = n.current
	n.mu.Unlock()

	n.notify(changed, page)
	return page, false
}

// HandleEvent applies a pagination event. Events of other sessions are ignored.
// Returns whether the current page changed.
func (n *Navigator) HandleEvent(ev domain.PageEvent) bool {
	if ev.SessionID != n.sessionID {
		return false
	}

	n.mu.Lock()
	changed := false
	switch ev.Kind {
	case domain.PageEventFirstBatch:
		n.ready = true
		target := ev.ResumePage
		if n.pending {
			if p, ok := n.resolve(); ok {
				target = p
			}
		}
		changed = n.setCurrent(n.clamp(target))

	case domain.PageEventPagesAppended:
		if n.pending {
			if p, ok := n.resolve(); ok {
				changed = n.setCurrent(p)
			}
		}

	case domain.PageEventFailed:
		// Nothing more will arrive: settle a queued jump on the last page produced
		if n.pending {
			n.pending = false
			changed = n.setCurrent(n.clamp(n.index.Len() - 1))
		}
	}
	page := n.current
	n.mu.Unlock()

	n.notify(changed, page)
	return changed
}

func (n *Navigator) queue(byOffset bool, offset int64, page int) {
	n.pending = true
	n.byOffset = byOffset
	n.reqOffset = offset
	n.reqPage = page
}

// resolve answers the queued request if possible, clearing it
func (n *Navigator) resolve() (int, bool) {
	if !n.byOffset {
		n.pending = false
		return n.clamp(n.reqPage), true
	}
	p, ok := n.index.PageForOffset(n.reqOffset)
	if !ok {
		return 0, false
	}
	n.pending = false
	return p, true
}

func (n *Navigator) clamp(i int) int {
	count := n.index.Len()
	if i >= count {
		i = count - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func (n *Navigator) setCurrent(i int) bool {
	if i == n.current {
		return false
	}
	n.current = i
	return true
}

func (n *Navigator) notify(changed bool, page int) {
	if changed && n.onChange != nil {
		n.onChange(page)
	}
}

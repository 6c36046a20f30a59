package domain

// PageEventKind identifies a pagination progress event
type PageEventKind string

const (
	// PageEventFirstBatch carries the pages needed for the first render and the resume page
	PageEventFirstBatch PageEventKind = "first_batch"
	// PageEventPagesAppended carries pages produced by background pagination
	PageEventPagesAppended PageEventKind = "pages_appended"
	// PageEventFailed is terminal: the document became unreadable
	PageEventFailed PageEventKind = "failed"
)

// PageEvent is published by a pagination session.
// For one session the first batch precedes every append, appends arrive in
// document order, and nothing follows a failed event or a Complete batch.
type PageEvent struct {
	SessionID  string        `json:"session_id"`
	Kind       PageEventKind `json:"kind"`
	Pages      []Page        `json:"pages,omitempty"`
	ResumePage int           `json:"resume_page"`
	PageCount  int           `json:"page_count"` // Total pages produced so far, including this batch
	Complete   bool          `json:"complete"`
	Err        error         `json:"-"`
}

// FirstPage returns the index of the first page in the batch, or -1 if empty
func (e PageEvent) FirstPage() int {
	if len(e.Pages) == 0 {
		return -1
	}
	return e.Pages[0].Index
}

package domain

// ReaderStatus is a snapshot of the open book as seen by the reading surface
type ReaderStatus struct {
	SessionID     string `json:"session_id"`
	URI           string `json:"uri"`
	Title         string `json:"title"`
	CurrentPage   int    `json:"current_page"`
	PageCount     int    `json:"page_count"`
	CurrentOffset int64  `json:"current_offset"`
	Length        int64  `json:"length"`    // Characters paginated so far
	SizeBytes     int64  `json:"size_bytes"` // Size of the raw document, -1 if unknown
	Complete      bool   `json:"complete"`
	Pending       bool   `json:"pending"` // An offset jump is waiting for pagination to catch up
	ForcedBreaks  int64  `json:"forced_breaks,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Progress returns how far into the paginated pages the reader is, in [0, 1]
func (s ReaderStatus) Progress() float64 {
	if s.PageCount <= 1 {
		return 0
	}
	return float64(s.CurrentPage) / float64(s.PageCount-1)
}

// EstimatedLength returns the document length in characters if pagination has
// finished, otherwise an upper bound taken from the raw size
func (s ReaderStatus) EstimatedLength() int64 {
	if s.Complete || s.SizeBytes < s.Length {
		return s.Length
	}
	return s.SizeBytes
}
